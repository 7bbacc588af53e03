package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/auth"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/logger"
)

const seatConflictCode = "SEAT_CONFLICT"

// Client wraps every outbound call to the core API. It attaches the current
// access token, and on a 401 decides between "session expired, refresh and
// retry once" and "valid credential but denied" by inspecting the token's own
// expiry claim. It never retries more than once.
type Client struct {
	base  string
	http  *http.Client
	creds *auth.Coordinator
	log   *logger.Logger
}

func NewClient(baseURL string, httpClient *http.Client, creds *auth.Coordinator, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		base:  baseURL,
		http:  httpClient,
		creds: creds,
		log:   log,
	}
}

// Do sends an authenticated JSON request and decodes the response into out
// (which may be nil). Errors are normalized into the gateway taxonomy.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	return c.do(ctx, method, path, body, out, true)
}

// DoPublic sends a request without attaching credentials.
func (c *Client) DoPublic(ctx context.Context, method, path string, body, out interface{}) error {
	return c.do(ctx, method, path, body, out, false)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, authenticated bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var token string
	if authenticated {
		if pair := c.creds.Store().Pair(); pair != nil {
			token = pair.AccessToken
		}
	}

	resp, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && authenticated {
		if cerr := resp.Body.Close(); cerr != nil && c.log != nil {
			c.log.Error("GATEWAY", fmt.Sprintf("Error closing response body: %v", cerr))
		}

		// The server said no. If the token is not actually expired this is a
		// permission problem, and refreshing would just loop; surface it.
		if token != "" && !auth.TokenExpired(token, 0, time.Now()) {
			if c.log != nil {
				c.log.Warn("GATEWAY", fmt.Sprintf("%s %s: 401 with unexpired token, treating as permission denial", method, path))
			}
			return fmt.Errorf("%s %s rejected: %w", method, path, ErrForbidden)
		}

		fresh, err := c.creds.EnsureFresh(ctx)
		if err != nil {
			return err
		}

		if c.log != nil {
			c.log.Debug("GATEWAY", fmt.Sprintf("%s %s: retrying once with refreshed credential", method, path))
		}
		resp, err = c.send(ctx, method, path, payload, fresh)
		if err != nil {
			return err
		}
	}

	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && c.log != nil {
			c.log.Error("GATEWAY", fmt.Sprintf("Error closing response body: %v", cerr))
		}
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	return c.normalize(resp)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %v: %w", method, path, err, ErrUnavailable)
	}
	return resp, nil
}

// normalize maps a non-2xx response onto the taxonomy. A second 401 after the
// single retry lands here and surfaces as ErrForbidden rather than looping.
func (c *Client) normalize(resp *http.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &body)

	var kind error
	switch {
	case resp.StatusCode == http.StatusConflict || body.Code == seatConflictCode:
		kind = ErrSeatConflict
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		kind = ErrNotFound
	case resp.StatusCode >= 500:
		kind = ErrUnavailable
	default:
		kind = ErrValidation
	}

	if c.log != nil {
		c.log.Warn("GATEWAY", fmt.Sprintf("request failed: %d %s %s", resp.StatusCode, body.Code, body.Message))
	}

	return &APIError{
		Status:  resp.StatusCode,
		Code:    body.Code,
		Message: body.Message,
		kind:    kind,
	}
}

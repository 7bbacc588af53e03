package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/logger"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
)

// NewRefreshClient builds the RefreshFunc that calls the core API's refresh
// endpoint. A 401/403 there means the refresh token itself was rejected and
// maps to ErrRefreshTokenInvalid; anything else (5xx, transport) is transient.
func NewRefreshClient(refreshURL string, client *http.Client, log *logger.Logger) RefreshFunc {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return func(ctx context.Context, refreshToken string) (*models.CredentialPair, error) {
		body, err := json.Marshal(models.RefreshRequest{RefreshToken: refreshToken})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal refresh request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, refreshURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create refresh request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("refresh endpoint unreachable: %w", err)
		}
		defer func() {
			if cerr := resp.Body.Close(); cerr != nil && log != nil {
				log.Error("AUTH", fmt.Sprintf("Error closing refresh response body: %v", cerr))
			}
		}()

		switch {
		case resp.StatusCode == http.StatusOK:
			var out models.RefreshResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return nil, fmt.Errorf("failed to decode refresh response: %w", err)
			}
			return &models.CredentialPair{
				AccessToken:  out.AccessToken,
				RefreshToken: out.RefreshToken,
				IssuedAt:     time.Now(),
			}, nil

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			if log != nil {
				bodyBytes, _ := io.ReadAll(resp.Body)
				log.Warn("AUTH", fmt.Sprintf("refresh rejected (%s): %s", resp.Status, string(bodyBytes)))
			}
			return nil, fmt.Errorf("refresh endpoint returned %s: %w", resp.Status, ErrRefreshTokenInvalid)

		default:
			return nil, fmt.Errorf("refresh endpoint returned %s", resp.Status)
		}
	}
}

package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/auth"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/gateway"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
)

func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "customer-1",
		"exp": time.Now().Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func newCoordinator(t *testing.T, access string, refresh auth.RefreshFunc) *auth.Coordinator {
	t.Helper()
	store := auth.NewStore(time.Minute)
	store.Set(context.Background(), models.CredentialPair{
		AccessToken:  access,
		RefreshToken: signedToken(t, 24*time.Hour),
	})
	return auth.NewCoordinator(store, refresh, nil)
}

func TestDo_ExpiredTokenRefreshesAndRetriesOnce(t *testing.T) {
	expired := signedToken(t, -time.Minute)
	fresh := signedToken(t, time.Hour)

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Header.Get("Authorization") == "Bearer "+fresh {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "order-1"})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	var refreshes int32
	coord := newCoordinator(t, expired, func(ctx context.Context, refreshToken string) (*models.CredentialPair, error) {
		atomic.AddInt32(&refreshes, 1)
		return &models.CredentialPair{AccessToken: fresh, RefreshToken: refreshToken}, nil
	})

	client := gateway.NewClient(server.URL, server.Client(), coord, nil)

	var out struct {
		ID string `json:"id"`
	}
	err := client.Do(context.Background(), http.MethodGet, "/orders/order-1", nil, &out)
	assert.NoError(t, err)
	assert.Equal(t, "order-1", out.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests), "original plus exactly one retry")
}

func TestDo_UnexpiredTokenRejectionIsForbiddenNotRefresh(t *testing.T) {
	valid := signedToken(t, time.Hour)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	var refreshes int32
	coord := newCoordinator(t, valid, func(ctx context.Context, refreshToken string) (*models.CredentialPair, error) {
		atomic.AddInt32(&refreshes, 1)
		return &models.CredentialPair{AccessToken: valid, RefreshToken: refreshToken}, nil
	})

	client := gateway.NewClient(server.URL, server.Client(), coord, nil)

	err := client.Do(context.Background(), http.MethodGet, "/orders/order-1", nil, nil)
	assert.ErrorIs(t, err, gateway.ErrForbidden)
	assert.Equal(t, int32(0), atomic.LoadInt32(&refreshes), "a permission denial must not trigger a refresh")
}

func TestDo_SecondUnauthorizedDoesNotLoop(t *testing.T) {
	expired := signedToken(t, -time.Minute)
	// The refresh hands back another already-expired token so the retry is
	// rejected too.
	alsoExpired := signedToken(t, -time.Second)

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	var refreshes int32
	coord := newCoordinator(t, expired, func(ctx context.Context, refreshToken string) (*models.CredentialPair, error) {
		atomic.AddInt32(&refreshes, 1)
		return &models.CredentialPair{AccessToken: alsoExpired, RefreshToken: refreshToken}, nil
	})

	client := gateway.NewClient(server.URL, server.Client(), coord, nil)

	err := client.Do(context.Background(), http.MethodGet, "/orders/order-1", nil, nil)
	assert.ErrorIs(t, err, gateway.ErrForbidden)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests), "exactly one retry, never a loop")
}

func TestDo_RefreshFailurePropagates(t *testing.T) {
	expired := signedToken(t, -time.Minute)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	coord := newCoordinator(t, expired, func(ctx context.Context, refreshToken string) (*models.CredentialPair, error) {
		return nil, auth.ErrRefreshTokenInvalid
	})

	client := gateway.NewClient(server.URL, server.Client(), coord, nil)

	err := client.Do(context.Background(), http.MethodGet, "/orders/order-1", nil, nil)
	assert.ErrorIs(t, err, auth.ErrAuthExpired)
}

func TestDo_NormalizesErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"conflict status", http.StatusConflict, `{"code":"SEAT_CONFLICT","message":"seat A1 taken"}`, gateway.ErrSeatConflict},
		{"conflict code on 400", http.StatusBadRequest, `{"code":"SEAT_CONFLICT","message":"seat A1 taken"}`, gateway.ErrSeatConflict},
		{"bad request", http.StatusBadRequest, `{"code":"INVALID","message":"amount must be positive"}`, gateway.ErrValidation},
		{"forbidden", http.StatusForbidden, `{"code":"FORBIDDEN"}`, gateway.ErrForbidden},
		{"not found", http.StatusNotFound, `{"code":"NOT_FOUND"}`, gateway.ErrNotFound},
		{"server error", http.StatusInternalServerError, ``, gateway.ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, `not json`, gateway.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			coord := newCoordinator(t, signedToken(t, time.Hour), nil)
			client := gateway.NewClient(server.URL, server.Client(), coord, nil)

			err := client.Do(context.Background(), http.MethodPost, "/bookings", map[string]string{"k": "v"}, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *gateway.APIError
			if assert.ErrorAs(t, err, &apiErr) {
				assert.Equal(t, tt.status, apiErr.Status)
			}
		})
	}
}

func TestDo_NetworkFailureIsUnavailable(t *testing.T) {
	coord := newCoordinator(t, signedToken(t, time.Hour), nil)
	client := gateway.NewClient("http://127.0.0.1:1", &http.Client{Timeout: 200 * time.Millisecond}, coord, nil)

	err := client.Do(context.Background(), http.MethodGet, "/orders/x", nil, nil)
	assert.ErrorIs(t, err, gateway.ErrUnavailable)
}

func TestDoPublic_SendsNoCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	coord := newCoordinator(t, signedToken(t, time.Hour), nil)
	client := gateway.NewClient(server.URL, server.Client(), coord, nil)

	var out struct {
		OK bool `json:"ok"`
	}
	err := client.DoPublic(context.Background(), http.MethodGet, "/showtimes", nil, &out)
	assert.NoError(t, err)
	assert.True(t, out.OK)
}

func TestDo_EncodesRequestBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		assert.True(t, strings.Contains(string(raw), `"transaction_ref"`))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	coord := newCoordinator(t, signedToken(t, time.Hour), nil)
	client := gateway.NewClient(server.URL, server.Client(), coord, nil)

	err := client.Do(context.Background(), http.MethodPost, "/payments/confirm", map[string]string{"transaction_ref": "TXN-1"}, nil)
	assert.NoError(t, err)
}

package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/auth"
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

func TestTokenExpiry(t *testing.T) {
	token := signedToken(t, time.Hour)

	exp, err := auth.TokenExpiry(token)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	_, err = auth.TokenExpiry("")
	assert.Error(t, err)

	_, err = auth.TokenExpiry("not-a-jwt")
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()

	assert.False(t, auth.TokenExpired(signedToken(t, time.Hour), time.Minute, now))
	assert.True(t, auth.TokenExpired(signedToken(t, -time.Minute), 0, now))
	// Within the buffer counts as expired even though exp is in the future.
	assert.True(t, auth.TokenExpired(signedToken(t, 30*time.Second), time.Minute, now))
	// Unreadable tokens are treated as expired.
	assert.True(t, auth.TokenExpired("garbage", time.Minute, now))
}

func TestEnsureFresh_NoCredentials(t *testing.T) {
	store := auth.NewStore(time.Minute)
	coord := auth.NewCoordinator(store, func(ctx context.Context, refreshToken string) (*models.CredentialPair, error) {
		t.Fatal("refresh must not be called without credentials")
		return nil, nil
	}, nil)

	_, err := coord.EnsureFresh(context.Background())
	assert.ErrorIs(t, err, auth.ErrAuthExpired)
}

func TestEnsureFresh_ValidTokenNoRefresh(t *testing.T) {
	store := auth.NewStore(time.Minute)
	access := signedToken(t, time.Hour)
	store.Set(context.Background(), models.CredentialPair{
		AccessToken:  access,
		RefreshToken: signedToken(t, 24*time.Hour),
	})

	var calls int32
	coord := auth.NewCoordinator(store, func(ctx context.Context, refreshToken string) (*models.CredentialPair, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("unexpected")
	}, nil)

	got, err := coord.EnsureFresh(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, access, got)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestEnsureFresh_SingleFlight(t *testing.T) {
	store := auth.NewStore(time.Minute)
	store.Set(context.Background(), models.CredentialPair{
		AccessToken:  signedToken(t, -time.Minute),
		RefreshToken: signedToken(t, 24*time.Hour),
	})

	fresh := signedToken(t, time.Hour)
	var calls int32
	release := make(chan struct{})
	coord := auth.NewCoordinator(store, func(ctx context.Context, refreshToken string) (*models.CredentialPair, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &models.CredentialPair{
			AccessToken:  fresh,
			RefreshToken: refreshToken,
		}, nil
	}, nil)

	const workers = 20
	var wg sync.WaitGroup
	results := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = coord.EnsureFresh(context.Background())
		}(i)
	}

	// Let every goroutine reach the coordinator before the refresh returns.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "exactly one refresh request")
	for i := 0; i < workers; i++ {
		assert.NoError(t, errs[i])
		assert.Equal(t, fresh, results[i])
	}
}

func TestEnsureFresh_RefreshRejectedClearsCredentials(t *testing.T) {
	store := auth.NewStore(time.Minute)
	store.Set(context.Background(), models.CredentialPair{
		AccessToken:  signedToken(t, -time.Minute),
		RefreshToken: signedToken(t, 24*time.Hour),
	})

	coord := auth.NewCoordinator(store, func(ctx context.Context, refreshToken string) (*models.CredentialPair, error) {
		return nil, auth.ErrRefreshTokenInvalid
	}, nil)

	_, err := coord.EnsureFresh(context.Background())
	assert.ErrorIs(t, err, auth.ErrAuthExpired)
	assert.Nil(t, store.Pair(), "both credentials cleared on rejection")
}

func TestEnsureFresh_TransientFailureKeepsCredentials(t *testing.T) {
	store := auth.NewStore(time.Minute)
	pair := models.CredentialPair{
		AccessToken:  signedToken(t, -time.Minute),
		RefreshToken: signedToken(t, 24*time.Hour),
	}
	store.Set(context.Background(), pair)

	coord := auth.NewCoordinator(store, func(ctx context.Context, refreshToken string) (*models.CredentialPair, error) {
		return nil, errors.New("connection refused")
	}, nil)

	_, err := coord.EnsureFresh(context.Background())
	assert.ErrorIs(t, err, auth.ErrRefreshUnavailable)
	assert.NotErrorIs(t, err, auth.ErrAuthExpired)

	kept := store.Pair()
	require.NotNil(t, kept, "credentials survive a transient failure")
	assert.Equal(t, pair.RefreshToken, kept.RefreshToken)
}

func TestEnsureFresh_WaiterAborts(t *testing.T) {
	store := auth.NewStore(time.Minute)
	store.Set(context.Background(), models.CredentialPair{
		AccessToken:  signedToken(t, -time.Minute),
		RefreshToken: signedToken(t, 24*time.Hour),
	})

	release := make(chan struct{})
	coord := auth.NewCoordinator(store, func(ctx context.Context, refreshToken string) (*models.CredentialPair, error) {
		<-release
		return &models.CredentialPair{
			AccessToken:  signedToken(t, time.Hour),
			RefreshToken: refreshToken,
		}, nil
	}, nil)

	go func() {
		_, _ = coord.EnsureFresh(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := coord.EnsureFresh(ctx)
	assert.ErrorIs(t, err, auth.ErrAuthExpired)

	close(release)
}

func TestStoreSetAndClear(t *testing.T) {
	store := auth.NewStore(0)
	assert.Equal(t, auth.DefaultExpiryBuffer, store.Buffer())
	assert.Nil(t, store.Pair())
	assert.False(t, store.AccessValid(time.Now()))

	store.Set(context.Background(), models.CredentialPair{
		AccessToken:  signedToken(t, time.Hour),
		RefreshToken: signedToken(t, 24*time.Hour),
	})
	assert.True(t, store.AccessValid(time.Now()))
	require.NotNil(t, store.Pair())
	assert.False(t, store.Pair().IssuedAt.IsZero())

	store.Clear(context.Background())
	assert.Nil(t, store.Pair())
}

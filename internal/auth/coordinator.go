package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/logger"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
)

var (
	// ErrAuthExpired means the refresh credential itself was rejected. Both
	// credentials are cleared and the user must log in again.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrRefreshUnavailable means the refresh endpoint failed for a reason
	// unrelated to token validity. Credentials are kept; the caller may retry.
	ErrRefreshUnavailable = errors.New("credential refresh temporarily unavailable")

	// ErrRefreshTokenInvalid is what a RefreshFunc returns when the server
	// explicitly rejects the refresh token, as opposed to failing transiently.
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
)

// RefreshFunc exchanges a refresh token for a new credential pair. It must
// return ErrRefreshTokenInvalid (possibly wrapped) when the server rejects
// the token itself; any other error is treated as transient.
type RefreshFunc func(ctx context.Context, refreshToken string) (*models.CredentialPair, error)

type refreshState int

const (
	stateIdle refreshState = iota
	stateRefreshing
)

type refreshResult struct {
	access string
	err    error
}

// Coordinator serializes credential refreshes. However many concurrent calls
// observe an expired access token, exactly one refresh request is made; every
// other caller parks on a waiter channel and shares its outcome. This is the
// only place in the storefront where one operation suspends on another's
// completion.
type Coordinator struct {
	mu      sync.Mutex
	state   refreshState
	waiters []chan refreshResult

	store   *Store
	refresh RefreshFunc
	log     *logger.Logger
}

func NewCoordinator(store *Store, refresh RefreshFunc, log *logger.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		refresh: refresh,
		log:     log,
	}
}

// Store exposes the underlying credential store.
func (c *Coordinator) Store() *Store {
	return c.store
}

// EnsureFresh returns a usable access token, refreshing at most once no
// matter how many goroutines call it concurrently. It fails with
// ErrAuthExpired only when the refresh credential is gone or rejected; a ctx
// deadline hit while waiting is reported the same way, since the caller can
// do nothing but re-authenticate.
func (c *Coordinator) EnsureFresh(ctx context.Context) (string, error) {
	c.mu.Lock()

	pair := c.store.Pair()
	if pair == nil {
		c.mu.Unlock()
		return "", fmt.Errorf("no credentials held: %w", ErrAuthExpired)
	}

	if c.store.AccessValid(time.Now()) {
		c.mu.Unlock()
		return pair.AccessToken, nil
	}

	if c.state == stateRefreshing {
		// Someone else is already refreshing; park and share their result.
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case res := <-ch:
			return res.access, res.err
		case <-ctx.Done():
			return "", fmt.Errorf("refresh wait aborted: %w", ErrAuthExpired)
		}
	}

	// The check and the state flip happen under one lock hold, so two
	// callers can never both decide to start a refresh.
	c.state = stateRefreshing
	refreshToken := pair.RefreshToken
	c.mu.Unlock()

	if c.log != nil {
		c.log.LogAuth("REFRESH", "access token expired, refreshing credentials")
	}

	newPair, err := c.refresh(ctx, refreshToken)

	var res refreshResult
	switch {
	case err == nil:
		c.store.Set(ctx, *newPair)
		res = refreshResult{access: newPair.AccessToken}
		if c.log != nil {
			c.log.LogAuth("REFRESH", "credentials refreshed")
		}
	case errors.Is(err, ErrRefreshTokenInvalid):
		// The session is dead. Clear everything so upstream logs out, but
		// nothing else (in particular the recovery snapshot) is touched.
		c.store.Clear(ctx)
		res = refreshResult{err: fmt.Errorf("refresh rejected: %w", ErrAuthExpired)}
		if c.log != nil {
			c.log.Warn("AUTH", "refresh token rejected, credentials cleared")
		}
	default:
		res = refreshResult{err: fmt.Errorf("%v: %w", err, ErrRefreshUnavailable)}
		if c.log != nil {
			c.log.Warn("AUTH", fmt.Sprintf("transient refresh failure, keeping credentials: %v", err))
		}
	}

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.state = stateIdle
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- res
	}

	return res.access, res.err
}

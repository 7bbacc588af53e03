package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
)

// DefaultExpiryBuffer is subtracted from the token's exp claim when deciding
// whether a refresh is due, so in-flight requests don't race the real expiry.
const DefaultExpiryBuffer = 60 * time.Second

// TokenExpiry decodes the exp claim of a JWT without verifying its signature.
// The server stays the authority on validity; this client-side read only
// decides whether a refresh should happen before the next call.
func TokenExpiry(tokenString string) (time.Time, error) {
	if tokenString == "" {
		return time.Time{}, errors.New("empty token")
	}

	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return time.Time{}, errors.New("invalid token claims")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, errors.New("expiry claim not found in token")
	}

	return exp.Time, nil
}

// TokenExpired reports whether the token is within buffer of its expiry. A
// token whose expiry cannot be read is treated as expired.
func TokenExpired(tokenString string, buffer time.Duration, now time.Time) bool {
	exp, err := TokenExpiry(tokenString)
	if err != nil {
		return true
	}
	return !now.Add(buffer).Before(exp)
}

// PairCache mirrors the credential pair into an external store so a restarted
// process resumes its session instead of forcing a re-login.
type PairCache interface {
	Load(ctx context.Context) (*models.CredentialPair, error)
	Save(ctx context.Context, pair models.CredentialPair) error
	Clear(ctx context.Context) error
}

// Store holds the current credential pair. It is the only piece of state
// mutated by more than one concurrent operation; all mutation goes through
// the Coordinator.
type Store struct {
	mu     sync.Mutex
	pair   *models.CredentialPair
	buffer time.Duration
	cache  PairCache
}

func NewStore(buffer time.Duration) *Store {
	if buffer <= 0 {
		buffer = DefaultExpiryBuffer
	}
	return &Store{buffer: buffer}
}

// WithCache attaches a mirror cache and loads any previously saved pair.
func (s *Store) WithCache(ctx context.Context, cache PairCache) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = cache
	if s.pair == nil && cache != nil {
		if pair, err := cache.Load(ctx); err == nil && pair != nil {
			s.pair = pair
		}
	}
	return s
}

// Pair returns a copy of the current pair, or nil if logged out.
func (s *Store) Pair() *models.CredentialPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pair == nil {
		return nil
	}
	p := *s.pair
	return &p
}

func (s *Store) Set(ctx context.Context, pair models.CredentialPair) {
	if pair.IssuedAt.IsZero() {
		pair.IssuedAt = time.Now()
	}
	s.mu.Lock()
	s.pair = &pair
	cache := s.cache
	s.mu.Unlock()

	if cache != nil {
		_ = cache.Save(ctx, pair)
	}
}

// Clear drops both credentials. Called only when the refresh credential
// itself is rejected; upstream treats this as a forced logout.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.pair = nil
	cache := s.cache
	s.mu.Unlock()

	if cache != nil {
		_ = cache.Clear(ctx)
	}
}

// AccessValid reports whether the current access token is usable without a
// refresh.
func (s *Store) AccessValid(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pair == nil {
		return false
	}
	return !TokenExpired(s.pair.AccessToken, s.buffer, now)
}

// Buffer returns the expiry buffer the store was built with.
func (s *Store) Buffer() time.Duration {
	return s.buffer
}

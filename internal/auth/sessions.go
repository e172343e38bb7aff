package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"sheriff-backend/internal/cache"
)

var ErrLocked = errors.New("account temporarily locked")

// Sessions tracks failed logins and revoked tokens in the cache store.
type Sessions struct {
	store       cache.Store
	maxAttempts int
	lockout     time.Duration
}

func NewSessions(store cache.Store, maxAttempts int, lockout time.Duration) *Sessions {
	return &Sessions{store: store, maxAttempts: maxAttempts, lockout: lockout}
}

func failuresKey(email string) string {
	return "auth:failures:" + strings.ToLower(email)
}

func lockedKey(email string) string {
	return "auth:locked:" + strings.ToLower(email)
}

func revokedKey(jti string) string {
	return "auth:revoked:" + jti
}

// CheckLocked returns ErrLocked while email is serving a lockout.
func (s *Sessions) CheckLocked(ctx context.Context, email string) error {
	_, err := s.store.Get(ctx, lockedKey(email))
	if errors.Is(err, cache.ErrMiss) {
		return nil
	}
	if err != nil {
		return err
	}
	return ErrLocked
}

// RecordFailure counts a failed login within a window that starts at the
// first failure. Spending the budget locks the account for the full lockout
// and starts a fresh count.
func (s *Sessions) RecordFailure(ctx context.Context, email string) (int64, error) {
	n, err := s.store.Incr(ctx, failuresKey(email), s.lockout)
	if err != nil {
		return 0, err
	}
	if n >= int64(s.maxAttempts) {
		if err := s.store.Set(ctx, lockedKey(email), strconv.FormatInt(n, 10), s.lockout); err != nil {
			return n, err
		}
		if err := s.store.Del(ctx, failuresKey(email)); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (s *Sessions) Reset(ctx context.Context, email string) error {
	return s.store.Del(ctx, failuresKey(email), lockedKey(email))
}

// Revoke blacklists jti until the token would have expired anyway.
func (s *Sessions) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.store.Set(ctx, revokedKey(jti), "1", ttl)
}

func (s *Sessions) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := s.store.Get(ctx, revokedKey(jti))
	if errors.Is(err, cache.ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

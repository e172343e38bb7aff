package auth

import (
	"context"
	"testing"
	"time"

	"sheriff-backend/internal/cache"
	"sheriff-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_Lockout(t *testing.T) {
	ctx := context.Background()
	s := NewSessions(cache.NewMemoryStore(), 2, time.Minute)

	require.NoError(t, s.CheckLocked(ctx, "a@example.com"))
	_, err := s.RecordFailure(ctx, "a@example.com")
	require.NoError(t, err)
	require.NoError(t, s.CheckLocked(ctx, "a@example.com"))

	n, err := s.RecordFailure(ctx, "a@example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.ErrorIs(t, s.CheckLocked(ctx, "a@example.com"), ErrLocked)
	assert.NoError(t, s.CheckLocked(ctx, "b@example.com"))

	require.NoError(t, s.Reset(ctx, "a@example.com"))
	assert.NoError(t, s.CheckLocked(ctx, "a@example.com"))
}

func TestSessions_LockLastsFullWindow(t *testing.T) {
	ctx := context.Background()
	window := 300 * time.Millisecond
	s := NewSessions(cache.NewMemoryStore(), 3, window)

	_, err := s.RecordFailure(ctx, "a@example.com")
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)
	for i := 0; i < 2; i++ {
		_, err = s.RecordFailure(ctx, "a@example.com")
		require.NoError(t, err)
	}
	require.ErrorIs(t, s.CheckLocked(ctx, "a@example.com"), ErrLocked)

	// past the first failure's window, still inside the lock's
	time.Sleep(150 * time.Millisecond)
	assert.ErrorIs(t, s.CheckLocked(ctx, "a@example.com"), ErrLocked)

	time.Sleep(window)
	assert.NoError(t, s.CheckLocked(ctx, "a@example.com"))
}

func TestSessions_Revoke(t *testing.T) {
	ctx := context.Background()
	s := NewSessions(cache.NewMemoryStore(), 3, time.Minute)

	revoked, err := s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// already expired tokens need no entry
	require.NoError(t, s.Revoke(ctx, "jti-2", time.Now().Add(-time.Minute)))
	revoked, err = s.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestValidatePasswordChange(t *testing.T) {
	tests := []struct {
		name string
		body ChangePasswordRequest
		ok   bool
	}{
		{"valid", ChangePasswordRequest{"old-secret", "new-secret", "new-secret"}, true},
		{"missing current", ChangePasswordRequest{"", "new-secret", "new-secret"}, false},
		{"too short", ChangePasswordRequest{"old-secret", "short", "short"}, false},
		{"mismatch", ChangePasswordRequest{"old-secret", "new-secret", "new-secreT"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordChange(tt.body)
			assert.Equal(t, tt.ok, err == nil, err)
		})
	}
}

func TestGenerateToken(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	branch := uint(4)
	tok, err := GenerateToken(secret, time.Hour, &models.User{ID: 9, Email: "a@example.com", Role: models.RoleBranchAdmin, BranchID: &branch})
	require.NoError(t, err)

	claims := &JWTCustomClaims{}
	_, err = jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (interface{}, error) { return []byte(secret), nil })
	require.NoError(t, err)
	assert.EqualValues(t, 9, claims.UserID)
	assert.Equal(t, models.RoleBranchAdmin, claims.Role)
	require.NotNil(t, claims.BranchID)
	assert.EqualValues(t, 4, *claims.BranchID)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)

	_, err = jwt.ParseWithClaims(tok, &JWTCustomClaims{}, func(*jwt.Token) (interface{}, error) { return []byte("other-secret"), nil })
	assert.Error(t, err)
}

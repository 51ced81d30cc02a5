package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/librarydesk/librarydesk/internal/session"
	"github.com/librarydesk/librarydesk/internal/users"
)

type brokenRepo struct{ users.MemoryRepository }

func (b *brokenRepo) FindByEmail(ctx context.Context, email string) (*users.Account, error) {
	return nil, errors.New("connection refused")
}

func TestAuthenticate(t *testing.T) {
	hashed, err := HashPassword("secret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	svc := NewService(users.NewMemoryRepository([]users.Account{
		{ID: 7, Email: "reader@library.test", PasswordHash: hashed, Role: session.RoleUser, Status: users.StatusActive},
	}))
	ctx := context.Background()

	acc, err := svc.Authenticate(ctx, "reader@library.test", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, int64(7), acc.ID)

	_, err = svc.Authenticate(ctx, "reader@library.test", "nope")
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "password mismatch", authErr.Reason)
}

func TestAuthenticateBackendFailureIsNotAuthenticationError(t *testing.T) {
	svc := NewService(&brokenRepo{})
	_, err := svc.Authenticate(context.Background(), "a@b.c", "x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidCredentials))
}

func TestChangePasswordRejectsMalformedIdentity(t *testing.T) {
	svc := NewService(users.NewMemoryRepository(nil))
	err := svc.ChangePassword(context.Background(), "abc", "a", "b")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

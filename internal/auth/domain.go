package auth

import (
	"context"
	"errors"

	"github.com/librarydesk/librarydesk/internal/users"
)

var (
	// ErrInvalidCredentials is wrapped by every AuthenticationError.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrPasswordMismatch indicates the new password confirmation differs.
	ErrPasswordMismatch = errors.New("auth: new passwords do not match")
)

// AuthenticationError reports a rejected login or password check. The session
// is never modified when one is returned.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "auth: authentication failed: " + e.Reason
}

// Unwrap lets callers match ErrInvalidCredentials.
func (e *AuthenticationError) Unwrap() error {
	return ErrInvalidCredentials
}

// Repository defines account lookups needed for authentication.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*users.Account, error)
	GetAccount(ctx context.Context, id int64) (*users.Account, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/librarydesk/librarydesk/internal/users"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
	cost int
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*users.Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, &AuthenticationError{Reason: "unknown account"}
		}
		return nil, fmt.Errorf("auth: find account: %w", err)
	}
	if !account.IsActive() {
		return nil, &AuthenticationError{Reason: "account inactive"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, &AuthenticationError{Reason: "password mismatch"}
	}
	return account, nil
}

// ChangePassword verifies the current password of the account behind
// identity and stores a hash of next.
func (s *Service) ChangePassword(ctx context.Context, identity, current, next string) error {
	id, err := strconv.ParseInt(identity, 10, 64)
	if err != nil {
		return &AuthenticationError{Reason: "malformed identity"}
	}
	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return &AuthenticationError{Reason: "unknown account"}
		}
		return fmt.Errorf("auth: get account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(current)); err != nil {
		return &AuthenticationError{Reason: "current password mismatch"}
	}
	hash, err := HashPassword(next, s.cost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, id, hash); err != nil {
		return fmt.Errorf("auth: update password: %w", err)
	}
	return nil
}

// HashPassword returns a bcrypt hash of password. cost <= 0 uses the default.
func HashPassword(password string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

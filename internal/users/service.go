package users

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/librarydesk/librarydesk/internal/session"
)

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, id int64) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// LoanCounter reports loan counts keyed by account ID.
type LoanCounter interface {
	LoanCounts(ctx context.Context) (map[int64]LoanCounts, error)
}

// Service handles account business logic.
type Service struct {
	repo  RepositoryPort
	loans LoanCounter
}

// NewService builds Service instance. loans may be nil.
func NewService(repo RepositoryPort, loans LoanCounter) *Service {
	return &Service{repo: repo, loans: loans}
}

// ListMembers returns regular library users matching filter, ordered by name.
func (s *Service) ListMembers(ctx context.Context, filter Filter) ([]Member, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	counts := map[int64]LoanCounts{}
	if s.loans != nil {
		if counts, err = s.loans.LoanCounts(ctx); err != nil {
			return nil, fmt.Errorf("users: loan counts: %w", err)
		}
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	status := strings.ToLower(strings.TrimSpace(filter.Status))
	members := make([]Member, 0, len(accounts))
	for _, acc := range accounts {
		if acc.Role != session.RoleUser {
			continue
		}
		if status != "" && status != "all" && string(acc.Status) != status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(acc.Name), search) &&
			!strings.Contains(strings.ToLower(acc.Email), search) {
			continue
		}
		members = append(members, Member{Account: acc, Loans: counts[acc.ID]})
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}

// GetAccount returns a single account.
func (s *Service) GetAccount(ctx context.Context, id int64) (*Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// FindByEmail looks an account up by its case-insensitive email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// UpdatePasswordHash stores a new bcrypt hash.
func (s *Service) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return s.repo.UpdatePasswordHash(ctx, id, hash)
}

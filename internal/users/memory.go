package users

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepository keeps accounts in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[int64]Account
}

// NewMemoryRepository returns a repository seeded with accounts.
func NewMemoryRepository(accounts []Account) *MemoryRepository {
	repo := &MemoryRepository{accounts: make(map[int64]Account, len(accounts))}
	for _, acc := range accounts {
		acc.Email = strings.ToLower(acc.Email)
		repo.accounts[acc.ID] = acc
	}
	return repo
}

// ListAccounts returns all accounts ordered by ID.
func (m *MemoryRepository) ListAccounts(ctx context.Context) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetAccount returns the account with id.
func (m *MemoryRepository) GetAccount(ctx context.Context, id int64) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &acc, nil
}

// FindByEmail returns the account with email.
func (m *MemoryRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = strings.ToLower(email)
	for _, acc := range m.accounts {
		if acc.Email == email {
			found := acc
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

// UpdatePasswordHash replaces the stored hash.
func (m *MemoryRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acc.PasswordHash = hash
	m.accounts[id] = acc
	return nil
}

var _ RepositoryPort = (*MemoryRepository)(nil)

package users

import (
	"errors"
	"strconv"
	"time"

	"github.com/librarydesk/librarydesk/internal/session"
)

// ErrNotFound is returned when an account does not exist.
var ErrNotFound = errors.New("users: not found")

// Status tracks whether an account may sign in.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Account is a library account with credentials and a role.
type Account struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         session.Role
	Status       Status
	JoinedAt     time.Time
}

// Identity is the opaque session reference for the account.
func (a Account) Identity() string {
	return strconv.FormatInt(a.ID, 10)
}

// ParseIdentity maps a session identity back to an account ID.
func ParseIdentity(identity string) (int64, error) {
	id, err := strconv.ParseInt(identity, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNotFound
	}
	return id, nil
}

// IsActive reports whether the account may sign in.
func (a Account) IsActive() bool {
	return a.Status == StatusActive
}

// LoanCounts summarises an account's borrowing.
type LoanCounts struct {
	Total   int
	Active  int
	Overdue int
}

// Member is an account row on the admin user listing.
type Member struct {
	Account
	Loans LoanCounts
}

// Filter narrows the member listing.
type Filter struct {
	Search string
	Status string
}

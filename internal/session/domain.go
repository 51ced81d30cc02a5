package session

import (
	"errors"
	"strings"
	"time"
)

// Role distinguishes administrative from regular library capabilities.
type Role string

const (
	// RoleAdmin manages books, members and borrow records.
	RoleAdmin Role = "admin"
	// RoleUser browses the catalogue and borrows books.
	RoleUser Role = "user"
)

// ErrUnknownRole is returned when a role string is not recognised.
var ErrUnknownRole = errors.New("session: unknown role")

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleUser}
}

// ParseRole converts a case-insensitive string into a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	}
	return "", ErrUnknownRole
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

func (r Role) String() string {
	return string(r)
}

// Session records the authenticated identity and its role.
type Session struct {
	Identity string
	Role     Role
	IssuedAt time.Time
}

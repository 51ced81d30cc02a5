// Package authz decides whether a navigation renders or redirects.
package authz

import (
	"fmt"

	"github.com/librarydesk/librarydesk/internal/session"
)

// Requirement is the access constraint declared on a view.
type Requirement struct {
	role        session.Role
	constrained bool
}

// Any accepts every authenticated session.
func Any() Requirement {
	return Requirement{}
}

// RoleRequired accepts only sessions holding role.
func RoleRequired(role session.Role) Requirement {
	return Requirement{role: role, constrained: true}
}

// Role returns the required role and whether one is set.
func (r Requirement) Role() (session.Role, bool) {
	return r.role, r.constrained
}

func (r Requirement) String() string {
	if !r.constrained {
		return "authenticated"
	}
	return "role:" + r.role.String()
}

// Kind enumerates authorization outcomes.
type Kind int

const (
	// Render lets the view render.
	Render Kind = iota
	// RedirectToLogin sends anonymous visitors to the login view.
	RedirectToLogin
	// RedirectToRoleHome sends the session to its own role's home view.
	RedirectToRoleHome
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case RedirectToLogin:
		return "redirect_login"
	case RedirectToRoleHome:
		return "redirect_role_home"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Decision is the outcome of Authorize. Role is set only for RedirectToRoleHome.
type Decision struct {
	Kind Kind
	Role session.Role
}

// Authorize is total and deterministic: a nil session always redirects to
// login, a role mismatch redirects to the session's home, anything else renders.
func Authorize(sess *session.Session, req Requirement) Decision {
	if sess == nil {
		return Decision{Kind: RedirectToLogin}
	}
	if role, ok := req.Role(); ok && sess.Role != role {
		return Decision{Kind: RedirectToRoleHome, Role: sess.Role}
	}
	return Decision{Kind: Render}
}

// AuthorizeStore evaluates req against the store's current session.
func AuthorizeStore(store *session.Store, req Requirement) Decision {
	if store == nil {
		return Authorize(nil, req)
	}
	sess, ok := store.Current()
	if !ok {
		return Authorize(nil, req)
	}
	return Authorize(&sess, req)
}

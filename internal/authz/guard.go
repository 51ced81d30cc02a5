package authz

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/librarydesk/librarydesk/internal/session"
	"github.com/librarydesk/librarydesk/internal/shared"
)

// Homes maps decisions to concrete paths.
type Homes struct {
	Login  string
	ByRole map[session.Role]string
}

// DefaultHomes returns the application's route layout.
func DefaultHomes() Homes {
	return Homes{
		Login: "/login",
		ByRole: map[session.Role]string{
			session.RoleAdmin: "/admin",
			session.RoleUser:  "/user",
		},
	}
}

// Home returns the landing path for role, falling back to login for roles
// without one.
func (h Homes) Home(role session.Role) string {
	if path, ok := h.ByRole[role]; ok {
		return path
	}
	return h.Login
}

// Location returns the redirect target for d. Render has none.
func (h Homes) Location(d Decision) (string, bool) {
	switch d.Kind {
	case Render:
		return "", false
	case RedirectToLogin:
		return h.Login, true
	case RedirectToRoleHome:
		return h.Home(d.Role), true
	}
	panic(fmt.Sprintf("authz: unhandled decision %s", d.Kind))
}

// DecisionRecorder counts decisions, e.g. in Prometheus.
type DecisionRecorder interface {
	RecordDecision(requirement string, decision string)
}

// Guard applies Authorize to HTTP requests using the session in context.
type Guard struct {
	Homes    Homes
	Logger   *slog.Logger
	Recorder DecisionRecorder
}

// NewGuard constructs a Guard with the default route layout.
func NewGuard(logger *slog.Logger, recorder DecisionRecorder) Guard {
	return Guard{Homes: DefaultHomes(), Logger: logger, Recorder: recorder}
}

// Require renders next only when the decision for req is Render.
func (g Guard) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := g.decide(r, req)
			if g.Recorder != nil {
				g.Recorder.RecordDecision(req.String(), decision.Kind.String())
			}
			location, redirect := g.Homes.Location(decision)
			if !redirect {
				next.ServeHTTP(w, r)
				return
			}
			if g.Logger != nil {
				g.Logger.Debug("authz redirect",
					slog.String("path", r.URL.Path),
					slog.String("requirement", req.String()),
					slog.String("decision", decision.Kind.String()),
					slog.String("location", location))
			}
			http.Redirect(w, r, location, http.StatusSeeOther)
		})
	}
}

// RedirectAuthenticated sends an authenticated session to its role home and
// otherwise calls next.
func (g Guard) RedirectAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if current, ok := shared.CurrentUser(r.Context()); ok {
			http.Redirect(w, r, g.Homes.Home(current.Role), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Landing redirects to the role home or, for anonymous visitors, to login.
func (g Guard) Landing(w http.ResponseWriter, r *http.Request) {
	if current, ok := shared.CurrentUser(r.Context()); ok {
		http.Redirect(w, r, g.Homes.Home(current.Role), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, g.Homes.Login, http.StatusSeeOther)
}

// SectionFallback redirects unknown paths below a section to its home.
func (g Guard) SectionFallback(role session.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, g.Homes.Home(role), http.StatusSeeOther)
	}
}

func (g Guard) decide(r *http.Request, req Requirement) Decision {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return Authorize(nil, req)
	}
	return AuthorizeStore(sess.Auth(), req)
}

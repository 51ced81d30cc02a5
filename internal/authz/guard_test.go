package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarydesk/librarydesk/internal/session"
	"github.com/librarydesk/librarydesk/internal/shared"
)

type recordedDecision struct {
	requirement string
	decision    string
}

type fakeRecorder struct {
	seen []recordedDecision
}

func (f *fakeRecorder) RecordDecision(requirement, decision string) {
	f.seen = append(f.seen, recordedDecision{requirement, decision})
}

// requestAs builds a request carrying a fresh session; role "" means anonymous.
func requestAs(t *testing.T, path string, role session.Role) *http.Request {
	t.Helper()
	manager := shared.NewSessionManager(nil, "test_session", "secret", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	sess, err := manager.Load(context.Background(), req)
	require.NoError(t, err)
	if role != "" {
		sess.Auth().Login("1", role)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestGuardRequire(t *testing.T) {
	cases := []struct {
		name     string
		role     session.Role
		req      Requirement
		status   int
		location string
	}{
		{"anonymous", "", RoleRequired(session.RoleAdmin), http.StatusSeeOther, "/login"},
		{"wrong role", session.RoleUser, RoleRequired(session.RoleAdmin), http.StatusSeeOther, "/user"},
		{"admin on user view", session.RoleAdmin, RoleRequired(session.RoleUser), http.StatusSeeOther, "/admin"},
		{"matching role", session.RoleAdmin, RoleRequired(session.RoleAdmin), http.StatusOK, ""},
		{"unconstrained", session.RoleUser, Any(), http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := &fakeRecorder{}
			guard := NewGuard(nil, recorder)
			res := httptest.NewRecorder()

			guard.Require(tc.req)(okHandler).ServeHTTP(res, requestAs(t, "/x", tc.role))

			assert.Equal(t, tc.status, res.Code)
			assert.Equal(t, tc.location, res.Header().Get("Location"))
			require.Len(t, recorder.seen, 1)
			assert.Equal(t, tc.req.String(), recorder.seen[0].requirement)
		})
	}
}

func TestGuardWithoutSessionRedirectsToLogin(t *testing.T) {
	guard := NewGuard(nil, nil)
	res := httptest.NewRecorder()
	guard.Require(Any())(okHandler).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/change-password", nil))
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))
}

func TestLanding(t *testing.T) {
	guard := NewGuard(nil, nil)

	res := httptest.NewRecorder()
	guard.Landing(res, requestAs(t, "/", ""))
	assert.Equal(t, "/login", res.Header().Get("Location"))

	res = httptest.NewRecorder()
	guard.Landing(res, requestAs(t, "/", session.RoleAdmin))
	assert.Equal(t, "/admin", res.Header().Get("Location"))

	res = httptest.NewRecorder()
	guard.Landing(res, requestAs(t, "/", session.RoleUser))
	assert.Equal(t, "/user", res.Header().Get("Location"))
}

func TestRedirectAuthenticated(t *testing.T) {
	guard := NewGuard(nil, nil)
	handler := guard.RedirectAuthenticated(okHandler)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs(t, "/login", ""))
	assert.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs(t, "/login", session.RoleUser))
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/user", res.Header().Get("Location"))
}

func TestSectionFallback(t *testing.T) {
	guard := NewGuard(nil, nil)
	res := httptest.NewRecorder()
	guard.SectionFallback(session.RoleAdmin)(res, requestAs(t, "/admin/nope", session.RoleAdmin))
	assert.Equal(t, "/admin", res.Header().Get("Location"))
}

package app_test

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarydesk/librarydesk/internal/app"
	"github.com/librarydesk/librarydesk/internal/auth"
	"github.com/librarydesk/librarydesk/internal/authz"
	"github.com/librarydesk/librarydesk/internal/session"
	"github.com/librarydesk/librarydesk/internal/shared"
	"github.com/librarydesk/librarydesk/internal/users"
	"github.com/librarydesk/librarydesk/internal/view"
)

// gatedAuthenticator accepts any credentials once released.
type gatedAuthenticator struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedAuthenticator) Authenticate(ctx context.Context, email, password string) (*users.Account, error) {
	close(g.entered)
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &users.Account{ID: 1, Name: "Ada", Email: email, Role: session.RoleAdmin, Status: users.StatusActive}, nil
}

func (g *gatedAuthenticator) ChangePassword(ctx context.Context, identity, current, next string) error {
	return nil
}

func newGatedServer(t *testing.T, authn auth.Authenticator) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	sessions := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, false)
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	templates, err := view.NewEngine()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(app.MiddlewareStack(app.MiddlewareConfig{Config: cfg, SessionManager: sessions, CSRFManager: csrf})...)
	auth.NewHandler(nil, authn, templates, sessions, csrf, authz.NewGuard(nil, nil)).MountRoutes(r)
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		if current, ok := shared.CurrentUser(r.Context()); ok {
			_, _ = w.Write([]byte("present:" + current.Identity + ":" + current.Role.String()))
			return
		}
		_, _ = w.Write([]byte("absent"))
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &harness{t: t, server: server, client: client}
}

func TestLogoutDuringLoginLeavesSessionAbsent(t *testing.T) {
	authn := &gatedAuthenticator{entered: make(chan struct{}), release: make(chan struct{})}
	h := newGatedServer(t, authn)
	token := h.csrf("/login")

	type result struct {
		res *http.Response
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := h.client.PostForm(h.server.URL+"/login", url.Values{
			"email":      {"admin@library.test"},
			"password":   {"whatever"},
			"csrf_token": {token},
		})
		if err == nil {
			_ = res.Body.Close()
		}
		done <- result{res, err}
	}()

	select {
	case <-authn.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("login never reached the credential check")
	}

	res, _ := h.post("/logout", url.Values{"csrf_token": {token}})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)

	close(authn.release)
	var login result
	select {
	case login = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("login did not finish")
	}
	require.NoError(t, login.err)
	assert.Equal(t, http.StatusSeeOther, login.res.StatusCode)
	assert.Equal(t, "/login", login.res.Header.Get("Location"))

	_, body := h.get("/whoami")
	assert.Equal(t, "absent", body)

	_, body = h.get("/login")
	assert.Contains(t, body, "Sign-in was interrupted")
}

func TestUncontestedLoginThroughMiddleware(t *testing.T) {
	authn := &gatedAuthenticator{entered: make(chan struct{}), release: make(chan struct{})}
	close(authn.release)
	h := newGatedServer(t, authn)
	token := h.csrf("/login")

	res, _ := h.post("/login", url.Values{
		"email":      {"admin@library.test"},
		"password":   {"whatever"},
		"csrf_token": {token},
	})
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/admin", res.Header.Get("Location"))

	_, body := h.get("/whoami")
	assert.Equal(t, "present:1:admin", body)
}

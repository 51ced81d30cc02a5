package app_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/librarydesk/librarydesk/internal/app"
	"github.com/librarydesk/librarydesk/internal/fixtures"
	"github.com/librarydesk/librarydesk/internal/observability"
	_ "github.com/librarydesk/librarydesk/testing"
)

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

type harness struct {
	t       *testing.T
	server  *httptest.Server
	client  *http.Client
	dataset *fixtures.Dataset
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	ds, err := fixtures.Load("", time.Now(), bcrypt.MinCost)
	require.NoError(t, err)

	cfg, err := app.LoadConfig()
	require.NoError(t, err)

	handler, err := app.BuildHandler(app.Dependencies{
		Config:  cfg,
		Redis:   redisClient,
		Backend: app.NewMemoryBackend(ds),
		Metrics: observability.NewMetrics(),
	})
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &harness{t: t, server: server, client: client, dataset: ds}
}

func (h *harness) get(path string) (*http.Response, string) {
	h.t.Helper()
	res, err := h.client.Get(h.server.URL + path)
	require.NoError(h.t, err)
	return res, readBody(h.t, res)
}

func (h *harness) post(path string, values url.Values) (*http.Response, string) {
	h.t.Helper()
	res, err := h.client.PostForm(h.server.URL+path, values)
	require.NoError(h.t, err)
	return res, readBody(h.t, res)
}

// csrf fetches a page and extracts the token from its forms.
func (h *harness) csrf(path string) string {
	h.t.Helper()
	_, body := h.get(path)
	match := csrfPattern.FindStringSubmatch(body)
	require.Len(h.t, match, 2, "csrf token on %s", path)
	return match[1]
}

func (h *harness) login(email, password string) *http.Response {
	h.t.Helper()
	token := h.csrf("/login")
	res, _ := h.post("/login", url.Values{
		"email":      {email},
		"password":   {password},
		"csrf_token": {token},
	})
	return res
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(data)
}

func TestAnonymousVisitorsAreSentToLogin(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/", "/admin", "/admin/books", "/user", "/user/history", "/change-password", "/admin/nope"} {
		res, _ := h.get(path)
		assert.Equal(t, http.StatusSeeOther, res.StatusCode, path)
		assert.Equal(t, "/login", res.Header.Get("Location"), path)
	}

	res, body := h.get("/login")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "<form")
}

func TestLoginRequiresCSRFToken(t *testing.T) {
	h := newHarness(t)
	h.get("/login")

	res, _ := h.post("/login", url.Values{"email": {"admin@library.com"}, "password": {"admin123"}})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestAdminFlow(t *testing.T) {
	h := newHarness(t)

	res := h.login("admin@library.com", "admin123")
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/admin", res.Header.Get("Location"))

	res, body := h.get("/admin")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Admin Dashboard")
	assert.Contains(t, body, "Welcome back, Library Admin")

	for path, home := range map[string]string{"/": "/admin", "/login": "/admin", "/user": "/admin", "/user/browse": "/admin", "/admin/nope": "/admin"} {
		res, _ := h.get(path)
		assert.Equal(t, http.StatusSeeOther, res.StatusCode, path)
		assert.Equal(t, home, res.Header.Get("Location"), path)
	}

	res, body = h.get("/admin/books")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "The Great Gatsby")

	res, body = h.get("/admin/users")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "jane@library.com")

	res, body = h.get("/admin/borrows?status=overdue")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Borrow Management")

	res, body = h.get("/admin/reports/overdue")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Overdue loans")

	res, _ = h.get("/admin/reports/overdue.pdf")
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	res, body = h.get("/api/session")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var current map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &current))
	assert.Equal(t, "admin", current["role"])
	assert.Equal(t, "1", current["identity"])
}

func TestAdminCreatesBook(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusSeeOther, h.login("admin@library.com", "admin123").StatusCode)

	token := h.csrf("/admin/books/new")
	res, _ := h.post("/admin/books", url.Values{
		"csrf_token":   {token},
		"title":        {"Dune"},
		"author":       {"Frank Herbert"},
		"genre":        {"Science Fiction"},
		"published_on": {"1965-08-01"},
		"copies":       {"2"},
		"rating":       {"4.4"},
	})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/admin/books", res.Header.Get("Location"))

	_, body := h.get("/admin/books")
	assert.Contains(t, body, "Book added successfully")
	assert.Contains(t, body, "Dune")

	token = h.csrf("/admin/books/new")
	res, body = h.post("/admin/books", url.Values{
		"csrf_token":   {token},
		"title":        {"dune"},
		"author":       {"frank herbert"},
		"genre":        {"Science Fiction"},
		"published_on": {"1965-08-01"},
		"copies":       {"1"},
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, body, "already exists")
}

func TestMemberFlow(t *testing.T) {
	h := newHarness(t)

	res := h.login("user@library.com", "user123")
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/user", res.Header.Get("Location"))

	res, body := h.get("/user")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "My Library")

	for _, path := range []string{"/admin", "/admin/books", "/admin/jobs/health", "/user/nope"} {
		res, _ := h.get(path)
		assert.Equal(t, http.StatusSeeOther, res.StatusCode, path)
		assert.Equal(t, "/user", res.Header.Get("Location"), path)
	}

	bookID := h.borrowableBook(2)
	token := h.csrf("/user/browse")
	res, _ = h.post("/user/browse/"+strconv.FormatInt(bookID, 10)+"/borrow", url.Values{"csrf_token": {token}})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/user/browse", res.Header.Get("Location"))

	_, body = h.get("/user/browse")
	assert.Contains(t, body, "You borrowed")

	res, body = h.get("/user/history?status=bogus")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Borrow History")
}

func TestLogoutEndsSession(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusSeeOther, h.login("user@library.com", "user123").StatusCode)

	token := h.csrf("/user")
	res, _ := h.post("/logout", url.Values{"csrf_token": {token}})
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))

	res, _ = h.get("/user")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))

	res, _ = h.get("/api/session")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestInactiveAccountCannotSignIn(t *testing.T) {
	h := newHarness(t)
	res := h.login("bob@library.com", "user123")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = h.get("/user")
	assert.Equal(t, "/login", res.Header.Get("Location"))
}

func TestUnknownPathRendersNotFound(t *testing.T) {
	h := newHarness(t)
	res, body := h.get("/no/such/page")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Contains(t, body, "Page not found")
}

func TestOperationalEndpoints(t *testing.T) {
	h := newHarness(t)

	res, body := h.get("/healthz")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "ok")

	res, _ = h.get("/static/css/app.css")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, strings.HasPrefix(res.Header.Get("Content-Type"), "text/css"))
	assert.Equal(t, "public, max-age=3600", res.Header.Get("Cache-Control"))

	h.get("/admin")
	res, body = h.get("/metrics")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "librarydesk_authz_decisions_total")
	assert.Contains(t, body, "librarydesk_http_requests_total")
}

// borrowableBook picks a book with free copies that member has no open loan for.
func (h *harness) borrowableBook(memberID int64) int64 {
	h.t.Helper()
	open := make(map[int64]bool)
	for _, b := range h.dataset.Borrows {
		if b.MemberID == memberID && b.ReturnedOn == nil {
			open[b.BookID] = true
		}
	}
	for _, book := range h.dataset.Books {
		if book.Available > 0 && !open[book.ID] {
			return book.ID
		}
	}
	h.t.Fatal("no borrowable book in fixtures")
	return 0
}

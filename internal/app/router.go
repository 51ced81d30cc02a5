package app

import (
	"io/fs"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/librarydesk/librarydesk/internal/auth"
	"github.com/librarydesk/librarydesk/internal/authz"
	"github.com/librarydesk/librarydesk/internal/borrows"
	"github.com/librarydesk/librarydesk/internal/catalog"
	"github.com/librarydesk/librarydesk/internal/observability"
	"github.com/librarydesk/librarydesk/internal/platform/httpx"
	"github.com/librarydesk/librarydesk/internal/session"
	"github.com/librarydesk/librarydesk/internal/shared"
	"github.com/librarydesk/librarydesk/internal/users"
	"github.com/librarydesk/librarydesk/internal/view"
	"github.com/librarydesk/librarydesk/jobs"
	"github.com/librarydesk/librarydesk/report"
	"github.com/librarydesk/librarydesk/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Guard          authz.Guard
	AuthHandler    *auth.Handler
	CatalogHandler *catalog.Handler
	UsersHandler   *users.Handler
	BorrowsHandler *borrows.Handler
	JobHandler     *jobs.Handler
	ReportHandler  *report.Handler
	Metrics        *observability.Metrics
}

func init() {
	// Some minimal images ship without /etc/mime.types.
	_ = mime.AddExtensionType(".css", "text/css; charset=utf-8")
	_ = mime.AddExtensionType(".js", "text/javascript; charset=utf-8")
}

// NewRouter constructs the chi.Router with librarydesk defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	guard := params.Guard

	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}
	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/", guard.Landing)
	r.Get("/api/session", currentSession)

	params.AuthHandler.MountRoutes(r)

	r.Route("/admin", func(r chi.Router) {
		r.Use(guard.Require(authz.RoleRequired(session.RoleAdmin)))
		r.NotFound(guard.SectionFallback(session.RoleAdmin))
		r.Get("/", params.BorrowsHandler.Dashboard)
		r.Route("/books", params.CatalogHandler.MountAdminRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/borrows", params.BorrowsHandler.MountAdminRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
		if params.ReportHandler != nil {
			r.Route("/reports", params.ReportHandler.MountRoutes)
		}
	})

	r.Route("/user", func(r chi.Router) {
		r.Use(guard.Require(authz.RoleRequired(session.RoleUser)))
		r.NotFound(guard.SectionFallback(session.RoleUser))
		params.BorrowsHandler.MountMemberRoutes(r)
		params.CatalogHandler.MountMemberRoutes(r)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.NotFound(notFound(logger, params.Templates, params.CSRFManager))
	return r
}

type sessionResponse struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`
}

// currentSession reports the signed-in identity as JSON for scripts.
func currentSession(w http.ResponseWriter, r *http.Request) {
	current, ok := shared.CurrentUser(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{Identity: current.Identity, Role: current.Role.String()})
}

func notFound(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := view.NewTemplateData(r, csrf, "Page not found", nil)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		if err := templates.Render(w, "pages/not_found.html", data); err != nil {
			logger.Error("render not found", slog.Any("error", err))
		}
	}
}

// staticCacheHandler caches embedded assets in the browser for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}

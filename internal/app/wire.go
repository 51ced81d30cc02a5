package app

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/librarydesk/librarydesk/internal/auth"
	"github.com/librarydesk/librarydesk/internal/authz"
	"github.com/librarydesk/librarydesk/internal/borrows"
	"github.com/librarydesk/librarydesk/internal/catalog"
	"github.com/librarydesk/librarydesk/internal/observability"
	"github.com/librarydesk/librarydesk/internal/shared"
	"github.com/librarydesk/librarydesk/internal/users"
	"github.com/librarydesk/librarydesk/internal/view"
	"github.com/librarydesk/librarydesk/jobs"
	"github.com/librarydesk/librarydesk/report"
)

// Dependencies are the long-lived resources the HTTP application needs.
// Inspector and Enqueuer may be nil.
type Dependencies struct {
	Config    *Config
	Logger    *slog.Logger
	Redis     *redis.Client
	Backend   *Backend
	Metrics   *observability.Metrics
	Inspector jobs.QueueInspector
	Enqueuer  jobs.Enqueuer
}

// BuildHandler assembles services, handlers and the router.
func BuildHandler(deps Dependencies) (http.Handler, error) {
	if deps.Config == nil || deps.Backend == nil || deps.Redis == nil {
		return nil, errors.New("config, backend and redis are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	templates, err := view.NewEngine()
	if err != nil {
		return nil, err
	}
	sessions := shared.NewSessionManager(deps.Redis, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	guard := authz.NewGuard(logger, deps.Metrics)
	services := NewServices(deps.Backend, cfg)

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessions,
		CSRFManager:    csrf,
		Guard:          guard,
		AuthHandler:    auth.NewHandler(logger, services.Auth, templates, sessions, csrf, guard),
		CatalogHandler: catalog.NewHandler(logger, services.Catalog, templates, csrf),
		UsersHandler:   users.NewHandler(logger, services.Users, templates, csrf),
		BorrowsHandler: borrows.NewHandler(logger, services.Borrows, templates, csrf),
		JobHandler:     jobs.NewHandler(deps.Inspector, deps.Enqueuer, logger),
		ReportHandler:  report.NewHandler(report.NewClient(cfg.GotenbergURL, cfg.GotenbergTimeout), services.Borrows, logger),
		Metrics:        deps.Metrics,
	}), nil
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/librarydesk/librarydesk/internal/auth"
	"github.com/librarydesk/librarydesk/internal/borrows"
	"github.com/librarydesk/librarydesk/internal/catalog"
	"github.com/librarydesk/librarydesk/internal/fixtures"
	"github.com/librarydesk/librarydesk/internal/platform/db"
	"github.com/librarydesk/librarydesk/internal/users"
)

// Backend bundles the repositories for the configured data backend.
type Backend struct {
	Accounts users.RepositoryPort
	Books    catalog.RepositoryPort
	Borrows  borrows.RepositoryPort
	Pool     *pgxpool.Pool
}

// OpenBackend builds repositories for cfg.DataBackend. The memory backend is
// seeded from SEED_FILE or the embedded demo data.
func OpenBackend(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backend, error) {
	switch cfg.DataBackend {
	case BackendPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres backend")
		return &Backend{
			Accounts: users.NewRepository(pool),
			Books:    catalog.NewRepository(pool),
			Borrows:  borrows.NewRepository(pool),
			Pool:     pool,
		}, nil
	case BackendMemory:
		cost := bcrypt.DefaultCost
		if InTestMode() {
			cost = bcrypt.MinCost
		}
		ds, err := fixtures.Load(cfg.SeedFile, time.Now(), cost)
		if err != nil {
			return nil, err
		}
		logger.Info("using in-memory backend",
			slog.Int("accounts", len(ds.Accounts)),
			slog.Int("books", len(ds.Books)),
			slog.Int("borrows", len(ds.Borrows)),
		)
		return NewMemoryBackend(ds), nil
	}
	return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
}

// NewMemoryBackend returns in-process repositories seeded from ds.
func NewMemoryBackend(ds *fixtures.Dataset) *Backend {
	books := catalog.NewMemoryRepository(ds.Books)
	return &Backend{
		Accounts: users.NewMemoryRepository(ds.Accounts),
		Books:    books,
		Borrows:  borrows.NewMemoryRepository(books, ds.Borrows),
	}
}

// Close releases the database pool, if any.
func (b *Backend) Close() {
	if b != nil && b.Pool != nil {
		b.Pool.Close()
	}
}

// Services holds the domain services built over a Backend.
type Services struct {
	Auth    *auth.Service
	Catalog *catalog.Service
	Users   *users.Service
	Borrows *borrows.Service
}

// NewServices wires the domain services.
func NewServices(b *Backend, cfg *Config) Services {
	borrowService := borrows.NewService(b.Borrows, b.Accounts, b.Books, cfg.BorrowPeriod)
	return Services{
		Auth:    auth.NewService(b.Accounts),
		Catalog: catalog.NewService(b.Books),
		Users:   users.NewService(b.Accounts, borrowService),
		Borrows: borrowService,
	}
}

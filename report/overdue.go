package report

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/librarydesk/librarydesk/internal/borrows"
)

//go:embed templates/*.html
var templateFS embed.FS

var overdueTemplate = template.Must(template.New("overdue.html").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.Format("02 Jan 2006") },
}).ParseFS(templateFS, "templates/overdue.html"))

// OverdueSource lists open loans past their due date.
type OverdueSource interface {
	Overdue(ctx context.Context) ([]borrows.Entry, error)
}

// Renderer turns HTML into PDF.
type Renderer interface {
	Ping(ctx context.Context) error
	RenderHTML(ctx context.Context, html []byte) ([]byte, error)
}

// Handler serves printable loan reports.
type Handler struct {
	renderer Renderer
	source   OverdueSource
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a report handler.
func NewHandler(renderer Renderer, source OverdueSource, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{renderer: renderer, source: source, logger: logger, now: time.Now}
}

// MountRoutes registers report routes. The caller applies the admin guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/overdue", h.overdueHTML)
	r.Get("/overdue.pdf", h.overduePDF)
}

type overdueReport struct {
	GeneratedAt time.Time
	Entries     []borrows.Entry
}

// OverdueHTML renders the overdue loans report as a standalone document.
func (h *Handler) OverdueHTML(ctx context.Context) ([]byte, error) {
	entries, err := h.source.Overdue(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := overdueTemplate.Execute(&buf, overdueReport{GeneratedAt: h.now(), Entries: entries}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.renderer.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) overdueHTML(w http.ResponseWriter, r *http.Request) {
	html, err := h.OverdueHTML(r.Context())
	if err != nil {
		h.logger.Error("build overdue report", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(html)
}

func (h *Handler) overduePDF(w http.ResponseWriter, r *http.Request) {
	html, err := h.OverdueHTML(r.Context())
	if err != nil {
		h.logger.Error("build overdue report", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	pdf, err := h.renderer.RenderHTML(r.Context(), html)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ErrNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		h.logger.Error("render overdue pdf", slog.Any("error", err))
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=overdue-"+h.now().Format("2006-01-02")+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

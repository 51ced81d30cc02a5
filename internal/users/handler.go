package users

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/librarydesk/librarydesk/internal/shared"
	"github.com/librarydesk/librarydesk/internal/view"
)

// Lister is the service surface the handler needs.
type Lister interface {
	ListMembers(ctx context.Context, filter Filter) ([]Member, error)
}

// Handler manages the admin user listing.
type Handler struct {
	logger    *slog.Logger
	service   Lister
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Lister, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf}
}

// MountRoutes registers user routes. The caller applies the admin guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
}

type listPageData struct {
	Members []Member
	Filter  Filter
	Errors  map[string]string
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	filter := Filter{Search: r.URL.Query().Get("q"), Status: r.URL.Query().Get("status")}
	if filter.Status == "" {
		filter.Status = "all"
	}
	members, err := h.service.ListMembers(r.Context(), filter)
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		h.render(w, r, listPageData{Filter: filter, Errors: map[string]string{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, listPageData{Members: members, Filter: filter}, http.StatusOK)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data listPageData, status int) {
	viewData := view.NewTemplateData(r, h.csrf, "User Management", data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/admin_users.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

package borrows

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/librarydesk/librarydesk/internal/catalog"
	"github.com/librarydesk/librarydesk/internal/shared"
	"github.com/librarydesk/librarydesk/internal/users"
	"github.com/librarydesk/librarydesk/internal/view"
)

// Lending is the service surface used by the handler.
type Lending interface {
	Borrow(ctx context.Context, identity string, bookID int64) (*Borrow, error)
	Return(ctx context.Context, id int64) (*Borrow, error)
	GetBorrow(ctx context.Context, id int64) (*Borrow, error)
	UpdateDates(ctx context.Context, id int64, input DatesInput) (*Borrow, error)
	List(ctx context.Context, status string) ([]Entry, Counts, error)
	History(ctx context.Context, identity string, q HistoryQuery) (History, error)
	Overview(ctx context.Context, identity string) (Overview, error)
	Dashboard(ctx context.Context) (Dashboard, error)
}

// Handler serves loan pages for admins and members.
type Handler struct {
	logger    *slog.Logger
	service   Lending
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service Lending, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf}
}

const (
	adminBorrowsPath = "/admin/borrows"
	browsePath       = "/user/browse"
	dateLayout       = "2006-01-02"
)

// MountAdminRoutes registers loan management. The caller applies the admin guard.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}/edit", h.showEdit)
	r.Post("/{id}", h.update)
	r.Post("/{id}/return", h.markReturned)
}

// MountMemberRoutes registers member loan pages under /user. The caller
// applies the user guard.
func (h *Handler) MountMemberRoutes(r chi.Router) {
	r.Get("/", h.overview)
	r.Get("/history", h.history)
	r.Post("/browse/{id}/borrow", h.borrow)
}

// Dashboard renders the admin landing page.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("load dashboard failed", slog.Any("error", err))
		http.Error(w, "Failed to load dashboard", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/admin_overview.html", "Admin Dashboard", d, http.StatusOK)
}

type listPageData struct {
	Entries []Entry
	Counts  Counts
	Status  string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	entries, counts, err := h.service.List(r.Context(), status)
	if errors.Is(err, ErrUnknownStatus) {
		status = ""
		entries, counts, err = h.service.List(r.Context(), status)
	}
	if err != nil {
		h.logger.Error("list borrows failed", slog.Any("error", err))
		http.Error(w, "Failed to load borrows", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/admin_borrows.html", "Borrow Management", listPageData{Entries: entries, Counts: counts, Status: status}, http.StatusOK)
}

type editPageData struct {
	Borrow     *Borrow
	DueOn      string
	ReturnedOn string
	Errors     map[string]string
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBorrow(w, r)
	if !ok {
		return
	}
	data := editPageData{Borrow: b, DueOn: b.DueOn.Format(dateLayout)}
	if b.ReturnedOn != nil {
		data.ReturnedOn = b.ReturnedOn.Format(dateLayout)
	}
	h.render(w, r, "pages/admin_borrow_form.html", "Edit Borrow", data, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBorrow(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	data := editPageData{
		Borrow:     b,
		DueOn:      r.PostFormValue("due_on"),
		ReturnedOn: r.PostFormValue("returned_on"),
		Errors:     make(map[string]string),
	}
	var input DatesInput
	due, err := time.Parse(dateLayout, data.DueOn)
	if err != nil {
		data.Errors["DueOn"] = "Enter a date as YYYY-MM-DD"
	}
	input.DueOn = due
	if data.ReturnedOn != "" {
		returned, err := time.Parse(dateLayout, data.ReturnedOn)
		if err != nil {
			data.Errors["ReturnedOn"] = "Enter a date as YYYY-MM-DD"
		}
		input.ReturnedOn = &returned
	}
	if len(data.Errors) == 0 {
		_, err := h.service.UpdateDates(r.Context(), b.ID, input)
		if err == nil {
			h.redirectWithFlash(w, r, adminBorrowsPath, "success", "Borrow record updated")
			return
		}
		if !IsUserError(err) {
			h.logger.Error("update borrow failed", slog.Any("error", err), slog.Int64("id", b.ID))
		}
		data.Errors["general"] = h.message(err)
	}
	h.render(w, r, "pages/admin_borrow_form.html", "Edit Borrow", data, http.StatusBadRequest)
}

func (h *Handler) markReturned(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid borrow ID", http.StatusBadRequest)
		return
	}
	if _, err := h.service.Return(r.Context(), id); err != nil {
		if !IsUserError(err) {
			h.logger.Error("return borrow failed", slog.Any("error", err), slog.Int64("id", id))
		}
		h.redirectWithFlash(w, r, adminBorrowsPath, "error", h.message(err))
		return
	}
	h.logger.Info("book returned", slog.Int64("borrow_id", id))
	h.redirectWithFlash(w, r, adminBorrowsPath, "success", "Book marked as returned successfully")
}

func (h *Handler) borrow(w http.ResponseWriter, r *http.Request) {
	current, ok := shared.CurrentUser(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	bookID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid book ID", http.StatusBadRequest)
		return
	}
	b, err := h.service.Borrow(r.Context(), current.Identity, bookID)
	if err != nil {
		if !IsUserError(err) {
			h.logger.Error("borrow book failed", slog.Any("error", err), slog.Int64("book_id", bookID))
		}
		h.redirectWithFlash(w, r, browsePath, "error", h.message(err))
		return
	}
	h.logger.Info("book borrowed", slog.Int64("borrow_id", b.ID), slog.String("identity", current.Identity))
	h.redirectWithFlash(w, r, browsePath, "success", "You borrowed "+b.BookTitle+". Due "+b.DueOn.Format("02 Jan 2006"))
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	current, ok := shared.CurrentUser(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	o, err := h.service.Overview(r.Context(), current.Identity)
	if err != nil {
		h.logger.Error("load overview failed", slog.Any("error", err))
		http.Error(w, "Failed to load your loans", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/user_overview.html", "My Library", o, http.StatusOK)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	current, ok := shared.CurrentUser(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	q := HistoryQuery{Status: r.URL.Query().Get("status"), Sort: r.URL.Query().Get("sort")}
	hist, err := h.service.History(r.Context(), current.Identity, q)
	if errors.Is(err, ErrUnknownStatus) {
		q.Status = ""
		hist, err = h.service.History(r.Context(), current.Identity, q)
	}
	if err != nil {
		h.logger.Error("load history failed", slog.Any("error", err))
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/user_history.html", "Borrow History", hist, http.StatusOK)
}

func (h *Handler) loadBorrow(w http.ResponseWriter, r *http.Request) (*Borrow, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid borrow ID", http.StatusBadRequest)
		return nil, false
	}
	b, err := h.service.GetBorrow(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return nil, false
		}
		h.logger.Error("get borrow failed", slog.Any("error", err), slog.Int64("id", id))
		http.Error(w, "Failed to load borrow", http.StatusInternalServerError)
		return nil, false
	}
	return b, true
}

func (h *Handler) message(err error) string {
	switch {
	case errors.Is(err, catalog.ErrUnavailable):
		return "No copies of this book are available right now"
	case errors.Is(err, catalog.ErrNotFound):
		return "Book not found"
	case errors.Is(err, ErrAlreadyBorrowed):
		return "You already have this book on loan"
	case errors.Is(err, ErrAlreadyReturned):
		return "This book has already been returned"
	case errors.Is(err, ErrNotFound):
		return "Borrow record not found"
	case errors.Is(err, users.ErrNotFound):
		return "Your account cannot borrow books"
	case errors.Is(err, ErrInvalidDates):
		return "Dates cannot precede the borrow date, and a recorded return cannot be cleared"
	}
	return shared.UserSafeMessage(err)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	viewData := view.NewTemplateData(r, h.csrf, title, data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

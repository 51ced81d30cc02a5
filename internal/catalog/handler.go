package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/librarydesk/librarydesk/internal/shared"
	"github.com/librarydesk/librarydesk/internal/view"
)

// Catalog is the service surface used by the handler.
type Catalog interface {
	ListBooks(ctx context.Context, page, perPage int) (Page, error)
	GetBook(ctx context.Context, id int64) (*Book, error)
	Browse(ctx context.Context, q BrowseQuery) (BrowseResult, error)
	CreateBook(ctx context.Context, input BookInput) (*Book, error)
	UpdateBook(ctx context.Context, id int64, input BookInput) (*Book, error)
	DeleteBook(ctx context.Context, id int64) error
}

// Handler serves the admin book pages and the member catalogue.
type Handler struct {
	logger    *slog.Logger
	service   Catalog
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service Catalog, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf}
}

const (
	adminBooksPath = "/admin/books"
	perPage        = 10
)

// MountAdminRoutes registers book management routes. The caller applies the admin guard.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/new", h.showCreate)
	r.Post("/", h.create)
	r.Get("/{id}/edit", h.showEdit)
	r.Post("/{id}", h.update)
	r.Post("/{id}/delete", h.delete)
}

// MountMemberRoutes registers the member catalogue under /user. The caller
// applies the user guard.
func (h *Handler) MountMemberRoutes(r chi.Router) {
	r.Get("/browse", h.browse)
}

type formData struct {
	Book   *Book
	Form   bookForm
	Genres []string
	Errors map[string]string
}

type bookForm struct {
	Title       string
	Author      string
	Genre       string
	PublishedOn string
	Copies      string
	Rating      string
	Description string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	result, err := h.service.ListBooks(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list books failed", slog.Any("error", err))
		http.Error(w, "Failed to load books", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/admin_books.html", "Book Management", result, http.StatusOK)
}

func (h *Handler) browse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.service.Browse(r.Context(), BrowseQuery{
		Search: q.Get("q"),
		Genre:  q.Get("genre"),
		Author: q.Get("author"),
		Sort:   q.Get("sort"),
	})
	if err != nil {
		h.logger.Error("browse books failed", slog.Any("error", err))
		http.Error(w, "Failed to load catalogue", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/user_browse.html", "Browse Books", result, http.StatusOK)
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/admin_book_form.html", "Add Book", formData{Genres: Genres, Form: bookForm{Copies: "1"}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	form := readForm(r)
	input, errs := form.input()
	if len(errs) == 0 {
		book, err := h.service.CreateBook(r.Context(), input)
		if err == nil {
			h.logger.Info("book created", slog.Int64("id", book.ID), slog.String("title", book.Title))
			h.redirectWithFlash(w, r, adminBooksPath, "success", "Book added successfully")
			return
		}
		errs = h.formErrors(err)
	}
	h.render(w, r, "pages/admin_book_form.html", "Add Book", formData{Form: form, Genres: Genres, Errors: errs}, http.StatusBadRequest)
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	book, ok := h.loadBook(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/admin_book_form.html", "Edit Book", formData{Book: book, Form: formFromBook(*book), Genres: Genres}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	book, ok := h.loadBook(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	form := readForm(r)
	input, errs := form.input()
	if len(errs) == 0 {
		_, err := h.service.UpdateBook(r.Context(), book.ID, input)
		if err == nil {
			h.redirectWithFlash(w, r, adminBooksPath, "success", "Book updated successfully")
			return
		}
		errs = h.formErrors(err)
	}
	h.render(w, r, "pages/admin_book_form.html", "Edit Book", formData{Book: book, Form: form, Genres: Genres, Errors: errs}, http.StatusBadRequest)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid book ID", http.StatusBadRequest)
		return
	}
	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			h.redirectWithFlash(w, r, adminBooksPath, "error", "Book not found")
			return
		}
		h.logger.Error("delete book failed", slog.Any("error", err), slog.Int64("id", id))
		h.redirectWithFlash(w, r, adminBooksPath, "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, adminBooksPath, "success", "Book deleted")
}

func (h *Handler) loadBook(w http.ResponseWriter, r *http.Request) (*Book, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid book ID", http.StatusBadRequest)
		return nil, false
	}
	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return nil, false
		}
		h.logger.Error("get book failed", slog.Any("error", err), slog.Int64("id", id))
		http.Error(w, "Failed to load book", http.StatusInternalServerError)
		return nil, false
	}
	return book, true
}

func (h *Handler) formErrors(err error) map[string]string {
	var fields FieldErrors
	switch {
	case errors.As(err, &fields):
		return fields
	case errors.Is(err, ErrDuplicate):
		return map[string]string{"general": "A book with this title and author already exists"}
	case errors.Is(err, ErrNotFound):
		return map[string]string{"general": "Book not found"}
	}
	h.logger.Error("save book failed", slog.Any("error", err))
	return map[string]string{"general": shared.UserSafeMessage(err)}
}

func readForm(r *http.Request) bookForm {
	return bookForm{
		Title:       r.PostFormValue("title"),
		Author:      r.PostFormValue("author"),
		Genre:       r.PostFormValue("genre"),
		PublishedOn: r.PostFormValue("published_on"),
		Copies:      r.PostFormValue("copies"),
		Rating:      r.PostFormValue("rating"),
		Description: r.PostFormValue("description"),
	}
}

func formFromBook(b Book) bookForm {
	return bookForm{
		Title:       b.Title,
		Author:      b.Author,
		Genre:       b.Genre,
		PublishedOn: b.PublishedOn.Format("2006-01-02"),
		Copies:      strconv.Itoa(b.Copies),
		Rating:      strconv.FormatFloat(b.Rating, 'f', 1, 64),
		Description: b.Description,
	}
}

func (f bookForm) input() (BookInput, map[string]string) {
	errs := make(map[string]string)
	input := BookInput{
		Title:       f.Title,
		Author:      f.Author,
		Genre:       f.Genre,
		Description: f.Description,
	}
	if f.PublishedOn != "" {
		published, err := time.Parse("2006-01-02", f.PublishedOn)
		if err != nil {
			errs["PublishedOn"] = "Enter a date as YYYY-MM-DD"
		}
		input.PublishedOn = published
	}
	copies, err := strconv.Atoi(strings.TrimSpace(f.Copies))
	if err != nil {
		errs["Copies"] = "Enter a whole number"
	}
	input.Copies = copies
	if s := strings.TrimSpace(f.Rating); s != "" {
		rating, err := strconv.ParseFloat(s, 64)
		if err != nil {
			errs["Rating"] = "Enter a number between 0 and 5"
		}
		input.Rating = rating
	}
	return input, errs
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

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/librarydesk/librarydesk/internal/authz"
	"github.com/librarydesk/librarydesk/internal/session"
	"github.com/librarydesk/librarydesk/internal/shared"
	"github.com/librarydesk/librarydesk/internal/users"
	"github.com/librarydesk/librarydesk/internal/view"
)

// Authenticator is the service surface used by the handler.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*users.Account, error)
	ChangePassword(ctx context.Context, identity, current, next string) error
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        Authenticator
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	guard          authz.Guard
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service Authenticator, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, guard authz.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		guard:          guard,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RedirectAuthenticated).Get("/login", h.showLogin)
	r.With(h.guard.RedirectAuthenticated).Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.Any()))
		r.Get("/change-password", h.showChangePassword)
		r.Post("/change-password", h.handleChangePassword)
	})
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

type passwordForm struct {
	Current string `validate:"required"`
	New     string `validate:"required,min=8"`
	Confirm string `validate:"required"`
}

type passwordPageData struct {
	Errors map[string]string
}

const invalidCredentialsMessage = "Invalid email or password"

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/login.html", "Sign in", loginPageData{}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	errs := h.validate(form)
	if len(errs) > 0 {
		h.render(w, r, "pages/login.html", "Sign in", loginPageData{Form: loginForm{Email: form.Email}, Errors: errs}, http.StatusBadRequest)
		return
	}

	attempt, err := h.sessionManager.BeginLogin(r.Context(), sess)
	if err != nil {
		h.logger.Error("begin login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	account, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			h.logger.Info("login rejected", slog.String("reason", authErr.Reason))
			errs = map[string]string{"general": invalidCredentialsMessage}
			h.render(w, r, "pages/login.html", "Sign in", loginPageData{Form: loginForm{Email: form.Email}, Errors: errs}, http.StatusBadRequest)
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		errs = map[string]string{"general": shared.UserSafeMessage(err)}
		h.render(w, r, "pages/login.html", "Sign in", loginPageData{Form: loginForm{Email: form.Email}, Errors: errs}, http.StatusInternalServerError)
		return
	}

	current, err := h.sessionManager.CompleteLogin(r.Context(), sess, attempt, account.Identity(), account.Role)
	if err != nil {
		if errors.Is(err, session.ErrSuperseded) {
			h.logger.Info("login superseded", slog.String("identity", account.Identity()))
			if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
				h.logger.Warn("renew session", slog.Any("error", err))
			}
			h.redirectWithFlash(w, r, h.guard.Homes.Login, "error", "Sign-in was interrupted, please try again")
			return
		}
		h.logger.Error("complete login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		h.logger.Warn("renew session", slog.Any("error", err))
	}
	if _, err := h.csrfManager.Rotate(r.Context(), sess); err != nil {
		h.logger.Warn("rotate csrf token", slog.Any("error", err))
	}
	h.logger.Info("login", slog.String("identity", current.Identity), slog.String("role", current.Role.String()))
	h.redirectWithFlash(w, r, h.guard.Homes.Home(current.Role), "success", "Welcome back, "+account.Name)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, h.guard.Homes.Login, http.StatusSeeOther)
}

func (h *Handler) showChangePassword(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/change_password.html", "Change Password", passwordPageData{}, http.StatusOK)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	current, ok := shared.CurrentUser(r.Context())
	if !ok {
		http.Redirect(w, r, h.guard.Homes.Login, http.StatusSeeOther)
		return
	}

	form := passwordForm{
		Current: r.PostFormValue("current_password"),
		New:     r.PostFormValue("new_password"),
		Confirm: r.PostFormValue("confirm_password"),
	}
	errs := h.validate(form)
	if len(errs) == 0 && form.New != form.Confirm {
		errs["Confirm"] = "New passwords do not match"
	}
	if len(errs) > 0 {
		h.render(w, r, "pages/change_password.html", "Change Password", passwordPageData{Errors: errs}, http.StatusBadRequest)
		return
	}

	if err := h.service.ChangePassword(r.Context(), current.Identity, form.Current, form.New); err != nil {
		status := http.StatusInternalServerError
		message := "Failed to change password"
		if errors.Is(err, ErrInvalidCredentials) {
			status = http.StatusBadRequest
			message = "Current password is incorrect"
		} else {
			h.logger.Error("change password", slog.Any("error", err))
		}
		h.render(w, r, "pages/change_password.html", "Change Password", passwordPageData{Errors: map[string]string{"general": message}}, status)
		return
	}
	h.redirectWithFlash(w, r, h.guard.Homes.Home(current.Role), "success", "Password changed successfully")
}

func (h *Handler) validate(form any) map[string]string {
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				errs[fieldErr.Field()] = fieldMessage(fieldErr)
			}
		} else {
			errs["general"] = err.Error()
		}
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "min":
		return "Must be at least " + fe.Param() + " characters"
	}
	return fe.Error()
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	viewData := view.NewTemplateData(r, h.csrfManager, title, data)
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

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleChangePasswordForTest exposes the password POST handler for tests.
func (h *Handler) HandleChangePasswordForTest(w http.ResponseWriter, r *http.Request) {
	h.handleChangePassword(w, r)
}

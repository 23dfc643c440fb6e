package handlers

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gatehouse/auth"
	"gatehouse/config"
	"gatehouse/crypto"
	"gatehouse/db"
	"gatehouse/i18n"
	"gatehouse/metrics"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"github.com/prometheus/client_golang/prometheus"
)

//go:embed templates/*.html
var templateFS embed.FS

// Deps is built once at startup and only read afterwards.
type Deps struct {
	Config   *config.Config
	Store    db.AccountStore // nil when the store could not be initialised
	Hasher   *crypto.Hasher
	Sessions *auth.Manager
	Catalog  *i18n.Catalog
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	Started  time.Time
}

type Server struct {
	Deps
	tmpl *template.Template
}

// NewRouter wires every route and middleware.
func NewRouter(deps Deps) (http.Handler, error) {
	if deps.Config == nil || deps.Hasher == nil || deps.Sessions == nil || deps.Catalog == nil || deps.Metrics == nil {
		return nil, errors.New("handlers: missing dependency")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Started.IsZero() {
		deps.Started = time.Now()
	}

	// T is rebound per request in render.
	tmpl, err := template.New("layout").
		Funcs(template.FuncMap{"T": func(key string) string { return key }}).
		ParseFS(templateFS, "templates/layout.html", "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{Deps: deps, tmpl: tmpl}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.LoggingMiddleware)
	r.Use(s.MetricsMiddleware)
	r.Use(s.RecoveryMiddleware)
	r.Use(SecurityHeadersMiddleware)
	if deps.Config.CSRFEnabled {
		r.Use(s.csrfMiddleware())
	}

	r.Get("/", s.handle(s.Index))
	r.Post("/signup", s.handle(s.Signup))
	r.Post("/login", s.handle(s.Login))
	r.Get("/dashboard", s.handle(s.Dashboard))
	r.Get("/logout", s.handle(s.Logout))
	r.Get("/health", s.handle(s.Health))
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	return r, nil
}

// handlerFunc is a handler that reports unexpected failures instead of
// writing its own 500.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle turns an error from fn into a generic 500. The detail only goes to
// the log.
func (s *Server) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			s.Logger.Error("request failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("request_id", chimw.GetReqID(r.Context())),
				slog.String("error", err.Error()),
			)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

func (s *Server) Index(w http.ResponseWriter, r *http.Request) error {
	flashes, err := s.Sessions.Flashes(w, r)
	if err != nil {
		return fmt.Errorf("read flashes: %w", err)
	}
	userID, loggedIn := s.Sessions.Current(r)

	return s.render(w, r, "layout", map[string]any{
		"Flashes":  flashes,
		"LoggedIn": loggedIn,
		"UserID":   userID,
	})
}

func (s *Server) Signup(w http.ResponseWriter, r *http.Request) error {
	email, password, ok := credentials(r)
	if !ok {
		s.Metrics.RecordSignup(metrics.SignupInvalid)
		return s.flashRedirect(w, r, auth.CategoryError, "FlashMissingFields", "/")
	}

	hash, err := s.Hasher.Hash(password)
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		s.Metrics.RecordSignup(metrics.SignupInvalid)
		return s.flashRedirect(w, r, auth.CategoryError, "FlashPasswordTooLong", "/")
	}
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if s.Store == nil {
		s.Logger.Error("signup attempted without an account store")
		s.Metrics.RecordSignup(metrics.SignupError)
		return s.flashRedirect(w, r, auth.CategoryDanger, "FlashSignupFailed", "/")
	}

	acc, err := s.Store.InsertUser(r.Context(), email, hash)
	switch {
	case errors.Is(err, db.ErrDuplicateEmail):
		s.Metrics.RecordSignup(metrics.SignupDuplicate)
		return s.flashRedirect(w, r, auth.CategoryWarning, "FlashAccountExists", "/")
	case err != nil:
		s.Logger.Error("signup failed",
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
		s.Metrics.RecordSignup(metrics.SignupError)
		return s.flashRedirect(w, r, auth.CategoryDanger, "FlashSignupFailed", "/")
	}

	if err := s.Sessions.Start(w, r, acc.ID); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	s.Logger.Info("account created", slog.String("user_id", acc.ID))
	s.Metrics.RecordSignup(metrics.SignupCreated)
	return s.flashRedirect(w, r, auth.CategorySuccess, "FlashWelcome", "/dashboard")
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) error {
	email, password, ok := credentials(r)
	if !ok {
		s.Metrics.RecordLogin(metrics.LoginInvalid)
		return s.flashRedirect(w, r, auth.CategoryError, "FlashMissingFields", "/")
	}

	if s.Store == nil {
		s.Logger.Error("login attempted without an account store")
		s.Metrics.RecordLogin(metrics.LoginError)
		return s.flashRedirect(w, r, auth.CategoryDanger, "FlashLoginFailed", "/")
	}

	acc, err := s.Store.FindUserByEmail(r.Context(), email)
	switch {
	case errors.Is(err, db.ErrNotFound):
		// Same bcrypt work as a real comparison.
		s.Hasher.VerifyDummy(password)
		s.Metrics.RecordLogin(metrics.LoginUnknownEmail)
		return s.flashRedirect(w, r, auth.CategoryWarning, "FlashNoAccount", "/")
	case err != nil:
		s.Logger.Error("login lookup failed",
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
		s.Metrics.RecordLogin(metrics.LoginError)
		return s.flashRedirect(w, r, auth.CategoryDanger, "FlashLoginFailed", "/")
	}

	if !s.Hasher.Verify(acc.PasswordHash, password) {
		s.Metrics.RecordLogin(metrics.LoginWrongPassword)
		return s.flashRedirect(w, r, auth.CategoryDanger, "FlashIncorrectPassword", "/")
	}

	if err := s.Sessions.Start(w, r, acc.ID); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	s.Metrics.RecordLogin(metrics.LoginSuccess)
	return s.flashRedirect(w, r, auth.CategorySuccess, "FlashWelcomeBack", "/dashboard")
}

func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) error {
	userID, ok := s.Sessions.Current(r)
	if !ok {
		return s.flashRedirect(w, r, auth.CategoryWarning, "FlashLoginRequired", "/")
	}

	lang := s.Catalog.DetectLanguage(r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err := fmt.Fprintf(w, s.Catalog.T(lang, "DashboardWelcome"), userID)
	return err
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) error {
	_, wasLoggedIn := s.Sessions.Current(r)

	if err := s.Sessions.Clear(w, r); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.Metrics.RecordLogout()

	key := "FlashNotLoggedIn"
	if wasLoggedIn {
		key = "FlashLoggedOut"
	}
	return s.flashRedirect(w, r, auth.CategoryInfo, key, "/")
}

// credentials returns the normalised email and the raw password from the
// form body; ok is false when either is missing.
func credentials(r *http.Request) (email, password string, ok bool) {
	email = strings.ToLower(strings.TrimSpace(r.PostFormValue("email")))
	password = r.PostFormValue("password")
	return email, password, email != "" && password != ""
}

// flashRedirect queues a translated flash and answers 302 to target.
func (s *Server) flashRedirect(w http.ResponseWriter, r *http.Request, category, key, target string) error {
	lang := s.Catalog.DetectLanguage(r)
	if err := s.Sessions.AddFlash(w, r, auth.Flash{Category: category, Message: s.Catalog.T(lang, key)}); err != nil {
		return fmt.Errorf("queue flash: %w", err)
	}
	http.Redirect(w, r, target, http.StatusFound)
	return nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	lang := s.Catalog.DetectLanguage(r)

	tmpl, err := s.tmpl.Clone()
	if err != nil {
		return err
	}
	tmpl.Funcs(template.FuncMap{
		"T": func(key string) string {
			return s.Catalog.T(lang, key)
		},
	})

	data["Lang"] = lang
	data["csrfField"] = csrf.TemplateField(r)

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = buf.WriteTo(w)
	return err
}

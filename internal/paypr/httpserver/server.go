// Package httpserver serves the Paypr front end: full pages for plain paths,
// htmx fragments for hash locations and form actions that drive the backend.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/observability"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/pages"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/router"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/session"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/views"
	"github.com/mikedasquirrel/PayprProto/public"
)

const (
	defaultReadTimeout    = 15 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 120 * time.Second
	defaultRequestTimeout = 25 * time.Second
	defaultAuthRefresh    = time.Minute
)

// Config holds runtime options and collaborators for the HTTP server.
type Config struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration

	Logger   *zap.Logger
	Sessions *session.Manager
	Jars     *session.JarStore
	API      *api.Client
	Pages    *pages.Pages
	Views    *views.Renderer
	// Static overrides the embedded assets.
	Static fs.FS

	// AuthRefresh is how long a cached user snapshot is trusted before the
	// backend is asked again.
	AuthRefresh   time.Duration
	NavigatorIdle time.Duration
	SecureCookies bool
	// BaseURL is the public origin demo sign-in links are rewritten onto.
	BaseURL       string

	AuthPerMinute    int
	MagicLinkPerHour int

	Now func() time.Time
}

// Server is the front-end HTTP server.
type Server struct {
	*http.Server

	cfg        Config
	router     *router.Router
	navs       *navigators
	actions    map[string]pages.Action
	authLimit  *ipLimiter
	magicLimit *ipLimiter
}

// New constructs the server with its middleware stack, route table and
// embedded assets.
func New(cfg Config) (*Server, error) {
	switch {
	case cfg.Sessions == nil:
		return nil, errors.New("httpserver: session manager is required")
	case cfg.Jars == nil:
		return nil, errors.New("httpserver: cookie jar store is required")
	case cfg.API == nil:
		return nil, errors.New("httpserver: api client is required")
	case cfg.Pages == nil || cfg.Views == nil:
		return nil, errors.New("httpserver: pages and views are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NoopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AuthRefresh <= 0 {
		cfg.AuthRefresh = defaultAuthRefresh
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	static := cfg.Static
	if static == nil {
		embedded, err := public.StaticFS()
		if err != nil {
			return nil, fmt.Errorf("httpserver: embed static: %w", err)
		}
		static = embedded
	}

	rt := router.New(router.WithNotFound(cfg.Pages.NotFound))
	cfg.Pages.Register(rt)

	s := &Server{
		cfg:        cfg,
		router:     rt,
		navs:       newNavigators(rt, cfg.NavigatorIdle, cfg.Now),
		actions:    cfg.Pages.Actions(),
		authLimit:  newIPLimiter(cfg.AuthPerMinute, time.Minute, cfg.Now),
		magicLimit: newIPLimiter(cfg.MagicLinkPerHour, time.Hour, cfg.Now),
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(observability.InjectLogger(cfg.Logger))
	mux.Use(observability.RequestLogger())
	mux.Use(chimw.Recoverer)
	mux.Use(chimw.Compress(5))
	mux.Use(HTMX())

	mux.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	mux.Get("/healthz", s.handleHealth)

	mux.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		r.Use(NoStore())
		r.Use(s.sessions)
		r.Use(s.csrf)
		r.Use(s.scope)

		r.Get("/_view", s.handleView)
		r.Get("/exports/publisher-transactions.csv", s.handleExport)
		r.Post("/actions/tours/complete", s.handleTourComplete)
		r.Post("/actions/tours/reset", s.handleTourReset)
		r.Post("/actions/*", s.handleAction)
		r.Get("/*", s.handlePage)
	})

	s.Server = &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  durationOr(cfg.ReadTimeout, defaultReadTimeout),
		WriteTimeout: durationOr(cfg.WriteTimeout, defaultWriteTimeout),
		IdleTimeout:  durationOr(cfg.IdleTimeout, defaultIdleTimeout),
	}
	return s, nil
}

// Routes returns the page patterns in registration order.
func (s *Server) Routes() []string {
	return s.router.Routes()
}

// Shutdown drains in-flight requests and stops the navigator janitor.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.navs.Close()
	return err
}

// Close stops the server immediately.
func (s *Server) Close() error {
	err := s.Server.Close()
	s.navs.Close()
	return err
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

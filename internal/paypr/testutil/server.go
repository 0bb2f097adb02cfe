// Package testutil starts the front-end server against a fake backend for
// integration tests.
package testutil

import (
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/cache"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/httpserver"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/pages"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/session"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/views"
)

// TestHashKey signs session cookies in tests.
var TestHashKey = []byte("0123456789abcdef0123456789abcdef")

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*httpserver.Config)

// WithClock pins the server clock.
func WithClock(now func() time.Time) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Now = now
	}
}

// WithRateLimits overrides the login and magic-link limits.
func WithRateLimits(authPerMinute, magicLinkPerHour int) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.AuthPerMinute = authPerMinute
		cfg.MagicLinkPerHour = magicLinkPerHour
	}
}

// WithNavigatorIdle sets how long an idle tab keeps its navigator.
func WithNavigatorIdle(idle time.Duration) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.NavigatorIdle = idle
	}
}

// NewServer constructs an httptest server running the front end against the
// backend at backendURL, with in-memory jars.
func NewServer(t testing.TB, backendURL string, opts ...ServerOption) *httptest.Server {
	t.Helper()

	backend, err := url.Parse(backendURL)
	if err != nil {
		t.Fatalf("parse backend url: %v", err)
	}
	client, err := api.NewClient(backendURL)
	if err != nil {
		t.Fatalf("api client: %v", err)
	}
	sessions, err := session.NewManager(session.Config{HashKey: TestHashKey})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	renderer := views.MustNew()

	cfg := httpserver.Config{
		Address:  ":0",
		Sessions: sessions,
		Jars:     session.NewJarStore(cache.NewMemory(), backend, time.Hour),
		API:      client,
		Pages:    pages.New(renderer, nil),
		Views:    renderer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := httpserver.New(cfg)
	if err != nil {
		t.Fatalf("httpserver: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return ts
}

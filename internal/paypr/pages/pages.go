// Package pages registers the application's routes and form actions. Handlers
// read their per-request collaborators from a Scope attached to the context.
package pages

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/auth"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/content"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/notify"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/observability"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/router"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/session"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/views"
)

// Scope carries the collaborators bound to one browser session for the
// duration of a request.
type Scope struct {
	API      *api.Client
	Auth     *auth.Manager
	Notifier *notify.Center
	Session  *session.Session
}

type scopeKey struct{}

// WithScope attaches s to ctx.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope attached to ctx, or nil.
func ScopeFrom(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// ErrNoScope is returned when a handler runs without a Scope.
var ErrNoScope = errors.New("pages: no request scope")

// ErrBadRequest marks malformed action input.
var ErrBadRequest = errors.New("pages: bad request")

// ActionRequest is a submitted form.
type ActionRequest struct {
	Form url.Values
	// Current is the location the form was submitted from.
	Current string
}

// Action handles a form submission and returns the location to show next.
// Locations starting with http:// or https:// leave the application.
type Action func(ctx context.Context, req ActionRequest) (string, error)

// Pages holds the dependencies shared by every page.
type Pages struct {
	views   *views.Renderer
	content *content.Store
	now     func() time.Time
	logger  *zap.Logger
	baseURL string
}

// Option customises Pages.
type Option func(*Pages)

// WithClock overrides the clock used for refund windows.
func WithClock(now func() time.Time) Option {
	return func(p *Pages) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pages) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithBaseURL sets the public origin that demo sign-in links are rewritten onto.
func WithBaseURL(base string) Option {
	return func(p *Pages) {
		p.baseURL = base
	}
}

// New returns the page set. store may be nil when no markdown pages are served.
func New(renderer *views.Renderer, store *content.Store, opts ...Option) *Pages {
	p := &Pages{
		views:   renderer,
		content: store,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds every page to r in a fixed order.
func (p *Pages) Register(r *router.Router) {
	r.Register("/", p.newsstand)
	r.Register("/publishers", p.publishers)
	r.Register("/publications", p.publications)
	r.Register("/p/:slug", p.publisher)
	r.Register("/article/:id", p.article)
	r.Register("/wallet", p.wallet)
	r.Register("/history", p.history)
	r.Register("/login", p.login)
	r.Register("/auth/verify", p.verifyMagicLink)
	r.Register("/payment-success", p.paymentSuccess)
	r.Register("/payment-cancel", p.paymentCancel)
	r.Register("/author/dashboard", p.authorDashboard)
	r.Register("/author/submit", p.authorSubmit)
	r.Register("/author/:id", p.authorProfile)
	r.Register("/publisher/console", p.publisherConsole)
	r.Register("/publisher/content", p.publisherContent)
	r.Register("/publisher/authors", p.publisherAuthors)
	r.Register("/publisher/settings", p.publisherSettings)
	r.Register("/publisher/verify", p.publisherVerify)
	r.Register("/admin", p.adminDashboard)
	r.Register("/admin/login", p.adminLogin)
	r.Register("/admin/users", p.adminUsers)
	r.Register("/admin/users/:id", p.adminUser)
	r.Register("/admin/site", p.adminSite)
	r.Register("/admin/theme", p.adminTheme)
	r.Register("/admin/splits/:publisherId", p.adminSplits)
	r.Register("/showcase/:slug", p.showcase)
	r.Register("/showcase/:slug/article/:id", p.showcaseArticle)
	r.Register("/contact", p.contact)
	for _, slug := range ContentSlugs {
		r.Register("/"+slug, p.contentPage(slug))
	}
}

// Actions returns the form handlers keyed by their path below /actions/.
func (p *Pages) Actions() map[string]Action {
	return map[string]Action{
		"login":                 p.actionLogin,
		"magic-link":            p.actionMagicLink,
		"logout":                p.actionLogout,
		"unlock":                p.actionUnlock,
		"refund":                p.actionRefund,
		"topup":                 p.actionTopup,
		"checkout":              p.actionCheckout,
		"contact":               p.actionContact,
		"author/register":       p.actionAuthorRegister,
		"author/submit":         p.actionAuthorSubmit,
		"author/delete":         p.actionAuthorDelete,
		"publisher/magic-link":  p.actionPublisherMagicLink,
		"publisher/add-content": p.actionPublisherAddContent,
		"publisher/invite":      p.actionPublisherInvite,
		"publisher/settings":    p.actionPublisherSettings,
		"admin/login":           p.actionAdminLogin,
		"admin/logout":          p.actionAdminLogout,
		"admin/credit":          p.actionAdminCredit,
		"admin/site":            p.actionAdminSite,
		"admin/theme":           p.actionAdminTheme,
		"admin/splits":          p.actionAdminSplits,
	}
}

// NotFound renders the not-found page.
func (p *Pages) NotFound(context.Context, *router.Request) (templ.Component, error) {
	return p.views.Page("not_found", "Page Not Found", nil), nil
}

func scope(ctx context.Context) (*Scope, error) {
	s := ScopeFrom(ctx)
	if s == nil || s.API == nil || s.Auth == nil || s.Session == nil {
		return nil, ErrNoScope
	}
	if s.Notifier == nil {
		s.Notifier = notify.NewCenter(nil)
	}
	return s, nil
}

func (p *Pages) log(ctx context.Context) *zap.Logger {
	if logger := observability.FromContext(ctx); logger != observability.NoopLogger() {
		return logger
	}
	return p.logger
}

// loadFailed turns a failed fetch into an inline empty state with a retry link.
// A 401 sends the visitor to login.
func (p *Pages) loadFailed(ctx context.Context, err error, what string) (templ.Component, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if api.IsUnauthorized(err) {
		return nil, router.Redirect(auth.LoginPath)
	}
	p.log(ctx).Warn("page load failed", zap.String("what", what), zap.Error(err))
	return p.views.Empty(views.EmptyState{
		Icon:    "⚠️",
		Title:   "Failed to load " + what,
		Message: api.MessageOr(err, "Please try again."),
		Retry:   true,
	}), nil
}

// actionFailed reports err as an error toast and stays at current.
func (p *Pages) actionFailed(ctx context.Context, s *Scope, err error, fallback, current string) (string, error) {
	if api.IsUnauthorized(err) {
		s.Notifier.Show(notify.Info, "Please log in to continue")
		return auth.LoginPath, nil
	}
	p.log(ctx).Info("action failed", zap.String("fallback", fallback), zap.Error(err))
	s.Notifier.Show(notify.Error, api.MessageOr(err, fallback))
	return stay(current), nil
}

func stay(current string) string {
	if loc := safeLocation(current); loc != "" {
		return loc
	}
	return "/"
}

// safeLocation accepts in-app locations only.
func safeLocation(loc string) string {
	loc = strings.TrimPrefix(strings.TrimSpace(loc), "#")
	if !strings.HasPrefix(loc, "/") || strings.HasPrefix(loc, "//") || strings.ContainsAny(loc, "\\\r\n") {
		return ""
	}
	return loc
}

func formInt(form url.Values, key string) (int64, error) {
	raw := strings.TrimSpace(form.Get(key))
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrBadRequest, key)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a whole number", ErrBadRequest, key)
	}
	return n, nil
}

func formIntOr(form url.Values, key string, def int64) int64 {
	n, err := formInt(form, key)
	if err != nil {
		return def
	}
	return n
}

// formCents parses a dollar amount such as "1.50" into cents.
func formCents(form url.Values, key string) (int64, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(form.Get(key)), "$"))
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrBadRequest, key)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an amount", ErrBadRequest, key)
	}
	if f < 0 {
		return -int64(-f*100 + 0.5), nil
	}
	return int64(f*100 + 0.5), nil
}

// formBasisPoints parses a percentage such as "12.5" into basis points.
func formBasisPoints(form url.Values, key string, def int64) int64 {
	raw := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(form.Get(key)), "%"))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return int64(f*100 + 0.5)
}

func formBool(form url.Values, key string) bool {
	switch strings.ToLower(strings.TrimSpace(form.Get(key))) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// docs returns the first list found under keys.
func docs(doc api.Document, keys ...string) []api.Document {
	for _, key := range keys {
		if items := doc.Docs(key); items != nil {
			return items
		}
	}
	return nil
}

// Package auth tracks whether the current browser session is signed in and
// broadcasts every change to its subscribers.
package auth

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/notify"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/router"
)

// LoginPath is where RequireAuth sends anonymous visitors.
const LoginPath = "/login"

// AuthAPI is the subset of the backend client used by Manager.
type AuthAPI interface {
	CurrentUser(ctx context.Context) (*api.SessionState, error)
	Login(ctx context.Context, email string) (*api.LoginResult, error)
	RequestMagicLink(ctx context.Context, email string) (*api.MagicLinkRequest, error)
	VerifyMagicLink(ctx context.Context, token string) (*api.LoginResult, error)
	Logout(ctx context.Context) error
}

// Listener receives the user (nil when anonymous) and the authenticated flag.
type Listener func(user *api.User, authenticated bool)

type subscription struct {
	id uint64
	fn Listener
}

// Manager holds the auth state for one browser session. It is safe for
// concurrent use; listeners are invoked outside the lock, in subscription order.
type Manager struct {
	client   AuthAPI
	notifier notify.Notifier
	logger   *zap.Logger
	baseURL  string

	mu            sync.Mutex
	user          *api.User
	authenticated bool
	nextID        uint64
	listeners     []subscription
}

// Option customises a Manager.
type Option func(*Manager)

// WithNotifier routes user-facing messages to n.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithBaseURL sets the public origin that demo sign-in links are rewritten onto.
func WithBaseURL(base string) Option {
	return func(m *Manager) {
		m.baseURL = base
	}
}

// NewManager returns an anonymous Manager backed by client.
func NewManager(client AuthAPI, opts ...Option) *Manager {
	m := &Manager{
		client:   client,
		notifier: notify.NewCenter(nil),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers fn and returns a function that removes exactly this
// subscription. Calling the returned function more than once is a no-op.
func (m *Manager) Subscribe(fn Listener) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, subscription{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, sub := range m.listeners {
				if sub.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Restore seeds the state from a cached snapshot without notifying listeners.
func (m *Manager) Restore(user *api.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = copyUser(user)
	m.authenticated = user != nil
}

// CheckAuth asks the backend who is signed in. Any failure reads as anonymous.
// Listeners are notified on every call.
func (m *Manager) CheckAuth(ctx context.Context) bool {
	state, err := m.client.CurrentUser(ctx)
	if err != nil {
		m.logger.Debug("auth check failed", zap.Error(err))
		m.set(nil, false)
		return false
	}
	if state == nil || !state.Authenticated {
		m.set(nil, false)
		return false
	}
	m.set(state.User, true)
	return true
}

// Login signs in by email.
func (m *Manager) Login(ctx context.Context, email string) bool {
	result, err := m.client.Login(ctx, email)
	if err != nil {
		m.notifier.Show(notify.Error, api.MessageOr(err, "Login failed"))
		return false
	}
	m.set(resultUser(result), true)
	m.notifier.Show(notify.Success, "Logged in successfully!")
	return true
}

// RequestMagicLink asks the backend to email a sign-in link. Demo backends return
// the link directly; it is surfaced as an info toast.
func (m *Manager) RequestMagicLink(ctx context.Context, email string) bool {
	result, err := m.client.RequestMagicLink(ctx, email)
	if err != nil {
		m.notifier.Show(notify.Error, api.MessageOr(err, "Failed to send magic link"))
		return false
	}
	m.notifier.Show(notify.Success, "Magic link sent! Check your email.")
	if result != nil && result.DemoLink != "" {
		link := RebaseLink(result.DemoLink, m.baseURL)
		m.logger.Info("demo magic link issued", zap.String("link", link))
		m.notifier.Show(notify.Info, "Demo link: "+link)
	}
	return true
}

// VerifyMagicLink exchanges a magic-link token for a session.
func (m *Manager) VerifyMagicLink(ctx context.Context, token string) bool {
	result, err := m.client.VerifyMagicLink(ctx, token)
	if err != nil {
		m.notifier.Show(notify.Error, api.MessageOr(err, "Invalid or expired magic link"))
		return false
	}
	m.set(resultUser(result), true)
	m.notifier.Show(notify.Success, "Logged in via magic link!")
	return true
}

// Logout ends the session. The local state always becomes anonymous and
// listeners are always notified; the return value reports whether the backend
// acknowledged the logout.
func (m *Manager) Logout(ctx context.Context) bool {
	err := m.client.Logout(ctx)
	m.set(nil, false)
	if err != nil {
		m.logger.Warn("logout request failed", zap.Error(err))
		m.notifier.Show(notify.Error, api.MessageOr(err, "Logout failed"))
		return false
	}
	m.notifier.Show(notify.Info, "Logged out")
	return true
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *api.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyUser(m.user)
}

// IsAuthenticated reports whether a user is signed in.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

// WalletBalance returns the cached balance in cents, 0 when anonymous.
func (m *Manager) WalletBalance() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return 0
	}
	return m.user.WalletCents
}

// UpdateWalletBalance records a new balance after a top-up or purchase.
// Nothing happens, and nobody is notified, while anonymous.
func (m *Manager) UpdateWalletBalance(cents int64) {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return
	}
	m.user.WalletCents = cents
	user, authenticated, listeners := copyUser(m.user), m.authenticated, m.snapshot()
	m.mu.Unlock()

	broadcast(listeners, user, authenticated)
}

// RequireAuth returns nil when signed in. Otherwise it queues a hint and returns
// a redirect to the login page.
func (m *Manager) RequireAuth() error {
	if m.IsAuthenticated() {
		return nil
	}
	m.notifier.Show(notify.Info, "Please log in to continue")
	return router.Redirect(LoginPath)
}

// RebaseLink moves the hash location of link onto base, so a link minted with
// the backend's host opens this front end. link is returned unchanged when
// base is empty or link has no hash location.
func RebaseLink(link, base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	i := strings.IndexByte(link, '#')
	if base == "" || i < 0 {
		return link
	}
	return base + "/" + link[i:]
}

func (m *Manager) set(user *api.User, authenticated bool) {
	m.mu.Lock()
	m.user = copyUser(user)
	m.authenticated = authenticated
	snapshot, listeners := copyUser(m.user), m.snapshot()
	m.mu.Unlock()

	broadcast(listeners, snapshot, authenticated)
}

func (m *Manager) snapshot() []subscription {
	return append([]subscription(nil), m.listeners...)
}

func broadcast(listeners []subscription, user *api.User, authenticated bool) {
	for _, sub := range listeners {
		sub.fn(copyUser(user), authenticated)
	}
}

func resultUser(result *api.LoginResult) *api.User {
	if result == nil {
		return nil
	}
	return result.User
}

func copyUser(user *api.User) *api.User {
	if user == nil {
		return nil
	}
	u := *user
	return &u
}

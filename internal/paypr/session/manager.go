package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/notify"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/unlock"
)

const (
	defaultCookieName  = "paypr_session"
	defaultCookiePath  = "/"
	defaultLifetime    = 30 * 24 * time.Hour
	defaultIdleTimeout = 2 * time.Hour
)

// ErrExpired indicates the stored session is no longer valid due to idle or absolute expiry.
var ErrExpired = errors.New("session expired")

// ErrInvalidConfig indicates the manager was initialised with missing or invalid options.
var ErrInvalidConfig = errors.New("session: invalid config")

// Console records which operator consoles this browser has signed in to.
type Console struct {
	Admin         bool   `json:"admin,omitempty"`
	AdminUsername string `json:"adminUser,omitempty"`
	Publisher     bool   `json:"publisher,omitempty"`
	PublisherName string `json:"publisherName,omitempty"`
}

// Data represents the full persisted session payload.
type Data struct {
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"createdAt"`
	LastActive    time.Time       `json:"lastActive"`
	ExpiresAt     time.Time       `json:"expiresAt,omitempty"`
	CSRFToken     string          `json:"csrfToken,omitempty"`
	User          *api.User       `json:"user,omitempty"`
	AuthCheckedAt time.Time       `json:"authCheckedAt,omitempty"`
	Toasts        []notify.Toast  `json:"toasts,omitempty"`
	Receipt       *unlock.Receipt `json:"receipt,omitempty"`
	Console       Console         `json:"console,omitempty"`
}

// Session holds mutable state for the current request lifecycle.
type Session struct {
	data      Data
	dirty     bool
	destroyed bool
}

// Config controls cookie encoding and lifecycle limits for the session manager.
type Config struct {
	CookieName     string
	HashKey        []byte
	BlockKey       []byte
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	IdleTimeout time.Duration
	Lifetime    time.Duration
	Now         func() time.Time
}

// Manager decodes and persists session state via signed and encrypted cookies.
type Manager struct {
	cfg   Config
	codec *securecookie.SecureCookie
	now   func() time.Time
}

// NewManager constructs a Manager using the provided configuration.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.HashKey) == 0 {
		return nil, fmt.Errorf("%w: hash key is required", ErrInvalidConfig)
	}
	switch len(cfg.BlockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: block key must be 16, 24 or 32 bytes", ErrInvalidConfig)
	}

	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = defaultCookiePath
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultLifetime
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(cfg.Lifetime.Seconds()))

	return &Manager{cfg: cfg, codec: codec, now: nowFn}, nil
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cfg.CookieName
}

// Load retrieves the session from the incoming request or creates a new one.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return m.newSession(m.now()), nil
	}

	var stored Data
	if err := m.codec.Decode(m.cfg.CookieName, cookie.Value, &stored); err != nil {
		return m.newSession(m.now()), nil
	}

	sess := m.sessionFromData(stored)
	if m.isExpired(sess, m.now()) {
		return nil, ErrExpired
	}
	return sess, nil
}

// Save writes the session back to the response as a cookie. Destroyed sessions clear the cookie.
func (m *Manager) Save(w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return errors.New("session: nil session")
	}
	if sess.destroyed {
		http.SetCookie(w, m.expiredCookie())
		return nil
	}

	sess.Touch(m.now())
	encoded, err := m.codec.Encode(m.cfg.CookieName, sess.data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	cookie := &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    encoded,
		Path:     m.cfg.CookiePath,
		Domain:   m.cfg.CookieDomain,
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: m.cfg.CookieSameSite,
	}
	if !sess.data.ExpiresAt.IsZero() {
		expiry := sess.data.ExpiresAt.UTC()
		cookie.Expires = expiry
		remaining := expiry.Sub(m.now())
		if remaining <= 0 {
			cookie.MaxAge = -1
		} else {
			cookie.MaxAge = int(remaining.Round(time.Second).Seconds())
		}
	}

	http.SetCookie(w, cookie)
	sess.dirty = false
	return nil
}

// Destroy invalidates the session cookie immediately.
func (m *Manager) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, m.expiredCookie())
}

// New returns a new empty session instance using the manager configuration.
func (m *Manager) New() *Session {
	return m.newSession(m.now())
}

func (m *Manager) newSession(now time.Time) *Session {
	now = now.UTC()
	return &Session{
		data: Data{
			ID:         mustGenerateToken(32),
			CreatedAt:  now,
			LastActive: now,
			ExpiresAt:  now.Add(m.cfg.Lifetime),
		},
		dirty: true,
	}
}

func (m *Manager) sessionFromData(d Data) *Session {
	if d.ID == "" {
		return m.newSession(m.now())
	}
	return &Session{data: d}
}

func (m *Manager) isExpired(sess *Session, now time.Time) bool {
	if sess == nil {
		return true
	}
	now = now.UTC()
	if !sess.data.ExpiresAt.IsZero() && now.After(sess.data.ExpiresAt.UTC()) {
		return true
	}
	last := sess.data.LastActive
	if last.IsZero() {
		last = sess.data.CreatedAt
	}
	return !last.IsZero() && now.Sub(last) > m.cfg.IdleTimeout
}

func (m *Manager) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     m.cfg.CookiePath,
		Domain:   m.cfg.CookieDomain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: m.cfg.CookieSameSite,
	}
}

// ID returns the stable session identifier.
func (s *Session) ID() string {
	return s.data.ID
}

// CreatedAt returns the session creation timestamp.
func (s *Session) CreatedAt() time.Time {
	return s.data.CreatedAt
}

// LastActive returns the last access timestamp.
func (s *Session) LastActive() time.Time {
	return s.data.LastActive
}

// EnsureCSRFToken returns the existing CSRF token or generates a new one on demand.
func (s *Session) EnsureCSRFToken() (string, error) {
	if s.data.CSRFToken != "" {
		return s.data.CSRFToken, nil
	}
	token, err := generateToken(32)
	if err != nil {
		return "", err
	}
	s.data.CSRFToken = token
	s.dirty = true
	return token, nil
}

// CSRFToken returns the stored CSRF token value.
func (s *Session) CSRFToken() string {
	return s.data.CSRFToken
}

// RotateCSRFToken replaces the CSRF token, typically after a sign-in.
func (s *Session) RotateCSRFToken() (string, error) {
	s.data.CSRFToken = ""
	return s.EnsureCSRFToken()
}

// User returns a copy of the cached reader snapshot, if present.
func (s *Session) User() *api.User {
	if s.data.User == nil {
		return nil
	}
	u := *s.data.User
	return &u
}

// AuthCheckedAt returns when the snapshot was last confirmed with the backend.
func (s *Session) AuthCheckedAt() time.Time {
	return s.data.AuthCheckedAt
}

// SetUser records the reader snapshot and when it was observed.
func (s *Session) SetUser(user *api.User, checkedAt time.Time) {
	if user == nil {
		if s.data.User != nil {
			s.data.User = nil
			s.dirty = true
		}
	} else if s.data.User == nil || *s.data.User != *user {
		u := *user
		s.data.User = &u
		s.dirty = true
	}
	if !checkedAt.IsZero() && !checkedAt.Equal(s.data.AuthCheckedAt) {
		s.data.AuthCheckedAt = checkedAt.UTC()
		s.dirty = true
	}
}

// Toasts returns the toasts waiting to be shown.
func (s *Session) Toasts() []notify.Toast {
	return append([]notify.Toast(nil), s.data.Toasts...)
}

// SetToasts replaces the pending toasts.
func (s *Session) SetToasts(toasts []notify.Toast) {
	if len(toasts) == 0 && len(s.data.Toasts) == 0 {
		return
	}
	s.data.Toasts = append([]notify.Toast(nil), toasts...)
	s.dirty = true
}

// Receipt returns the most recent unlock receipt.
func (s *Session) Receipt() *unlock.Receipt {
	return s.data.Receipt
}

// SetReceipt stores or clears the unlock receipt.
func (s *Session) SetReceipt(r *unlock.Receipt) {
	if r == nil && s.data.Receipt == nil {
		return
	}
	s.data.Receipt = r
	s.dirty = true
}

// Console returns the operator console flags.
func (s *Session) Console() Console {
	return s.data.Console
}

// SetConsole replaces the operator console flags.
func (s *Session) SetConsole(c Console) {
	if s.data.Console == c {
		return
	}
	s.data.Console = c
	s.dirty = true
}

// Reset clears everything tied to the signed-in reader and operator consoles.
func (s *Session) Reset() {
	s.data.User = nil
	s.data.AuthCheckedAt = time.Time{}
	s.data.Receipt = nil
	s.data.Console = Console{}
	s.dirty = true
}

// Destroy marks the session for deletion at the end of the request.
func (s *Session) Destroy() {
	s.destroyed = true
	s.dirty = true
}

// Destroyed exposes the destroy marker.
func (s *Session) Destroyed() bool {
	return s.destroyed
}

// Touch updates the last active timestamp.
func (s *Session) Touch(now time.Time) {
	now = now.UTC()
	if now.After(s.data.LastActive) {
		s.data.LastActive = now
		s.dirty = true
	}
}

// Dirty indicates whether the session contents have changed during this request.
func (s *Session) Dirty() bool {
	return s.dirty
}

func mustGenerateToken(length int) string {
	token, err := generateToken(length)
	if err != nil {
		panic(err)
	}
	return token
}

func generateToken(length int) (string, error) {
	if length <= 0 {
		length = 32
	}
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

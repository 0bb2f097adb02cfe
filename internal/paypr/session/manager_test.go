package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/cache"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/notify"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/unlock"
)

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}

func newTestManager(t *testing.T) (*Manager, *fixedClock) {
	t.Helper()

	clock := &fixedClock{current: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	mgr, err := NewManager(Config{
		CookieName:  "test_session",
		HashKey:     []byte("12345678901234567890123456789012"),
		BlockKey:    []byte("abcdefghijklmnopqrstuv0123456789"),
		IdleTimeout: 10 * time.Minute,
		Lifetime:    2 * time.Hour,
		Now:         clock.Now,
	})
	require.NoError(t, err)
	return mgr, clock
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestManagerRoundTrip(t *testing.T) {
	mgr, clock := newTestManager(t)

	sess, err := mgr.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID())
	require.True(t, sess.Dirty())

	token, err := sess.EnsureCSRFToken()
	require.NoError(t, err)
	sess.SetUser(&api.User{ID: 7, Email: "reader@example.com", WalletCents: 450}, clock.current)
	sess.SetToasts([]notify.Toast{{ID: "t1", Kind: notify.Success, Message: "Saved", Duration: notify.DefaultDuration}})
	sess.SetReceipt(&unlock.Receipt{ArticleID: 3, TransactionID: 99, ExpiresAt: clock.current.Add(10 * time.Minute)})
	sess.SetConsole(Console{Admin: true, AdminUsername: "ops"})

	rec := httptest.NewRecorder()
	require.NoError(t, mgr.Save(rec, sess))
	require.False(t, sess.Dirty())

	cookie := findCookie(rec.Result().Cookies(), "test_session")
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, int((2 * time.Hour).Seconds()), cookie.MaxAge)

	clock.current = clock.current.Add(5 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := mgr.Load(req)
	require.NoError(t, err)
	require.Equal(t, sess.ID(), loaded.ID())
	require.Equal(t, token, loaded.CSRFToken())
	require.Equal(t, int64(450), loaded.User().WalletCents)
	require.Len(t, loaded.Toasts(), 1)
	require.True(t, loaded.Receipt().For(3))
	require.True(t, loaded.Console().Admin)
	require.False(t, loaded.Dirty())
}

func TestManagerIdleExpiry(t *testing.T) {
	mgr, clock := newTestManager(t)
	sess := mgr.New()
	rec := httptest.NewRecorder()
	require.NoError(t, mgr.Save(rec, sess))

	clock.current = clock.current.Add(11 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(findCookie(rec.Result().Cookies(), "test_session"))
	_, err := mgr.Load(req)
	require.True(t, errors.Is(err, ErrExpired))
}

func TestManagerIgnoresTamperedCookie(t *testing.T) {
	mgr, _ := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "garbage"})
	sess, err := mgr.Load(req)
	require.NoError(t, err)
	require.True(t, sess.Dirty(), "a fresh session replaces an unreadable one")
}

func TestDestroyClearsCookie(t *testing.T) {
	mgr, _ := newTestManager(t)
	sess := mgr.New()
	sess.Destroy()
	rec := httptest.NewRecorder()
	require.NoError(t, mgr.Save(rec, sess))
	cookie := findCookie(rec.Result().Cookies(), "test_session")
	require.NotNil(t, cookie)
	require.Equal(t, -1, cookie.MaxAge)
}

func TestSetUserTracksChanges(t *testing.T) {
	mgr, clock := newTestManager(t)
	sess := mgr.New()
	rec := httptest.NewRecorder()
	require.NoError(t, mgr.Save(rec, sess))

	user := &api.User{ID: 1, WalletCents: 10}
	sess.SetUser(user, time.Time{})
	require.True(t, sess.Dirty())
	require.NoError(t, mgr.Save(httptest.NewRecorder(), sess))

	sess.SetUser(&api.User{ID: 1, WalletCents: 10}, time.Time{})
	require.False(t, sess.Dirty())

	sess.SetUser(nil, clock.current)
	require.True(t, sess.Dirty())
	require.Nil(t, sess.User())

	sess.Reset()
	require.Nil(t, sess.Receipt())
	require.Zero(t, sess.Console())
}

func TestNewManagerValidatesKeys(t *testing.T) {
	_, err := NewManager(Config{})
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewManager(Config{HashKey: []byte("12345678901234567890123456789012"), BlockKey: []byte("short")})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestJarStorePersistsBackendCookies(t *testing.T) {
	ctx := context.Background()
	backend, err := url.Parse("http://backend.test:5000")
	require.NoError(t, err)
	store := NewJarStore(cache.NewMemory(), backend, time.Hour)

	jar, err := store.Open(ctx, "sess-1")
	require.NoError(t, err)
	require.Empty(t, jar.Cookies(backend))
	require.NoError(t, store.Save(ctx, "sess-1", jar), "unchanged jars are not written")

	jar.SetCookies(&url.URL{Scheme: "http", Host: "backend.test:5000", Path: "/api/auth/login"},
		[]*http.Cookie{{Name: "session", Value: "abc", Path: "/"}})
	require.True(t, jar.Changed())
	require.NoError(t, store.Save(ctx, "sess-1", jar))

	reopened, err := store.Open(ctx, "sess-1")
	require.NoError(t, err)
	cookies := reopened.Cookies(&url.URL{Scheme: "http", Host: "backend.test:5000", Path: "/api/wallet"})
	require.Len(t, cookies, 1)
	require.Equal(t, "abc", cookies[0].Value)

	other, err := store.Open(ctx, "sess-2")
	require.NoError(t, err)
	require.Empty(t, other.Cookies(backend))

	require.NoError(t, store.Drop(ctx, "sess-1"))
	dropped, err := store.Open(ctx, "sess-1")
	require.NoError(t, err)
	require.Empty(t, dropped.Cookies(backend))
}

func TestJarStoreKeepsCookiePaths(t *testing.T) {
	ctx := context.Background()
	backend, err := url.Parse("http://backend.test:5000")
	require.NoError(t, err)
	store := NewJarStore(cache.NewMemory(), backend, time.Hour)
	at := func(path string) *url.URL {
		return &url.URL{Scheme: "http", Host: "backend.test:5000", Path: path}
	}

	jar, err := store.Open(ctx, "sess-1")
	require.NoError(t, err)
	jar.SetCookies(at("/api/auth/login"), []*http.Cookie{
		{Name: "session", Value: "root", Path: "/"},
		{Name: "admin", Value: "ops", Path: "/api/admin"},
	})
	jar.SetCookies(at("/api/publisher/auth/verify"), []*http.Cookie{{Name: "pub", Value: "desk"}})
	require.NoError(t, store.Save(ctx, "sess-1", jar))

	reopened, err := store.Open(ctx, "sess-1")
	require.NoError(t, err)
	names := func(path string) []string {
		var out []string
		for _, c := range reopened.Cookies(at(path)) {
			out = append(out, c.Name+"="+c.Value)
		}
		return out
	}
	require.ElementsMatch(t, []string{"session=root"}, names("/api/wallet"))
	require.ElementsMatch(t, []string{"session=root", "admin=ops"}, names("/api/admin/users"))
	require.ElementsMatch(t, []string{"session=root", "pub=desk"}, names("/api/publisher/auth/me"))

	reopened.SetCookies(at("/api/auth/logout"), []*http.Cookie{{Name: "session", Value: "", Path: "/", MaxAge: -1}})
	require.NoError(t, store.Save(ctx, "sess-1", reopened))
	again, err := store.Open(ctx, "sess-1")
	require.NoError(t, err)
	require.Empty(t, again.Cookies(at("/api/wallet")))
	require.Len(t, again.Cookies(at("/api/admin/users")), 1, "cookies under a longer path survive a second save")
}

func TestFullToastQueueFitsInCookie(t *testing.T) {
	mgr, clock := newTestManager(t)
	sess := mgr.New()
	_, err := sess.EnsureCSRFToken()
	require.NoError(t, err)
	sess.SetUser(&api.User{ID: 7, Email: "reader@example.com", WalletCents: 450}, clock.current)

	center := notify.NewCenter(nil)
	for i := 0; i < notify.MaxPending; i++ {
		center.Show(notify.Error, strings.Repeat("x", 4*notify.MaxMessageBytes))
	}
	sess.SetToasts(center.Pending())

	rec := httptest.NewRecorder()
	require.NoError(t, mgr.Save(rec, sess))
	cookie := findCookie(rec.Result().Cookies(), "test_session")
	require.NotNil(t, cookie)
	require.LessOrEqual(t, len(cookie.Value), 4096)
}

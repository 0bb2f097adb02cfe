package pages

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/auth"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/notify"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/router"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/session"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/unlock"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/views"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	pages  *Pages
	router *router.Router
	scope  *Scope
	ctx    context.Context
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func reply(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, status, body) }
}

// newFixture serves routes as the backend and builds a scope for a reader.
// A nil user is an anonymous visitor.
func newFixture(t *testing.T, routes map[string]http.HandlerFunc, user *api.User) *fixture {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	client, err := api.NewClient(ts.URL)
	require.NoError(t, err)

	sessions, err := session.NewManager(session.Config{HashKey: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)

	center := notify.NewCenter(nil)
	manager := auth.NewManager(client, auth.WithNotifier(center))
	manager.Restore(user)

	p := New(views.MustNew(views.WithClock(func() time.Time { return testNow })), nil,
		WithClock(func() time.Time { return testNow }))
	rt := router.New(router.WithNotFound(p.NotFound))
	p.Register(rt)

	s := &Scope{API: client, Auth: manager, Notifier: center, Session: sessions.New()}
	return &fixture{pages: p, router: rt, scope: s, ctx: WithScope(context.Background(), s)}
}

func (f *fixture) dispatch(t *testing.T, location string) (*router.Result, *views.PageComponent) {
	t.Helper()
	res, err := f.router.Dispatch(f.ctx, location)
	require.NoError(t, err)
	page, ok := res.Component.(*views.PageComponent)
	require.True(t, ok, "component %T", res.Component)
	return res, page
}

func (f *fixture) toasts() []notify.Toast {
	return f.scope.Notifier.Pending()
}

func reader(cents int64) *api.User {
	return &api.User{ID: 3, Email: "reader@example.com", WalletCents: cents}
}

func TestRegisterKeepsRouteOrder(t *testing.T) {
	f := newFixture(t, nil, nil)
	routes := f.router.Routes()
	require.Equal(t, "/", routes[0])
	require.Contains(t, routes, "/showcase/:slug/article/:id")
	require.Equal(t, "/platform", routes[len(routes)-1])
}

func TestNewsstandToleratesMissingExtras(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"GET /api/publishers": func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "tech", r.URL.Query().Get("category"))
			writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{{"slug": "acme", "name": "Acme Daily"}}})
		},
		"GET /api/articles":   reply(http.StatusInternalServerError, map[string]any{"error": "down"}),
		"GET /api/categories": reply(http.StatusInternalServerError, map[string]any{}),
	}, nil)

	_, page := f.dispatch(t, "/?category=tech")

	require.Equal(t, "newsstand", page.Name())
	model := page.Data().(views.Newsstand)
	require.Len(t, model.Publishers, 1)
	require.Equal(t, "Acme Daily", model.Publishers[0].Name)
	require.Empty(t, model.Featured)
	require.Equal(t, "tech", model.Category)
	require.True(t, model.ShowTour)
}

func TestLoadFailureRendersRetry(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"GET /api/publishers": reply(http.StatusBadGateway, map[string]any{"error": "backend unavailable"}),
	}, nil)

	res, page := f.dispatch(t, "/publishers")

	require.Equal(t, "/publishers", res.Location)
	require.Equal(t, "empty_state", page.Name())
	state := page.Data().(views.EmptyState)
	require.True(t, state.Retry)
	require.Equal(t, "Failed to load publishers", state.Title)
	require.Equal(t, "backend unavailable", state.Message)
}

func TestUnknownPublisherRendersNotFound(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"GET /api/publishers/{slug}": reply(http.StatusNotFound, map[string]any{"error": "not found"}),
		"GET /api/articles":          reply(http.StatusOK, map[string]any{"items": []any{}}),
	}, nil)

	_, page := f.dispatch(t, "/p/missing")
	require.Equal(t, "not_found", page.Name())
}

func TestProtectedPageRedirectsAnonymousToLogin(t *testing.T) {
	f := newFixture(t, nil, nil)

	res, page := f.dispatch(t, "/wallet")

	require.Equal(t, "/login", res.Location)
	require.Equal(t, []string{"/wallet"}, res.Redirected)
	require.Equal(t, "login", page.Name())
	toasts := f.toasts()
	require.Len(t, toasts, 1)
	require.Equal(t, notify.Info, toasts[0].Kind)
}

func TestLoginRedirectsSignedInReaderHome(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"GET /api/publishers": reply(http.StatusOK, map[string]any{"items": []any{}}),
		"GET /api/articles":   reply(http.StatusOK, map[string]any{"items": []any{}}),
		"GET /api/categories": reply(http.StatusOK, map[string]any{"categories": []string{"news"}}),
	}, reader(100))

	res, page := f.dispatch(t, "/login")
	require.Equal(t, "/", res.Location)
	require.Equal(t, "newsstand", page.Name())
}

func TestWalletRefreshesBalance(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"GET /api/account/wallet": reply(http.StatusOK, map[string]any{"balance_cents": 2500, "email": "reader@example.com"}),
	}, reader(100))

	_, page := f.dispatch(t, "/wallet")

	require.Equal(t, "wallet", page.Name())
	require.Equal(t, int64(2500), page.Data().(views.Wallet).BalanceCents)
	require.Equal(t, int64(2500), f.scope.Auth.WalletBalance())
}

func TestLoadFailedUnauthorizedRedirectsToLogin(t *testing.T) {
	f := newFixture(t, nil, reader(0))

	_, err := f.pages.loadFailed(f.ctx, &api.Error{Message: "HTTP 401", Status: http.StatusUnauthorized}, "wallet")
	loc, ok := router.IsRedirect(err)
	require.True(t, ok)
	require.Equal(t, "/login", loc)

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()
	_, err = f.pages.loadFailed(ctx, errors.New("boom"), "wallet")
	require.ErrorIs(t, err, context.Canceled)
}

func TestUnlockWithInsufficientBalanceSkipsPayment(t *testing.T) {
	var paid atomic.Int32
	f := newFixture(t, map[string]http.HandlerFunc{
		"POST /api/pay": func(w http.ResponseWriter, _ *http.Request) {
			paid.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{})
		},
	}, reader(50))

	loc, err := f.pages.actionUnlock(f.ctx, ActionRequest{Form: url.Values{
		"article_id":  {"7"},
		"price_cents": {"99"},
	}})

	require.NoError(t, err)
	require.Equal(t, "/wallet", loc)
	require.Zero(t, paid.Load())
	toasts := f.toasts()
	require.Len(t, toasts, 1)
	require.Equal(t, notify.Error, toasts[0].Kind)
	require.Equal(t, "Insufficient balance. You need $0.99", toasts[0].Message)
}

func TestUnlockStoresReceiptAndShowsRefundWidget(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"POST /api/pay": func(w http.ResponseWriter, r *http.Request) {
			require.NotEmpty(t, r.Header.Get("Idempotency-Key"))
			writeJSON(w, http.StatusOK, map[string]any{"balance_cents": 401, "price_cents": 99, "transaction_id": 42})
		},
		"GET /api/articles/{id}": reply(http.StatusOK, map[string]any{
			"id": 7, "title": "Deep Dive", "price_cents": 99, "unlocked": true,
			"body_html": "<p>Full</p><script>x()</script>",
			"publisher": map[string]any{"slug": "acme", "name": "Acme"},
		}),
	}, reader(500))

	loc, err := f.pages.actionUnlock(f.ctx, ActionRequest{Form: url.Values{
		"article_id":  {"7"},
		"price_cents": {"99"},
		"return":      {"#/article/7?from=home"},
	}})
	require.NoError(t, err)
	require.Equal(t, "/article/7?from=home", loc)
	require.Equal(t, int64(401), f.scope.Auth.WalletBalance())
	require.True(t, f.scope.Session.Receipt().For(7))
	require.Equal(t, "Article unlocked! $0.99 charged", f.toasts()[0].Message)

	_, page := f.dispatch(t, "/article/7")
	model := page.Data().(views.ArticlePage)
	require.Equal(t, "#/p/acme", model.BackHref)
	require.NotNil(t, model.Refund)
	require.Equal(t, int64(42), model.Refund.TransactionID)
	require.Equal(t, "10:00", model.Refund.Countdown)
	require.NotContains(t, string(model.Body), "script")
}

func TestInvalidReceiptIsDropped(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"GET /api/articles/{id}": reply(http.StatusOK, map[string]any{"id": 7, "title": "Deep Dive", "price_cents": 99}),
		"POST /api/verify":       reply(http.StatusOK, map[string]any{"valid": false}),
	}, reader(500))
	receipt, err := unlock.FromPayment(7, &api.PayResult{TransactionID: 42, AccessToken: "opaque"}, testNow)
	require.Error(t, err)
	f.scope.Session.SetReceipt(receipt)

	_, page := f.dispatch(t, "/article/7")

	require.Nil(t, page.Data().(views.ArticlePage).Refund)
	require.Nil(t, f.scope.Session.Receipt())
}

func TestRefundClearsReceipt(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"POST /api/refund": reply(http.StatusOK, map[string]any{"ok": true, "balance_cents": 500, "refund_id": 9}),
	}, reader(401))
	receipt, err := unlock.FromPayment(7, &api.PayResult{TransactionID: 42}, testNow)
	require.NoError(t, err)
	f.scope.Session.SetReceipt(receipt)

	loc, err := f.pages.actionRefund(f.ctx, ActionRequest{Form: url.Values{"transaction_id": {"42"}}, Current: "/article/7"})

	require.NoError(t, err)
	require.Equal(t, "/", loc)
	require.Nil(t, f.scope.Session.Receipt())
	require.Equal(t, int64(500), f.scope.Auth.WalletBalance())
}

func TestRefundFailureStaysWithError(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"POST /api/refund": reply(http.StatusBadRequest, map[string]any{"error": "Refund window has expired"}),
	}, reader(401))

	loc, err := f.pages.actionRefund(f.ctx, ActionRequest{Form: url.Values{"transaction_id": {"42"}}, Current: "/article/7"})

	require.NoError(t, err)
	require.Equal(t, "/article/7", loc)
	require.Equal(t, "Refund window has expired", f.toasts()[0].Message)
}

func TestActionRejectsMalformedInput(t *testing.T) {
	f := newFixture(t, nil, reader(100))
	_, err := f.pages.actionRefund(f.ctx, ActionRequest{Form: url.Values{"transaction_id": {"abc"}}})
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestActionFailedUnauthorizedGoesToLogin(t *testing.T) {
	f := newFixture(t, nil, reader(100))

	loc, err := f.pages.actionFailed(f.ctx, f.scope, &api.Error{Message: "Not authenticated", Status: http.StatusUnauthorized}, "Top-up failed", "/wallet")

	require.NoError(t, err)
	require.Equal(t, "/login", loc)
	require.Equal(t, notify.Info, f.toasts()[0].Kind)
}

func TestCheckoutLeavesForHostedPage(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"POST /api/account/topup/checkout": reply(http.StatusOK, map[string]any{
			"session_id": "cs_1", "checkout_url": "https://checkout.stripe.com/c/cs_1",
		}),
	}, reader(100))

	loc, err := f.pages.actionCheckout(f.ctx, ActionRequest{Form: url.Values{"amount_cents": {"1000"}}})

	require.NoError(t, err)
	require.Equal(t, "https://checkout.stripe.com/c/cs_1", loc)
	require.Equal(t, "Redirecting to Stripe Checkout...", f.toasts()[0].Message)
}

func TestLogoutEndsAnonymousAndClearsReceipt(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"POST /api/auth/logout": reply(http.StatusInternalServerError, map[string]any{}),
	}, reader(100))
	receipt, err := unlock.FromPayment(7, &api.PayResult{TransactionID: 42}, testNow)
	require.NoError(t, err)
	f.scope.Session.SetReceipt(receipt)

	loc, err := f.pages.actionLogout(f.ctx, ActionRequest{})

	require.NoError(t, err)
	require.Equal(t, "/", loc)
	require.False(t, f.scope.Auth.IsAuthenticated())
	require.Nil(t, f.scope.Session.Receipt())
}

func TestPublisherConsoleShowsSignInOnUnauthorized(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"GET /api/publisher/console/stats":    reply(http.StatusUnauthorized, map[string]any{"error": "Not authenticated"}),
		"GET /api/publisher/console/articles": reply(http.StatusUnauthorized, map[string]any{"error": "Not authenticated"}),
	}, nil)
	f.scope.Session.SetConsole(session.Console{Publisher: true, PublisherName: "Acme"})

	res, page := f.dispatch(t, "/publisher/console")

	require.Equal(t, "/publisher/console", res.Location)
	require.Equal(t, "publisher_login", page.Name())
	require.Equal(t, session.Console{}, f.scope.Session.Console())
}

func TestPublisherConsoleMarksSession(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"GET /api/publisher/console/stats":    reply(http.StatusOK, map[string]any{"stats": []any{map[string]any{"article_id": 1, "reads": 3}}}),
		"GET /api/publisher/console/articles": reply(http.StatusOK, map[string]any{"articles": []any{}}),
	}, nil)

	_, page := f.dispatch(t, "/publisher/console")

	require.Equal(t, "publisher_console", page.Name())
	require.True(t, f.scope.Session.Console().Publisher)
}

func TestAdminPagesRequireConsoleSession(t *testing.T) {
	f := newFixture(t, nil, nil)

	res, page := f.dispatch(t, "/admin/users?page=2")

	require.Equal(t, "/admin/login", res.Location)
	require.Equal(t, "admin_login", page.Name())
}

func TestAdminUsersPaging(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"GET /api/admin/users": func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "2", r.URL.Query().Get("page"))
			require.Equal(t, "bob", r.URL.Query().Get("search"))
			writeJSON(w, http.StatusOK, map[string]any{
				"items": []any{map[string]any{"id": 1, "email": "bob@example.com"}},
				"total": 120,
			})
		},
	}, nil)
	f.scope.Session.SetConsole(session.Console{Admin: true, AdminUsername: "root"})

	_, page := f.dispatch(t, "/admin/users?page=2&search=bob")

	model := page.Data().(views.AdminUsers)
	require.Len(t, model.Users, 1)
	require.True(t, model.HasPrev)
	require.True(t, model.HasNext)
}

func TestAdminExpiredSessionIsCleared(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"GET /api/admin/site": reply(http.StatusUnauthorized, map[string]any{"error": "Not authenticated"}),
	}, nil)
	f.scope.Session.SetConsole(session.Console{Admin: true, AdminUsername: "root"})

	res, _ := f.dispatch(t, "/admin/site")

	require.Equal(t, "/admin/login", res.Location)
	require.False(t, f.scope.Session.Console().Admin)
}

func TestAdminSplitsRejectsMoreThanWhole(t *testing.T) {
	var saved atomic.Int32
	f := newFixture(t, map[string]http.HandlerFunc{
		"PUT /api/admin/splits/{id}": func(w http.ResponseWriter, _ *http.Request) {
			saved.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		},
	}, nil)
	f.scope.Session.SetConsole(session.Console{Admin: true})

	loc, err := f.pages.actionAdminSplits(f.ctx, ActionRequest{Form: url.Values{
		"publisher_id":    {"5"},
		"role":            {"author", "editor"},
		"recipient_label": {"Writer", "Desk"},
		"percent":         {"60", "50"},
	}})

	require.NoError(t, err)
	require.Equal(t, "/admin/splits/5", loc)
	require.Zero(t, saved.Load())
	require.Equal(t, "Split percentages cannot exceed 100%", f.toasts()[0].Message)
}

func TestSplitRules(t *testing.T) {
	rules, total := splitRules(url.Values{
		"role":            {"author", "", "editor"},
		"recipient_label": {"Writer", "ignored", "Desk"},
		"percent":         {"62.5", "10", "12"},
	})

	require.Equal(t, int64(7450), total)
	want := []api.Document{
		{"role": "author", "recipient_label": "Writer", "percent_bps": int64(6250)},
		{"role": "editor", "recipient_label": "Desk", "percent_bps": int64(1200)},
	}
	if diff := cmp.Diff(want, rules); diff != "" {
		t.Fatalf("rules mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize(t *testing.T) {
	h := summarize([]api.Transaction{
		{ID: 1, Type: "topup", PriceCents: 1000},
		{ID: 2, Type: "debit", PriceCents: 99},
		{ID: 3, Type: "debit", PriceCents: 199},
		{ID: 4, Type: "refund", PriceCents: 99},
	})

	require.Equal(t, int64(199), h.TotalSpentCents)
	require.Equal(t, int64(2), h.Unlocked)
	require.Equal(t, int64(1), h.Refunds)
	require.Len(t, h.Transactions, 4)
}

func TestSafeLocation(t *testing.T) {
	cases := map[string]string{
		"/wallet":              "/wallet",
		"#/article/7?x=1":      "/article/7?x=1",
		" /history ":           "/history",
		"//evil.example.com":   "",
		"https://evil.example": "",
		"/a\r\nSet-Cookie: x":  "",
		"wallet":               "",
	}
	for in, want := range cases {
		require.Equal(t, want, safeLocation(in), in)
	}
	require.Equal(t, "/", stay("javascript:alert(1)"))
}

func TestFormCentsAndBasisPoints(t *testing.T) {
	form := url.Values{"amount": {"$1.50"}, "neg": {"-2.05"}, "fee": {"12.5%"}, "bad": {"x"}}

	cents, err := formCents(form, "amount")
	require.NoError(t, err)
	require.Equal(t, int64(150), cents)

	cents, err = formCents(form, "neg")
	require.NoError(t, err)
	require.Equal(t, int64(-205), cents)

	_, err = formCents(form, "bad")
	require.ErrorIs(t, err, ErrBadRequest)

	require.Equal(t, int64(1250), formBasisPoints(form, "fee", 0))
	require.Equal(t, int64(1000), formBasisPoints(form, "missing", 1000))
}

func TestHandlersWithoutScopeFail(t *testing.T) {
	p := New(views.MustNew(), nil)
	_, err := p.wallet(context.Background(), &router.Request{Path: "/wallet"})
	require.ErrorIs(t, err, ErrNoScope)
}

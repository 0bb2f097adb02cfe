package router_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/a-h/templ"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/router"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func text(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

type capture struct {
	calls int
	req   *router.Request
}

func (c *capture) handler(name string) router.Handler {
	return func(_ context.Context, req *router.Request) (templ.Component, error) {
		c.calls++
		c.req = req
		return text(name), nil
	}
}

func TestRouteParamsMergeWithQuery(t *testing.T) {
	r := router.New()
	var publisher capture
	r.Register("/", (&capture{}).handler("home"))
	r.Register("/p/:slug", publisher.handler("publisher"))

	res, err := r.Dispatch(context.Background(), "#/p/acme-times?x=1")
	require.NoError(t, err)
	require.Equal(t, 1, publisher.calls)
	require.False(t, res.NotFound)
	require.Equal(t, "/p/acme-times", res.Path)

	want := router.Params{"slug": "acme-times", "x": "1"}
	if diff := cmp.Diff(want, publisher.req.Params); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "publisher", render(t, res.Component))
}

func TestRouteParamsOverrideQuery(t *testing.T) {
	r := router.New()
	var article capture
	r.Register("/article/:id", article.handler("article"))

	_, err := r.Dispatch(context.Background(), "#/article/42?id=7&ref=home&ref=nav")
	require.NoError(t, err)

	want := router.Params{"id": "42", "ref": "nav"}
	if diff := cmp.Diff(want, article.req.Params); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryKeepsMalformedValuesLiterally(t *testing.T) {
	cases := map[string]router.Params{
		"#/?q=100%":               {"q": "100%"},
		"#/?q=a;b&x=1":            {"q": "a;b", "x": "1"},
		"#/?q=%zz&x=1":            {"q": "%zz", "x": "1"},
		"#/?q=red+shoes&q=%C3%A9": {"q": "é"},
		"#/?flag&&q=":             {"flag": "", "q": ""},
		"#/?q=a+b%2Bc":            {"q": "a b+c"},
		"#/?q=50%25+off%zz":       {"q": "50% off%zz"},
	}
	for location, want := range cases {
		r := router.New()
		var home capture
		r.Register("/", home.handler("home"))

		_, err := r.Dispatch(context.Background(), location)
		require.NoError(t, err, location)
		if diff := cmp.Diff(want, home.req.Params); diff != "" {
			t.Fatalf("%s params mismatch (-want +got):\n%s", location, diff)
		}
	}
}

func TestExactMatchBeatsPattern(t *testing.T) {
	r := router.New()
	var pattern, exact capture
	r.Register("/author/:id", pattern.handler("profile"))
	r.Register("/author/dashboard", exact.handler("dashboard"))

	res, err := r.Dispatch(context.Background(), "/author/dashboard")
	require.NoError(t, err)
	require.Equal(t, 1, exact.calls)
	require.Zero(t, pattern.calls)
	require.Equal(t, "dashboard", render(t, res.Component))
}

func TestMostSpecificPatternWins(t *testing.T) {
	r := router.New()
	var generic, specific capture
	r.Register("/showcase/:slug/article/:id", generic.handler("generic"))
	r.Register("/showcase/smerconish/article/:id", specific.handler("specific"))

	_, err := r.Dispatch(context.Background(), "#/showcase/smerconish/article/3")
	require.NoError(t, err)
	require.Equal(t, 1, specific.calls)
	require.Zero(t, generic.calls)

	_, err = r.Dispatch(context.Background(), "#/showcase/technewsletter/article/3")
	require.NoError(t, err)
	require.Equal(t, 1, generic.calls)
	require.Equal(t, "technewsletter", generic.req.Param("slug"))
}

func TestEqualSpecificityKeepsRegistrationOrder(t *testing.T) {
	r := router.New()
	var first, second capture
	r.Register("/x/:a", first.handler("first"))
	r.Register("/:b/y", second.handler("second"))

	_, err := r.Dispatch(context.Background(), "/x/y")
	require.NoError(t, err)
	require.Equal(t, 1, first.calls)
	require.Zero(t, second.calls)
}

func TestNotFoundRendersOnceAndKeepsTable(t *testing.T) {
	var notFound capture
	r := router.New(router.WithNotFound(notFound.handler("404")))
	r.Register("/", (&capture{}).handler("home"))
	r.Register("/p/:slug", (&capture{}).handler("publisher"))
	before := r.Routes()

	res, err := r.Dispatch(context.Background(), "#/nope")
	require.NoError(t, err)
	require.True(t, res.NotFound)
	require.Equal(t, 1, notFound.calls)
	require.Equal(t, "/nope", notFound.req.Path)
	require.Equal(t, "404", render(t, res.Component))
	require.Equal(t, before, r.Routes())
}

func TestSegmentCountMustMatch(t *testing.T) {
	r := router.New()
	var publisher capture
	r.Register("/p/:slug", publisher.handler("publisher"))

	res, err := r.Dispatch(context.Background(), "#/p/acme/extra")
	require.NoError(t, err)
	require.True(t, res.NotFound)
	require.Zero(t, publisher.calls)
}

func TestEmptyLocationIsRoot(t *testing.T) {
	r := router.New()
	var home capture
	r.Register("/", home.handler("home"))

	for _, loc := range []string{"", "#", "#/", "#?welcome=1"} {
		res, err := r.Dispatch(context.Background(), loc)
		require.NoError(t, err, loc)
		require.False(t, res.NotFound, loc)
	}
	require.Equal(t, 4, home.calls)
	require.Equal(t, "1", home.req.Param("welcome"))
}

func TestDefaultNotFound(t *testing.T) {
	r := router.New()
	res, err := r.Dispatch(context.Background(), "#/missing")
	require.NoError(t, err)
	require.Contains(t, render(t, res.Component), "Page Not Found")
}

func TestRedirectsAreFollowed(t *testing.T) {
	r := router.New()
	var login capture
	r.Register("/wallet", func(context.Context, *router.Request) (templ.Component, error) {
		return nil, router.Redirect("/login?next=/wallet")
	})
	r.Register("/login", login.handler("login"))

	res, err := r.Dispatch(context.Background(), "#/wallet")
	require.NoError(t, err)
	require.Equal(t, "/login?next=/wallet", res.Location)
	require.Equal(t, "/login", res.Path)
	require.Equal(t, []string{"/wallet"}, res.Redirected)
	require.Equal(t, "/wallet", login.req.Param("next"))
}

func TestRedirectLoopIsBounded(t *testing.T) {
	r := router.New()
	r.Register("/a", func(context.Context, *router.Request) (templ.Component, error) {
		return nil, router.Redirect("/b")
	})
	r.Register("/b", func(context.Context, *router.Request) (templ.Component, error) {
		return nil, router.Redirect("/a")
	})

	_, err := r.Dispatch(context.Background(), "/a")
	require.ErrorIs(t, err, router.ErrTooManyRedirects)
}

func TestHandlerErrorsPropagate(t *testing.T) {
	r := router.New()
	boom := errors.New("boom")
	r.Register("/", func(context.Context, *router.Request) (templ.Component, error) {
		return nil, boom
	})

	_, err := r.Dispatch(context.Background(), "/")
	require.ErrorIs(t, err, boom)
}

func TestReRegisterKeepsPosition(t *testing.T) {
	r := router.New()
	r.Register("/", (&capture{}).handler("a"))
	r.Register("/wallet", (&capture{}).handler("b"))
	var replacement capture
	r.Register("/", replacement.handler("c"))

	require.Equal(t, []string{"/", "/wallet"}, r.Routes())
	_, err := r.Dispatch(context.Background(), "/")
	require.NoError(t, err)
	require.Equal(t, 1, replacement.calls)
}

func TestChromelessForShowcase(t *testing.T) {
	r := router.New()
	r.Register("/showcase/:slug", (&capture{}).handler("showcase"))
	r.Register("/wallet", (&capture{}).handler("wallet"))

	res, err := r.Dispatch(context.Background(), "#/showcase/smerconish")
	require.NoError(t, err)
	require.True(t, res.Chromeless())

	res, err = r.Dispatch(context.Background(), "#/wallet")
	require.NoError(t, err)
	require.False(t, res.Chromeless())

	res, err = r.Dispatch(context.Background(), "#/showcase/a/b/c/d")
	require.NoError(t, err)
	require.True(t, res.NotFound)
	require.False(t, res.Chromeless(), "404 keeps the navbar")
}

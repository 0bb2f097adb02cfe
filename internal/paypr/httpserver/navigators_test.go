package httpserver

import (
	"context"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/router"
)

func testRouter() *router.Router {
	rt := router.New()
	rt.Register("/", func(context.Context, *router.Request) (templ.Component, error) {
		return templ.NopComponent, nil
	})
	return rt
}

func TestNavigatorsReuseTabAndSweepIdle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	now := time.Now()
	navs := newNavigators(testRouter(), time.Hour, func() time.Time { return now })
	defer navs.Close()

	first := navs.get("sess", "tab-1")
	require.Same(t, first, navs.get("sess", "tab-1"))
	require.NotSame(t, first, navs.get("sess", "tab-2"))
	require.NotSame(t, first, navs.get("other", "tab-1"))
	require.Equal(t, 3, navs.len())

	_, err := first.Navigate(context.Background(), "#/")
	require.NoError(t, err)

	require.Zero(t, navs.sweep())
	require.Equal(t, 3, navs.len())

	now = now.Add(2 * time.Hour)
	require.Equal(t, 3, navs.sweep())
	require.Zero(t, navs.len())
}

func TestNavigatorsCloseStopsJanitor(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	navs := newNavigators(testRouter(), 10*time.Millisecond, nil)
	navs.get("sess", "tab")
	navs.Close()
	navs.Close()
	require.Zero(t, navs.len())
}

func TestSweepInterval(t *testing.T) {
	require.Equal(t, 10*time.Millisecond, sweepInterval(time.Millisecond))
	require.Equal(t, 15*time.Second, sweepInterval(30*time.Second))
	require.Equal(t, time.Minute, sweepInterval(time.Hour))
}

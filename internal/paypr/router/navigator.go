package router

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned by Navigate when a newer navigation started before
// this one finished. Its result must not be shown.
var ErrSuperseded = errors.New("router: navigation superseded")

// Navigator tracks the current route of one client (a browser tab). Starting a
// navigation cancels the one still in flight, so a slow page can never replace
// a newer one.
type Navigator struct {
	router *Router
	now    func() time.Time

	mu       sync.Mutex
	seq      uint64
	cancel   context.CancelFunc
	current  string
	params   Params
	lastUsed time.Time
}

// NewNavigator returns a Navigator bound to the route table.
func (r *Router) NewNavigator() *Navigator {
	return &Navigator{router: r, now: time.Now, params: Params{}, lastUsed: time.Now()}
}

// Navigate dispatches location. The handler's context is cancelled as soon as
// another navigation starts; if that happens before the handler returns,
// Navigate reports ErrSuperseded.
func (n *Navigator) Navigate(ctx context.Context, location string) (*Result, error) {
	navCtx, cancel := context.WithCancel(ctx)

	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	n.seq++
	id := n.seq
	n.cancel = cancel
	n.lastUsed = n.now()
	n.mu.Unlock()

	res, err := n.router.Dispatch(navCtx, location)

	n.mu.Lock()
	defer n.mu.Unlock()
	cancel()
	if id != n.seq {
		return nil, ErrSuperseded
	}
	n.cancel = nil
	if err != nil {
		return nil, err
	}
	n.params = res.Params.clone()
	if !res.NotFound {
		n.current = res.Path
	}
	return res, nil
}

// Cancel aborts the navigation in flight, if any.
func (n *Navigator) Cancel() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	n.seq++
}

// Current returns the path of the last route that rendered, or "" before the first.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Params returns a copy of the parameters of the last navigation.
func (n *Navigator) Params() Params {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.params.clone()
}

// Param returns one parameter of the last navigation.
func (n *Navigator) Param(key string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.params.Get(key)
}

// LastUsed returns when the navigator last started a navigation.
func (n *Navigator) LastUsed() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastUsed
}

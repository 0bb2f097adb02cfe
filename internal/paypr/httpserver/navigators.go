package httpserver

import (
	"sync"
	"time"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/router"
)

const defaultNavigatorIdle = 30 * time.Minute

// navigators keeps one router.Navigator per browser tab so a newer navigation
// in a tab cancels the one still loading. Idle tabs are evicted.
type navigators struct {
	router *router.Router
	idle   time.Duration
	now    func() time.Time

	mu   sync.Mutex
	tabs map[string]*router.Navigator

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newNavigators(rt *router.Router, idle time.Duration, now func() time.Time) *navigators {
	if idle <= 0 {
		idle = defaultNavigatorIdle
	}
	if now == nil {
		now = time.Now
	}
	n := &navigators{
		router: rt,
		idle:   idle,
		now:    now,
		tabs:   make(map[string]*router.Navigator),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go n.janitor(sweepInterval(idle))
	return n
}

func sweepInterval(idle time.Duration) time.Duration {
	interval := idle / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	return interval
}

// get returns the navigator for the tab, creating it on first use.
func (n *navigators) get(sessionID, tab string) *router.Navigator {
	key := sessionID + "|" + tab
	n.mu.Lock()
	defer n.mu.Unlock()
	nav, ok := n.tabs[key]
	if !ok {
		nav = n.router.NewNavigator()
		n.tabs[key] = nav
	}
	return nav
}

// len reports how many tabs are tracked.
func (n *navigators) len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.tabs)
}

// sweep cancels and forgets navigators idle for longer than the limit.
func (n *navigators) sweep() int {
	cutoff := n.now().Add(-n.idle)
	n.mu.Lock()
	defer n.mu.Unlock()
	evicted := 0
	for key, nav := range n.tabs {
		if nav.LastUsed().Before(cutoff) {
			nav.Cancel()
			delete(n.tabs, key)
			evicted++
		}
	}
	return evicted
}

func (n *navigators) janitor(interval time.Duration) {
	defer close(n.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-n.stop:
			return
		case <-ticker.C:
			n.sweep()
		}
	}
}

// Close stops the janitor and cancels every navigation in flight.
func (n *navigators) Close() {
	n.once.Do(func() {
		close(n.stop)
		<-n.done
		n.mu.Lock()
		defer n.mu.Unlock()
		for key, nav := range n.tabs {
			nav.Cancel()
			delete(n.tabs, key)
		}
	})
}

// Package notify queues transient toast notifications for the current browser session.
package notify

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// Kind classifies a toast.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Warning Kind = "warning"
	Info    Kind = "info"
)

// DefaultDuration is how long a toast stays visible unless overridden.
const DefaultDuration = 3 * time.Second

// MaxPending bounds the queue; the oldest toasts are dropped first.
const MaxPending = 5

// MaxMessageBytes caps a message so a full queue still fits in the session
// cookie. Longer messages are cut on a rune boundary and end in an ellipsis.
const MaxMessageBytes = 256

const ellipsis = "…"

// Title returns the heading shown for the kind.
func (k Kind) Title() string {
	switch k {
	case Success:
		return "Success"
	case Error:
		return "Error"
	case Warning:
		return "Warning"
	default:
		return "Info"
	}
}

// Icon returns the glyph shown next to the heading.
func (k Kind) Icon() string {
	switch k {
	case Success:
		return "✓"
	case Error:
		return "✕"
	case Warning:
		return "⚠"
	default:
		return "ℹ"
	}
}

func normalizeKind(k Kind) Kind {
	switch k {
	case Success, Error, Warning, Info:
		return k
	default:
		return Info
	}
}

// Toast is a single notification. A zero Duration keeps it until dismissed.
type Toast struct {
	ID       string        `json:"id"`
	Kind     Kind          `json:"kind"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
}

// Title returns the heading for the toast.
func (t Toast) Title() string { return t.Kind.Title() }

// Icon returns the glyph for the toast.
func (t Toast) Icon() string { return t.Kind.Icon() }

// DurationMillis returns the display time in milliseconds for client-side timers.
func (t Toast) DurationMillis() int64 { return t.Duration.Milliseconds() }

// Notifier accepts toasts.
type Notifier interface {
	Show(kind Kind, message string, duration ...time.Duration) string
}

// Center holds the toasts pending for one browser session. It is safe for
// concurrent use.
type Center struct {
	mu     sync.Mutex
	toasts []Toast
}

// NewCenter returns a Center seeded with previously persisted toasts.
func NewCenter(pending []Toast) *Center {
	c := &Center{}
	if len(pending) > 0 {
		c.toasts = append([]Toast(nil), pending...)
		c.trim()
	}
	return c
}

// Show queues a toast and returns its id. An optional duration overrides
// DefaultDuration; pass 0 for a sticky toast.
func (c *Center) Show(kind Kind, message string, duration ...time.Duration) string {
	d := DefaultDuration
	if len(duration) > 0 && duration[0] >= 0 {
		d = duration[0]
	}
	toast := Toast{
		ID:       ulid.Make().String(),
		Kind:     normalizeKind(kind),
		Message:  truncate(message, MaxMessageBytes),
		Duration: d,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.toasts = append(c.toasts, toast)
	c.trim()
	return toast.ID
}

// Pending returns a copy of the queued toasts.
func (c *Center) Pending() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Toast(nil), c.toasts...)
}

// Drain returns and clears the queued toasts.
func (c *Center) Drain() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.toasts
	c.toasts = nil
	return out
}

func truncate(message string, n int) string {
	if len(message) <= n {
		return message
	}
	cut := n - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut] + ellipsis
}

func (c *Center) trim() {
	if over := len(c.toasts) - MaxPending; over > 0 {
		c.toasts = append([]Toast(nil), c.toasts[over:]...)
	}
}

type contextKey struct{}

// WithCenter attaches the center to ctx.
func WithCenter(ctx context.Context, c *Center) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the center attached to ctx, or a detached empty one.
func FromContext(ctx context.Context) *Center {
	if ctx != nil {
		if c, ok := ctx.Value(contextKey{}).(*Center); ok && c != nil {
			return c
		}
	}
	return &Center{}
}

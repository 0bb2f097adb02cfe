// Package router resolves hash locations such as "#/p/acme-times?x=1" to page
// handlers. Patterns are slash-delimited; segments starting with ':' bind the
// matching path segment under that name.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/a-h/templ"
)

const maxRedirects = 5

// ErrTooManyRedirects is returned when handlers keep redirecting.
var ErrTooManyRedirects = errors.New("router: too many redirects")

// Params holds query and route parameters. Route parameters win on collisions.
type Params map[string]string

// Get returns the value for key or "".
func (p Params) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

func (p Params) clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Request is the resolved location handed to a Handler.
type Request struct {
	// Location is the normalised location without the leading '#'.
	Location string
	// Path is the location up to the first '?'.
	Path   string
	Params Params
}

// Param returns a parameter by name.
func (r *Request) Param(key string) string {
	if r == nil {
		return ""
	}
	return r.Params.Get(key)
}

// Handler renders a page for a resolved location. Returning an error built with
// Redirect sends the navigation to another location.
type Handler func(ctx context.Context, req *Request) (templ.Component, error)

// RedirectError asks the router to continue at Location.
type RedirectError struct {
	Location string
}

func (e *RedirectError) Error() string {
	return "router: redirect to " + e.Location
}

// Redirect returns an error that makes the router navigate to location.
func Redirect(location string) error {
	return &RedirectError{Location: location}
}

// IsRedirect reports whether err asks for a redirect and returns its target.
func IsRedirect(err error) (string, bool) {
	var redirect *RedirectError
	if errors.As(err, &redirect) && redirect != nil {
		return redirect.Location, true
	}
	return "", false
}

type route struct {
	pattern  string
	segments []string
	literals int
	handler  Handler
}

// Router is the route table. Registration is expected at start-up; resolution
// is safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	routes   []*route
	index    map[string]*route
	notFound Handler
}

// Option customises a Router.
type Option func(*Router)

// WithNotFound overrides the handler rendered when nothing matches.
func WithNotFound(h Handler) Option {
	return func(r *Router) {
		if h != nil {
			r.notFound = h
		}
	}
}

// New constructs an empty Router.
func New(opts ...Option) *Router {
	r := &Router{
		index:    make(map[string]*route),
		notFound: defaultNotFound,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds pattern to the table. Registering an existing pattern replaces
// its handler and keeps its position.
func (r *Router) Register(pattern string, h Handler) {
	if h == nil {
		panic(fmt.Sprintf("router: nil handler for %q", pattern))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.index[pattern]; ok {
		existing.handler = h
		return
	}
	segments := strings.Split(pattern, "/")
	literals := 0
	for _, s := range segments {
		if !strings.HasPrefix(s, ":") {
			literals++
		}
	}
	rt := &route{pattern: pattern, segments: segments, literals: literals, handler: h}
	r.routes = append(r.routes, rt)
	r.index[pattern] = rt
}

// Routes returns the registered patterns in registration order.
func (r *Router) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.routes))
	for i, rt := range r.routes {
		out[i] = rt.pattern
	}
	return out
}

// Resolve parses location and finds its handler. When nothing matches, the
// returned Request carries only the query parameters and ok is false.
func (r *Router) Resolve(location string) (req *Request, h Handler, ok bool) {
	loc, path, query := parseLocation(location)
	params := parseQuery(query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if rt, found := r.index[path]; found {
		return &Request{Location: loc, Path: path, Params: params}, rt.handler, true
	}

	pathSegments := strings.Split(path, "/")
	var (
		best       *route
		bestParams Params
	)
	for _, rt := range r.routes {
		bound, matched := matchSegments(rt.segments, pathSegments)
		if !matched {
			continue
		}
		// Most literal segments wins; ties keep the earliest registration.
		if best == nil || rt.literals > best.literals {
			best = rt
			bestParams = bound
		}
	}
	if best == nil {
		return &Request{Location: loc, Path: path, Params: params}, nil, false
	}
	for k, v := range bestParams {
		params[k] = v
	}
	return &Request{Location: loc, Path: path, Params: params}, best.handler, true
}

// Result is the outcome of a dispatch.
type Result struct {
	// Location is the final location after redirects.
	Location  string
	Path      string
	Params    Params
	Component templ.Component
	NotFound  bool
	// Redirected lists intermediate locations that redirected.
	Redirected []string
}

// Chromeless reports whether the page renders without the global navbar.
func (r *Result) Chromeless() bool {
	return r != nil && !r.NotFound && strings.HasPrefix(r.Path, "/showcase/")
}

// Dispatch resolves location, follows handler redirects and returns the page to
// render. The not-found handler runs exactly once when nothing matches.
func (r *Router) Dispatch(ctx context.Context, location string) (*Result, error) {
	var redirected []string
	for hop := 0; hop <= maxRedirects; hop++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, handler, ok := r.Resolve(location)
		if !ok {
			r.mu.RLock()
			notFound := r.notFound
			r.mu.RUnlock()
			component, err := notFound(ctx, req)
			if err != nil {
				return nil, err
			}
			return &Result{
				Location:   req.Location,
				Path:       req.Path,
				Params:     req.Params,
				Component:  component,
				NotFound:   true,
				Redirected: redirected,
			}, nil
		}

		component, err := handler(ctx, req)
		if target, isRedirect := IsRedirect(err); isRedirect {
			redirected = append(redirected, req.Location)
			location = target
			continue
		}
		if err != nil {
			return nil, err
		}
		if component == nil {
			component = templ.NopComponent
		}
		return &Result{
			Location:   req.Location,
			Path:       req.Path,
			Params:     req.Params.clone(),
			Component:  component,
			Redirected: redirected,
		}, nil
	}
	return nil, ErrTooManyRedirects
}

func matchSegments(pattern, path []string) (Params, bool) {
	if len(pattern) != len(path) {
		return nil, false
	}
	bound := Params{}
	for i, seg := range pattern {
		if strings.HasPrefix(seg, ":") {
			bound[seg[1:]] = path[i]
			continue
		}
		if seg != path[i] {
			return nil, false
		}
	}
	return bound, true
}

// parseLocation strips one leading '#', defaults an empty location to "/" and
// splits off the query at the first '?'.
func parseLocation(location string) (loc, path, query string) {
	loc = strings.TrimPrefix(strings.TrimSpace(location), "#")
	if loc == "" {
		loc = "/"
	}
	path, query, _ = strings.Cut(loc, "?")
	if path == "" {
		path = "/"
	}
	return loc, path, query
}

// parseQuery reads key=value pairs split on '&'. '+' is a space, valid %XX
// escapes are decoded and malformed ones are kept as written. The last
// duplicate wins.
func parseQuery(query string) Params {
	params := Params{}
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		params[unescapeQuery(key)] = unescapeQuery(value)
	}
	return params
}

func unescapeQuery(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	default:
		return c - '0'
	}
}

var defaultNotFound Handler = func(context.Context, *Request) (templ.Component, error) {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<section class="not-found"><h1>Page Not Found</h1><p>The page you're looking for doesn't exist.</p><a href="#/">Go Home</a></section>`)
		return err
	}), nil
}

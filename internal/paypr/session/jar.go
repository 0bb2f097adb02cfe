package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/cache"
)

const jarKeyPrefix = "paypr:jar:"

// JarStore keeps each browser session's backend cookies on the server, keyed by
// session id, so the backend session never reaches the browser.
type JarStore struct {
	store   cache.Store
	backend *url.URL
	ttl     time.Duration
}

// NewJarStore returns a JarStore for cookies issued by backend.
func NewJarStore(store cache.Store, backend *url.URL, ttl time.Duration) *JarStore {
	u := *backend
	u.Path = "/"
	u.RawPath = ""
	u.RawQuery = ""
	return &JarStore{store: store, backend: &u, ttl: ttl}
}

type storedCookie struct {
	Name  string `json:"n"`
	Value string `json:"v"`
	Path  string `json:"p,omitempty"`
}

// Jar is an http.CookieJar seeded from the store that remembers whether the
// backend changed any cookie and under which paths cookies were set.
type Jar struct {
	inner   *cookiejar.Jar
	backend *url.URL

	mu      sync.Mutex
	changed bool
	paths   map[string]struct{}
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	j.inner.SetCookies(u, cookies)
	j.mu.Lock()
	j.changed = true
	for _, c := range cookies {
		j.paths[cookiePath(u, c)] = struct{}{}
	}
	j.mu.Unlock()
}

// sortedPaths returns the recorded paths, shortest first.
func (j *Jar) sortedPaths() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	paths := make([]string, 0, len(j.paths))
	for p := range j.paths {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(a, b int) bool {
		if len(paths[a]) != len(paths[b]) {
			return len(paths[a]) < len(paths[b])
		}
		return paths[a] < paths[b]
	})
	return paths
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// Changed reports whether the backend set or cleared a cookie.
func (j *Jar) Changed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.changed
}

// Open returns the jar for sessionID. Unknown sessions start empty.
func (s *JarStore) Open(ctx context.Context, sessionID string) (*Jar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("session: create cookie jar: %w", err)
	}
	jar := &Jar{inner: inner, backend: s.backend, paths: map[string]struct{}{"/": {}}}

	raw, ok, err := s.store.Get(ctx, jarKeyPrefix+sessionID)
	if err != nil {
		return jar, fmt.Errorf("session: load cookie jar: %w", err)
	}
	if !ok {
		return jar, nil
	}
	var stored []storedCookie
	if err := json.Unmarshal(raw, &stored); err != nil {
		return jar, nil
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		path := c.Path
		if !strings.HasPrefix(path, "/") {
			path = "/"
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: path})
		jar.paths[path] = struct{}{}
	}
	inner.SetCookies(s.backend, cookies)
	return jar, nil
}

// Save persists the jar when the backend changed it.
func (s *JarStore) Save(ctx context.Context, sessionID string, jar *Jar) error {
	if jar == nil || !jar.Changed() {
		return nil
	}
	stored := s.collect(jar)
	if len(stored) == 0 {
		return s.Drop(ctx, sessionID)
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("session: encode cookie jar: %w", err)
	}
	if err := s.store.Set(ctx, jarKeyPrefix+sessionID, raw, s.ttl); err != nil {
		return fmt.Errorf("session: save cookie jar: %w", err)
	}
	return nil
}

// collect reads the live cookies under every recorded path. Paths are visited
// shortest first, so a cookie also visible under a longer path keeps the
// shorter path it was found under first.
func (s *JarStore) collect(jar *Jar) []storedCookie {
	var stored []storedCookie
	for _, path := range jar.sortedPaths() {
		u := *s.backend
		u.Path = path
		for _, c := range jar.Cookies(&u) {
			if !coveredBy(stored, c, path) {
				stored = append(stored, storedCookie{Name: c.Name, Value: c.Value, Path: path})
			}
		}
	}
	sort.SliceStable(stored, func(i, j int) bool {
		if stored[i].Name != stored[j].Name {
			return stored[i].Name < stored[j].Name
		}
		return stored[i].Path < stored[j].Path
	})
	return stored
}

func coveredBy(stored []storedCookie, c *http.Cookie, path string) bool {
	for _, sc := range stored {
		if sc.Name == c.Name && sc.Value == c.Value && pathMatch(path, sc.Path) {
			return true
		}
	}
	return false
}

// pathMatch reports whether a cookie scoped to cookiePath is sent for reqPath.
func pathMatch(reqPath, cookiePath string) bool {
	if reqPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
}

// cookiePath is the path a cookie set from u is scoped to: its own Path
// attribute, or the directory of the request path.
func cookiePath(u *url.URL, c *http.Cookie) string {
	if strings.HasPrefix(c.Path, "/") {
		return c.Path
	}
	dir := u.Path
	i := strings.LastIndex(dir, "/")
	if i <= 0 {
		return "/"
	}
	return dir[:i]
}

// Drop forgets the backend cookies of sessionID.
func (s *JarStore) Drop(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, jarKeyPrefix+sessionID)
}

// Package content serves the static marketing pages (about, for writers,
// platform) from markdown files with YAML front matter.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no page exists for a slug.
var ErrNotFound = errors.New("content: page not found")

const defaultTTL = 5 * time.Minute

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Page is a rendered content page.
type Page struct {
	Slug      string
	Title     string
	Summary   string
	Icon      string
	Sections  []string
	HTML      template.HTML
	UpdatedAt time.Time
	CTA       *CTA
}

// CTA is an optional call to action rendered below the body.
type CTA struct {
	Label string
	Href  string
}

type frontMatter struct {
	Title     string   `yaml:"title"`
	Summary   string   `yaml:"summary"`
	Icon      string   `yaml:"icon"`
	UpdatedAt string   `yaml:"updated_at"`
	Sections  []string `yaml:"sections"`
	CTA       *struct {
		Label string `yaml:"label"`
		Href  string `yaml:"href"`
	} `yaml:"cta"`
}

type cacheEntry struct {
	page    Page
	expires time.Time
}

// Store loads pages from dir and caches the rendered result.
type Store struct {
	dir    string
	ttl    time.Duration
	now    func() time.Time
	md     goldmark.Markdown
	policy *bluemonday.Policy

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewStore returns a Store reading <dir>/pages/<slug>.md.
func NewStore(dir string, ttl time.Duration) *Store {
	if strings.TrimSpace(dir) == "" {
		dir = "content"
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{
		dir: dir,
		ttl: ttl,
		now: time.Now,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Typographer),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		policy: NewPolicy(),
		items:  make(map[string]cacheEntry),
	}
}

// NewPolicy returns the sanitiser applied to rendered markdown and to article
// bodies supplied by authors.
func NewPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("figure", "figcaption", "section", "aside")
	policy.AllowAttrs("class").OnElements("figure", "figcaption", "p", "span", "div", "section", "aside")
	policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4")
	policy.AllowAttrs("loading").OnElements("img")
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return policy
}

// Dir returns the content root.
func (s *Store) Dir() string {
	return s.dir
}

// Page returns the page for slug.
func (s *Store) Page(slug string) (Page, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if !slugPattern.MatchString(slug) {
		return Page{}, ErrNotFound
	}

	s.mu.RLock()
	entry, ok := s.items[slug]
	s.mu.RUnlock()
	if ok && s.now().Before(entry.expires) {
		return entry.page, nil
	}

	page, err := s.load(slug)
	if err != nil {
		return Page{}, err
	}
	s.mu.Lock()
	s.items[slug] = cacheEntry{page: page, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return page, nil
}

// Invalidate drops cached pages. With no slugs everything is dropped.
func (s *Store) Invalidate(slugs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(slugs) == 0 {
		s.items = make(map[string]cacheEntry)
		return
	}
	for _, slug := range slugs {
		delete(s.items, slug)
	}
}

func (s *Store) pagesDir() string {
	return filepath.Join(s.dir, "pages")
}

func (s *Store) load(slug string) (Page, error) {
	file := filepath.Join(s.pagesDir(), slug+".md")
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Page{}, ErrNotFound
		}
		return Page{}, fmt.Errorf("content: read %s: %w", file, err)
	}

	fm, body := splitFrontMatter(string(data))
	front := frontMatter{}
	if strings.TrimSpace(fm) != "" {
		if err := yaml.Unmarshal([]byte(fm), &front); err != nil {
			return Page{}, fmt.Errorf("content: parse front matter %s: %w", file, err)
		}
	}

	var buf bytes.Buffer
	if err := s.md.Convert([]byte(body), &buf); err != nil {
		return Page{}, fmt.Errorf("content: render %s: %w", file, err)
	}

	page := Page{
		Slug:     slug,
		Title:    strings.TrimSpace(front.Title),
		Summary:  strings.TrimSpace(front.Summary),
		Icon:     strings.TrimSpace(front.Icon),
		Sections: front.Sections,
		HTML:     template.HTML(s.policy.SanitizeBytes(buf.Bytes())),
	}
	if page.Title == "" {
		page.Title = prettifySlug(slug)
	}
	if front.CTA != nil && front.CTA.Label != "" {
		page.CTA = &CTA{Label: strings.TrimSpace(front.CTA.Label), Href: strings.TrimSpace(front.CTA.Href)}
	}
	page.UpdatedAt = parseDate(front.UpdatedAt)
	if page.UpdatedAt.IsZero() {
		if info, err := os.Stat(file); err == nil {
			page.UpdatedAt = info.ModTime()
		}
	}
	return page, nil
}

func splitFrontMatter(input string) (string, string) {
	input = strings.TrimLeft(input, "\ufeff")
	lines := strings.Split(input, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return "", input
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			fm := strings.Join(lines[1:i], "\n")
			body := strings.Join(lines[i+1:], "\n")
			return fm, strings.TrimLeft(body, "\n\r")
		}
	}
	return "", input
}

func parseDate(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func prettifySlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

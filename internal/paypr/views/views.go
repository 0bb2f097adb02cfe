// Package views renders pages from embedded html/template files and exposes
// them as templ components so handlers stay agnostic of the template engine.
package views

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/content"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/format"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/notify"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/session"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/tours"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const siteName = "Paypr"

// Viewer is the signed-in state the chrome is rendered for.
type Viewer interface {
	User() *api.User
	IsAuthenticated() bool
}

// RequestInfo is the per-request state every template can read.
type RequestInfo struct {
	CSRFToken string
	// Location is the current hash location without '#'.
	Location string
	Path     string
	Viewer   Viewer
	Console  session.Console
	Tours    tours.Completed
}

// User returns the signed-in reader or nil.
func (i RequestInfo) User() *api.User {
	if i.Viewer == nil {
		return nil
	}
	return i.Viewer.User()
}

// Authenticated reports whether a reader is signed in.
func (i RequestInfo) Authenticated() bool {
	return i.Viewer != nil && i.Viewer.IsAuthenticated()
}

// BalanceCents returns the signed-in reader's wallet balance.
func (i RequestInfo) BalanceCents() int64 {
	if u := i.User(); u != nil {
		return u.WalletCents
	}
	return 0
}

type requestInfoKey struct{}

// WithRequestInfo attaches info to ctx.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the info attached to ctx, or the zero value.
func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// Renderer executes the embedded templates.
type Renderer struct {
	tmpl   *template.Template
	policy *bluemonday.Policy
	now    func() time.Time
}

// Option customises a Renderer.
type Option func(*Renderer)

// WithClock overrides the clock used for relative dates.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// New parses the embedded templates.
func New(opts ...Option) (*Renderer, error) {
	r := &Renderer{policy: content.NewPolicy(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	tmpl, err := template.New("views").Funcs(r.funcs()).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("views: parse templates: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// MustNew is New for program start-up.
func MustNew(opts ...Option) *Renderer {
	r, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// SafeHTML sanitises backend-supplied article markup.
func (r *Renderer) SafeHTML(raw string) template.HTML {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return template.HTML(r.policy.Sanitize(raw))
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"cents":    format.Cents,
		"signed":   format.SignedCents,
		"number":   format.Number,
		"percent":  format.Percent,
		"date":     format.Date,
		"datetime": format.DateTime,
		"relative": func(v string) string { return format.Relative(v, r.now()) },
		"dollars":  func(cents int64) string { return fmt.Sprintf("%d.%02d", cents/100, abs(cents%100)) },
		"bpsWhole": func(bps int64) int64 { return bps / 100 },
		"int64":    func(n int) int64 { return int64(n) },
		"intOr": func(v, def int64) int64 {
			if v == 0 {
				return def
			}
			return v
		},
		"pct": func(bps int64) string {
			return strings.TrimSuffix(format.Percent(bps), "%")
		},
		"prev":  func(page int64) int64 { return page - 1 },
		"next":  func(page int64) int64 { return page + 1 },
		"upper": strings.ToUpper,
		"safe":  r.SafeHTML,
		"hash":  func(path string) string { return "#" + path },
		"dict":  dict,
	}
}

func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

type pageData struct {
	Req  RequestInfo
	Data any
}

// Titled is implemented by view models that name their page.
type Titled interface {
	PageTitle() string
}

// PageComponent renders one named page template.
type PageComponent struct {
	r     *Renderer
	name  string
	title string
	data  any
}

// Render implements templ.Component.
func (p *PageComponent) Render(ctx context.Context, w io.Writer) error {
	return p.r.tmpl.ExecuteTemplate(w, p.name, pageData{Req: RequestInfoFrom(ctx), Data: p.data})
}

// Title is the document title for the page.
func (p *PageComponent) Title() string {
	if p.title == "" {
		return siteName
	}
	return p.title + " · " + siteName
}

// Name returns the template name.
func (p *PageComponent) Name() string {
	return p.name
}

// Data returns the view model.
func (p *PageComponent) Data() any {
	return p.data
}

// Page returns the component for template name rendered with data.
func (r *Renderer) Page(name, title string, data any) *PageComponent {
	if t, ok := data.(Titled); ok && title == "" {
		title = t.PageTitle()
	}
	return &PageComponent{r: r, name: name, title: title, data: data}
}

// Empty returns the inline empty-state component.
func (r *Renderer) Empty(state EmptyState) *PageComponent {
	return r.Page("empty_state", state.Title, state)
}

// PageTitle names content pages after their front matter.
func (c ContentPage) PageTitle() string { return c.Page.Title }

// Document is a page wrapped in the application chrome.
type Document struct {
	Content    templ.Component
	Chromeless bool
	Toasts     []notify.Toast
}

type navbarData struct {
	Items         []RenderedNavItem
	Authenticated bool
	Email         string
	BalanceCents  int64
	CSRFToken     string
	Hidden        bool
	OOB           bool
}

type documentData struct {
	Title   string
	Content template.HTML
	Nav     navbarData
	Toasts  []notify.Toast
	OOB     bool
}

// Layout renders a full HTML document.
func (r *Renderer) Layout(doc Document) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		data, err := r.document(ctx, doc, false)
		if err != nil {
			return err
		}
		return r.tmpl.ExecuteTemplate(w, "base", pageData{Req: RequestInfoFrom(ctx), Data: data})
	})
}

// Fragment renders the page body followed by out-of-band swaps for the navbar
// and pending toasts.
func (r *Renderer) Fragment(doc Document) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		data, err := r.document(ctx, doc, true)
		if err != nil {
			return err
		}
		return r.tmpl.ExecuteTemplate(w, "fragment", pageData{Req: RequestInfoFrom(ctx), Data: data})
	})
}

// Toasts renders only the out-of-band toast container.
func (r *Renderer) Toasts(toasts []notify.Toast) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return r.tmpl.ExecuteTemplate(w, "toasts", documentData{Toasts: toasts, OOB: true})
	})
}

func (r *Renderer) document(ctx context.Context, doc Document, oob bool) (documentData, error) {
	info := RequestInfoFrom(ctx)
	body := doc.Content
	if body == nil {
		body = templ.NopComponent
	}
	var buf bytes.Buffer
	if err := body.Render(ctx, &buf); err != nil {
		return documentData{}, err
	}

	title := siteName
	if t, ok := body.(interface{ Title() string }); ok {
		title = t.Title()
	}

	nav := navbarData{
		Items:         BuildNav(info.Path, info.Authenticated(), info.Console),
		Authenticated: info.Authenticated(),
		BalanceCents:  info.BalanceCents(),
		CSRFToken:     info.CSRFToken,
		Hidden:        doc.Chromeless,
		OOB:           oob,
	}
	if u := info.User(); u != nil {
		nav.Email = u.Email
	}
	return documentData{
		Title:   title,
		Content: template.HTML(buf.String()),
		Nav:     nav,
		Toasts:  doc.Toasts,
		OOB:     oob,
	}, nil
}

package pages

import (
	"context"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/auth"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/notify"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/router"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/views"
)

const (
	publisherConsolePath = "/publisher/console"
	defaultAuthorSplit   = 6000
)

// publisherPage loads a console page. A 401 from the backend shows the
// publisher sign-in form instead.
func (p *Pages) publisherPage(ctx context.Context, what string, load func(context.Context, *Scope) (templ.Component, error)) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	component, err := load(ctx, s)
	if api.IsUnauthorized(err) {
		console := s.Session.Console()
		console.Publisher = false
		console.PublisherName = ""
		s.Session.SetConsole(console)
		return p.views.Page("publisher_login", "Publisher Sign-in", views.PublisherLogin{}), nil
	}
	if err != nil {
		return p.loadFailed(ctx, err, what)
	}
	if console := s.Session.Console(); !console.Publisher {
		console.Publisher = true
		s.Session.SetConsole(console)
	}
	return component, nil
}

func (p *Pages) publisherConsole(ctx context.Context, _ *router.Request) (templ.Component, error) {
	return p.publisherPage(ctx, "console", func(ctx context.Context, s *Scope) (templ.Component, error) {
		var model views.PublisherConsole
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			stats, err := s.API.PublisherStats(gctx)
			model.Stats = stats
			return err
		})
		g.Go(func() error {
			articles, err := s.API.PublisherArticles(gctx)
			model.Articles = articles
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return p.views.Page("publisher_console", "Publisher Console", model), nil
	})
}

func (p *Pages) publisherContent(ctx context.Context, _ *router.Request) (templ.Component, error) {
	return p.publisherPage(ctx, "content", func(ctx context.Context, s *Scope) (templ.Component, error) {
		var model views.PublisherContent
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			articles, err := s.API.PublisherArticles(gctx)
			model.Articles = articles
			return err
		})
		g.Go(func() error {
			available, err := s.API.AvailableContent(gctx)
			model.Available = docs(available, "articles", "items")
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return p.views.Page("publisher_content", "Content Management", model), nil
	})
}

func (p *Pages) publisherAuthors(ctx context.Context, _ *router.Request) (templ.Component, error) {
	return p.publisherPage(ctx, "authors", func(ctx context.Context, s *Scope) (templ.Component, error) {
		authors, err := s.API.PublisherAuthors(ctx)
		if err != nil {
			return nil, err
		}
		return p.views.Page("publisher_authors", "Authors", views.PublisherAuthors{Authors: docs(authors, "authors", "items")}), nil
	})
}

func (p *Pages) publisherSettings(ctx context.Context, _ *router.Request) (templ.Component, error) {
	return p.publisherPage(ctx, "settings", func(ctx context.Context, s *Scope) (templ.Component, error) {
		settings, err := s.API.PublisherSettings(ctx)
		if err != nil {
			return nil, err
		}
		if nested := settings.Doc("publisher"); nested != nil {
			settings = nested
		}
		return p.views.Page("publisher_settings", "Publisher Settings", views.PublisherSettings{Settings: settings}), nil
	})
}

func (p *Pages) publisherVerify(ctx context.Context, req *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(req.Param("token"))
	if token == "" {
		s.Notifier.Show(notify.Error, "Invalid or expired sign-in link")
		return nil, router.Redirect(publisherConsolePath)
	}
	result, err := s.API.VerifyPublisherMagicLink(ctx, token)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.Notifier.Show(notify.Error, api.MessageOr(err, "Invalid or expired sign-in link"))
		return nil, router.Redirect(publisherConsolePath)
	}
	if _, err := s.Session.RotateCSRFToken(); err != nil {
		return nil, err
	}
	name := result.Doc("publisher").String("name")
	if name == "" {
		name = result.String("publisher_name")
	}
	console := s.Session.Console()
	console.Publisher = true
	console.PublisherName = name
	s.Session.SetConsole(console)
	if name != "" {
		s.Notifier.Show(notify.Success, "Welcome back, "+name+"!")
	} else {
		s.Notifier.Show(notify.Success, "Signed in to the publisher console")
	}
	return nil, router.Redirect(publisherConsolePath)
}

func (p *Pages) actionPublisherMagicLink(ctx context.Context, req ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	email := strings.TrimSpace(req.Form.Get("email"))
	if email == "" {
		s.Notifier.Show(notify.Error, "Please enter your email")
		return publisherConsolePath, nil
	}
	result, err := s.API.RequestPublisherMagicLink(ctx, email)
	if err != nil {
		return p.actionFailed(ctx, s, err, "Failed to send sign-in link", publisherConsolePath)
	}
	s.Notifier.Show(notify.Success, "Sign-in link sent! Check your email.")
	if result.DemoLink != "" {
		link := auth.RebaseLink(result.DemoLink, p.baseURL)
		p.log(ctx).Info("demo publisher link issued", zap.String("link", link))
		s.Notifier.Show(notify.Info, "Demo link: "+link)
	}
	return publisherConsolePath, nil
}

func (p *Pages) actionPublisherAddContent(ctx context.Context, req ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	id, err := formInt(req.Form, "article_id")
	if err != nil {
		return "", err
	}
	if _, err := s.API.AddContent(ctx, id, api.Document{}); err != nil {
		return p.actionFailed(ctx, s, err, "Failed to add content", "/publisher/content")
	}
	s.Notifier.Show(notify.Success, "Content added to your catalog!")
	return "/publisher/content", nil
}

func (p *Pages) actionPublisherInvite(ctx context.Context, req ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	email := strings.TrimSpace(req.Form.Get("email"))
	if email == "" {
		s.Notifier.Show(notify.Error, "Please enter an email address")
		return "/publisher/authors", nil
	}
	result, err := s.API.InviteAuthor(ctx, email, strings.TrimSpace(req.Form.Get("message")))
	if err != nil {
		return p.actionFailed(ctx, s, err, "Failed to send invitation", "/publisher/authors")
	}
	s.Notifier.Show(notify.Success, firstNonEmpty(result.String("message"), "Invitation sent to "+email))
	return "/publisher/authors", nil
}

func (p *Pages) actionPublisherSettings(ctx context.Context, req ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	form := req.Form
	name := strings.TrimSpace(form.Get("name"))
	if name == "" {
		s.Notifier.Show(notify.Error, "Publication name is required")
		return "/publisher/settings", nil
	}
	price, err := formCents(form, "default_price")
	if err != nil || price <= 0 {
		s.Notifier.Show(notify.Error, "Invalid default price")
		return "/publisher/settings", nil
	}
	split := formBasisPoints(form, "author_split", defaultAuthorSplit)
	if split < 0 || split > 10000 {
		split = defaultAuthorSplit
	}
	settings := api.Document{
		"name":                     name,
		"default_price_cents":      price,
		"accepts_submissions":      formBool(form, "accepts_submissions"),
		"default_author_split_bps": split,
		"logo_url":                 strings.TrimSpace(form.Get("logo_url")),
		"accent_color":             strings.TrimSpace(form.Get("accent_color")),
	}
	if _, err := s.API.UpdatePublisherSettings(ctx, settings); err != nil {
		return p.actionFailed(ctx, s, err, "Failed to save settings", "/publisher/settings")
	}
	console := s.Session.Console()
	console.PublisherName = name
	s.Session.SetConsole(console)
	s.Notifier.Show(notify.Success, "Settings saved successfully!")
	return publisherConsolePath, nil
}

// ExportPublisherTransactions returns the publisher ledger as CSV text.
func ExportPublisherTransactions(ctx context.Context) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	payload, err := s.API.PublisherTransactions(ctx, "csv")
	if err != nil {
		s.Notifier.Show(notify.Error, "Failed to export CSV")
		return "", err
	}
	s.Notifier.Show(notify.Success, "CSV exported successfully")
	if payload.IsJSON() {
		return string(payload.JSON), nil
	}
	return payload.Text, nil
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

package pages

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/a-h/templ"
	"golang.org/x/sync/errgroup"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/notify"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/router"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/views"
)

const (
	authorDashboardPath = "/author/dashboard"
	previewLength       = 500
	defaultAuthorPrice  = 199
	statusPublished     = "published"
	statusDraft         = "draft"
)

var authorStatuses = []string{"", statusPublished, statusDraft}

func (p *Pages) authorDashboard(ctx context.Context, req *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Auth.RequireAuth(); err != nil {
		return nil, err
	}
	profile, err := s.API.AuthorProfile(ctx)
	if api.IsStatus(err, http.StatusNotFound) {
		return p.views.Page("author_register", "Become an Author", views.AuthorRegister{Prices: views.PricePresets}), nil
	}
	if err != nil {
		return p.loadFailed(ctx, err, "author profile")
	}

	status := req.Param("status")
	if status != statusPublished && status != statusDraft {
		status = ""
	}
	model := views.AuthorDashboard{Profile: profile.Doc("profile"), Status: status, Statuses: authorStatuses}
	if model.Profile == nil {
		model.Profile = profile
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		earnings, err := s.API.AuthorEarnings(gctx)
		if err != nil {
			return err
		}
		model.Earnings = earnings
		return nil
	})
	g.Go(func() error {
		content, err := s.API.AuthorContent(gctx, status)
		if err != nil {
			return err
		}
		model.Content = docs(content, "items", "content", "articles")
		return nil
	})
	if err := g.Wait(); err != nil {
		return p.loadFailed(ctx, err, "dashboard")
	}

	if model.Earnings.Has("published_count") {
		model.Published = model.Earnings.Int("published_count")
	} else {
		for _, item := range model.Content {
			if item.String("status") == statusPublished {
				model.Published++
			}
		}
	}
	return p.views.Page("author_dashboard", "Author Dashboard", model), nil
}

func (p *Pages) authorSubmit(ctx context.Context, _ *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Auth.RequireAuth(); err != nil {
		return nil, err
	}
	profile, err := s.API.AuthorProfile(ctx)
	if api.IsStatus(err, http.StatusNotFound) {
		s.Notifier.Show(notify.Info, "Create your author profile first")
		return nil, router.Redirect(authorDashboardPath)
	}
	if err != nil {
		return p.loadFailed(ctx, err, "author profile")
	}
	model := views.AuthorSubmit{Profile: profile.Doc("profile"), Prices: views.PricePresets}
	if model.Profile == nil {
		model.Profile = profile
	}
	list, err := s.API.Publishers(ctx, map[string][]string{"limit": {strconv.Itoa(directoryLimit)}})
	if err != nil {
		return p.loadFailed(ctx, err, "publishers")
	}
	model.Publishers = list.Items
	return p.views.Page("author_submit", "Submit Article", model), nil
}

func (p *Pages) authorProfile(ctx context.Context, req *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := s.API.AuthorProfilePublic(ctx, req.Param("id"))
	if api.IsStatus(err, http.StatusNotFound) {
		return p.NotFound(ctx, req)
	}
	if err != nil {
		return p.loadFailed(ctx, err, "author")
	}
	if nested := profile.Doc("profile"); nested != nil {
		if articles, ok := profile["articles"]; ok {
			nested["articles"] = articles
		}
		profile = nested
	}
	return p.views.Page("author_profile", profile.String("display_name"), views.AuthorProfile{Profile: profile}), nil
}

func (p *Pages) actionAuthorRegister(ctx context.Context, req ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	if err := s.Auth.RequireAuth(); err != nil {
		return "", err
	}
	name := strings.TrimSpace(req.Form.Get("display_name"))
	if name == "" {
		s.Notifier.Show(notify.Error, "Display name is required")
		return authorDashboardPath, nil
	}
	profile := api.Document{
		"display_name":        name,
		"bio":                 strings.TrimSpace(req.Form.Get("bio")),
		"default_price_cents": formIntOr(req.Form, "default_price_cents", defaultAuthorPrice),
	}
	if _, err := s.API.RegisterAuthor(ctx, profile); err != nil {
		return p.actionFailed(ctx, s, err, "Failed to create author profile", authorDashboardPath)
	}
	s.Notifier.Show(notify.Success, "Author profile created!")
	return authorDashboardPath, nil
}

func (p *Pages) actionAuthorSubmit(ctx context.Context, req ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	if err := s.Auth.RequireAuth(); err != nil {
		return "", err
	}
	form := req.Form
	title := strings.TrimSpace(form.Get("title"))
	body := strings.TrimSpace(form.Get("body_html"))
	if title == "" || body == "" {
		s.Notifier.Show(notify.Error, "Title and content are required")
		return "/author/submit", nil
	}

	submission := api.Document{
		"title":        title,
		"dek":          strings.TrimSpace(form.Get("dek")),
		"cover_url":    strings.TrimSpace(form.Get("cover_url")),
		"body_html":    body,
		"body_preview": preview(body, previewLength),
		"price_cents":  formIntOr(form, "price_cents", defaultAuthorPrice),
		"media_type":   firstNonEmpty(form.Get("media_type"), "html"),
		"status":       firstNonEmpty(form.Get("status"), statusDraft),
	}
	if publisherID := formIntOr(form, "publisher_id", 0); publisherID > 0 {
		submission["publisher_id"] = publisherID
		submission["license_type"] = firstNonEmpty(form.Get("license_type"), "non_exclusive")
	} else {
		submission["license_type"] = "independent"
	}

	if _, err := s.API.SubmitContent(ctx, submission); err != nil {
		return p.actionFailed(ctx, s, err, "Failed to submit article", "/author/submit")
	}
	s.Notifier.Show(notify.Success, "Article submitted successfully!")
	return authorDashboardPath, nil
}

func (p *Pages) actionAuthorDelete(ctx context.Context, req ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	if err := s.Auth.RequireAuth(); err != nil {
		return "", err
	}
	id, err := formInt(req.Form, "article_id")
	if err != nil {
		return "", err
	}
	if err := s.API.DeleteContent(ctx, strconv.FormatInt(id, 10)); err != nil {
		return p.actionFailed(ctx, s, err, "Failed to delete article", authorDashboardPath)
	}
	s.Notifier.Show(notify.Success, "Article deleted")
	return stay(firstNonEmpty(req.Current, authorDashboardPath)), nil
}

// preview returns at most n runes of html.
func preview(html string, n int) string {
	if utf8.RuneCountInString(html) <= n {
		return html
	}
	r := []rune(html)
	return string(r[:n])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

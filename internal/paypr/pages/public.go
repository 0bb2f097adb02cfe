package pages

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/content"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/notify"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/router"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/tours"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/views"
)

// ContentSlugs are the markdown pages served at /<slug>.
var ContentSlugs = []string{"about", "for-writers", "platform"}

const (
	newsstandPublisherLimit = 60
	featuredLimit           = 6
	directoryLimit          = 100
	publisherArticleLimit   = 50
)

func (p *Pages) newsstand(ctx context.Context, req *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	model := views.Newsstand{
		Category: req.Param("category"),
		Query:    strings.TrimSpace(req.Param("q")),
		ShowTour: !views.RequestInfoFrom(ctx).Tours.HasCompleted(tours.Reader),
	}

	params := url.Values{"limit": {strconv.Itoa(newsstandPublisherLimit)}}
	if model.Category != "" {
		params.Set("category", model.Category)
	}
	if model.Query != "" {
		params.Set("q", model.Query)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.API.Publishers(gctx, params)
		if err != nil {
			return err
		}
		model.Publishers = list.Items
		return nil
	})
	g.Go(func() error {
		list, err := s.API.Articles(gctx, url.Values{"featured": {"1"}, "limit": {strconv.Itoa(featuredLimit)}})
		if err != nil {
			p.log(ctx).Debug("featured articles unavailable", zap.Error(err))
			return nil
		}
		model.Featured = list.Items
		return nil
	})
	g.Go(func() error {
		categories, err := s.API.Categories(gctx)
		if err != nil {
			p.log(ctx).Debug("categories unavailable", zap.Error(err))
			return nil
		}
		model.Categories = categories
		return nil
	})
	if err := g.Wait(); err != nil {
		return p.loadFailed(ctx, err, "publishers")
	}
	return p.views.Page("newsstand", "Newsstand", model), nil
}

func (p *Pages) publishers(ctx context.Context, _ *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.API.Publishers(ctx, url.Values{"limit": {strconv.Itoa(directoryLimit)}})
	if err != nil {
		return p.loadFailed(ctx, err, "publishers")
	}
	return p.views.Page("publishers", "Publishers", views.PublisherDirectory{Publishers: list.Items}), nil
}

func (p *Pages) publications(ctx context.Context, _ *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.API.PublicationsShowcase(ctx)
	if err != nil {
		return p.loadFailed(ctx, err, "publications")
	}
	return p.views.Page("publications", "Publications", views.Publications{Items: items}), nil
}

func (p *Pages) publisher(ctx context.Context, req *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	slug := req.Param("slug")

	var model views.PublisherPage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pub, err := s.API.Publisher(gctx, slug)
		if err != nil {
			return err
		}
		model.Publisher = pub
		return nil
	})
	g.Go(func() error {
		list, err := s.API.Articles(gctx, url.Values{"publisher": {slug}, "limit": {strconv.Itoa(publisherArticleLimit)}})
		if err != nil {
			return err
		}
		model.Articles = list.Items
		return nil
	})
	if err := g.Wait(); err != nil {
		if api.IsStatus(err, 404) {
			return p.NotFound(ctx, req)
		}
		return p.loadFailed(ctx, err, "publisher")
	}
	return p.views.Page("publisher", model.Publisher.Name, model), nil
}

func (p *Pages) article(ctx context.Context, req *router.Request) (templ.Component, error) {
	model, err := p.articleModel(ctx, req.Param("id"))
	if err != nil {
		if api.IsStatus(err, 404) {
			return p.NotFound(ctx, req)
		}
		return p.loadFailed(ctx, err, "article")
	}
	if model.Article.Publisher != nil {
		model.BackHref = "#/p/" + model.Article.Publisher.Slug
	}
	return p.views.Page("article", model.Article.Title, model), nil
}

// articleModel loads an article and attaches the refund countdown when the
// visitor unlocked it within the refund window.
func (p *Pages) articleModel(ctx context.Context, id string) (views.ArticlePage, error) {
	s, err := scope(ctx)
	if err != nil {
		return views.ArticlePage{}, err
	}
	article, err := s.API.Article(ctx, id)
	if err != nil {
		return views.ArticlePage{}, err
	}
	model := views.ArticlePage{
		Article: article,
		Body:    p.views.SafeHTML(article.BodyHTML),
		Preview: p.views.SafeHTML(article.BodyPreview),
	}

	receipt := s.Session.Receipt()
	if !receipt.For(article.ID) {
		return model, nil
	}
	now := p.now()
	if !article.Unlocked && receipt.AccessToken != "" {
		valid, err := s.API.VerifyPayment(ctx, receipt.AccessToken, article.ID)
		if err != nil || !valid {
			s.Session.SetReceipt(nil)
			return model, nil
		}
	}
	if article.Unlocked && receipt.RefundOpen(now) && receipt.TransactionID != 0 {
		model.Refund = &views.RefundWidget{
			TransactionID:    receipt.TransactionID,
			Countdown:        receipt.Countdown(now),
			Urgency:          receipt.Urgency(now),
			RemainingSeconds: int64(receipt.Remaining(now).Seconds()),
		}
	}
	return model, nil
}

func (p *Pages) contact(context.Context, *router.Request) (templ.Component, error) {
	return p.views.Page("contact", "Contact", nil), nil
}

func (p *Pages) contentPage(slug string) router.Handler {
	return func(ctx context.Context, req *router.Request) (templ.Component, error) {
		if p.content == nil {
			return p.NotFound(ctx, req)
		}
		page, err := p.content.Page(slug)
		if errors.Is(err, content.ErrNotFound) {
			return p.NotFound(ctx, req)
		}
		if err != nil {
			return p.loadFailed(ctx, err, "page")
		}
		return p.views.Page("content_page", "", views.ContentPage{Page: page}), nil
	}
}

func (p *Pages) actionContact(ctx context.Context, req ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	msg := api.ContactMessage{
		Name:    strings.TrimSpace(req.Form.Get("name")),
		Email:   strings.TrimSpace(req.Form.Get("email")),
		Subject: strings.TrimSpace(req.Form.Get("subject")),
		Message: strings.TrimSpace(req.Form.Get("message")),
	}
	if msg.Name == "" || msg.Email == "" || msg.Message == "" {
		s.Notifier.Show(notify.Error, "Please fill in your name, email and message")
		return "/contact", nil
	}
	if err := s.API.SubmitContact(ctx, msg); err != nil {
		return p.actionFailed(ctx, s, err, "Failed to send message", "/contact")
	}
	s.Notifier.Show(notify.Success, "Message sent! We'll get back to you soon.")
	return "/", nil
}

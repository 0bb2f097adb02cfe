package pages

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/a-h/templ"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/router"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/views"
)

const showcaseContentLimit = 50

func (p *Pages) showcaseSite(ctx context.Context, s *Scope, slug string) (api.Document, error) {
	site, err := s.API.ShowcaseSite(ctx, slug)
	if err != nil {
		return nil, err
	}
	if nested := site.Doc("site"); nested != nil {
		return nested, nil
	}
	return site, nil
}

func (p *Pages) showcase(ctx context.Context, req *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	slug := req.Param("slug")
	model := views.Showcase{Slug: slug}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		site, err := p.showcaseSite(gctx, s, slug)
		model.Site = site
		return err
	})
	g.Go(func() error {
		content, err := s.API.ShowcaseContent(gctx, slug, url.Values{"limit": {strconv.Itoa(showcaseContentLimit)}})
		if err != nil {
			return err
		}
		model.Items = docs(content, "items", "articles")
		return nil
	})
	g.Go(func() error {
		stats, err := s.API.ShowcaseStats(gctx, slug)
		if err != nil {
			p.log(ctx).Debug("showcase stats unavailable", zap.String("slug", slug), zap.Error(err))
			return nil
		}
		model.Stats = stats
		return nil
	})
	if err := g.Wait(); err != nil {
		if api.IsStatus(err, http.StatusNotFound) {
			return p.NotFound(ctx, req)
		}
		return p.loadFailed(ctx, err, "showcase")
	}
	return p.views.Page("showcase", firstNonEmpty(model.Site.String("name"), "Showcase"), model), nil
}

func (p *Pages) showcaseArticle(ctx context.Context, req *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	slug := req.Param("slug")
	model := views.ShowcaseArticle{Slug: slug}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		site, err := p.showcaseSite(gctx, s, slug)
		model.Site = site
		return err
	})
	g.Go(func() error {
		article, err := p.articleModel(gctx, req.Param("id"))
		model.Article = article
		return err
	})
	if err := g.Wait(); err != nil {
		if api.IsStatus(err, http.StatusNotFound) {
			return p.NotFound(ctx, req)
		}
		return p.loadFailed(ctx, err, "article")
	}
	model.Article.Showcase = slug
	model.Article.BackHref = "#/showcase/" + slug
	return p.views.Page("showcase_article", model.Article.Article.Title, model), nil
}

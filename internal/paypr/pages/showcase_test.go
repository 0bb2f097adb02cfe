package pages

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/views"
)

func TestShowcaseRendersWithoutStats(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"GET /showcase/{slug}": reply(http.StatusOK, map[string]any{"site": map[string]any{"name": "Acme Weekly", "accent": "#123456"}}),
		"GET /showcase/{slug}/content": func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "50", r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, map[string]any{"articles": []any{map[string]any{"id": 1, "title": "Launch"}}})
		},
		"GET /showcase/{slug}/stats": reply(http.StatusInternalServerError, map[string]any{"error": "stats offline"}),
	}, nil)

	res, page := f.dispatch(t, "/showcase/acme")

	require.True(t, res.Chromeless())
	require.Equal(t, "showcase", page.Name())
	require.Equal(t, "Acme Weekly", page.Title())
	model := page.Data().(views.Showcase)
	require.Equal(t, "acme", model.Slug)
	require.Len(t, model.Items, 1)
	require.Nil(t, model.Stats)
	require.Equal(t, "#123456", model.Site.String("accent"))
}

func TestShowcaseIncludesStats(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"GET /showcase/{slug}":         reply(http.StatusOK, map[string]any{"name": "Acme Weekly"}),
		"GET /showcase/{slug}/content": reply(http.StatusOK, map[string]any{"items": []any{}}),
		"GET /showcase/{slug}/stats":   reply(http.StatusOK, map[string]any{"articles": 12, "readers": 340}),
	}, nil)

	_, page := f.dispatch(t, "/showcase/acme")

	model := page.Data().(views.Showcase)
	require.Equal(t, "Acme Weekly", model.Site.String("name"))
	require.Equal(t, int64(340), model.Stats.Int("readers"))
}

func TestUnknownShowcaseRendersNotFound(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"GET /showcase/{slug}":         reply(http.StatusNotFound, map[string]any{"error": "Site not found"}),
		"GET /showcase/{slug}/content": reply(http.StatusOK, map[string]any{"items": []any{}}),
		"GET /showcase/{slug}/stats":   reply(http.StatusOK, map[string]any{}),
	}, nil)

	_, page := f.dispatch(t, "/showcase/missing")

	require.Equal(t, "not_found", page.Name())
}

func TestShowcaseContentFailureRetries(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"GET /showcase/{slug}":         reply(http.StatusOK, map[string]any{"name": "Acme Weekly"}),
		"GET /showcase/{slug}/content": reply(http.StatusBadGateway, map[string]any{"error": "backend unavailable"}),
		"GET /showcase/{slug}/stats":   reply(http.StatusOK, map[string]any{}),
	}, nil)

	_, page := f.dispatch(t, "/showcase/acme")

	require.Equal(t, "empty_state", page.Name())
	require.Equal(t, "Failed to load showcase", page.Data().(views.EmptyState).Title)
}

func TestShowcaseArticle(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"GET /showcase/{slug}": reply(http.StatusOK, map[string]any{"site": map[string]any{"name": "Acme Weekly"}}),
		"GET /api/articles/{id}": func(w http.ResponseWriter, r *http.Request) {
			if r.PathValue("id") != "7" {
				writeJSON(w, http.StatusNotFound, map[string]any{"error": "Article not found"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": 7, "title": "Deep Dive", "price_cents": 99})
		},
	}, reader(500))

	res, page := f.dispatch(t, "/showcase/acme/article/7")

	require.True(t, res.Chromeless())
	require.Equal(t, "showcase_article", page.Name())
	require.Equal(t, "Deep Dive", page.Title())
	model := page.Data().(views.ShowcaseArticle)
	require.Equal(t, "Acme Weekly", model.Site.String("name"))
	require.Equal(t, "acme", model.Article.Showcase)
	require.Equal(t, "#/showcase/acme", model.Article.BackHref)

	_, page = f.dispatch(t, "/showcase/acme/article/8")
	require.Equal(t, "not_found", page.Name())
}

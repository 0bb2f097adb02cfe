package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// RequestPublisherMagicLink asks for a sign-in link for a publisher account.
func (c *Client) RequestPublisherMagicLink(ctx context.Context, email string) (*MagicLinkRequest, error) {
	var out MagicLinkRequest
	if err := c.sendJSON(ctx, http.MethodPost, "/publisher/auth/magic-link/request", map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPublisherMagicLink signs a publisher in from a magic-link token.
func (c *Client) VerifyPublisherMagicLink(ctx context.Context, token string) (Document, error) {
	return c.document(ctx, http.MethodPost, "/publisher/auth/magic-link/verify", map[string]string{"token": token})
}

// PublisherStats returns all-time and 7-day revenue per publisher.
func (c *Client) PublisherStats(ctx context.Context) ([]Document, error) {
	doc, err := c.document(ctx, http.MethodGet, "/publisher/console/stats", nil)
	if err != nil {
		return nil, err
	}
	return doc.Docs("stats"), nil
}

// PublisherTransactions returns the publisher ledger. format "csv" yields a text payload.
func (c *Client) PublisherTransactions(ctx context.Context, format string) (*Payload, error) {
	params := url.Values{}
	if f := strings.TrimSpace(format); f != "" {
		params.Set("format", f)
	}
	return c.Get(ctx, withQuery("/publisher/console/transactions", params))
}

// PublisherArticles returns per-article performance for the publisher.
func (c *Client) PublisherArticles(ctx context.Context) ([]Document, error) {
	doc, err := c.document(ctx, http.MethodGet, "/publisher/console/articles", nil)
	if err != nil {
		return nil, err
	}
	return doc.Docs("articles"), nil
}

// AvailableContent lists author submissions a publisher may add to its catalogue.
func (c *Client) AvailableContent(ctx context.Context) (Document, error) {
	return c.document(ctx, http.MethodGet, "/publisher/available-content", nil)
}

// AddContent adds an author submission to the publisher's catalogue.
func (c *Client) AddContent(ctx context.Context, articleID int64, body Document) (Document, error) {
	return c.document(ctx, http.MethodPost, "/publisher/add-content/"+formatID(articleID), body)
}

// UpdateContentSplits configures the revenue split of one article.
func (c *Client) UpdateContentSplits(ctx context.Context, articleID int64, splits map[string]int64) (Document, error) {
	return c.document(ctx, http.MethodPut, "/publisher/content/"+formatID(articleID)+"/splits", Document{"splits": splits})
}

// PublisherAuthors lists authors contributing to the publisher.
func (c *Client) PublisherAuthors(ctx context.Context) (Document, error) {
	return c.document(ctx, http.MethodGet, "/publisher/authors", nil)
}

// InviteAuthor invites an author by email.
func (c *Client) InviteAuthor(ctx context.Context, email, message string) (Document, error) {
	return c.document(ctx, http.MethodPost, "/publisher/invite-author", Document{"email": email, "message": message})
}

// PublisherSettings returns the signed-in publisher's profile settings.
func (c *Client) PublisherSettings(ctx context.Context) (Document, error) {
	return c.document(ctx, http.MethodGet, "/publisher/settings", nil)
}

// UpdatePublisherSettings saves the publisher's profile settings.
func (c *Client) UpdatePublisherSettings(ctx context.Context, settings Document) (Document, error) {
	return c.document(ctx, http.MethodPut, "/publisher/settings", settings)
}

// AdminLogin opens an admin session.
func (c *Client) AdminLogin(ctx context.Context, username, password string) (Document, error) {
	return c.document(ctx, http.MethodPost, "/admin/auth/login", map[string]string{"username": username, "password": password})
}

// AdminLogout closes the admin session.
func (c *Client) AdminLogout(ctx context.Context) error {
	return c.sendJSON(ctx, http.MethodPost, "/admin/auth/logout", nil, nil)
}

// Theme returns the site theme settings.
func (c *Client) Theme(ctx context.Context) (Document, error) {
	return c.document(ctx, http.MethodGet, "/admin/theme", nil)
}

// UpdateTheme replaces the site theme settings.
func (c *Client) UpdateTheme(ctx context.Context, theme Document) error {
	return c.sendJSON(ctx, http.MethodPut, "/admin/theme", theme, nil)
}

// SiteSettings returns the editable site copy and settings.
func (c *Client) SiteSettings(ctx context.Context) (Document, error) {
	return c.document(ctx, http.MethodGet, "/admin/site", nil)
}

// UpdateSiteSettings replaces the site settings.
func (c *Client) UpdateSiteSettings(ctx context.Context, settings Document) error {
	return c.sendJSON(ctx, http.MethodPut, "/admin/site", settings, nil)
}

// SplitRules returns the revenue split rules of a publisher.
func (c *Client) SplitRules(ctx context.Context, publisherID string) (Document, error) {
	return c.document(ctx, http.MethodGet, "/admin/splits/"+escape(publisherID), nil)
}

// UpdateSplitRules replaces the revenue split rules of a publisher.
func (c *Client) UpdateSplitRules(ctx context.Context, publisherID string, rules []Document) (Document, error) {
	return c.document(ctx, http.MethodPut, "/admin/splits/"+escape(publisherID), Document{"rules": rules})
}

// AdminUsers lists readers. Recognised params: page, per_page, search.
func (c *Client) AdminUsers(ctx context.Context, params url.Values) (Document, error) {
	return c.document(ctx, http.MethodGet, withQuery("/admin/users", params), nil)
}

// AdminUser returns one reader with recent transactions.
func (c *Client) AdminUser(ctx context.Context, userID string) (Document, error) {
	return c.document(ctx, http.MethodGet, "/admin/users/"+escape(userID), nil)
}

// CreditUser adjusts a reader's wallet. Negative amounts debit.
func (c *Client) CreditUser(ctx context.Context, userID string, amountCents int64, note string) (Document, error) {
	body := map[string]any{"amount_cents": amountCents, "note": note}
	var out Document
	if err := c.sendIdempotent(ctx, "/admin/users/"+escape(userID)+"/credit", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterAuthor creates an author profile for the signed-in reader.
func (c *Client) RegisterAuthor(ctx context.Context, profile Document) (Document, error) {
	return c.document(ctx, http.MethodPost, "/author/register", profile)
}

// AuthorProfile returns the signed-in reader's author profile.
func (c *Client) AuthorProfile(ctx context.Context) (Document, error) {
	return c.document(ctx, http.MethodGet, "/author/profile", nil)
}

// AuthorProfilePublic returns the public profile of an author.
func (c *Client) AuthorProfilePublic(ctx context.Context, authorID string) (Document, error) {
	return c.document(ctx, http.MethodGet, "/author/profile/"+escape(authorID), nil)
}

// UpdateAuthorProfile edits the signed-in author's profile.
func (c *Client) UpdateAuthorProfile(ctx context.Context, profile Document) (Document, error) {
	return c.document(ctx, http.MethodPut, "/author/profile", profile)
}

// AuthorContent lists the author's submissions, optionally filtered by status.
func (c *Client) AuthorContent(ctx context.Context, status string) (Document, error) {
	params := url.Values{}
	if s := strings.TrimSpace(status); s != "" {
		params.Set("status", s)
	}
	return c.document(ctx, http.MethodGet, withQuery("/author/content", params), nil)
}

// SubmitContent submits a new article.
func (c *Client) SubmitContent(ctx context.Context, content Document) (Document, error) {
	return c.document(ctx, http.MethodPost, "/author/content/submit", content)
}

// UpdateContent edits a submission.
func (c *Client) UpdateContent(ctx context.Context, articleID string, content Document) (Document, error) {
	return c.document(ctx, http.MethodPut, "/author/content/"+escape(articleID), content)
}

// DeleteContent withdraws a submission.
func (c *Client) DeleteContent(ctx context.Context, articleID string) error {
	_, err := c.Delete(ctx, "/author/content/"+escape(articleID))
	return err
}

// AuthorEarnings summarises the author's revenue.
func (c *Client) AuthorEarnings(ctx context.Context) (Document, error) {
	return c.document(ctx, http.MethodGet, "/author/earnings", nil)
}

// ShowcaseSite returns the branding of a white-label showcase site.
func (c *Client) ShowcaseSite(ctx context.Context, slug string) (Document, error) {
	return c.showcase(ctx, "/"+escape(slug))
}

// ShowcaseContent lists the articles of a showcase site.
func (c *Client) ShowcaseContent(ctx context.Context, slug string, params url.Values) (Document, error) {
	return c.showcase(ctx, withQuery("/"+escape(slug)+"/content", params))
}

// ShowcaseStats returns public counters for a showcase site.
func (c *Client) ShowcaseStats(ctx context.Context, slug string) (Document, error) {
	return c.showcase(ctx, "/"+escape(slug)+"/stats")
}

func (c *Client) showcase(ctx context.Context, endpoint string) (Document, error) {
	var out Document
	if err := c.callJSON(ctx, http.MethodGet, showcasePrefix, endpoint, nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) document(ctx context.Context, method, endpoint string, body any) (Document, error) {
	var out Document
	if err := c.sendJSON(ctx, method, endpoint, body, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = Document{}
	}
	return out, nil
}

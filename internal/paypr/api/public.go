package api

import (
	"context"
	"net/http"
	"net/url"
)

// Publishers lists publishers. Recognised params: offset, limit, category, q.
func (c *Client) Publishers(ctx context.Context, params url.Values) (*PublisherList, error) {
	var out PublisherList
	if err := c.getCached(ctx, withQuery("/publishers", params), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Publisher fetches one publisher profile by slug.
func (c *Client) Publisher(ctx context.Context, slug string) (*Publisher, error) {
	var out Publisher
	if err := c.getJSON(ctx, "/publishers/"+escape(slug), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Articles lists articles. Recognised params: offset, limit, publisher, category, featured.
func (c *Client) Articles(ctx context.Context, params url.Values) (*ArticleList, error) {
	var out ArticleList
	if err := c.getJSON(ctx, withQuery("/articles", params), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Article fetches an article with the caller's unlock status.
func (c *Client) Article(ctx context.Context, id string) (*Article, error) {
	var out Article
	if err := c.getJSON(ctx, "/articles/"+escape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Categories lists publisher categories.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var out CategoryList
	if err := c.getCached(ctx, "/categories", &out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}

// PublicationsShowcase returns the marketing list of publications on the platform.
func (c *Client) PublicationsShowcase(ctx context.Context) ([]Document, error) {
	var out Document
	if err := c.getCached(ctx, "/publications-showcase", &out); err != nil {
		return nil, err
	}
	return out.Docs("publications"), nil
}

// ContactMessage is a message sent through the contact form.
type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// SubmitContact forwards a contact-form message.
func (c *Client) SubmitContact(ctx context.Context, msg ContactMessage) error {
	return c.sendJSON(ctx, http.MethodPost, "/contact", msg, nil)
}

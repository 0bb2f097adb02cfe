package api

// User is the signed-in reader as reported by the backend.
type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	WalletCents int64  `json:"wallet_cents"`
}

// SessionState is the /auth/me response.
type SessionState struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user,omitempty"`
}

// LoginResult is returned by the email and magic-link login endpoints.
type LoginResult struct {
	OK   bool  `json:"ok"`
	User *User `json:"user,omitempty"`
}

// MagicLinkRequest is returned when a magic link was issued. DemoLink is only
// populated by demo backends that do not send email.
type MagicLinkRequest struct {
	OK       bool   `json:"ok"`
	DemoLink string `json:"demo_link,omitempty"`
}

// OK is the generic acknowledgement body.
type OK struct {
	OK bool `json:"ok"`
}

// PublisherSummary is a newsstand tile.
type PublisherSummary struct {
	ID          int64  `json:"id,omitempty"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	HeroURL     string `json:"hero_url,omitempty"`
	Category    string `json:"category,omitempty"`
	AccentColor string `json:"accent_color,omitempty"`
}

// PublisherList wraps a page of publishers.
type PublisherList struct {
	Items []PublisherSummary `json:"items"`
}

// Publisher is the full publisher profile.
type Publisher struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Slug              string `json:"slug"`
	LogoURL           string `json:"logo_url,omitempty"`
	HeroURL           string `json:"hero_url,omitempty"`
	DefaultPriceCents int64  `json:"default_price_cents"`
	Category          string `json:"category,omitempty"`
	AccentColor       string `json:"accent_color,omitempty"`
	LayoutStyle       string `json:"layout_style,omitempty"`
	Strapline         string `json:"strapline,omitempty"`
	ArticleCount      int    `json:"article_count"`
}

// ArticleSummary is an entry in an article listing.
type ArticleSummary struct {
	ID            int64  `json:"id"`
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Dek           string `json:"dek,omitempty"`
	Author        string `json:"author,omitempty"`
	MediaType     string `json:"media_type,omitempty"`
	PriceCents    int64  `json:"price_cents"`
	CoverURL      string `json:"cover_url,omitempty"`
	PublisherSlug string `json:"publisher_slug,omitempty"`
	PublisherName string `json:"publisher_name,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// ArticleList wraps a page of articles.
type ArticleList struct {
	Items []ArticleSummary `json:"items"`
}

// ArticlePublisher is the publisher block embedded in an article.
type ArticlePublisher struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	AccentColor string `json:"accent_color,omitempty"`
}

// Article is the article detail. Exactly one of BodyHTML (unlocked) or
// BodyPreview (locked) is populated.
type Article struct {
	ID          int64             `json:"id"`
	Slug        string            `json:"slug"`
	Title       string            `json:"title"`
	Dek         string            `json:"dek,omitempty"`
	Author      string            `json:"author,omitempty"`
	MediaType   string            `json:"media_type,omitempty"`
	PriceCents  int64             `json:"price_cents"`
	CoverURL    string            `json:"cover_url,omitempty"`
	Publisher   *ArticlePublisher `json:"publisher,omitempty"`
	Unlocked    bool              `json:"unlocked"`
	BodyHTML    string            `json:"body_html,omitempty"`
	BodyPreview string            `json:"body_preview,omitempty"`
	CreatedAt   string            `json:"created_at,omitempty"`
}

// CategoryList is the /categories response.
type CategoryList struct {
	Categories []string `json:"categories"`
}

// Wallet is the reader's balance.
type Wallet struct {
	BalanceCents int64  `json:"balance_cents"`
	Email        string `json:"email,omitempty"`
}

// TopupResult is returned by the top-up endpoints.
type TopupResult struct {
	OK           bool  `json:"ok"`
	BalanceCents int64 `json:"balance_cents"`
}

// CheckoutSession is a hosted payment page created by the backend.
type CheckoutSession struct {
	SessionID      string `json:"session_id"`
	CheckoutURL    string `json:"checkout_url"`
	PublishableKey string `json:"publishable_key,omitempty"`
}

// CheckoutVerification is the outcome of confirming a hosted checkout.
type CheckoutVerification struct {
	BalanceCents    int64 `json:"balance_cents"`
	AmountCredited  int64 `json:"amount_credited"`
	AlreadyCredited bool  `json:"already_credited"`
}

// Transaction is an entry in the reader's history.
type Transaction struct {
	ID            int64            `json:"id"`
	Type          string           `json:"type"`
	PriceCents    int64            `json:"price_cents"`
	FeeCents      int64            `json:"fee_cents"`
	NetCents      int64            `json:"net_cents"`
	ArticleID     int64            `json:"article_id,omitempty"`
	ArticleTitle  string           `json:"article_title,omitempty"`
	PublisherName string           `json:"publisher_name,omitempty"`
	Split         map[string]int64 `json:"split,omitempty"`
	CreatedAt     string           `json:"created_at,omitempty"`
}

// TransactionList wraps the reader's history.
type TransactionList struct {
	Transactions []Transaction `json:"transactions"`
}

// PayResult is returned after a successful unlock.
type PayResult struct {
	AccessToken   string           `json:"access_token"`
	BalanceCents  int64            `json:"balance_cents"`
	PriceCents    int64            `json:"price_cents"`
	TransactionID int64            `json:"transaction_id"`
	Split         map[string]int64 `json:"split,omitempty"`
}

// VerifyResult reports whether an access token is still valid for an article.
type VerifyResult struct {
	Valid bool `json:"valid"`
}

// RefundResult is returned after a refund.
type RefundResult struct {
	OK           bool  `json:"ok"`
	BalanceCents int64 `json:"balance_cents"`
	RefundID     int64 `json:"refund_id"`
}

// Document is an opaque JSON object passed through to the views untouched.
type Document map[string]any

// String returns the string value at key, or "".
func (d Document) String(key string) string {
	if d == nil {
		return ""
	}
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}

// Int returns the numeric value at key truncated to int64, or 0.
func (d Document) Int(key string) int64 {
	if d == nil {
		return 0
	}
	switch v := d[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Bool returns the boolean value at key, or false.
func (d Document) Bool(key string) bool {
	if d == nil {
		return false
	}
	b, _ := d[key].(bool)
	return b
}

// Has reports whether key is present and not null.
func (d Document) Has(key string) bool {
	if d == nil {
		return false
	}
	v, ok := d[key]
	return ok && v != nil
}

// Doc returns the nested object at key.
func (d Document) Doc(key string) Document {
	if d == nil {
		return nil
	}
	if m, ok := d[key].(map[string]any); ok {
		return Document(m)
	}
	return nil
}

// Docs returns the array of objects at key, skipping non-object entries.
func (d Document) Docs(key string) []Document {
	if d == nil {
		return nil
	}
	items, ok := d[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Document, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Document(m))
		}
	}
	return out
}

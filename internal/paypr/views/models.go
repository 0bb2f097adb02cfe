package views

import (
	"html/template"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/content"
)

// TopupAmounts are the wallet top-up presets in cents.
var TopupAmounts = []int64{500, 1000, 2500, 5000}

// PricePresets are the article prices offered to authors in cents.
var PricePresets = []int64{49, 99, 149, 199, 299, 499, 999}

// BodyFonts and HeadlineFonts are the fonts offered by the theme editor.
var (
	BodyFonts     = []string{"system-ui", "Inter", "Roboto", "Georgia"}
	HeadlineFonts = []string{"system-ui", "Montserrat", "Playfair Display", "Merriweather"}
)

// EmptyState is the inline placeholder shown when a page has nothing to show
// or failed to load.
type EmptyState struct {
	Icon        string
	Title       string
	Message     string
	ActionLabel string
	ActionHref  string
	// Retry adds a link that reloads the current location.
	Retry bool
}

// Newsstand is the home page.
type Newsstand struct {
	Publishers []api.PublisherSummary
	Featured   []api.ArticleSummary
	Categories []string
	Category   string
	Query      string
	ShowTour   bool
}

// PublisherDirectory lists every publisher.
type PublisherDirectory struct {
	Publishers []api.PublisherSummary
}

// Publications is the marketing list of publications.
type Publications struct {
	Items []api.Document
}

// PublisherPage is a publisher's storefront.
type PublisherPage struct {
	Publisher *api.Publisher
	Articles  []api.ArticleSummary
}

// RefundWidget is the countdown shown after an unlock while a refund is possible.
type RefundWidget struct {
	TransactionID    int64
	Countdown        string
	Urgency          string
	RemainingSeconds int64
}

// ArticlePage is the reading view with its paywall.
type ArticlePage struct {
	Article  *api.Article
	Body     template.HTML
	Preview  template.HTML
	Refund   *RefundWidget
	BackHref string
	// Showcase is the showcase slug when the article is read inside a showcase site.
	Showcase string
}

// Wallet is the balance and top-up page.
type Wallet struct {
	BalanceCents int64
	Email        string
	Amounts      []int64
}

// History is the reader's transaction log.
type History struct {
	Transactions    []api.Transaction
	TotalSpentCents int64
	Unlocked        int64
	Refunds         int64
}

// Login is the reader sign-in page.
type Login struct {
	Email string
}

// PaymentResult is the outcome page after a hosted checkout.
type PaymentResult struct {
	AlreadyCredited bool
	AmountCredited  int64
	BalanceCents    int64
	Error           string
}

// AuthorRegister is shown to readers without an author profile.
type AuthorRegister struct {
	Prices []int64
}

// AuthorDashboard summarises an author's earnings and submissions.
type AuthorDashboard struct {
	Profile   api.Document
	Earnings  api.Document
	Content   []api.Document
	Published int64
	Status    string
	Statuses  []string
}

// AuthorSubmit is the article submission form.
type AuthorSubmit struct {
	Profile    api.Document
	Publishers []api.PublisherSummary
	Prices     []int64
}

// AuthorProfile is an author's public profile.
type AuthorProfile struct {
	Profile api.Document
}

// PublisherLogin asks for a publisher magic link.
type PublisherLogin struct{}

// PublisherConsole is the publisher revenue dashboard.
type PublisherConsole struct {
	Stats    []api.Document
	Articles []api.Document
}

// PublisherContent lists the catalogue and author submissions available to add.
type PublisherContent struct {
	Articles  []api.Document
	Available []api.Document
}

// PublisherAuthors lists contributing authors.
type PublisherAuthors struct {
	Authors []api.Document
}

// PublisherSettings is the publisher profile form.
type PublisherSettings struct {
	Settings api.Document
}

// AdminLogin is the console sign-in form.
type AdminLogin struct{}

// AdminStats are the platform counters on the admin dashboard.
type AdminStats struct {
	TotalRevenueCents int64
	TotalUsers        int64
	TotalPublishers   int64
	TotalArticles     int64
	TotalTransactions int64
	ActiveUsers7d     int64
	Revenue7dCents    int64
	NewUsers7d        int64
}

// AdminDashboard is the admin landing page.
type AdminDashboard struct {
	Username string
	Stats    AdminStats
}

// AdminUsers is the paged reader list.
type AdminUsers struct {
	Users   []api.Document
	Search  string
	Page    int64
	PerPage int64
	Total   int64
	HasPrev bool
	HasNext bool
}

// AdminUser is one reader with recent transactions.
type AdminUser struct {
	User         api.Document
	Transactions []api.Document
}

// AdminSite is the platform settings form.
type AdminSite struct {
	Settings api.Document
}

// AdminTheme is the theme editor.
type AdminTheme struct {
	Theme         api.Document
	BodyFonts     []string
	HeadlineFonts []string
}

// AdminSplits edits a publisher's revenue split rules.
type AdminSplits struct {
	PublisherID string
	Publisher   api.Document
	Rules       []api.Document
}

// Showcase is the landing page of a white-label showcase site.
type Showcase struct {
	Slug  string
	Site  api.Document
	Items []api.Document
	Stats api.Document
}

// ShowcaseArticle is an article read inside a showcase site.
type ShowcaseArticle struct {
	Slug    string
	Site    api.Document
	Article ArticlePage
}

// ContentPage is a markdown page.
type ContentPage struct {
	Page content.Page
}

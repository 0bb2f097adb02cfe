// Package unlock keeps the receipt of the most recent article purchase so the
// article page can show the refund window.
package unlock

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
)

// DefaultWindow is the refund window used when the access token carries no expiry.
const DefaultWindow = 10 * time.Minute

const (
	warningThreshold = 5 * time.Minute
	dangerThreshold  = time.Minute
)

// Receipt describes one unlock.
type Receipt struct {
	ArticleID     int64     `json:"article_id"`
	TransactionID int64     `json:"transaction_id"`
	PriceCents    int64     `json:"price_cents"`
	AccessToken   string    `json:"access_token"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// claims is the payload the backend signs into the access token.
type claims struct {
	ArticleID   int64 `json:"article_id"`
	PublisherID int64 `json:"publisher_id"`
	jwt.RegisteredClaims
}

// FromPayment builds a receipt for articleID. The refund window ends at the
// token's exp claim; the signature is checked by the backend, not here.
func FromPayment(articleID int64, result *api.PayResult, now time.Time) (*Receipt, error) {
	if result == nil {
		return nil, fmt.Errorf("unlock: missing payment result")
	}
	r := &Receipt{
		ArticleID:     articleID,
		TransactionID: result.TransactionID,
		PriceCents:    result.PriceCents,
		AccessToken:   result.AccessToken,
		IssuedAt:      now,
		ExpiresAt:     now.Add(DefaultWindow),
	}
	if result.AccessToken == "" {
		return r, nil
	}

	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(result.AccessToken, &c); err != nil {
		return r, fmt.Errorf("unlock: parse access token: %w", err)
	}
	if c.ArticleID != 0 && c.ArticleID != articleID {
		return nil, fmt.Errorf("unlock: token is for article %d, not %d", c.ArticleID, articleID)
	}
	if c.IssuedAt != nil {
		r.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		r.ExpiresAt = c.ExpiresAt.Time
	}
	return r, nil
}

// For reports whether the receipt covers articleID.
func (r *Receipt) For(articleID int64) bool {
	return r != nil && r.ArticleID == articleID
}

// Remaining returns the time left in the refund window, never negative.
func (r *Receipt) Remaining(now time.Time) time.Duration {
	if r == nil {
		return 0
	}
	left := r.ExpiresAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left.Truncate(time.Second)
}

// RefundOpen reports whether a refund may still be requested.
func (r *Receipt) RefundOpen(now time.Time) bool {
	return r.Remaining(now) > 0
}

// Countdown formats the remaining window as m:ss.
func (r *Receipt) Countdown(now time.Time) string {
	secs := int(r.Remaining(now) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// Urgency returns the timer class: "danger" in the last minute, "warning" in the
// last five, "" otherwise.
func (r *Receipt) Urgency(now time.Time) string {
	left := r.Remaining(now)
	switch {
	case left <= dangerThreshold:
		return "danger"
	case left <= warningThreshold:
		return "warning"
	default:
		return ""
	}
}

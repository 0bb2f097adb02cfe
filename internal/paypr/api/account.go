package api

import (
	"context"
	"net/http"
	"strconv"
)

// Login signs in (or registers) a reader by email.
func (c *Client) Login(ctx context.Context, email string) (*LoginResult, error) {
	var out LoginResult
	if err := c.sendJSON(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestMagicLink asks the backend to email a one-time sign-in link.
func (c *Client) RequestMagicLink(ctx context.Context, email string) (*MagicLinkRequest, error) {
	var out MagicLinkRequest
	if err := c.sendJSON(ctx, http.MethodPost, "/auth/magic-link/request", map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyMagicLink exchanges a magic-link token for a signed-in session.
func (c *Client) VerifyMagicLink(ctx context.Context, token string) (*LoginResult, error) {
	var out LoginResult
	if err := c.sendJSON(ctx, http.MethodPost, "/auth/magic-link/verify", map[string]string{"token": token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	return c.sendJSON(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// CurrentUser reports the backend session state.
func (c *Client) CurrentUser(ctx context.Context) (*SessionState, error) {
	var out SessionState
	if err := c.getJSON(ctx, "/auth/me", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Wallet fetches the reader's balance.
func (c *Client) Wallet(ctx context.Context) (*Wallet, error) {
	var out Wallet
	if err := c.getJSON(ctx, "/account/wallet", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TopupWallet credits the wallet directly (demo mode).
func (c *Client) TopupWallet(ctx context.Context, amountCents int64) (*TopupResult, error) {
	var out TopupResult
	if err := c.sendIdempotent(ctx, "/account/topup", map[string]int64{"amount_cents": amountCents}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TopupWalletStripe confirms a card payment intent and credits the wallet.
func (c *Client) TopupWalletStripe(ctx context.Context, amountCents int64, paymentMethodID string) (*TopupResult, error) {
	body := map[string]any{"amount_cents": amountCents, "payment_method_id": paymentMethodID}
	var out TopupResult
	if err := c.sendIdempotent(ctx, "/account/topup/stripe", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCheckoutSession starts a hosted checkout for a wallet top-up.
func (c *Client) CreateCheckoutSession(ctx context.Context, amountCents int64) (*CheckoutSession, error) {
	var out CheckoutSession
	if err := c.sendIdempotent(ctx, "/account/topup/checkout", map[string]int64{"amount_cents": amountCents}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyCheckoutSession credits the wallet once a hosted checkout has completed.
func (c *Client) VerifyCheckoutSession(ctx context.Context, sessionID string) (*CheckoutVerification, error) {
	var out CheckoutVerification
	if err := c.sendJSON(ctx, http.MethodPost, "/account/topup/verify-session", map[string]string{"session_id": sessionID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transactions lists the reader's purchase and refund history.
func (c *Client) Transactions(ctx context.Context) ([]Transaction, error) {
	var out TransactionList
	if err := c.getJSON(ctx, "/account/transactions", &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

// PayForArticle debits the wallet and unlocks the article.
func (c *Client) PayForArticle(ctx context.Context, articleID int64) (*PayResult, error) {
	var out PayResult
	if err := c.sendIdempotent(ctx, "/pay", map[string]int64{"article_id": articleID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPayment checks an access token against an article.
func (c *Client) VerifyPayment(ctx context.Context, accessToken string, articleID int64) (bool, error) {
	body := map[string]any{"access_token": accessToken, "article_id": articleID}
	var out VerifyResult
	if err := c.sendJSON(ctx, http.MethodPost, "/verify", body, &out); err != nil {
		return false, err
	}
	return out.Valid, nil
}

// RefundTransaction reverses a purchase inside the refund window.
func (c *Client) RefundTransaction(ctx context.Context, transactionID int64) (*RefundResult, error) {
	var out RefundResult
	if err := c.sendIdempotent(ctx, "/refund", map[string]int64{"transaction_id": transactionID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

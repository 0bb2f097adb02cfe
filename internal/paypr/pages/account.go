package pages

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/auth"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/format"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/notify"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/router"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/unlock"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/views"
)

const (
	txDebit  = "debit"
	txRefund = "refund"
)

func (p *Pages) wallet(ctx context.Context, _ *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Auth.RequireAuth(); err != nil {
		return nil, err
	}
	w, err := s.API.Wallet(ctx)
	if err != nil {
		return p.loadFailed(ctx, err, "wallet")
	}
	s.Auth.UpdateWalletBalance(w.BalanceCents)
	return p.views.Page("wallet", "Wallet", views.Wallet{
		BalanceCents: w.BalanceCents,
		Email:        w.Email,
		Amounts:      views.TopupAmounts,
	}), nil
}

func (p *Pages) history(ctx context.Context, _ *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Auth.RequireAuth(); err != nil {
		return nil, err
	}
	txs, err := s.API.Transactions(ctx)
	if err != nil {
		return p.loadFailed(ctx, err, "transactions")
	}
	return p.views.Page("history", "History", summarize(txs)), nil
}

// summarize totals spending net of refunds.
func summarize(txs []api.Transaction) views.History {
	h := views.History{Transactions: txs}
	for _, tx := range txs {
		switch tx.Type {
		case txDebit:
			h.TotalSpentCents += tx.PriceCents
			h.Unlocked++
		case txRefund:
			h.TotalSpentCents -= tx.PriceCents
			h.Refunds++
		}
	}
	return h
}

func (p *Pages) login(ctx context.Context, req *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if s.Auth.IsAuthenticated() {
		return nil, router.Redirect("/")
	}
	return p.views.Page("login", "Log in", views.Login{Email: req.Param("email")}), nil
}

func (p *Pages) verifyMagicLink(ctx context.Context, req *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	token := strings.TrimSpace(req.Param("token"))
	if token == "" {
		s.Notifier.Show(notify.Error, "Invalid or expired magic link")
		return nil, router.Redirect(auth.LoginPath)
	}
	if !s.Auth.VerifyMagicLink(ctx, token) {
		return nil, router.Redirect(auth.LoginPath)
	}
	if _, err := s.Session.RotateCSRFToken(); err != nil {
		return nil, err
	}
	return nil, router.Redirect("/")
}

func (p *Pages) paymentSuccess(ctx context.Context, req *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Auth.RequireAuth(); err != nil {
		return nil, err
	}
	sessionID := strings.TrimSpace(req.Param("session_id"))
	if sessionID == "" {
		return p.views.Page("payment_success", "Payment", views.PaymentResult{Error: "Invalid checkout session"}), nil
	}
	result, err := s.API.VerifyCheckoutSession(ctx, sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.log(ctx).Warn("checkout verification failed", zap.Error(err))
		return p.views.Page("payment_success", "Payment", views.PaymentResult{
			Error: api.MessageOr(err, "Payment verification failed"),
		}), nil
	}
	s.Auth.UpdateWalletBalance(result.BalanceCents)
	if !result.AlreadyCredited {
		s.Notifier.Show(notify.Success, fmt.Sprintf("Successfully added %s!", format.Cents(result.AmountCredited)))
	}
	return p.views.Page("payment_success", "Payment Successful", views.PaymentResult{
		AlreadyCredited: result.AlreadyCredited,
		AmountCredited:  result.AmountCredited,
		BalanceCents:    result.BalanceCents,
	}), nil
}

func (p *Pages) paymentCancel(context.Context, *router.Request) (templ.Component, error) {
	return p.views.Page("payment_cancel", "Payment Cancelled", nil), nil
}

func (p *Pages) actionLogin(ctx context.Context, req ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	email := strings.TrimSpace(req.Form.Get("email"))
	if email == "" {
		s.Notifier.Show(notify.Error, "Please enter your email")
		return auth.LoginPath, nil
	}
	if !s.Auth.Login(ctx, email) {
		return auth.LoginPath, nil
	}
	if _, err := s.Session.RotateCSRFToken(); err != nil {
		return "", err
	}
	return "/", nil
}

func (p *Pages) actionMagicLink(ctx context.Context, req ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	email := strings.TrimSpace(req.Form.Get("email"))
	if email == "" {
		s.Notifier.Show(notify.Error, "Please enter your email")
		return auth.LoginPath, nil
	}
	s.Auth.RequestMagicLink(ctx, email)
	return auth.LoginPath, nil
}

func (p *Pages) actionLogout(ctx context.Context, _ ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	s.Auth.Logout(ctx)
	s.Session.SetReceipt(nil)
	return "/", nil
}

func (p *Pages) actionUnlock(ctx context.Context, req ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	if err := s.Auth.RequireAuth(); err != nil {
		return "", err
	}
	articleID, err := formInt(req.Form, "article_id")
	if err != nil {
		return "", err
	}
	back := safeLocation(req.Form.Get("return"))
	if back == "" {
		back = "/article/" + strconv.FormatInt(articleID, 10)
	}

	price := formIntOr(req.Form, "price_cents", 0)
	if balance := s.Auth.WalletBalance(); price > 0 && balance < price {
		s.Notifier.Show(notify.Error, fmt.Sprintf("Insufficient balance. You need %s", format.Cents(price)))
		return "/wallet", nil
	}

	result, err := s.API.PayForArticle(ctx, articleID)
	if err != nil {
		return p.actionFailed(ctx, s, err, "Payment failed", back)
	}
	s.Auth.UpdateWalletBalance(result.BalanceCents)
	charged := result.PriceCents
	if charged == 0 {
		charged = price
	}
	s.Notifier.Show(notify.Success, fmt.Sprintf("Article unlocked! %s charged", format.Cents(charged)))

	receipt, err := unlock.FromPayment(articleID, result, p.now())
	if err != nil {
		p.log(ctx).Warn("unlock receipt", zap.Int64("article_id", articleID), zap.Error(err))
	}
	if receipt != nil {
		s.Session.SetReceipt(receipt)
	}
	return back, nil
}

func (p *Pages) actionRefund(ctx context.Context, req ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	if err := s.Auth.RequireAuth(); err != nil {
		return "", err
	}
	txID, err := formInt(req.Form, "transaction_id")
	if err != nil {
		return "", err
	}
	result, err := s.API.RefundTransaction(ctx, txID)
	if err != nil {
		return p.actionFailed(ctx, s, err, "Refund failed", req.Current)
	}
	s.Auth.UpdateWalletBalance(result.BalanceCents)
	s.Session.SetReceipt(nil)
	s.Notifier.Show(notify.Success, "Refund processed successfully")
	return "/", nil
}

func (p *Pages) actionTopup(ctx context.Context, req ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	if err := s.Auth.RequireAuth(); err != nil {
		return "", err
	}
	amount, err := formInt(req.Form, "amount_cents")
	if err != nil || amount <= 0 {
		s.Notifier.Show(notify.Error, "Invalid amount")
		return "/wallet", nil
	}
	result, err := s.API.TopupWallet(ctx, amount)
	if err != nil {
		return p.actionFailed(ctx, s, err, "Top-up failed", "/wallet")
	}
	s.Auth.UpdateWalletBalance(result.BalanceCents)
	s.Notifier.Show(notify.Success, fmt.Sprintf("Successfully added %s to your wallet!", format.Cents(amount)))
	return "/wallet", nil
}

func (p *Pages) actionCheckout(ctx context.Context, req ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	if err := s.Auth.RequireAuth(); err != nil {
		return "", err
	}
	amount, err := formInt(req.Form, "amount_cents")
	if err != nil || amount <= 0 {
		s.Notifier.Show(notify.Error, "Invalid amount")
		return "/wallet", nil
	}
	checkout, err := s.API.CreateCheckoutSession(ctx, amount)
	if err != nil {
		if strings.Contains(api.MessageOr(err, ""), "Stripe not configured") {
			s.Notifier.Show(notify.Error, "Stripe is not configured. Please use Demo Mode or contact support.")
			return "/wallet", nil
		}
		return p.actionFailed(ctx, s, err, "Failed to start checkout", "/wallet")
	}
	if !strings.HasPrefix(checkout.CheckoutURL, "https://") && !strings.HasPrefix(checkout.CheckoutURL, "http://") {
		s.Notifier.Show(notify.Error, "Failed to start checkout")
		return "/wallet", nil
	}
	s.Notifier.Show(notify.Info, "Redirecting to Stripe Checkout...")
	return checkout.CheckoutURL, nil
}

package pages

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/format"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/notify"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/router"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/views"
)

const (
	adminPath      = "/admin"
	adminLoginPath = "/admin/login"
	adminPerPage   = 50
)

// dashboardStats are shown until the backend exposes platform counters.
var dashboardStats = views.AdminStats{
	TotalRevenueCents: 125000,
	TotalUsers:        1250,
	TotalPublishers:   8,
	TotalArticles:     69,
	TotalTransactions: 3420,
	ActiveUsers7d:     340,
	Revenue7dCents:    15000,
	NewUsers7d:        87,
}

// adminPage runs load for a signed-in admin. Visitors without an admin session,
// or whose backend session expired, are sent to the admin sign-in page.
func (p *Pages) adminPage(ctx context.Context, what string, load func(context.Context, *Scope) (templ.Component, error)) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if !s.Session.Console().Admin {
		return nil, router.Redirect(adminLoginPath)
	}
	component, err := load(ctx, s)
	if api.IsUnauthorized(err) {
		clearAdmin(s)
		s.Notifier.Show(notify.Info, "Your admin session has expired")
		return nil, router.Redirect(adminLoginPath)
	}
	if err != nil {
		return p.loadFailed(ctx, err, what)
	}
	return component, nil
}

func clearAdmin(s *Scope) {
	console := s.Session.Console()
	console.Admin = false
	console.AdminUsername = ""
	s.Session.SetConsole(console)
}

func (p *Pages) adminLogin(ctx context.Context, _ *router.Request) (templ.Component, error) {
	s, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if s.Session.Console().Admin {
		return nil, router.Redirect(adminPath)
	}
	return p.views.Page("admin_login", "Admin Sign-in", views.AdminLogin{}), nil
}

func (p *Pages) adminDashboard(ctx context.Context, _ *router.Request) (templ.Component, error) {
	return p.adminPage(ctx, "dashboard", func(_ context.Context, s *Scope) (templ.Component, error) {
		return p.views.Page("admin_dashboard", "Admin", views.AdminDashboard{
			Username: s.Session.Console().AdminUsername,
			Stats:    dashboardStats,
		}), nil
	})
}

func (p *Pages) adminUsers(ctx context.Context, req *router.Request) (templ.Component, error) {
	return p.adminPage(ctx, "users", func(ctx context.Context, s *Scope) (templ.Component, error) {
		page, _ := strconv.ParseInt(req.Param("page"), 10, 64)
		if page < 1 {
			page = 1
		}
		search := strings.TrimSpace(req.Param("search"))
		params := url.Values{"page": {itoa(page)}, "per_page": {strconv.Itoa(adminPerPage)}}
		if search != "" {
			params.Set("search", search)
		}
		result, err := s.API.AdminUsers(ctx, params)
		if err != nil {
			return nil, err
		}
		model := views.AdminUsers{
			Users:   docs(result, "items", "users"),
			Search:  search,
			Page:    page,
			PerPage: adminPerPage,
			Total:   result.Int("total"),
		}
		if n := result.Int("page"); n > 0 {
			model.Page = n
		}
		if n := result.Int("per_page"); n > 0 {
			model.PerPage = n
		}
		model.HasPrev = model.Page > 1
		model.HasNext = model.Page*model.PerPage < model.Total
		return p.views.Page("admin_users", "Users", model), nil
	})
}

func (p *Pages) adminUser(ctx context.Context, req *router.Request) (templ.Component, error) {
	return p.adminPage(ctx, "user", func(ctx context.Context, s *Scope) (templ.Component, error) {
		result, err := s.API.AdminUser(ctx, req.Param("id"))
		if api.IsStatus(err, 404) {
			return p.NotFound(ctx, req)
		}
		if err != nil {
			return nil, err
		}
		user := result.Doc("user")
		if user == nil {
			user = result
		}
		model := views.AdminUser{User: user, Transactions: docs(result, "recent_transactions", "transactions")}
		return p.views.Page("admin_user", user.String("email"), model), nil
	})
}

func (p *Pages) adminSite(ctx context.Context, _ *router.Request) (templ.Component, error) {
	return p.adminPage(ctx, "site settings", func(ctx context.Context, s *Scope) (templ.Component, error) {
		settings, err := s.API.SiteSettings(ctx)
		if err != nil {
			return nil, err
		}
		if nested := settings.Doc("settings"); nested != nil {
			settings = nested
		}
		return p.views.Page("admin_site", "Site Settings", views.AdminSite{Settings: settings}), nil
	})
}

func (p *Pages) adminTheme(ctx context.Context, _ *router.Request) (templ.Component, error) {
	return p.adminPage(ctx, "theme", func(ctx context.Context, s *Scope) (templ.Component, error) {
		theme, err := s.API.Theme(ctx)
		if err != nil {
			return nil, err
		}
		if nested := theme.Doc("theme"); nested != nil {
			theme = nested
		}
		return p.views.Page("admin_theme", "Theme", views.AdminTheme{
			Theme:         theme,
			BodyFonts:     views.BodyFonts,
			HeadlineFonts: views.HeadlineFonts,
		}), nil
	})
}

func (p *Pages) adminSplits(ctx context.Context, req *router.Request) (templ.Component, error) {
	return p.adminPage(ctx, "revenue splits", func(ctx context.Context, s *Scope) (templ.Component, error) {
		id := req.Param("publisherId")
		result, err := s.API.SplitRules(ctx, id)
		if err != nil {
			return nil, err
		}
		return p.views.Page("admin_splits", "Revenue Splits", views.AdminSplits{
			PublisherID: id,
			Publisher:   result.Doc("publisher"),
			Rules:       docs(result, "rules"),
		}), nil
	})
}

func (p *Pages) actionAdminLogin(ctx context.Context, req ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	username := strings.TrimSpace(req.Form.Get("username"))
	password := req.Form.Get("password")
	if username == "" || password == "" {
		s.Notifier.Show(notify.Error, "Username and password are required")
		return adminLoginPath, nil
	}
	result, err := s.API.AdminLogin(ctx, username, password)
	if err != nil {
		s.Notifier.Show(notify.Error, api.MessageOr(err, "Invalid credentials"))
		return adminLoginPath, nil
	}
	if _, err := s.Session.RotateCSRFToken(); err != nil {
		return "", err
	}
	name := firstNonEmpty(result.Doc("admin").String("username"), result.String("username"), username)
	console := s.Session.Console()
	console.Admin = true
	console.AdminUsername = name
	s.Session.SetConsole(console)
	s.Notifier.Show(notify.Success, "Welcome, "+name)
	return adminPath, nil
}

func (p *Pages) actionAdminLogout(ctx context.Context, _ ActionRequest) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	if err := s.API.AdminLogout(ctx); err != nil {
		p.log(ctx).Info("admin logout failed", zap.Error(err))
	}
	clearAdmin(s)
	s.Notifier.Show(notify.Info, "Logged out")
	return adminLoginPath, nil
}

// adminAction guards console form submissions.
func (p *Pages) adminAction(ctx context.Context, fn func(*Scope) (string, error)) (string, error) {
	s, err := scope(ctx)
	if err != nil {
		return "", err
	}
	if !s.Session.Console().Admin {
		return adminLoginPath, nil
	}
	loc, err := fn(s)
	if api.IsUnauthorized(err) {
		clearAdmin(s)
		s.Notifier.Show(notify.Info, "Your admin session has expired")
		return adminLoginPath, nil
	}
	return loc, err
}

func (p *Pages) actionAdminCredit(ctx context.Context, req ActionRequest) (string, error) {
	return p.adminAction(ctx, func(s *Scope) (string, error) {
		back := stay(firstNonEmpty(req.Current, "/admin/users"))
		userID := strings.TrimSpace(req.Form.Get("user_id"))
		if userID == "" {
			return "", fmt.Errorf("%w: user_id is required", ErrBadRequest)
		}
		amount, err := formCents(req.Form, "amount")
		if err != nil || amount == 0 {
			s.Notifier.Show(notify.Error, "Invalid amount")
			return back, nil
		}
		if _, err := s.API.CreditUser(ctx, userID, amount, strings.TrimSpace(req.Form.Get("note"))); err != nil {
			if api.IsUnauthorized(err) {
				return "", err
			}
			s.Notifier.Show(notify.Error, api.MessageOr(err, "Failed to adjust wallet"))
			return back, nil
		}
		s.Notifier.Show(notify.Success, "Successfully adjusted wallet by "+format.SignedCents(amount))
		return back, nil
	})
}

func (p *Pages) actionAdminSite(ctx context.Context, req ActionRequest) (string, error) {
	return p.adminAction(ctx, func(s *Scope) (string, error) {
		form := req.Form
		spendCap, err := formCents(form, "spend_cap")
		if err != nil || spendCap < 0 {
			s.Notifier.Show(notify.Error, "Invalid daily spend cap")
			return "/admin/site", nil
		}
		settings := api.Document{
			"platform_fee_bps":      formBasisPoints(form, "platform_fee", 1000),
			"daily_spend_cap_cents": spendCap,
			"refund_window_minutes": formIntOr(form, "refund_window_minutes", 10),
			"feature_showcase":      formBool(form, "feature_showcase"),
			"feature_author":        formBool(form, "feature_author"),
			"feature_magic_link":    formBool(form, "feature_magic_link"),
			"feature_stripe":        formBool(form, "feature_stripe"),
			"maintenance_mode":      formBool(form, "maintenance_mode"),
		}
		if err := s.API.UpdateSiteSettings(ctx, settings); err != nil {
			if api.IsUnauthorized(err) {
				return "", err
			}
			s.Notifier.Show(notify.Error, api.MessageOr(err, "Failed to save settings"))
			return "/admin/site", nil
		}
		s.Notifier.Show(notify.Success, "Settings saved successfully!")
		return "/admin/site", nil
	})
}

func (p *Pages) actionAdminTheme(ctx context.Context, req ActionRequest) (string, error) {
	return p.adminAction(ctx, func(s *Scope) (string, error) {
		form := req.Form
		theme := api.Document{
			"color_ink":     firstNonEmpty(form.Get("color_ink"), "#ffffff"),
			"color_ash":     firstNonEmpty(form.Get("color_ash"), "#808080"),
			"color_smoke":   firstNonEmpty(form.Get("color_smoke"), "#1e1e23"),
			"color_paper":   firstNonEmpty(form.Get("color_paper"), "#00d9ff"),
			"font_body":     firstNonEmpty(form.Get("font_body"), views.BodyFonts[0]),
			"font_headline": firstNonEmpty(form.Get("font_headline"), views.HeadlineFonts[0]),
			"base_font_px":  formIntOr(form, "base_font_px", 16),
			"radius_px":     formIntOr(form, "radius_px", 8),
		}
		if err := s.API.UpdateTheme(ctx, theme); err != nil {
			if api.IsUnauthorized(err) {
				return "", err
			}
			s.Notifier.Show(notify.Error, api.MessageOr(err, "Failed to save theme"))
			return "/admin/theme", nil
		}
		s.Notifier.Show(notify.Success, "Theme saved successfully!")
		return "/admin/theme", nil
	})
}

func (p *Pages) actionAdminSplits(ctx context.Context, req ActionRequest) (string, error) {
	return p.adminAction(ctx, func(s *Scope) (string, error) {
		publisherID := strings.TrimSpace(req.Form.Get("publisher_id"))
		if publisherID == "" {
			return "", fmt.Errorf("%w: publisher_id is required", ErrBadRequest)
		}
		back := "/admin/splits/" + url.PathEscape(publisherID)
		rules, total := splitRules(req.Form)
		if total > 10000 {
			s.Notifier.Show(notify.Error, "Split percentages cannot exceed 100%")
			return back, nil
		}
		if _, err := s.API.UpdateSplitRules(ctx, publisherID, rules); err != nil {
			if api.IsUnauthorized(err) {
				return "", err
			}
			s.Notifier.Show(notify.Error, api.MessageOr(err, "Failed to save splits"))
			return back, nil
		}
		s.Notifier.Show(notify.Success, "Splits saved successfully!")
		return back, nil
	})
}

// splitRules reads the parallel role, recipient_label and percent fields.
// Rows without a role are skipped.
func splitRules(form url.Values) ([]api.Document, int64) {
	roles := form["role"]
	labels := form["recipient_label"]
	percents := form["percent"]
	var (
		rules []api.Document
		total int64
	)
	for i, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		rule := api.Document{"role": role}
		if i < len(labels) {
			rule["recipient_label"] = strings.TrimSpace(labels[i])
		}
		var bps int64
		if i < len(percents) {
			bps = formBasisPoints(url.Values{"p": {percents[i]}}, "p", 0)
		}
		rule["percent_bps"] = bps
		total += bps
		rules = append(rules, rule)
	}
	return rules, total
}

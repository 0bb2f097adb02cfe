package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/notify"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/observability"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/pages"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/router"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/tours"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/views"
)

const (
	tabHeader      = "X-Paypr-Tab"
	locationHeader = "X-Paypr-Location"
	navigateEvent  = "paypr:navigate"
	exportFilename = "publisher-transactions.csv"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleView renders the page for a hash location as an htmx fragment. A
// navigation superseded by a newer one in the same tab answers 204.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := stateFrom(ctx)
	location := r.URL.Query().Get("location")

	nav := s.navs.get(st.session.ID(), r.Header.Get(tabHeader))
	res, err := nav.Navigate(ctx, location)
	switch {
	case errors.Is(err, router.ErrSuperseded):
		w.WriteHeader(http.StatusNoContent)
		return
	case ctx.Err() != nil:
		return
	case err != nil:
		res = s.failure(r, location, err)
	}
	w.Header().Set(locationHeader, res.Location)
	s.render(w, r, res, true, http.StatusOK)
}

// handlePage renders a full document for a plain path. Pages that redirect
// answer 303 so the address bar follows.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	location := r.URL.Path
	if r.URL.RawQuery != "" {
		location += "?" + r.URL.RawQuery
	}
	res, err := s.router.Dispatch(ctx, location)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.render(w, r, s.failure(r, location, err), false, http.StatusInternalServerError)
		return
	}
	if len(res.Redirected) > 0 {
		http.Redirect(w, r, res.Location, http.StatusSeeOther)
		return
	}
	status := http.StatusOK
	if res.NotFound {
		status = http.StatusNotFound
	}
	s.render(w, r, res, false, status)
}

// failure logs err and returns an empty-state result for location.
func (s *Server) failure(r *http.Request, location string, err error) *router.Result {
	observability.FromContext(r.Context()).Error("navigation failed", zap.String("location", location), zap.Error(err))
	loc, path := normalizeLocation(location)
	return &router.Result{
		Location: loc,
		Path:     path,
		Component: s.cfg.Views.Empty(views.EmptyState{
			Title:   "Something went wrong",
			Message: "Please try again.",
			Retry:   true,
		}),
	}
}

func normalizeLocation(location string) (loc, path string) {
	loc = strings.TrimPrefix(strings.TrimSpace(location), "#")
	if loc == "" {
		loc = "/"
	}
	path, _, _ = strings.Cut(loc, "?")
	return loc, path
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, res *router.Result, fragment bool, status int) {
	ctx := r.Context()
	st := stateFrom(ctx)

	info := views.RequestInfoFrom(ctx)
	info.Location = res.Location
	info.Path = res.Path
	info.Console = st.session.Console()
	ctx = views.WithRequestInfo(ctx, info)

	doc := views.Document{
		Content:    res.Component,
		Chromeless: res.Chromeless(),
		Toasts:     st.center.Drain(),
	}
	var component templ.Component
	if fragment {
		component = s.cfg.Views.Fragment(doc)
	} else {
		component = s.cfg.Views.Layout(doc)
	}

	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		for _, t := range doc.Toasts {
			st.center.Show(t.Kind, t.Message, t.Duration)
		}
		observability.FromContext(ctx).Error("render page", zap.String("location", res.Location), zap.Error(err))
		WriteError(ctx, w, NewError("render_failed", "Unable to render page", http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// handleAction runs a form action and tells the client where to go next.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := stateFrom(ctx)
	name := strings.Trim(chi.URLParam(r, "*"), "/")
	action, ok := s.actions[name]
	if !ok {
		WriteError(ctx, w, NewError("not_found", "Unknown action", http.StatusNotFound))
		return
	}
	if err := r.ParseForm(); err != nil {
		WriteError(ctx, w, NewError("bad_request", "Malformed form", http.StatusBadRequest))
		return
	}
	current := strings.TrimSpace(r.Header.Get(locationHeader))
	if current == "" {
		current = r.PostForm.Get("current")
	}

	if !s.allow(name, r) {
		st.center.Show(notify.Error, "Too many attempts. Please wait a moment and try again.")
		s.respondAction(w, r, "")
		return
	}

	loc, err := action(ctx, pages.ActionRequest{Form: r.PostForm, Current: current})
	if target, isRedirect := router.IsRedirect(err); isRedirect {
		loc, err = target, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, pages.ErrBadRequest) {
			msg := strings.TrimPrefix(err.Error(), pages.ErrBadRequest.Error()+": ")
			if IsHTMXRequest(ctx) {
				st.center.Show(notify.Error, msg)
				s.respondAction(w, r, "")
				return
			}
			WriteError(ctx, w, NewError("bad_request", msg, http.StatusBadRequest))
			return
		}
		observability.FromContext(ctx).Error("action failed", zap.String("action", name), zap.Error(err))
		if IsHTMXRequest(ctx) {
			st.center.Show(notify.Error, "Something went wrong. Please try again.")
			s.respondAction(w, r, "")
			return
		}
		WriteError(ctx, w, NewError("action_failed", "Something went wrong", http.StatusInternalServerError))
		return
	}
	s.respondAction(w, r, loc)
}

// respondAction answers an action. htmx requests get the pending toasts and a
// paypr:navigate trigger; plain form posts are redirected. Locations outside
// the application leave it.
func (s *Server) respondAction(w http.ResponseWriter, r *http.Request, loc string) {
	ctx := r.Context()
	st := stateFrom(ctx)
	htmx := IsHTMXRequest(ctx)

	if isExternal(loc) {
		st.center.Drain()
		if htmx {
			w.Header().Set("HX-Redirect", loc)
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, loc, http.StatusSeeOther)
		return
	}

	if !htmx {
		if loc == "" {
			loc = returnPath(r)
		}
		http.Redirect(w, r, loc, http.StatusSeeOther)
		return
	}

	if loc != "" {
		trigger, err := json.Marshal(map[string]string{navigateEvent: loc})
		if err == nil {
			w.Header().Set("HX-Trigger", string(trigger))
		}
	}
	var buf bytes.Buffer
	if err := s.cfg.Views.Toasts(st.center.Drain()).Render(ctx, &buf); err != nil {
		observability.FromContext(ctx).Error("render toasts", zap.Error(err))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// returnPath is the in-app page a plain form was posted from, or "/".
func returnPath(r *http.Request) string {
	current := strings.TrimSpace(r.Header.Get(locationHeader))
	if current == "" {
		current = strings.TrimSpace(r.PostFormValue("current"))
	}
	if !strings.HasPrefix(current, "/") || strings.HasPrefix(current, "//") {
		return "/"
	}
	return current
}

func isExternal(loc string) bool {
	return strings.HasPrefix(loc, "https://") || strings.HasPrefix(loc, "http://")
}

func (s *Server) allow(action string, r *http.Request) bool {
	switch action {
	case "login", "admin/login":
		return s.authLimit.Allow(clientIP(r))
	case "magic-link", "publisher/magic-link":
		return s.magicLimit.Allow(clientIP(r))
	default:
		return true
	}
}

func (s *Server) handleTourComplete(w http.ResponseWriter, r *http.Request) {
	tour := strings.TrimSpace(r.PostFormValue("tour"))
	switch tour {
	case tours.Reader, tours.Author, tours.Publisher:
	default:
		WriteError(r.Context(), w, NewError("bad_request", "Unknown tour", http.StatusBadRequest))
		return
	}
	tours.MarkComplete(w, r, tour, s.cfg.SecureCookies)
	s.respondAction(w, r, "")
}

func (s *Server) handleTourReset(w http.ResponseWriter, r *http.Request) {
	tours.Reset(w, s.cfg.SecureCookies)
	stateFrom(r.Context()).center.Show(notify.Info, "Guided tours will show again")
	s.respondAction(w, r, "/")
}

// handleExport streams the publisher ledger as a CSV download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	csv, err := pages.ExportPublisherTransactions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		observability.FromContext(ctx).Warn("export publisher transactions", zap.Error(err))
		WriteError(ctx, w, NewError("export_failed", api.MessageOr(err, "Failed to export CSV"), upstreamStatus(err)))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	_, _ = io.WriteString(w, csv)
}

// upstreamStatus passes backend client errors through and maps the rest to 502.
func upstreamStatus(err error) int {
	if status := api.StatusOf(err); status >= 400 && status < 500 {
		return status
	}
	return http.StatusBadGateway
}

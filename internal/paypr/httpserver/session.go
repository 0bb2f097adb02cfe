package httpserver

import (
	"bufio"
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/auth"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/notify"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/observability"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/pages"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/session"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/tours"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/views"
)

const (
	csrfHeader    = "X-CSRF-Token"
	csrfFormField = "csrf_token"
)

const stateContextKey contextKey = "paypr.state"

// requestState is everything bound to the browser session for one request.
type requestState struct {
	session *session.Session
	jar     *session.Jar
	center  *notify.Center
	scope   *pages.Scope
}

func stateFrom(ctx context.Context) *requestState {
	st, _ := ctx.Value(stateContextKey).(*requestState)
	return st
}

// beforeWriteWriter runs a hook once before the first header or body byte is
// written so the session cookie can still be set.
type beforeWriteWriter struct {
	http.ResponseWriter
	before func()
	once   sync.Once
}

func (w *beforeWriteWriter) fire() { w.once.Do(w.before) }

func (w *beforeWriteWriter) WriteHeader(status int) {
	w.fire()
	w.ResponseWriter.WriteHeader(status)
}

func (w *beforeWriteWriter) Write(b []byte) (int, error) {
	w.fire()
	return w.ResponseWriter.Write(b)
}

func (w *beforeWriteWriter) Flush() {
	w.fire()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *beforeWriteWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("httpserver: hijack not supported")
}

func (w *beforeWriteWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// sessions loads the encrypted session and its server-side backend cookie jar,
// and saves both right before the response is written.
func (s *Server) sessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := observability.FromContext(ctx)

		sess, err := s.cfg.Sessions.Load(r)
		if errors.Is(err, session.ErrExpired) {
			sess = s.cfg.Sessions.New()
		} else if err != nil {
			logger.Error("load session", zap.Error(err))
			WriteError(ctx, w, NewError("session_error", "Unable to load session", http.StatusInternalServerError))
			return
		}
		if _, err := sess.EnsureCSRFToken(); err != nil {
			logger.Error("issue csrf token", zap.Error(err))
			WriteError(ctx, w, NewError("session_error", "Unable to issue CSRF token", http.StatusInternalServerError))
			return
		}

		jar, err := s.cfg.Jars.Open(ctx, sess.ID())
		if err != nil {
			logger.Warn("open cookie jar", zap.Error(err))
		}
		st := &requestState{session: sess, jar: jar}

		bw := &beforeWriteWriter{ResponseWriter: w}
		bw.before = func() { s.persist(ctx, w, st) }
		next.ServeHTTP(bw, r.WithContext(context.WithValue(ctx, stateContextKey, st)))
		bw.fire()
	})
}

func (s *Server) persist(ctx context.Context, w http.ResponseWriter, st *requestState) {
	logger := observability.FromContext(ctx)
	sess := st.session
	if sess.Destroyed() {
		if err := s.cfg.Jars.Drop(ctx, sess.ID()); err != nil {
			logger.Warn("drop cookie jar", zap.Error(err))
		}
		s.cfg.Sessions.Destroy(w)
		return
	}
	if st.center != nil {
		sess.SetToasts(st.center.Pending())
	}
	if err := s.cfg.Jars.Save(ctx, sess.ID(), st.jar); err != nil {
		logger.Warn("save cookie jar", zap.Error(err))
	}
	if err := s.cfg.Sessions.Save(w, sess); err != nil {
		logger.Error("save session", zap.Error(err))
	}
	w.Header().Set(csrfHeader, sess.CSRFToken())
}

// csrf rejects unsafe requests whose token does not match the session's.
func (s *Server) csrf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isUnsafeMethod(r.Method) {
			st := stateFrom(r.Context())
			submitted := r.Header.Get(csrfHeader)
			if submitted == "" {
				submitted = r.PostFormValue(csrfFormField)
			}
			want := ""
			if st != nil {
				want = st.session.CSRFToken()
			}
			if want == "" || subtle.ConstantTimeCompare([]byte(submitted), []byte(want)) != 1 {
				observability.FromContext(r.Context()).Info("csrf token mismatch")
				WriteError(r.Context(), w, NewError("csrf_invalid", "Invalid or missing CSRF token", http.StatusForbidden))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func isUnsafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

// scope builds the per-request API client, auth manager and toast center and
// keeps the cached user snapshot in the session in sync with the auth state.
func (s *Server) scope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		st := stateFrom(ctx)
		if st == nil {
			WriteError(ctx, w, NewError("session_error", "Session unavailable", http.StatusInternalServerError))
			return
		}
		sess := st.session

		client := s.cfg.API
		if st.jar != nil {
			client = client.WithJar(st.jar)
		}
		center := notify.NewCenter(sess.Toasts())
		manager := auth.NewManager(client,
			auth.WithNotifier(center),
			auth.WithLogger(observability.FromContext(ctx)),
			auth.WithBaseURL(s.cfg.BaseURL),
		)
		manager.Restore(sess.User())
		manager.Subscribe(func(user *api.User, _ bool) {
			sess.SetUser(user, s.now())
		})
		if s.now().Sub(sess.AuthCheckedAt()) >= s.cfg.AuthRefresh {
			manager.CheckAuth(ctx)
		}

		st.center = center
		st.scope = &pages.Scope{API: client, Auth: manager, Notifier: center, Session: sess}

		ctx = pages.WithScope(ctx, st.scope)
		ctx = notify.WithCenter(ctx, center)
		ctx = views.WithRequestInfo(ctx, views.RequestInfo{
			CSRFToken: sess.CSRFToken(),
			Viewer:    manager,
			Console:   sess.Console(),
			Tours:     tours.Load(r),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP returns the address set by chi's RealIP, without the port.
func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSpace(host)
}

func (s *Server) now() time.Time {
	return s.cfg.Now()
}

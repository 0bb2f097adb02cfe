package httpserver

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const htmxContextKey contextKey = "htmx.info"

// HTMX marks requests sent by htmx in the context.
func HTMX() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			isHTMX := strings.EqualFold(r.Header.Get("HX-Request"), "true")
			w.Header().Add("Vary", "HX-Request")
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), htmxContextKey, isHTMX)))
		})
	}
}

// IsHTMXRequest returns true when the current request was initiated by htmx.
func IsHTMXRequest(ctx context.Context) bool {
	isHTMX, _ := ctx.Value(htmxContextKey).(bool)
	return isHTMX
}

// NoStore disables caching of personalised responses.
func NoStore() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}

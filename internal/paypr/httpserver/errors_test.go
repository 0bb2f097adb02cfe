package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := context.WithValue(context.Background(), chimw.RequestIDKey, "req-1")
	rec := httptest.NewRecorder()

	WriteError(ctx, rec, NewError("csrf_invalid", "Invalid\nor missing CSRF token", http.StatusForbidden))

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "csrf_invalid", body["error"])
	require.Equal(t, "Invalid or missing CSRF token", body["message"])
	require.EqualValues(t, 403, body["status"])
	require.Equal(t, "req-1", body["request_id"])
}

func TestNewErrorDefaults(t *testing.T) {
	err := NewError(strings.Repeat("x", 100), "boom", 0)
	require.Equal(t, http.StatusInternalServerError, err.Status)
	require.Len(t, err.Code, 80)
}

func TestUpstreamStatus(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, upstreamStatus(&api.Error{Message: "Not authenticated", Status: 401}))
	require.Equal(t, http.StatusBadGateway, upstreamStatus(&api.Error{Message: "down", Status: 503}))
	require.Equal(t, http.StatusBadGateway, upstreamStatus(errors.New("dial tcp: refused")))
}

func TestNormalizeLocation(t *testing.T) {
	cases := map[string][2]string{
		"":                {"/", "/"},
		"#/":              {"/", "/"},
		"#/p/acme?page=2": {"/p/acme?page=2", "/p/acme"},
		" /wallet ":       {"/wallet", "/wallet"},
	}
	for in, want := range cases {
		loc, path := normalizeLocation(in)
		require.Equal(t, want[0], loc, in)
		require.Equal(t, want[1], path, in)
	}
}

func TestIsExternal(t *testing.T) {
	require.True(t, isExternal("https://checkout.stripe.com/c/pay/cs_1"))
	require.True(t, isExternal("http://localhost:8080/x"))
	require.False(t, isExternal("/wallet"))
	require.False(t, isExternal(""))
}

func TestBeforeWriteWriterFiresOnce(t *testing.T) {
	rec := httptest.NewRecorder()
	calls := 0
	bw := &beforeWriteWriter{ResponseWriter: rec}
	bw.before = func() {
		calls++
		rec.Header().Set("Set-Cookie", "paypr_session=x")
	}

	bw.WriteHeader(http.StatusAccepted)
	_, _ = bw.Write([]byte("ok"))
	bw.fire()

	require.Equal(t, 1, calls)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "paypr_session=x", rec.Header().Get("Set-Cookie"))
}

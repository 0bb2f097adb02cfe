package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/observability"
)

const (
	apiPrefix      = "/api"
	showcasePrefix = "/showcase"

	instrumentationName = "github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	idempotencyHeader   = "Idempotency-Key"
)

// HTTPClient matches the subset of http.Client used by Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Cache stores serialised catalogue responses between requests.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Client talks to the Paypr backend JSON API. Each call is a single attempt with
// no retry; the caller's context is the only deadline.
type Client struct {
	base     *url.URL
	http     HTTPClient
	tracer   trace.Tracer
	cache    Cache
	cacheTTL time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport used for backend calls.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithCache enables read-through caching for anonymous catalogue reads.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// NewClient constructs a Client for the backend rooted at baseURL (scheme and host;
// JSON endpoints are resolved under /api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("api: base URL is required")
	}
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api: base URL %q must be absolute", baseURL)
	}

	c := &Client{
		base:   parsed,
		http:   &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithJar returns a shallow copy of the client that sends and records cookies through jar.
// The copy shares the underlying transport. Clients whose transport is not an
// *http.Client are returned unchanged.
func (c *Client) WithJar(jar http.CookieJar) *Client {
	hc, ok := c.http.(*http.Client)
	if !ok {
		return c
	}
	copied := *hc
	copied.Jar = jar
	clone := *c
	clone.http = &copied
	return &clone
}

// Payload is a normalised backend response body.
type Payload struct {
	Status      int
	ContentType string
	JSON        json.RawMessage
	Text        string
}

// IsJSON reports whether the backend declared a JSON body.
func (p *Payload) IsJSON() bool {
	return p != nil && p.JSON != nil
}

// Decode unmarshals a JSON payload into out.
func (p *Payload) Decode(out any) error {
	if p == nil || !p.IsJSON() {
		return errors.New("api: response is not JSON")
	}
	if len(bytes.TrimSpace(p.JSON)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(p.JSON, out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

// Do issues a request to an /api endpoint. A non-nil body is sent as JSON.
// Non-2xx responses are returned as *Error.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any) (*Payload, error) {
	return c.do(ctx, method, c.resolve(apiPrefix, endpoint), body, nil)
}

// Get issues a GET request to an /api endpoint.
func (c *Client) Get(ctx context.Context, endpoint string) (*Payload, error) {
	return c.Do(ctx, http.MethodGet, endpoint, nil)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (*Payload, error) {
	return c.Do(ctx, http.MethodPost, endpoint, body)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body any) (*Payload, error) {
	return c.Do(ctx, http.MethodPut, endpoint, body)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string) (*Payload, error) {
	return c.Do(ctx, http.MethodDelete, endpoint, nil)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	return c.callJSON(ctx, http.MethodGet, apiPrefix, endpoint, nil, out, nil)
}

func (c *Client) sendJSON(ctx context.Context, method, endpoint string, body, out any) error {
	return c.callJSON(ctx, method, apiPrefix, endpoint, body, out, nil)
}

// sendIdempotent attaches a fresh Idempotency-Key so a replayed form post cannot
// move money twice.
func (c *Client) sendIdempotent(ctx context.Context, endpoint string, body, out any) error {
	header := http.Header{}
	header.Set(idempotencyHeader, ulid.Make().String())
	return c.callJSON(ctx, http.MethodPost, apiPrefix, endpoint, body, out, header)
}

func (c *Client) callJSON(ctx context.Context, method, prefix, endpoint string, body, out any, header http.Header) error {
	payload, err := c.do(ctx, method, c.resolve(prefix, endpoint), body, header)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return payload.Decode(out)
}

// getCached serves endpoint from the catalogue cache when configured.
func (c *Client) getCached(ctx context.Context, endpoint string, out any) error {
	if c.cache == nil {
		return c.getJSON(ctx, endpoint, out)
	}
	logger := observability.FromContext(ctx)
	key := "paypr:api:" + endpoint

	if cached, ok, err := c.cache.Get(ctx, key); err != nil {
		logger.Warn("api cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		if err := json.Unmarshal(cached, out); err == nil {
			return nil
		}
	}

	payload, err := c.do(ctx, http.MethodGet, c.resolve(apiPrefix, endpoint), nil, nil)
	if err != nil {
		return err
	}
	if err := payload.Decode(out); err != nil {
		return err
	}
	if err := c.cache.Set(ctx, key, payload.JSON, c.cacheTTL); err != nil {
		logger.Warn("api cache write failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, target string, body any, header http.Header) (*Payload, error) {
	ctx, span := c.tracer.Start(ctx, "api "+method+" "+spanPath(target), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.full", target),
	)

	req, err := c.newRequest(ctx, method, target, body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, fmt.Errorf("api: request failed: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	payload, err := readPayload(resp)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := errorFromPayload(resp.StatusCode, payload)
		span.SetStatus(codes.Error, apiErr.Message)
		observability.FromContext(ctx).Warn("api error",
			zap.String("method", method),
			zap.String("endpoint", spanPath(target)),
			zap.Int("status", apiErr.Status),
			zap.String("message", apiErr.Message),
		)
		return nil, apiErr
	}
	span.SetStatus(codes.Ok, "")
	return payload, nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	return req, nil
}

func (c *Client) resolve(prefix, endpoint string) string {
	rel := strings.TrimSpace(endpoint)
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	path, query, _ := strings.Cut(rel, "?")
	u := *c.base
	escaped := strings.TrimRight(c.base.EscapedPath(), "/") + prefix + path
	if unescaped, err := url.PathUnescape(escaped); err == nil {
		u.Path = unescaped
		u.RawPath = escaped
	} else {
		u.Path = escaped
		u.RawPath = ""
	}
	u.RawQuery = query
	return u.String()
}

func readPayload(resp *http.Response) (*Payload, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("api: read response: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	payload := &Payload{Status: resp.StatusCode, ContentType: contentType}
	if isJSONContentType(contentType) {
		if raw == nil {
			raw = []byte{}
		}
		payload.JSON = json.RawMessage(raw)
		return payload, nil
	}
	payload.Text = string(raw)
	return payload, nil
}

func isJSONContentType(value string) bool {
	if value == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.Contains(strings.ToLower(value), "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func spanPath(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	return u.Path
}

func escape(segment string) string {
	return url.PathEscape(strings.TrimSpace(segment))
}

func withQuery(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	encoded := params.Encode()
	if encoded == "" {
		return endpoint
	}
	return endpoint + "?" + encoded
}

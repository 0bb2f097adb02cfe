package config

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile            = ".env"
	defaultAddr               = ":8080"
	defaultEnvironment        = "development"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultRequestTimeout     = 25 * time.Second
	defaultSessionCookie      = "paypr_session"
	defaultSessionIdle        = 2 * time.Hour
	defaultSessionLifetime    = 30 * 24 * time.Hour
	defaultAuthRefresh        = time.Minute
	defaultContentDir         = "content"
	defaultCacheTTL           = 5 * time.Minute
	defaultRateLimitAuth      = 10
	defaultRateLimitMagicLink = 5
	defaultNavigatorIdle      = 30 * time.Minute
	minSessionKeyLength       = 32
)

// Config captures the runtime configuration of the front-end server.
type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Backend     BackendConfig
	Session     SessionConfig
	Content     ContentConfig
	Cache       CacheConfig
	RateLimits  RateLimitConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr           string
	BaseURL        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	NavigatorIdle  time.Duration
}

// BackendConfig points at the Paypr JSON API.
type BackendConfig struct {
	URL string
}

// SessionConfig controls the encrypted browser session cookie.
type SessionConfig struct {
	CookieName  string
	HashKey     []byte
	BlockKey    []byte
	Secure      bool
	IdleTimeout time.Duration
	Lifetime    time.Duration
	AuthRefresh time.Duration
}

// ContentConfig locates the markdown pages.
type ContentConfig struct {
	Dir   string
	Watch bool
}

// CacheConfig configures the catalogue cache. An empty RedisURL selects the in-memory store.
type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

// RateLimitConfig throttles authentication actions per client IP.
type RateLimitConfig struct {
	AuthPerMinute    int
	MagicLinkPerHour int
}

// IsDevelopment reports whether the server runs in a local development environment.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.Environment) {
	case "development", "dev", "local", "test":
		return true
	default:
		return false
	}
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path. An empty path disables the file.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the system environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the configuration from defaults, the .env file, the process
// environment and explicit overrides, in increasing order of precedence.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnv, err := readDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnv[key]; ok {
			return value, true
		}
		return "", false
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "PAYPR_WEB_ENV", defaultEnvironment)),
		LogLevel:    stringWithDefault(lookup, "LOG_LEVEL", "info"),
		Server: ServerConfig{
			Addr:           stringWithDefault(lookup, "PAYPR_WEB_ADDR", defaultAddr),
			BaseURL:        strings.TrimRight(stringWithDefault(lookup, "PAYPR_WEB_BASE_URL", ""), "/"),
			ReadTimeout:    durationWithDefault(lookup, "PAYPR_WEB_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   durationWithDefault(lookup, "PAYPR_WEB_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    durationWithDefault(lookup, "PAYPR_WEB_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout: durationWithDefault(lookup, "PAYPR_WEB_REQUEST_TIMEOUT", defaultRequestTimeout),
			NavigatorIdle:  durationWithDefault(lookup, "PAYPR_WEB_NAVIGATOR_IDLE", defaultNavigatorIdle),
		},
		Backend: BackendConfig{
			URL: strings.TrimRight(stringWithDefault(lookup, "PAYPR_WEB_BACKEND_URL", ""), "/"),
		},
		Session: SessionConfig{
			CookieName:  stringWithDefault(lookup, "PAYPR_WEB_SESSION_COOKIE", defaultSessionCookie),
			HashKey:     []byte(stringWithDefault(lookup, "PAYPR_WEB_SESSION_HASH_KEY", "")),
			BlockKey:    []byte(stringWithDefault(lookup, "PAYPR_WEB_SESSION_BLOCK_KEY", "")),
			IdleTimeout: durationWithDefault(lookup, "PAYPR_WEB_SESSION_IDLE_TIMEOUT", defaultSessionIdle),
			Lifetime:    durationWithDefault(lookup, "PAYPR_WEB_SESSION_LIFETIME", defaultSessionLifetime),
			AuthRefresh: durationWithDefault(lookup, "PAYPR_WEB_AUTH_REFRESH", defaultAuthRefresh),
		},
		Content: ContentConfig{
			Dir: stringWithDefault(lookup, "PAYPR_WEB_CONTENT_DIR", defaultContentDir),
		},
		Cache: CacheConfig{
			RedisURL: stringWithDefault(lookup, "PAYPR_WEB_CACHE_REDIS_URL", ""),
			TTL:      durationWithDefault(lookup, "PAYPR_WEB_CACHE_TTL", defaultCacheTTL),
		},
		RateLimits: RateLimitConfig{
			AuthPerMinute:    intWithDefault(lookup, "PAYPR_WEB_RATELIMIT_AUTH_PER_MIN", defaultRateLimitAuth),
			MagicLinkPerHour: intWithDefault(lookup, "PAYPR_WEB_RATELIMIT_MAGIC_PER_HOUR", defaultRateLimitMagicLink),
		},
	}

	dev := cfg.IsDevelopment()
	cfg.Session.Secure = boolWithDefault(lookup, "PAYPR_WEB_SESSION_SECURE", !dev)
	cfg.Content.Watch = boolWithDefault(lookup, "PAYPR_WEB_CONTENT_WATCH", dev)

	// Development servers get process-ephemeral keys so a fresh checkout runs without setup.
	if dev && len(cfg.Session.HashKey) == 0 {
		cfg.Session.HashKey = randomKey(64)
		if len(cfg.Session.BlockKey) == 0 {
			cfg.Session.BlockKey = randomKey(32)
		}
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	var missing []string
	if cfg.Backend.URL == "" {
		missing = append(missing, "PAYPR_WEB_BACKEND_URL")
	} else if u, err := url.Parse(cfg.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		missing = append(missing, "PAYPR_WEB_BACKEND_URL")
	}
	if len(cfg.Session.HashKey) < minSessionKeyLength {
		missing = append(missing, "PAYPR_WEB_SESSION_HASH_KEY")
	}
	switch len(cfg.Session.BlockKey) {
	case 0, 16, 24, 32:
	default:
		missing = append(missing, "PAYPR_WEB_SESSION_BLOCK_KEY")
	}
	if cfg.Cache.RedisURL != "" {
		if _, err := url.Parse(cfg.Cache.RedisURL); err != nil {
			missing = append(missing, "PAYPR_WEB_CACHE_REDIS_URL")
		}
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func readDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return values, nil
}

func randomKey(n int) []byte {
	key := make([]byte, n)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Errorf("config: generate key: %w", err))
	}
	return key
}

type lookupFunc func(string) (string, bool)

func stringWithDefault(lookup lookupFunc, key, def string) string {
	if value, ok := lookup(key); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return def
}

func durationWithDefault(lookup lookupFunc, key string, def time.Duration) time.Duration {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func intWithDefault(lookup lookupFunc, key string, def int) int {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func boolWithDefault(lookup lookupFunc, key string, def bool) bool {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return b
}

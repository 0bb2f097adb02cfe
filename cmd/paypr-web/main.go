package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikedasquirrel/PayprProto/internal/paypr/api"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/cache"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/config"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/content"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/httpserver"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/observability"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/pages"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/router"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/session"
	"github.com/mikedasquirrel/PayprProto/internal/paypr/views"
)

const shutdownTimeout = 10 * time.Second

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:           "paypr-web",
	Short:         "Paypr reader front end",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	RunE:  runServe,
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the page routes in match order and the form actions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		renderer, err := views.New()
		if err != nil {
			return err
		}
		p := pages.New(renderer, nil)
		rt := router.New(router.WithNotFound(p.NotFound))
		p.Register(rt)

		out := cmd.OutOrStdout()
		for _, pattern := range rt.Routes() {
			fmt.Fprintf(out, "GET  #%s\n", pattern)
		}
		names := make([]string, 0)
		for name := range p.Actions() {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(out, "POST /actions/%s\n", name)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")
	rootCmd.AddCommand(serveCmd, routesCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, config.WithEnvFile(envFile))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	srv, cleanup, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("paypr-web listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("backend", cfg.Backend.URL),
			zap.String("env", cfg.Environment),
			zap.String("version", version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*httpserver.Server, func(), error) {
	backend, err := url.Parse(cfg.Backend.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse backend url: %w", err)
	}

	store := cache.Open(ctx, cfg.Cache.RedisURL, logger)
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("close cache", zap.Error(err))
		}
	}

	client, err := api.NewClient(cfg.Backend.URL, api.WithCache(store, cfg.Cache.TTL))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("api client: %w", err)
	}

	sessions, err := session.NewManager(session.Config{
		CookieName:   cfg.Session.CookieName,
		HashKey:      cfg.Session.HashKey,
		BlockKey:     cfg.Session.BlockKey,
		CookieSecure: cfg.Session.Secure,
		IdleTimeout:  cfg.Session.IdleTimeout,
		Lifetime:     cfg.Session.Lifetime,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("session manager: %w", err)
	}

	renderer := views.MustNew()
	pagesStore := content.NewStore(cfg.Content.Dir, cfg.Cache.TTL)
	if cfg.Content.Watch {
		go func() {
			if err := pagesStore.Watch(ctx, logger); err != nil {
				logger.Warn("content watcher stopped", zap.Error(err))
			}
		}()
	}

	srv, err := httpserver.New(httpserver.Config{
		Address:          cfg.Server.Addr,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		IdleTimeout:      cfg.Server.IdleTimeout,
		RequestTimeout:   cfg.Server.RequestTimeout,
		Logger:           logger,
		Sessions:         sessions,
		Jars:             session.NewJarStore(store, backend, cfg.Session.Lifetime),
		API:              client,
		Pages:            pages.New(renderer, pagesStore, pages.WithLogger(logger), pages.WithBaseURL(cfg.Server.BaseURL)),
		Views:            renderer,
		AuthRefresh:      cfg.Session.AuthRefresh,
		NavigatorIdle:    cfg.Server.NavigatorIdle,
		SecureCookies:    cfg.Session.Secure,
		BaseURL:          cfg.Server.BaseURL,
		AuthPerMinute:    cfg.RateLimits.AuthPerMinute,
		MagicLinkPerHour: cfg.RateLimits.MagicLinkPerHour,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return srv, cleanup, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/gatehouse/internal/auth"
	"github.com/holomush/gatehouse/internal/logging"
	"github.com/holomush/gatehouse/internal/observability"
	"github.com/holomush/gatehouse/internal/web"
	"github.com/holomush/gatehouse/pkg/errutil"
)

const serviceName = "gatehouse"

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP authentication server",
		Long: `Start the HTTP server that handles registration, login, logout and
the session-guarded dashboard, plus the metrics and health listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd.OutOrStdout(), nil)
		},
	}

	f := cmd.Flags()
	f.String("addr", ":3000", "HTTP listen address")
	f.String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	f.String("log-format", "json", "log format (json or text)")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.String("otlp-endpoint", "", "OTLP gRPC trace endpoint (empty = disabled)")
	f.String("store", backendPostgres, "user store backend (postgres or memory)")
	f.String("database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")
	f.String("sessions", backendRedis, "session store backend (redis, postgres or memory)")
	f.Duration("session-ttl", auth.DefaultSessionTTL, "session lifetime")
	f.String("redis-addr", "", "Redis address (default: $REDIS_ADDR)")
	f.Int("hash-cost", auth.DefaultBcryptCost, "bcrypt work factor")
	f.Int("hash-workers", 0, "concurrent hash operations (0 = GOMAXPROCS)")
	f.Bool("cookie-secure", false, "mark the session cookie Secure (default: $SESSION_COOKIE_SECURE)")
	f.Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")

	return cmd
}

// runServe runs the server until ctx is cancelled, a signal arrives or a
// listener fails. listening, when non-nil, receives the bound address.
func runServe(ctx context.Context, cfg *Config, out io.Writer, listening func(addr string)) error {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
	})

	shutdownTracer, err := observability.InitTracer(ctx, serviceName, version, cfg.Tracing.Endpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("error shutting down tracer", "error", err)
		}
	}()

	b, err := openBackends(ctx, cfg)
	defer b.Close()
	if err != nil {
		return err
	}
	logger.Info("stores ready", "store", cfg.Store.Backend, "sessions", cfg.Session.Backend)

	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, b.ready)
		metrics = obsServer.Metrics()
	}

	svc, err := newService(cfg, b, metrics, logger)
	if err != nil {
		return err
	}

	routerCfg := web.RouterConfig{
		Service: svc,
		Cookies: web.CookieConfig{
			Name:   cfg.Session.CookieName,
			Domain: cfg.Session.CookieDomain,
			Secure: cfg.Session.CookieSecure,
		},
		Logger:       logger,
		Version:      version,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	if metrics != nil {
		routerCfg.Metrics = metrics
	}
	if cfg.Tracing.Endpoint != "" {
		routerCfg.TraceService = serviceName
	}
	gin.SetMode(gin.ReleaseMode)
	router := web.NewRouter(routerCfg)

	listener, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}
	httpSrv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obs ObservabilityServer
	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			_ = listener.Close() //nolint:errcheck // start error takes precedence
			return oops.With("operation", "start observability server").Wrap(err)
		}
		obs = obsServer
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	if b.sweeper != nil {
		go auth.SweepExpiredSessions(ctx, b.sweeper, cfg.Session.SweepInterval, logger)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	addr := listener.Addr().String()
	logger.Info("gatehouse ready", "addr", addr)
	fmt.Fprintf(out, "gatehouse listening on %s\n", addr) //nolint:errcheck // best-effort banner
	if listening != nil {
		listening(addr)
	}

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errChan:
		serveErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		errutil.LogError(logger, "error stopping http server", err)
	}
	if obs != nil {
		if err := obs.Stop(shutdownCtx); err != nil {
			errutil.LogError(logger, "error stopping observability server", err)
		}
	}

	logger.Info("shutdown complete")
	return serveErr
}

// newService wires the hash pool and the auth service. metrics may be nil.
func newService(cfg *Config, b *backends, metrics *observability.Metrics, logger *slog.Logger) (*auth.Service, error) {
	bcryptHasher, err := auth.NewBcryptHasher(cfg.Hasher.Cost)
	if err != nil {
		return nil, err
	}

	var poolOpts []auth.HashPoolOption
	svcCfg := auth.ServiceConfig{
		SessionTTL:   cfg.Session.TTL,
		StoreTimeout: cfg.Store.Timeout,
	}
	if metrics != nil {
		poolOpts = append(poolOpts, auth.WithHashObserver(metrics))
		svcCfg.Recorder = metrics
	}

	pool, err := auth.NewHashPool(bcryptHasher, cfg.Hasher.Workers, poolOpts...)
	if err != nil {
		return nil, err
	}
	logger.Info("hash pool ready", "workers", pool.Workers(), "cost", bcryptHasher.Cost())

	return auth.NewServiceWithLogger(b.users, b.sessions, pool, svcCfg, logger)
}

// monitorServerErrors cancels ctx when the server reports an error. It
// returns when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}

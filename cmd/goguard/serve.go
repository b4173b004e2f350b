package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal/config"
	"github.com/MrEthical07/goGuard/internal/credentials"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/MrEthical07/goGuard/internal/observability"
	"github.com/MrEthical07/goGuard/internal/server"
	"github.com/MrEthical07/goGuard/jwt"
	otelexport "github.com/MrEthical07/goGuard/metrics/export/otel"
	promexport "github.com/MrEthical07/goGuard/metrics/export/prometheus"
	"github.com/MrEthical07/goGuard/password"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("listen", "", "listen address")
	cmd.Flags().String("credentials", "", "path to the YAML credential file")
	cmd.Flags().String("log-file", "", "also write logs to this file")
	cmd.Flags().Int("max-failed", 0, "failed attempts before lockout")
	cmd.Flags().Duration("lockout-window", 0, "lockout window")
	cmd.Flags().String("login-fail-mode", "", "login behavior when the counter store is down (open, closed)")
	cmd.Flags().Bool("audit", false, "enable audit events")
	cmd.Flags().Bool("latency-histogram", false, "record login latency histogram")
	return cmd
}

// loadRuntime reads configuration and builds the logger shared by every command.
func loadRuntime(cmd *cobra.Command) (*config.Config, *slog.Logger, io.Closer, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closer, err := logging.New(logging.Config{
		Level:  level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}, os.Stderr)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closer, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, logCloser, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	logger.Info("goguard_starting",
		"version", version,
		"go_version", runtime.Version(),
		"listen", cfg.Server.Listen,
		"store", cfg.Store.Driver,
		"pid", os.Getpid(),
	)

	if err := observability.InitSentry(cfg.Audit.SentryDSN, "production", version); err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	defer observability.FlushSentry()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	be, err := openBackend(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer be.Close(context.Background())

	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return err
	}
	directory, err := credentials.Load(cfg.Auth.CredentialsFile, hasher)
	if err != nil {
		return err
	}
	logger.Info("credentials_loaded", "identities", directory.Len(), "file", cfg.Auth.CredentialsFile)

	sinks := goGuard.MultiSink{}
	if cfg.Audit.JSONFile != "" {
		f, err := os.OpenFile(cfg.Audit.JSONFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return fmt.Errorf("open audit file: %w", err)
		}
		defer f.Close()
		sinks = append(sinks, goGuard.NewJSONWriterSink(f))
	}
	if cfg.Audit.SentryDSN != "" {
		sinks = append(sinks, observability.NewSentrySink(nil))
	}
	if cfg.Audit.MQTTBroker != "" {
		mq, err := observability.DialMQTT(observability.MQTTSettings{
			Broker: cfg.Audit.MQTTBroker,
			Topic:  cfg.Audit.MQTTTopic,
		}, logger)
		if err != nil {
			return err
		}
		defer mq.Close()
		sinks = append(sinks, mq)
	}

	engine, err := goGuard.New().
		WithConfig(engineCfg).
		WithStore(be.store).
		WithVerifier(directory).
		WithAuditSink(sinks).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if _, err := otelexport.NewOTelExporter(otel.GetMeterProvider().Meter("github.com/MrEthical07/goGuard"), engine); err != nil {
		return fmt.Errorf("register otel metrics: %w", err)
	}

	tokens, err := newTokenManager(cfg.Auth)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Engine:  engine,
		Tokens:  tokens,
		Logger:  logger,
		Metrics: promexport.NewPrometheusExporter(engine).Handler(),
		Health:  be.health,
	})
	if err != nil {
		return err
	}

	if be.sweeper != nil {
		be.sweeper.Start()
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)
	go func() {
		for range reload {
			if err := directory.Reload(); err != nil {
				logger.Error("credentials_reload_failed", "error", err)
				continue
			}
			logger.Info("credentials_reloaded", "identities", directory.Len())
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("goguard_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("goguard_stopped", "audit_dropped", engine.AuditDropped())
	return nil
}

// newTokenManager signs with the configured HMAC secret, or with a fresh
// Ed25519 key when none is set. Tokens from a generated key do not survive
// a restart.
func newTokenManager(cfg config.AuthConfig) (*jwt.Manager, error) {
	jc := jwt.Config{
		TTL:    cfg.TokenTTL,
		Issuer: cfg.Issuer,
	}
	if cfg.TokenSecret != "" {
		jc.SigningMethod = jwt.MethodHS256
		jc.PrivateKey = []byte(cfg.TokenSecret)
	} else {
		_, priv, err := generateEd25519()
		if err != nil {
			return nil, err
		}
		jc.SigningMethod = jwt.MethodEd25519
		jc.PrivateKey = priv
	}
	return jwt.NewManager(jc)
}

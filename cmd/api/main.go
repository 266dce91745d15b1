package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/seanblong/testgen/internal/ai"
	"github.com/seanblong/testgen/internal/api"
	"github.com/seanblong/testgen/internal/auth"
	"github.com/seanblong/testgen/internal/config"
	"github.com/seanblong/testgen/internal/generator"
	"github.com/seanblong/testgen/internal/github"
	"github.com/seanblong/testgen/internal/store"
	"github.com/spf13/pflag"
)

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("testgen-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs, os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	zlog.Logger = logger
	logger.Info().
		Str("provider", string(cfg.EffectiveProvider())).
		Str("log_level", cfg.LogLevel).
		Bool("auth_enabled", cfg.Auth.Enabled).
		Msg("starting testgen api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	history, closeHistory, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeHistory()
	if err := history.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// A missing credential must not stop the server; the affected routes
	// report it instead.
	opts := api.Options{
		Guard:  auth.NewGuard(cfg.Auth.JwtSecret, cfg.Auth.Enabled, cfg.Auth.TokenTTL),
		Logger: logger,
	}
	if c, err := ai.NewClient(cfg.ClientConfig()); err != nil {
		logger.Warn().Err(err).Msg("AI client unavailable")
		opts.GeneratorErr = err
	} else {
		logger.Info().Str("provider", string(c.Provider())).Str("model", c.DefaultModel()).Msg("AI client initialized")
		opts.Generator = generator.NewService(c, history)
	}
	if gh, err := github.NewClient(cfg.GithubConfig()); err != nil {
		logger.Warn().Err(err).Msg("GitHub client unavailable")
		opts.ReposErr = err
	} else {
		opts.Repos = gh
	}

	if cfg.Auth.Enabled {
		logger.Info().Msg("Authentication is ENABLED")
	} else {
		logger.Info().Msg("Authentication is DISABLED - running in open mode")
	}

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{
		Addr:              address,
		Handler:           api.New(opts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", s.Addr, err)
	}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	// returns only after in-flight requests finish, so the store closes last
	if err := serve(ctx, s, ln, logger, shutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("api server stopped")
	}
}

const shutdownTimeout = 15 * time.Second

// serve runs s on ln until ctx is done, then shuts it down and waits for
// in-flight requests up to grace.
func serve(ctx context.Context, s *http.Server, ln net.Listener, logger zerolog.Logger, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutdown signal, stopping api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Package main runs the permissioned network node: it boots the world
// state from the genesis document, serves the HTTP and websocket API, and
// schedules the keeper duties.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/HVN-Network/permission_layer/internal/cache"
	"github.com/HVN-Network/permission_layer/internal/config"
	"github.com/HVN-Network/permission_layer/internal/httpapi"
	"github.com/HVN-Network/permission_layer/internal/keeper"
	"github.com/HVN-Network/permission_layer/internal/metrics"
	"github.com/HVN-Network/permission_layer/internal/middleware"
	"github.com/HVN-Network/permission_layer/internal/node"
	"github.com/HVN-Network/permission_layer/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	genesisPath := flag.String("genesis", "", "override the genesis document path")
	tokenSubject := flag.String("issue-token", "", "print an admin API token for the given subject and exit")
	flag.Parse()

	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *genesisPath != "" {
		cfg.Genesis.Path = *genesisPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)

	if *tokenSubject != "" {
		auth := middleware.NewAuthenticator(cfg.Auth, logger)
		token, err := auth.IssueToken(*tokenSubject, middleware.AdminRole, time.Now())
		if err != nil {
			logger.Fatal().Err(err).Msg("issue token")
		}
		fmt.Println(token)
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("node exited")
	}
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	logger := zerolog.New(out)
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	genesis, err := config.LoadGenesis(cfg.Genesis.Path)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector("permnode")

	var store storage.EventStore = storage.NewMemoryStore()
	if cfg.Database.Enabled {
		pg, err := storage.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		store = pg
		logger.Info().Msg("postgres event store enabled")
	}
	defer store.Close()

	var c cache.Cache = cache.NewMemory()
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		c = rc
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis cache enabled")
	}
	defer c.Close()

	n, err := node.New(genesis, store, collector, logger)
	if err != nil {
		return err
	}

	var k *keeper.Keeper
	if cfg.Keeper.Enabled {
		k, err = keeper.New(cfg.Keeper, n, collector, logger)
		if err != nil {
			return err
		}
		k.Start()
	}

	api := httpapi.New(cfg, n, store, c, collector, logger)
	// WriteTimeout stays unset so the websocket feed can run long-lived
	// connections; the read handlers are bounded by their own work.
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Router(cfg.Server, ctx.Done()),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if k != nil {
		k.Stop(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

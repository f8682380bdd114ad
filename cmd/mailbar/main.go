package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nhle/mailbar/internal/auth"
	"github.com/nhle/mailbar/internal/bridge"
	"github.com/nhle/mailbar/internal/codec"
	"github.com/nhle/mailbar/internal/credential"
	"github.com/nhle/mailbar/internal/gmail"
	"github.com/nhle/mailbar/internal/model"
	"github.com/nhle/mailbar/internal/notify"
	"github.com/nhle/mailbar/internal/store"
	"github.com/nhle/mailbar/internal/sync"
)

// notificationRetention is how long raised notifications are kept.
const notificationRetention = 7 * 24 * time.Hour

type flags struct {
	configPath string
	addr       string
}

func main() {
	f := parseFlags()
	if err := run(f); err != nil {
		log.Error().Err(err).Msg("mailbar failed")
		os.Exit(1)
	}
}

func parseFlags() flags {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config.yaml")
	addr := flag.String("addr", "", "bridge listen address (overrides config)")
	flag.Parse()

	return flags{configPath: *configPath, addr: *addr}
}

func run(f flags) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	cfg, err := model.LoadConfig(f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg.Log)

	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}

	settings, err := model.OpenSettingsStore(f.configPath)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if n, err := db.DeleteNotificationsBefore(ctx, time.Now().Add(-notificationRetention)); err != nil {
		log.Warn().Err(err).Msg("pruning notifications failed")
	} else if n > 0 {
		log.Debug().Int64("count", n).Msg("pruned old notifications")
	}

	creds, err := credential.Open(cfg.Storage.CredentialDir)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	authenticator := auth.New(
		auth.NewOAuthConfig(cfg.Auth),
		creds,
		cfg.Auth.RevokeURL,
		auth.WithLogger(log.Logger.With().Str("component", "auth").Logger()),
	)

	clientOpts := []gmail.Option{
		gmail.WithEndpoint(cfg.API.Endpoint),
		gmail.WithTimeout(cfg.API.Timeout),
		gmail.WithRateLimit(cfg.API.RPS),
		gmail.WithLogger(log.Logger.With().Str("component", "gmail").Logger()),
	}
	if cfg.API.SanitizeHTML {
		clientOpts = append(clientOpts, gmail.WithSanitizer(codec.NewSanitizer()))
	}
	client, err := gmail.NewClient(ctx, clientOpts...)
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}

	poller := sync.New(
		client,
		authenticator,
		settings,
		notify.NewStoreNotifier(db, log.Logger.With().Str("component", "notify").Logger()),
		log.Logger.With().Str("component", "poller").Logger(),
	)
	poller.Start()
	defer poller.Stop()

	dispatcher := bridge.NewDispatcher(
		client,
		authenticator,
		settings,
		poller,
		log.Logger.With().Str("component", "bridge").Logger(),
	)
	server := bridge.NewServer(dispatcher, db, cfg.Server.AllowedOrigins, log.Logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("bridge listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("bridge server: %w", err)
		}
	}

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func setupLogger(cfg model.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch cfg.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

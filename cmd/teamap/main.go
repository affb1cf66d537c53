package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/avogel/teamap/internal/cache"
	"github.com/avogel/teamap/internal/catalog"
	"github.com/avogel/teamap/internal/config"
	"github.com/avogel/teamap/internal/identity"
	"github.com/avogel/teamap/internal/logging"
	"github.com/avogel/teamap/internal/remote"
	"github.com/avogel/teamap/internal/suggest"
	appsync "github.com/avogel/teamap/internal/sync"
	"github.com/avogel/teamap/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	session, err := identity.Inspect(cfg.AccessToken)
	if err != nil {
		logger.Error("failed to inspect access token", "error", err)
		return
	}
	if session.Expired(time.Now()) {
		logger.Warn("access token is expired, remote calls will be rejected",
			"expired_at", session.ExpiresAt)
	}

	database, err := cache.Open(cfg.CachePath)
	if err != nil {
		logger.Error("failed to open cache", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close cache", "error", err)
		}
	}()
	store := cache.NewStore(database)

	ctx := context.Background()

	// The cache belongs to one account. A different owner means the
	// user switched accounts on this device; their old data must not
	// leak into the new session.
	if err := bindOwner(ctx, store, session.Owner, logger); err != nil {
		logger.Error("failed to bind cache to account", "error", err)
		return
	}

	cat, err := catalog.Load()
	if err != nil {
		logger.Error("failed to load starter catalogue", "error", err)
		return
	}

	client := remote.NewClient(cfg.RemoteURL, cfg.RemoteAnonKey, cfg.AccessToken)
	migrator := appsync.NewMigrationRunner(store, client, logger)
	coordinator := appsync.NewCoordinator(store, client, cat, migrator, logger)

	snap, err := coordinator.LoadAll(ctx)
	if err != nil {
		logger.Error("failed to load catalogue", "error", err)
		return
	}
	logger.Info("session loaded", "teas", len(snap.Teas), "degraded", snap.Degraded)

	server := web.NewServer(coordinator, newSuggester(cfg, logger), cfg.CORSOrigins, logger)
	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}

func bindOwner(ctx context.Context, store *cache.Store, owner string, logger *slog.Logger) error {
	cachedOwner, err := store.Owner(ctx)
	if err != nil {
		return err
	}
	if cachedOwner != "" && cachedOwner != owner {
		logger.Info("account changed, resetting cache", "previous", cachedOwner)
		if err := store.Reset(ctx); err != nil {
			return err
		}
	}
	return store.SetOwner(ctx, owner)
}

func newSuggester(cfg *config.Config, logger *slog.Logger) suggest.Suggester {
	if cfg.AnthropicAPIKey == "" {
		logger.Info("tasting-note suggestions disabled, no API key configured")
		return nil
	}
	logger.Info("tasting-note suggestions enabled", "model", cfg.SuggestModel)
	return suggest.NewAnthropicSuggester(cfg.AnthropicAPIKey, cfg.SuggestModel)
}

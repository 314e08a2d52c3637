package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-console/internal/api"
	"github.com/spec-kit/guild-console/internal/config"
	"github.com/spec-kit/guild-console/internal/guildperm"
	"github.com/spec-kit/guild-console/internal/observability"
	"github.com/spec-kit/guild-console/internal/session"
	"github.com/spec-kit/guild-console/internal/silentauth"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := newStore(cfg, logger)

	client := api.NewClient(cfg.API, store, logger)
	opener := silentauth.NewHTTPFrameOpener(cfg.Auth.SilentTimeout())
	channel := silentauth.NewChannel(cfg.Auth, opener, store, logger)

	handoff := make(chan string, 1)
	listener := silentauth.NewListener(cfg.Auth, channel.Deliver, func(token string) {
		select {
		case handoff <- token:
		default:
		}
	}, logger)

	go func() {
		if err := listener.Start(); err != nil {
			logger.Warn("loopback listener stopped", zap.Error(err))
		}
	}()
	defer listener.Shutdown() //nolint:errcheck

	provider := session.NewProvider(store, client, channel, cfg.Auth.BootstrapTimeout(), logger)
	resolver := guildperm.NewResolver(client, logger)

	app := &console{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		api:      client,
		provider: provider,
		resolver: resolver,
		handoff:  handoff,
	}

	if err := newRootCmd(app).ExecuteContext(ctx); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func newStore(cfg *config.Config, logger *zap.Logger) session.Store {
	if cfg.Session.Backend == config.SessionBackendRedis {
		return session.NewRedisStore(cfg.Session, logger)
	}
	return session.NewFileStore(cfg.Session.StatePath)
}

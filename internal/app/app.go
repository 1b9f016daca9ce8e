package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	httpapi "github.com/cognivue/cognivue-backend/internal/http"
	"github.com/cognivue/cognivue-backend/internal/observability"
	"github.com/cognivue/cognivue-backend/internal/platform/dbctx"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	Server   *httpapi.Server
	Metrics  *observability.Metrics

	otelShutdown func(context.Context) error
}

func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)
	metrics := observability.Init(cfg.Metrics, log)

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	reposet := wireRepos(clients.DB, clients, cfg, log)
	serviceset, err := wireServices(log, cfg, clients, reposet)
	if err != nil {
		clients.Close(log)
		log.Sync()
		return nil, err
	}
	handlers := wireHandlers(log, cfg, clients, serviceset)
	middleware := wireMiddleware(log, serviceset)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Server:       wireServer(log, cfg, metrics, handlers, middleware),
		Metrics:      metrics,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves the API until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	a.Metrics.StartServer(gctx, a.Log, a.Cfg.Metrics.Addr)
	a.Metrics.StartDBCollector(gctx, a.Log, a.Clients.DB)
	if a.Clients.Redis != nil {
		a.Metrics.StartRedisCollector(gctx, a.Log, a.Clients.Redis)
	}

	g.Go(func() error {
		return a.Server.Run(gctx, a.Cfg.ListenAddr(), a.Cfg.ShutdownTimeout)
	})
	if a.Cfg.TokenCleanupInterval > 0 {
		g.Go(func() error {
			a.purgeExpiredTokens(gctx, a.Cfg.TokenCleanupInterval)
			return nil
		})
	}
	return g.Wait()
}

func (a *App) purgeExpiredTokens(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Repos.UserToken.DeleteExpired(dbctx.Context{Ctx: ctx}, time.Now().UTC())
			if err != nil {
				a.Log.Warn("expired token purge failed", "error", err)
				continue
			}
			if n > 0 {
				a.Log.Info("Purged expired session tokens", "count", n)
			}
		}
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close(a.Log)
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
		cancel()
	}
	a.Log.Sync()
}

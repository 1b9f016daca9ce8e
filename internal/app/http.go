package app

import (
	"context"

	httpapi "github.com/cognivue/cognivue-backend/internal/http"
	httpH "github.com/cognivue/cognivue-backend/internal/http/handlers"
	httpMW "github.com/cognivue/cognivue-backend/internal/http/middleware"
	"github.com/cognivue/cognivue-backend/internal/observability"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health    *httpH.HealthHandler
	Auth      *httpH.AuthHandler
	User      *httpH.UserHandler
	Interview *httpH.InterviewHandler
	Resume    *httpH.ResumeHandler
}

func wireHandlers(log *logger.Logger, cfg Config, clients Clients, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	ping := func(ctx context.Context) error {
		sqlDB, err := clients.DB.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		if clients.Redis != nil {
			return clients.Redis.Ping(ctx).Err()
		}
		return nil
	}
	return Handlers{
		Health: httpH.NewHealthHandler(ping),
		Auth: httpH.NewAuthHandler(log, serviceset.Auth, cfg.Auth.FrontendURL, httpH.CookieConfig{
			Domain: cfg.Auth.CookieDomain,
			Secure: cfg.Auth.CookieSecure,
		}),
		User:      httpH.NewUserHandler(serviceset.User),
		Interview: httpH.NewInterviewHandler(serviceset.Interview),
		Resume:    httpH.NewResumeHandler(serviceset.Resume, cfg.MaxUploadSize),
	}
}

func wireMiddleware(log *logger.Logger, serviceset Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, serviceset.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *httpapi.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return httpapi.NewServer(httpapi.RouterConfig{
		Log:              log,
		ServiceName:      serviceName,
		FrontendURL:      cfg.Auth.FrontendURL,
		CORSOrigins:      cfg.Auth.CORSOrigins,
		Metrics:          metrics,
		AuthMiddleware:   middleware.Auth,
		AuthHandler:      handlers.Auth,
		UserHandler:      handlers.User,
		InterviewHandler: handlers.Interview,
		ResumeHandler:    handlers.Resume,
		HealthHandler:    handlers.Health,
	})
}

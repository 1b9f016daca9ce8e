package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/cognivue/cognivue-backend/internal/http/handlers"
	httpMW "github.com/cognivue/cognivue-backend/internal/http/middleware"
	"github.com/cognivue/cognivue-backend/internal/observability"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	FrontendURL string
	CORSOrigins []string
	Metrics     *observability.Metrics

	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler      *httpH.AuthHandler
	UserHandler      *httpH.UserHandler
	InterviewHandler *httpH.InterviewHandler
	ResumeHandler    *httpH.ResumeHandler
	HealthHandler    *httpH.HealthHandler
}

// handle registers h at path with and without the trailing slash so clients
// need not care which form they use.
func handle(g gin.IRoutes, method, path string, h ...gin.HandlerFunc) {
	g.Handle(method, path, h...)
	if len(path) > 1 && path[len(path)-1] == '/' {
		g.Handle(method, path[:len(path)-1], h...)
	}
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.FrontendURL, cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		handle(r, "GET", "/api/health/", cfg.HealthHandler.Health)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	// Google OAuth (public)
	if cfg.AuthHandler != nil {
		authG := r.Group("/auth")
		handle(authG, "GET", "/google/", cfg.AuthHandler.GoogleLogin)
		handle(authG, "GET", "/google/callback/", cfg.AuthHandler.GoogleCallback)
		if cfg.AuthMiddleware != nil {
			handle(authG, "GET", "/logout/", cfg.AuthMiddleware.OptionalAuth(), cfg.AuthHandler.Logout)
			handle(authG, "POST", "/logout/", cfg.AuthMiddleware.OptionalAuth(), cfg.AuthHandler.Logout)
		}
	}

	protected := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		if cfg.UserHandler != nil {
			handle(protected, "GET", "/user-info/", cfg.UserHandler.GetMe)
		}
		if cfg.AuthHandler != nil {
			handle(protected, "POST", "/logout/", cfg.AuthHandler.Logout)
		}
		if cfg.ResumeHandler != nil {
			handle(protected, "POST", "/upload-resume/", cfg.ResumeHandler.UploadResume)
		}
		if cfg.InterviewHandler != nil {
			handle(protected, "POST", "/generate-questions/", cfg.InterviewHandler.GenerateQuestions)
			handle(protected, "POST", "/submit-answer/", cfg.InterviewHandler.SubmitAnswer)
			handle(protected, "POST", "/complete-interview/", cfg.InterviewHandler.CompleteInterview)
			handle(protected, "GET", "/session-history/", cfg.InterviewHandler.SessionHistory)
			handle(protected, "GET", "/session/:id/", cfg.InterviewHandler.SessionDetail)
			handle(protected, "GET", "/analytics/", cfg.InterviewHandler.Analytics)
		}
	}

	return r
}

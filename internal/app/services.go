package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cognivue/cognivue-backend/internal/platform/logger"
	"github.com/cognivue/cognivue-backend/internal/services"
)

type Services struct {
	Auth      services.AuthService
	User      services.UserService
	Interview services.InterviewService
	Resume    services.ResumeService
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	verifier, err := services.NewGoogleVerifier(
		&http.Client{Timeout: 10 * time.Second},
		services.GoogleDiscoveryURL,
		cfg.Auth.GoogleClientID,
	)
	if err != nil {
		return Services{}, fmt.Errorf("init google verifier: %w", err)
	}
	oauth := services.NewGoogleOAuthConfig(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.Auth.GoogleRedirectURI)

	questions := services.NewQuestionWorkflow(log, clients.Gemini)
	feedback := services.NewFeedbackWorkflow(log, clients.Gemini)

	return Services{
		Auth: services.NewAuthService(
			clients.DB,
			log,
			reposet.User,
			reposet.UserToken,
			reposet.OAuthStates,
			oauth,
			verifier,
			cfg.Auth.JWTSecretKey,
			cfg.Auth.SessionTTL,
		),
		User:      services.NewUserService(log, reposet.User),
		Interview: services.NewInterviewService(log, reposet.Session, questions, feedback),
		Resume:    services.NewResumeService(log, clients.Resumes, clients.Gemini, clients.Extractor, cfg.MaxUploadSize),
	}, nil
}

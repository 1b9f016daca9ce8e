package app

import (
	"gorm.io/gorm"

	"github.com/cognivue/cognivue-backend/internal/data/repos"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

type Repos struct {
	User        repos.UserRepo
	UserToken   repos.UserTokenRepo
	OAuthStates repos.OAuthStateStore
	Session     repos.SessionRepo
}

func wireRepos(db *gorm.DB, clients Clients, cfg Config, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	states := repos.NewDBStateStore(db, log)
	if clients.Redis != nil {
		states = repos.NewRedisStateStore(clients.Redis, cfg.Redis.Prefix, log)
	}
	return Repos{
		User:        repos.NewUserRepo(db, log),
		UserToken:   repos.NewUserTokenRepo(db, log),
		OAuthStates: states,
		Session:     repos.NewSessionRepo(db, log),
	}
}

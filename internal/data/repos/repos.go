package repos

import (
	"github.com/cognivue/cognivue-backend/internal/data/repos/auth"
	"github.com/cognivue/cognivue-backend/internal/data/repos/interview"
	"github.com/cognivue/cognivue-backend/internal/data/repos/user"
)

type UserRepo = user.UserRepo
type UserTokenRepo = auth.UserTokenRepo
type OAuthStateStore = auth.StateStore
type SessionRepo = interview.SessionRepo

type SessionListFilter = interview.ListFilter
type ProfileUpdate = user.ProfileUpdate

// ErrOAuthStateNotFound is returned by OAuthStateStore.Consume.
var ErrOAuthStateNotFound = auth.ErrStateNotFound

var (
	NewUserRepo        = user.NewUserRepo
	NewUserTokenRepo   = auth.NewUserTokenRepo
	NewDBStateStore    = auth.NewDBStateStore
	NewRedisStateStore = auth.NewRedisStateStore
	NewSessionRepo     = interview.NewSessionRepo
)

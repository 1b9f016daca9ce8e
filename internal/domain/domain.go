package domain

import (
	"github.com/cognivue/cognivue-backend/internal/domain/auth"
	"github.com/cognivue/cognivue-backend/internal/domain/interview"
	"github.com/cognivue/cognivue-backend/internal/domain/user"
)

type (
	User = user.User

	UserToken  = auth.UserToken
	OAuthState = auth.OAuthState

	InterviewSession = interview.Session
	Questions        = interview.Questions
	Answers          = interview.Answers
	Feedback         = interview.Feedback
	CategoryScores   = interview.CategoryScores
	FlatQuestion     = interview.FlatQuestion
)

// Models lists every persisted type in migration order.
func Models() []interface{} {
	return []interface{}{
		&User{},
		&UserToken{},
		&OAuthState{},
		&InterviewSession{},
	}
}

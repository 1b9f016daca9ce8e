package interview

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/cognivue/cognivue-backend/internal/domain"
	interviewdomain "github.com/cognivue/cognivue-backend/internal/domain/interview"
	"github.com/cognivue/cognivue-backend/internal/platform/dbctx"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

type SessionRepo interface {
	Create(dbc dbctx.Context, session *types.InterviewSession) (*types.InterviewSession, error)
	GetByID(dbc dbctx.Context, id uint64) (*types.InterviewSession, error)
	GetForUser(dbc dbctx.Context, id uint64, userID uuid.UUID) (*types.InterviewSession, error)
	UpdateAnswers(dbc dbctx.Context, id uint64, expectedVersion int, answers datatypes.JSON) (bool, error)
	MarkCompleted(dbc dbctx.Context, id uint64, feedback datatypes.JSON, completedAt time.Time) (bool, error)
	List(dbc dbctx.Context, filter ListFilter) ([]*types.InterviewSession, error)
}

// ListFilter narrows List. Zero values mean no constraint.
type ListFilter struct {
	UserID uuid.UUID
	Status string
	// CompletedFirst orders by completed_at descending instead of created_at.
	CompletedFirst bool
	Limit          int
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, session *types.InterviewSession) (*types.InterviewSession, error) {
	if session == nil {
		return nil, errors.New("nil session")
	}
	if session.Status == "" {
		session.Status = interviewdomain.StatusActive
	}
	if session.ExperienceLevel == "" {
		session.ExperienceLevel = interviewdomain.DefaultExperienceLevel
	}
	if len(session.Answers) == 0 {
		session.Answers = datatypes.JSON("[]")
	}
	if err := dbc.DB(r.db).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, id uint64) (*types.InterviewSession, error) {
	var row types.InterviewSession
	if err := dbc.DB(r.db).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetForUser returns nil when the session is missing or owned by someone else.
func (r *sessionRepo) GetForUser(dbc dbctx.Context, id uint64, userID uuid.UUID) (*types.InterviewSession, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	var row types.InterviewSession
	err := dbc.DB(r.db).Where("id = ? AND user_id = ?", id, userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// UpdateAnswers writes answers only if the row is still active and at
// expectedVersion, bumping the version. False means someone else won.
func (r *sessionRepo) UpdateAnswers(dbc dbctx.Context, id uint64, expectedVersion int, answers datatypes.JSON) (bool, error) {
	res := dbc.DB(r.db).
		Model(&types.InterviewSession{}).
		Where("id = ? AND version = ? AND status = ?", id, expectedVersion, interviewdomain.StatusActive).
		Updates(map[string]interface{}{
			"answers":    answers,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkCompleted stores feedback and flips the session to completed in one
// statement. Only an active row is touched.
func (r *sessionRepo) MarkCompleted(dbc dbctx.Context, id uint64, feedback datatypes.JSON, completedAt time.Time) (bool, error) {
	res := dbc.DB(r.db).
		Model(&types.InterviewSession{}).
		Where("id = ? AND status = ?", id, interviewdomain.StatusActive).
		Updates(map[string]interface{}{
			"feedback":     feedback,
			"status":       interviewdomain.StatusCompleted,
			"completed_at": completedAt.UTC(),
			"version":      gorm.Expr("version + 1"),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		r.log.Debug("completion skipped, session not active", "session_id", id)
		return false, nil
	}
	return true, nil
}

func (r *sessionRepo) List(dbc dbctx.Context, filter ListFilter) ([]*types.InterviewSession, error) {
	q := dbc.DB(r.db).Model(&types.InterviewSession{})
	if filter.UserID != uuid.Nil {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CompletedFirst {
		q = q.Order("completed_at DESC").Order("id DESC")
	} else {
		q = q.Order("created_at DESC").Order("id DESC")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var out []*types.InterviewSession
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

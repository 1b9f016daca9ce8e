package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	types "github.com/cognivue/cognivue-backend/internal/domain"
	"github.com/cognivue/cognivue-backend/internal/platform/dbctx"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

type UserRepo interface {
	Create(dbc dbctx.Context, users []*types.User) ([]*types.User, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.User, error)
	GetByEmail(dbc dbctx.Context, email string) (*types.User, error)
	GetOrCreateByEmail(dbc dbctx.Context, candidate *types.User) (*types.User, bool, error)
	UpdateProfile(dbc dbctx.Context, id uuid.UUID, updates ProfileUpdate) error
	EmailExists(dbc dbctx.Context, email string) (bool, error)
}

// ProfileUpdate carries the identity-provider fields refreshed on each
// login. Nil fields are left alone.
type ProfileUpdate struct {
	Username  *string
	AvatarURL *string
	GoogleID  *string
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *userRepo) Create(dbc dbctx.Context, users []*types.User) ([]*types.User, error) {
	if len(users) == 0 {
		return []*types.User{}, nil
	}
	for _, u := range users {
		u.Email = normalizeEmail(u.Email)
	}
	if err := dbc.DB(r.db).Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.User, error) {
	var out []*types.User
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userRepo) GetByEmail(dbc dbctx.Context, email string) (*types.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	var row types.User
	err := dbc.DB(r.db).Where("email = ?", email).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetOrCreateByEmail returns the user owning candidate.Email, creating it
// from candidate when absent. The bool reports whether a row was created.
// A concurrent insert of the same email resolves to the winner's row.
func (r *userRepo) GetOrCreateByEmail(dbc dbctx.Context, candidate *types.User) (*types.User, bool, error) {
	if candidate == nil || normalizeEmail(candidate.Email) == "" {
		return nil, false, errors.New("email required")
	}
	existing, err := r.GetByEmail(dbc, candidate.Email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	created, err := r.Create(dbc, []*types.User{candidate})
	if err == nil {
		return created[0], true, nil
	}
	if !isUniqueViolation(err) {
		return nil, false, err
	}
	r.log.Debug("user insert raced, refetching")
	existing, ferr := r.GetByEmail(dbc, candidate.Email)
	if ferr != nil {
		return nil, false, ferr
	}
	if existing == nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *userRepo) UpdateProfile(dbc dbctx.Context, id uuid.UUID, updates ProfileUpdate) error {
	if id == uuid.Nil {
		return nil
	}
	fields := map[string]interface{}{}
	if updates.Username != nil {
		fields["username"] = *updates.Username
	}
	if updates.AvatarURL != nil {
		fields["avatar_url"] = *updates.AvatarURL
	}
	if updates.GoogleID != nil {
		fields["google_id"] = *updates.GoogleID
	}
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	return dbc.DB(r.db).Model(&types.User{}).Where("id = ?", id).Updates(fields).Error
}

func (r *userRepo) EmailExists(dbc dbctx.Context, email string) (bool, error) {
	var count int64
	if err := dbc.DB(r.db).Model(&types.User{}).Where("email = ?", normalizeEmail(email)).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

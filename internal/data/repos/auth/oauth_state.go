package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	types "github.com/cognivue/cognivue-backend/internal/domain"
	"github.com/cognivue/cognivue-backend/internal/platform/dbctx"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

// ErrStateNotFound means the state is unknown, expired or already used.
var ErrStateNotFound = errors.New("oauth state not found or already used")

// StateStore keeps single-use OAuth login attempts between the redirect to
// the identity provider and its callback.
type StateStore interface {
	Save(ctx context.Context, state, nonce string, ttl time.Duration) error
	Consume(ctx context.Context, state string) (nonce string, err error)
}

func hashState(state string) string {
	sum := sha256.Sum256([]byte(state))
	return hex.EncodeToString(sum[:])
}

type dbStateStore struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

// NewDBStateStore persists states in the oauth_state table.
func NewDBStateStore(db *gorm.DB, baseLog *logger.Logger) StateStore {
	return &dbStateStore{
		db:  db,
		log: baseLog.With("repo", "OAuthStateStore", "backend", "db"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *dbStateStore) Save(ctx context.Context, state, nonce string, ttl time.Duration) error {
	if state == "" {
		return fmt.Errorf("empty state")
	}
	row := &types.OAuthState{
		StateHash: hashState(state),
		Nonce:     nonce,
		ExpiresAt: s.now().Add(ttl),
	}
	dbc := dbctx.Context{Ctx: ctx}
	if err := dbc.DB(s.db).Create(row).Error; err != nil {
		return err
	}
	// opportunistic cleanup of stale rows
	if err := dbc.DB(s.db).Where("expires_at < ?", s.now().Add(-24*time.Hour)).Delete(&types.OAuthState{}).Error; err != nil {
		s.log.Warn("oauth state cleanup failed", "error", err)
	}
	return nil
}

func (s *dbStateStore) Consume(ctx context.Context, state string) (string, error) {
	if state == "" {
		return "", ErrStateNotFound
	}
	var nonce string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row types.OAuthState
		if err := tx.Where("state_hash = ?", hashState(state)).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStateNotFound
			}
			return err
		}
		now := s.now()
		if row.UsedAt != nil || now.After(row.ExpiresAt) {
			return ErrStateNotFound
		}
		res := tx.Model(&types.OAuthState{}).
			Where("id = ? AND used_at IS NULL", row.ID).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStateNotFound
		}
		nonce = row.Nonce
		return nil
	})
	if err != nil {
		return "", err
	}
	return nonce, nil
}

package auth

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OAuthState is a single-use login attempt: the hashed state parameter plus
// the nonce that must come back inside the id_token.
type OAuthState struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StateHash string     `gorm:"uniqueIndex;not null;column:state_hash" json:"state_hash"`
	Nonce     string     `gorm:"not null;column:nonce" json:"-"`
	ExpiresAt time.Time  `gorm:"not null;index;column:expires_at" json:"expires_at"`
	UsedAt    *time.Time `gorm:"column:used_at" json:"used_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
}

func (OAuthState) TableName() string { return "oauth_state" }

func (s *OAuthState) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

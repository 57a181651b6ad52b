package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrTokenAlreadyExpired is returned when a refresh token row is created with
// an expiry that is not in the future.
var ErrTokenAlreadyExpired = errors.New("refresh token expiry must be in the future")

// RefreshToken is one persisted login session.
type RefreshToken struct {
	Id        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Token     string    `json:"-" gorm:"type:varchar(1024);uniqueIndex;not null"`
	UserId    uint      `json:"user_id" gorm:"index;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if !t.ExpiresAt.After(time.Now()) {
		return ErrTokenAlreadyExpired
	}
	return nil
}

// Package model defines the gorm models persisted by taskboard.
package model

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is an account. Password fields never leave the server.
type User struct {
	Id              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name            string    `json:"name" gorm:"not null"`
	Email           string    `json:"email" gorm:"uniqueIndex;not null"`
	Username        string    `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash    string    `json:"-" gorm:"column:password_hash;not null"`
	PasswordSalt    string    `json:"-" gorm:"column:password_salt;not null"`
	Role            Role      `json:"role" gorm:"type:varchar(16);not null;default:user"`
	IsActive        bool      `json:"is_active" gorm:"not null;default:true"`
	IsResetPassword bool      `json:"is_reset_password" gorm:"not null;default:false"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Tasks         []Task         `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	RefreshTokens []RefreshToken `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

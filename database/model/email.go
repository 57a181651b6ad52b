package model

import "time"

// OutboundEmail is a queued message; SentAt is set once delivered.
type OutboundEmail struct {
	Id            uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	To            string     `json:"to" gorm:"not null"`
	Subject       string     `json:"subject" gorm:"not null"`
	Body          string     `json:"-" gorm:"type:text;not null"`
	Attempts      int        `json:"attempts" gorm:"not null;default:0"`
	LastError     string     `json:"last_error"`
	NextAttemptAt time.Time  `json:"next_attempt_at" gorm:"index"`
	SentAt        *time.Time `json:"sent_at" gorm:"index"`
	CreatedAt     time.Time  `json:"created_at"`
}

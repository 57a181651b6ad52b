package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// ErrTaskDates is returned when a task ends before it starts.
var ErrTaskDates = errors.New("end date must not be before start date")

type Status struct {
	Id        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Task struct {
	Id          uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId      uint       `json:"user_id" gorm:"index;not null"`
	StatusId    uint       `json:"status_id" gorm:"index;not null"`
	Status      *Status    `json:"status,omitempty" gorm:"constraint:OnDelete:RESTRICT"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description"`
	Priority    *Priority  `json:"priority" gorm:"type:varchar(8)"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (t *Task) BeforeSave(tx *gorm.DB) error {
	if t.StartDate != nil && t.EndDate != nil && t.EndDate.Before(*t.StartDate) {
		return ErrTaskDates
	}
	return nil
}

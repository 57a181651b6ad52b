// Package entity defines the response envelope and request payloads of the HTTP API.
package entity

import (
	"net/http"
	"time"

	"github.com/taskboard/taskboard/database/model"
	"github.com/taskboard/taskboard/util/common"
)

// Msg is the envelope every endpoint answers with.
type Msg struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

// NewErrorMsg builds the envelope for err. Only coded errors expose their
// message; anything else is reported by its status text.
func NewErrorMsg(err error) Msg {
	status := common.StatusOf(err)
	msg := http.StatusText(status)
	if common.IsCoded(err) {
		msg = err.Error()
	}
	return Msg{StatusCode: status, Message: msg}
}

type SignupForm struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password"`
	UserType string `json:"user_type" binding:"omitempty,oneof=admin user"`
}

type LoginForm struct {
	EmailOrUsername string `json:"emailOrUsername" binding:"required"`
	Password        string `json:"password" binding:"required"`
}

type ResetPasswordForm struct {
	EmailOrUsername string `json:"emailOrUsername" binding:"required"`
	TempPassword    string `json:"tempPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=128"`
}

type InviteForm struct {
	Name  string     `json:"name" binding:"required,max=255"`
	Email string     `json:"email" binding:"required,email,max=255"`
	Role  model.Role `json:"role" binding:"omitempty,oneof=admin user"`
}

type RoleForm struct {
	Role model.Role `json:"role" binding:"required,oneof=admin user"`
}

type ActiveForm struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

type StatusForm struct {
	Name string `json:"name" binding:"required,max=64"`
}

// TaskForm is used for both create and update; nil fields are left untouched on update.
// Clear names nullable fields to reset to null.
type TaskForm struct {
	Title       *string         `json:"title" binding:"omitempty,min=1,max=255"`
	Description *string         `json:"description"`
	StatusId    *uint           `json:"status_id"`
	Priority    *model.Priority `json:"priority" binding:"omitempty,oneof=high medium low"`
	StartDate   *time.Time      `json:"start_date"`
	EndDate     *time.Time      `json:"end_date"`
	Clear       []string        `json:"clear" binding:"omitempty,dive,oneof=priority start_date end_date"`
}

type TaskFilter struct {
	StatusId uint           `form:"status_id"`
	Priority model.Priority `form:"priority" binding:"omitempty,oneof=high medium low"`
}

// UserSummary is the public view of a user.
type UserSummary struct {
	Id              uint       `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	Role            model.Role `json:"role"`
	IsActive        bool       `json:"is_active"`
	IsResetPassword bool       `json:"is_reset_password"`
}

func NewUserSummary(u *model.User) UserSummary {
	return UserSummary{
		Id:              u.Id,
		Name:            u.Name,
		Email:           u.Email,
		Username:        u.Username,
		Role:            u.Role,
		IsActive:        u.IsActive,
		IsResetPassword: u.IsResetPassword,
	}
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User         UserSummary `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

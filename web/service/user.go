package service

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/taskboard/taskboard/database"
	"github.com/taskboard/taskboard/database/model"
	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/util/common"
	"github.com/taskboard/taskboard/util/crypto"
	"github.com/taskboard/taskboard/util/random"
	"github.com/taskboard/taskboard/web/entity"
)

const (
	tempPasswordLength = 12
	usernameLength     = 8
	usernameAttempts   = 10
)

// UserService manages accounts on behalf of admins and the signup flow.
type UserService struct {
	DB     *gorm.DB
	mail   *MailService
	appURL string
}

func NewUserService(mail *MailService, appURL string) *UserService {
	return &UserService{DB: database.GetDB(), mail: mail, appURL: appURL}
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	user := &model.User{}
	err := s.DB.WithContext(ctx).First(user, id).Error
	if database.IsNotFound(err) {
		return nil, common.Fail(common.ErrNotFound, "User not found")
	}
	return user, err
}

func (s *UserService) ListUsers(ctx context.Context) ([]entity.UserSummary, error) {
	var users []model.User
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]entity.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, entity.NewUserSummary(&users[i]))
	}
	return out, nil
}

// Invite creates an account and queues its temporary password by email.
func (s *UserService) Invite(ctx context.Context, name, email string, role model.Role) (*model.User, error) {
	if role == "" {
		role = model.RoleUser
	}
	user, _, err := s.createAccount(ctx, name, email, role, true)
	return user, err
}

// CreateAdmin bootstraps an admin without sending mail and returns the
// temporary password so the operator can hand it over.
func (s *UserService) CreateAdmin(ctx context.Context, name, email string) (*model.User, string, error) {
	return s.createAccount(ctx, name, email, model.RoleAdmin, false)
}

func (s *UserService) uniqueUsername(ctx context.Context) (string, error) {
	for i := 0; i < usernameAttempts; i++ {
		candidate := random.Digits(usernameLength)
		var count int64
		if err := s.DB.WithContext(ctx).Model(&model.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not allocate a username after %d attempts", usernameAttempts)
}

func (s *UserService) createAccount(ctx context.Context, name, email string, role model.Role, sendInvite bool) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var count int64
	if err := s.DB.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, "", err
	}
	if count > 0 {
		return nil, "", common.Fail(common.ErrConflict, "Email already registered")
	}

	username, err := s.uniqueUsername(ctx)
	if err != nil {
		return nil, "", err
	}
	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, "", err
	}
	tempPassword := random.Seq(tempPasswordLength)
	user := &model.User{
		Name:            strings.TrimSpace(name),
		Email:           email,
		Username:        username,
		PasswordSalt:    salt,
		PasswordHash:    crypto.Hash(tempPassword, salt),
		Role:            role,
		IsActive:        true,
		IsResetPassword: false,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if !sendInvite {
			return nil
		}
		subject, body := inviteEmail(user.Name, user.Username, tempPassword, s.appURL)
		return s.mail.Enqueue(tx, user.Email, subject, body)
	})
	if database.IsDuplicate(err) {
		return nil, "", common.Fail(common.ErrConflict, "Email already registered")
	}
	if err != nil {
		return nil, "", err
	}
	logger.Infof("created %s account %d (%s)", role, user.Id, user.Username)
	return user, tempPassword, nil
}

func (s *UserService) UpdateRole(ctx context.Context, actorID, id uint, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, common.Fail(common.ErrValidation, "Unknown role")
	}
	if actorID == id {
		return nil, common.Fail(common.ErrBadRequest, "You cannot change your own role")
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(user).Update("role", role).Error; err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}

// SetActive toggles the account flag. Deactivation also revokes all sessions.
func (s *UserService) SetActive(ctx context.Context, actorID, id uint, active bool) (*model.User, error) {
	if actorID == id && !active {
		return nil, common.Fail(common.ErrBadRequest, "You cannot deactivate yourself")
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("is_active", active).Error; err != nil {
			return err
		}
		if active {
			return nil
		}
		return tx.Where("user_id = ?", id).Delete(&model.RefreshToken{}).Error
	})
	if err != nil {
		return nil, err
	}
	user.IsActive = active
	return user, nil
}

// DeleteUser removes the account with its tasks and sessions.
func (s *UserService) DeleteUser(ctx context.Context, actorID, id uint) error {
	if actorID == id {
		return common.Fail(common.ErrBadRequest, "You cannot delete yourself")
	}
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&model.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.User{}, id).Error
	})
}

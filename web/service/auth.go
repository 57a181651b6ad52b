package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/taskboard/taskboard/database"
	"github.com/taskboard/taskboard/database/model"
	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/util/common"
	"github.com/taskboard/taskboard/util/crypto"
	"github.com/taskboard/taskboard/web/entity"
)

const (
	msgBadCredentials = "Invalid email/username or password"
	msgMustReset      = "Please reset your password"
	msgInactive       = "Account is inactive"
	msgNoSession      = "No active session"
)

// AuthService drives the session lifecycle: signup, login, password reset,
// access token refresh and logout.
type AuthService struct {
	DB       *gorm.DB
	tokens   *TokenService
	accounts *UserService
	now      func() time.Time
}

func NewAuthService(tokens *TokenService, accounts *UserService) *AuthService {
	return &AuthService{
		DB:       database.GetDB(),
		tokens:   tokens,
		accounts: accounts,
		now:      time.Now,
	}
}

// LoginTokens is the outcome of a successful login.
type LoginTokens struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
}

// Signup registers a new account with a generated temporary password that is
// queued for delivery by email. Only an authenticated admin may create another admin.
func (s *AuthService) Signup(ctx context.Context, form *entity.SignupForm, actor *model.User) (*model.User, error) {
	role := model.Role(form.UserType)
	if role == "" {
		role = model.RoleUser
	}
	if role == model.RoleAdmin && (actor == nil || actor.Role != model.RoleAdmin) {
		return nil, common.Fail(common.ErrForbidden, "Only admins can create admin accounts")
	}
	user, _, err := s.accounts.createAccount(ctx, form.Name, form.Email, role, true)
	return user, err
}

func (s *AuthService) findByLogin(ctx context.Context, emailOrUsername string) (*model.User, error) {
	v := strings.TrimSpace(emailOrUsername)
	user := &model.User{}
	err := s.DB.WithContext(ctx).
		Where("email = ? OR username = ?", strings.ToLower(v), v).
		First(user).Error
	if database.IsNotFound(err) {
		return nil, common.Fail(common.ErrBadRequest, msgBadCredentials)
	}
	return user, err
}

// Login checks the credentials and opens a new session backed by a persisted
// refresh token. Every session gets its own row.
func (s *AuthService) Login(ctx context.Context, emailOrUsername, password string) (*LoginTokens, error) {
	user, err := s.findByLogin(ctx, emailOrUsername)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, common.Fail(common.ErrBadRequest, msgInactive)
	}
	if !user.IsResetPassword {
		return nil, common.Fail(common.ErrBadRequest, msgMustReset)
	}
	if !crypto.Verify(password, user.PasswordSalt, user.PasswordHash) {
		return nil, common.Fail(common.ErrBadRequest, msgBadCredentials)
	}

	access, err := s.tokens.IssueAccess(user.Id, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, expiresAt, err := s.tokens.IssueRefresh(user.Id, user.Role)
	if err != nil {
		return nil, err
	}
	row := &model.RefreshToken{Token: refresh, UserId: user.Id, ExpiresAt: expiresAt}
	if err := s.DB.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	logger.Infof("user %d logged in", user.Id)
	return &LoginTokens{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// ResetPassword replaces the current or temporary password. It does not log the user in.
func (s *AuthService) ResetPassword(ctx context.Context, form *entity.ResetPasswordForm) (*model.User, error) {
	user, err := s.findByLogin(ctx, form.EmailOrUsername)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, common.Fail(common.ErrBadRequest, msgInactive)
	}
	if !crypto.Verify(form.TempPassword, user.PasswordSalt, user.PasswordHash) {
		return nil, common.Fail(common.ErrBadRequest, msgBadCredentials)
	}
	if form.NewPassword == form.TempPassword {
		return nil, common.Fail(common.ErrValidation, "New password must differ from the current one")
	}
	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	updates := map[string]any{
		"password_salt":     salt,
		"password_hash":     crypto.Hash(form.NewPassword, salt),
		"is_reset_password": true,
	}
	if err := s.DB.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Refresh issues a new access token. The refresh token is left as is.
func (s *AuthService) Refresh(user *model.User) (string, error) {
	return s.tokens.IssueAccess(user.Id, user.Role)
}

// Logout revokes every session of the user. A user with no session gets a
// not-found error that surfaces as a bad request.
func (s *AuthService) Logout(ctx context.Context, userID uint) error {
	res := s.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.RefreshToken{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.FailWithStatus(common.ErrNotFound, http.StatusBadRequest, msgNoSession)
	}
	logger.Infof("user %d logged out, %d session(s) revoked", userID, res.RowsAffected)
	return nil
}

// AuthenticateAccess resolves the user behind an access token.
func (s *AuthService) AuthenticateAccess(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Verify(token, AccessKind)
	if err != nil {
		return nil, common.Fail(common.ErrUnauthorized, "Invalid or expired access token")
	}
	return s.activeUser(ctx, claims.UserID)
}

// AuthenticateRefresh resolves the user behind a refresh token, which must
// still be stored and unexpired.
func (s *AuthService) AuthenticateRefresh(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Verify(token, RefreshKind)
	if err != nil {
		return nil, common.Fail(common.ErrUnauthorized, "Invalid or expired refresh token")
	}
	var count int64
	err = s.DB.WithContext(ctx).Model(&model.RefreshToken{}).
		Where("token = ? AND user_id = ? AND expires_at > ?", token, claims.UserID, s.now()).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, common.Fail(common.ErrUnauthorized, "Session has been revoked")
	}
	return s.activeUser(ctx, claims.UserID)
}

func (s *AuthService) activeUser(ctx context.Context, id uint) (*model.User, error) {
	user := &model.User{}
	err := s.DB.WithContext(ctx).First(user, id).Error
	if database.IsNotFound(err) {
		return nil, common.Fail(common.ErrUnauthorized, "User no longer exists")
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, common.Fail(common.ErrUnauthorized, msgInactive)
	}
	return user, nil
}

// SweepExpiredTokens deletes refresh tokens past their expiry.
func (s *AuthService) SweepExpiredTokens(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&model.RefreshToken{})
	return res.RowsAffected, res.Error
}

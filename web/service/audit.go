package service

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/gorm"

	"github.com/taskboard/taskboard/database"
	"github.com/taskboard/taskboard/database/model"
	"github.com/taskboard/taskboard/logger"
)

// Audit actions recorded by the API.
const (
	ActionSignup        = "SIGNUP"
	ActionLogin         = "LOGIN"
	ActionLoginFailed   = "LOGIN_FAILED"
	ActionResetPassword = "RESET_PASSWORD"
	ActionLogout        = "LOGOUT"
	ActionInvite        = "INVITE"
	ActionRoleChange    = "ROLE_CHANGE"
	ActionActiveChange  = "ACTIVE_CHANGE"
	ActionUserDelete    = "USER_DELETE"
)

// AuditLogService records security relevant events.
type AuditLogService struct {
	DB *gorm.DB
}

func NewAuditLogService() *AuditLogService {
	return &AuditLogService{DB: database.GetDB()}
}

// LogAction stores one event. details may be nil.
func (s *AuditLogService) LogAction(ctx context.Context, userID uint, action, ip, userAgent string, details map[string]any) error {
	detailsJSON := ""
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			logger.Warning("failed to marshal audit details:", err)
		} else {
			detailsJSON = string(data)
		}
	}

	entry := model.AuditLog{
		UserID:    userID,
		Action:    action,
		IP:        ip,
		UserAgent: userAgent,
		Details:   detailsJSON,
		Timestamp: time.Now(),
	}
	if err := s.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		logger.Warningf("failed to create audit log: user=%d action=%s error=%v", userID, action, err)
		return err
	}
	return nil
}

// GetAuditLogs returns matching events newest first together with the total count.
func (s *AuditLogService) GetAuditLogs(ctx context.Context, userID uint, action string, limit, offset int) ([]model.AuditLog, int64, error) {
	query := s.DB.WithContext(ctx).Model(&model.AuditLog{})
	if userID > 0 {
		query = query.Where("user_id = ?", userID)
	}
	if action != "" {
		query = query.Where("action = ?", action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []model.AuditLog
	if err := query.Order("timestamp DESC, id DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// CleanOldLogs removes events older than days.
func (s *AuditLogService) CleanOldLogs(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("days must be greater than 0")
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	res := s.DB.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&model.AuditLog{})
	if res.Error != nil {
		return 0, res.Error
	}
	logger.Infof("cleaned %d audit logs older than %d days", res.RowsAffected, days)
	return res.RowsAffected, nil
}

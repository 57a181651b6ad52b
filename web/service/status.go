package service

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/taskboard/taskboard/database"
	"github.com/taskboard/taskboard/database/model"
	"github.com/taskboard/taskboard/util/common"
)

// StatusService manages the shared status catalogue.
type StatusService struct {
	DB *gorm.DB
}

func NewStatusService() *StatusService {
	return &StatusService{DB: database.GetDB()}
}

func (s *StatusService) ListStatuses(ctx context.Context) ([]model.Status, error) {
	statuses := []model.Status{}
	err := s.DB.WithContext(ctx).Order("id ASC").Find(&statuses).Error
	return statuses, err
}

func (s *StatusService) getStatus(ctx context.Context, id uint) (*model.Status, error) {
	status := &model.Status{}
	err := s.DB.WithContext(ctx).First(status, id).Error
	if database.IsNotFound(err) {
		return nil, common.Fail(common.ErrNotFound, "Status not found")
	}
	return status, err
}

func (s *StatusService) CreateStatus(ctx context.Context, name string) (*model.Status, error) {
	status := &model.Status{Name: strings.TrimSpace(name)}
	if status.Name == "" {
		return nil, common.Fail(common.ErrValidation, "Name is required")
	}
	err := s.DB.WithContext(ctx).Create(status).Error
	if database.IsDuplicate(err) {
		return nil, common.Fail(common.ErrConflict, "Status already exists")
	}
	return status, err
}

func (s *StatusService) UpdateStatus(ctx context.Context, id uint, name string) (*model.Status, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.Fail(common.ErrValidation, "Name is required")
	}
	status, err := s.getStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Model(status).Update("name", name).Error
	if database.IsDuplicate(err) {
		return nil, common.Fail(common.ErrConflict, "Status already exists")
	}
	if err != nil {
		return nil, err
	}
	status.Name = name
	return status, nil
}

// DeleteStatus refuses to remove a status that tasks still point to.
func (s *StatusService) DeleteStatus(ctx context.Context, id uint) error {
	if _, err := s.getStatus(ctx, id); err != nil {
		return err
	}
	var inUse int64
	if err := s.DB.WithContext(ctx).Model(&model.Task{}).Where("status_id = ?", id).Count(&inUse).Error; err != nil {
		return err
	}
	if inUse > 0 {
		return common.Fail(common.ErrConflict, "Status is used by existing tasks")
	}
	return s.DB.WithContext(ctx).Delete(&model.Status{}, id).Error
}

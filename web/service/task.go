package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/taskboard/taskboard/database"
	"github.com/taskboard/taskboard/database/model"
	"github.com/taskboard/taskboard/util/common"
	"github.com/taskboard/taskboard/web/entity"
)

// TaskService gives each user CRUD over their own tasks.
type TaskService struct {
	DB *gorm.DB
}

func NewTaskService() *TaskService {
	return &TaskService{DB: database.GetDB()}
}

func (s *TaskService) ListTasks(ctx context.Context, userID uint, filter *entity.TaskFilter) ([]model.Task, error) {
	query := s.DB.WithContext(ctx).Preload("Status").Where("user_id = ?", userID)
	if filter != nil {
		if filter.StatusId != 0 {
			query = query.Where("status_id = ?", filter.StatusId)
		}
		if filter.Priority != "" {
			query = query.Where("priority = ?", filter.Priority)
		}
	}
	tasks := []model.Task{}
	err := query.Order("id ASC").Find(&tasks).Error
	return tasks, err
}

// GetTask returns a task owned by userID. Tasks of other users are reported as missing.
func (s *TaskService) GetTask(ctx context.Context, userID, id uint) (*model.Task, error) {
	task := &model.Task{}
	err := s.DB.WithContext(ctx).Preload("Status").Where("id = ? AND user_id = ?", id, userID).First(task).Error
	if database.IsNotFound(err) {
		return nil, common.Fail(common.ErrNotFound, "Task not found")
	}
	return task, err
}

func (s *TaskService) checkStatus(ctx context.Context, id uint) error {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&model.Status{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return common.Fail(common.ErrBadRequest, "Unknown status")
	}
	return nil
}

func applyTaskForm(task *model.Task, form *entity.TaskForm) {
	if form.Title != nil {
		task.Title = strings.TrimSpace(*form.Title)
	}
	if form.Description != nil {
		task.Description = *form.Description
	}
	if form.StatusId != nil {
		task.StatusId = *form.StatusId
	}
	if form.Priority != nil {
		task.Priority = form.Priority
	}
	if form.StartDate != nil {
		task.StartDate = form.StartDate
	}
	if form.EndDate != nil {
		task.EndDate = form.EndDate
	}
	for _, field := range form.Clear {
		switch field {
		case "priority":
			task.Priority = nil
		case "start_date":
			task.StartDate = nil
		case "end_date":
			task.EndDate = nil
		}
	}
}

// checkClear rejects unknown fields and fields that are both set and cleared.
func checkClear(form *entity.TaskForm) error {
	for _, field := range form.Clear {
		var set bool
		switch field {
		case "priority":
			set = form.Priority != nil
		case "start_date":
			set = form.StartDate != nil
		case "end_date":
			set = form.EndDate != nil
		default:
			return common.Fail(common.ErrValidation, "Cannot clear "+field)
		}
		if set {
			return common.Fail(common.ErrValidation, field+" cannot be both set and cleared")
		}
	}
	return nil
}

func saveErr(err error) error {
	if errors.Is(err, model.ErrTaskDates) {
		return common.Fail(common.ErrValidation, "End date must not be before start date")
	}
	return err
}

func (s *TaskService) CreateTask(ctx context.Context, userID uint, form *entity.TaskForm) (*model.Task, error) {
	if form.Title == nil || strings.TrimSpace(*form.Title) == "" {
		return nil, common.Fail(common.ErrValidation, "Title is required")
	}
	if form.StatusId == nil {
		return nil, common.Fail(common.ErrValidation, "Status is required")
	}
	if err := checkClear(form); err != nil {
		return nil, err
	}
	if err := s.checkStatus(ctx, *form.StatusId); err != nil {
		return nil, err
	}
	task := &model.Task{UserId: userID}
	applyTaskForm(task, form)
	if err := s.DB.WithContext(ctx).Create(task).Error; err != nil {
		return nil, saveErr(err)
	}
	return s.GetTask(ctx, userID, task.Id)
}

func (s *TaskService) UpdateTask(ctx context.Context, userID, id uint, form *entity.TaskForm) (*model.Task, error) {
	task, err := s.GetTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if form.Title != nil && strings.TrimSpace(*form.Title) == "" {
		return nil, common.Fail(common.ErrValidation, "Title must not be empty")
	}
	if err := checkClear(form); err != nil {
		return nil, err
	}
	if form.StatusId != nil {
		if err := s.checkStatus(ctx, *form.StatusId); err != nil {
			return nil, err
		}
	}
	applyTaskForm(task, form)
	task.Status = nil
	if err := s.DB.WithContext(ctx).Save(task).Error; err != nil {
		return nil, saveErr(err)
	}
	return s.GetTask(ctx, userID, id)
}

func (s *TaskService) DeleteTask(ctx context.Context, userID, id uint) error {
	res := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Task{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.Fail(common.ErrNotFound, "Task not found")
	}
	return nil
}

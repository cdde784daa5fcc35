package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/model"
)

// TransitionLogRepository 任务状态流转日志（只追加）
type TransitionLogRepository interface {
	Create(ctx context.Context, log *model.TaskTransitionLog) error
	ListByTask(ctx context.Context, taskID string) ([]model.TaskTransitionLog, error)
}

type transitionLogRepo struct {
	db *gorm.DB
}

// NewTransitionLogRepo 创建 TransitionLogRepository 实例
func NewTransitionLogRepo(db *gorm.DB) TransitionLogRepository {
	return &transitionLogRepo{db: db}
}

func (r *transitionLogRepo) Create(ctx context.Context, log *model.TaskTransitionLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *transitionLogRepo) ListByTask(ctx context.Context, taskID string) ([]model.TaskTransitionLog, error) {
	var logs []model.TaskTransitionLog
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}

package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/model"
	pkgerrors "github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/errors"
)

// WorkdayRepository 考勤日数据访问接口
// date 参数均为 model.DateOf 归一化后的日历日期
type WorkdayRepository interface {
	Create(ctx context.Context, day *model.Workday) error
	GetByPersonDate(ctx context.Context, personID string, date time.Time) (*model.Workday, error)
	Update(ctx context.Context, day *model.Workday) error
	ListByPerson(ctx context.Context, personID string, from, to time.Time) ([]model.Workday, error)
}

type workdayRepo struct {
	db *gorm.DB
}

// NewWorkdayRepo 创建 WorkdayRepository 实例
func NewWorkdayRepo(db *gorm.DB) WorkdayRepository {
	return &workdayRepo{db: db}
}

func (r *workdayRepo) Create(ctx context.Context, day *model.Workday) error {
	err := r.db.WithContext(ctx).Create(day).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.ErrDuplicate
	}
	return err
}

func (r *workdayRepo) GetByPersonDate(ctx context.Context, personID string, date time.Time) (*model.Workday, error) {
	var day model.Workday
	err := r.db.WithContext(ctx).
		Where("person_id = ? AND work_date = ?", personID, date).
		First(&day).Error
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func (r *workdayRepo) Update(ctx context.Context, day *model.Workday) error {
	return r.db.WithContext(ctx).Save(day).Error
}

// ListByPerson 返回 [from, to] 闭区间内的考勤日
func (r *workdayRepo) ListByPerson(ctx context.Context, personID string, from, to time.Time) ([]model.Workday, error) {
	var days []model.Workday
	err := r.db.WithContext(ctx).
		Where("person_id = ?", personID).
		Where("work_date >= ? AND work_date <= ?", from, to).
		Order("work_date ASC").
		Find(&days).Error
	return days, err
}

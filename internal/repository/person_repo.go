package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/model"
)

// PersonRepository 人员数据访问接口（只读为主，Create 供初始化数据使用）
type PersonRepository interface {
	Create(ctx context.Context, person *model.Person) error
	GetByID(ctx context.Context, id string) (*model.Person, error)
	ListActive(ctx context.Context) ([]model.Person, error)
}

type personRepo struct {
	db *gorm.DB
}

// NewPersonRepo 创建 PersonRepository 实例
func NewPersonRepo(db *gorm.DB) PersonRepository {
	return &personRepo{db: db}
}

func (r *personRepo) Create(ctx context.Context, person *model.Person) error {
	return r.db.WithContext(ctx).Create(person).Error
}

func (r *personRepo) GetByID(ctx context.Context, id string) (*model.Person, error) {
	var person model.Person
	err := r.db.WithContext(ctx).
		Where("person_id = ?", id).
		First(&person).Error
	if err != nil {
		return nil, err
	}
	return &person, nil
}

func (r *personRepo) ListActive(ctx context.Context) ([]model.Person, error) {
	var persons []model.Person
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&persons).Error
	return persons, err
}

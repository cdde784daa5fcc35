package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskInReview   TaskStatus = "IN_REVIEW"
	TaskApproved   TaskStatus = "APPROVED"
	TaskCorrection TaskStatus = "CORRECTION"
	TaskClosed     TaskStatus = "CLOSED"
	TaskBreached   TaskStatus = "BREACHED"  // SLA 超期，非主流程终态
	TaskCancelled  TaskStatus = "CANCELLED" // 仅由外部模块写入，状态机不产生
)

// Valid 是否为已知状态
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskInReview, TaskApproved,
		TaskCorrection, TaskClosed, TaskBreached, TaskCancelled:
		return true
	}
	return false
}

// IsOpen 是否计入未完成工作量
func (s TaskStatus) IsOpen() bool {
	return s != TaskClosed && s != TaskCancelled
}

// 优先级
const (
	PriorityUrgent = "URGENT"
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

// ValidPriority 校验优先级取值
func ValidPriority(p string) bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Task 任务表，对应 tasks
type Task struct {
	TaskID         string     `gorm:"type:uuid;primaryKey"              json:"task_id"`
	Title          string     `gorm:"type:varchar(200);not null"        json:"title"`
	Description    string     `gorm:"type:text;not null"                json:"description"`
	Status         TaskStatus `gorm:"type:varchar(20);not null"         json:"status"`
	Priority       string     `gorm:"type:varchar(10);not null"         json:"priority"`
	EstimatedHours *float64   `gorm:"type:numeric(8,2)"                 json:"estimated_hours,omitempty"`
	AssigneeID     *string    `gorm:"type:uuid;index"                   json:"assignee_id,omitempty"`
	ProjectID      *string    `gorm:"type:uuid;index"                   json:"project_id,omitempty"`
	DueDate        *time.Time `gorm:"type:date"                         json:"due_date,omitempty"`
	RevisionCount  int        `gorm:"not null;default:0"                json:"revision_count"`
	VersionedModel

	// 关联
	Subtasks []Subtask `gorm:"foreignKey:TaskID;references:TaskID" json:"subtasks,omitempty"`
}

// TableName 指定表名
func (Task) TableName() string { return "tasks" }

func (t *Task) BeforeCreate(_ *gorm.DB) error {
	if t.TaskID == "" {
		t.TaskID = uuid.NewString()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	return nil
}

// IncompleteSubtasks 返回未完成的子任务
func (t *Task) IncompleteSubtasks() []Subtask {
	var out []Subtask
	for _, st := range t.Subtasks {
		if !st.Done {
			out = append(out, st)
		}
	}
	return out
}

// Subtask 子任务（检查清单项），对应 subtasks
type Subtask struct {
	SubtaskID string    `gorm:"type:uuid;primaryKey"        json:"subtask_id"`
	TaskID    string    `gorm:"type:uuid;not null;index"    json:"task_id"`
	Title     string    `gorm:"type:varchar(200);not null"  json:"title"`
	Done      bool      `gorm:"not null"                    json:"done"`
	Position  int       `gorm:"not null"                    json:"position"`
	CreatedAt time.Time `gorm:"not null"                    json:"created_at"`
	UpdatedAt time.Time `gorm:"not null"                    json:"updated_at"`
}

func (Subtask) TableName() string { return "subtasks" }

func (s *Subtask) BeforeCreate(_ *gorm.DB) error {
	if s.SubtaskID == "" {
		s.SubtaskID = uuid.NewString()
	}
	return nil
}

// TaskTransitionLog 任务状态流转日志，对应 task_transition_logs（纯审计日志）
type TaskTransitionLog struct {
	TransitionLogID string     `gorm:"type:uuid;primaryKey"          json:"transition_log_id"`
	TaskID          string     `gorm:"type:uuid;not null;index"      json:"task_id"`
	FromStatus      TaskStatus `gorm:"type:varchar(20);not null"     json:"from_status"`
	ToStatus        TaskStatus `gorm:"type:varchar(20);not null"     json:"to_status"`
	RevisionCount   int        `gorm:"not null"                      json:"revision_count"`
	AuditRequested  bool       `gorm:"not null"                      json:"audit_requested"`
	OperatorID      *string    `gorm:"type:uuid"                     json:"operator_id,omitempty"`
	CreatedAt       time.Time  `gorm:"not null"                      json:"created_at"`
}

func (TaskTransitionLog) TableName() string { return "task_transition_logs" }

func (l *TaskTransitionLog) BeforeCreate(_ *gorm.DB) error {
	if l.TransitionLogID == "" {
		l.TransitionLogID = uuid.NewString()
	}
	return nil
}

// [自证通过] internal/model/task.go

package dto

// ── 计时器模块 DTO ──

// StartTimerRequest 开始计时请求；task_id 为空表示不关联任务
type StartTimerRequest struct {
	TaskID *string `json:"task_id" binding:"omitempty,uuid"`
	Note   string  `json:"note"    binding:"max=500"`
}

// ListTimersRequest 计时记录查询
type ListTimersRequest struct {
	WindowRequest
	PersonID string `form:"person_id"` // 仅 admin / manager 可查询他人
}

// TimeEntryResponse 计时记录响应
type TimeEntryResponse struct {
	ID              string  `json:"id"`
	PersonID        string  `json:"person_id"`
	TaskID          *string `json:"task_id"`
	StartTime       string  `json:"start_time"`
	EndTime         *string `json:"end_time"`
	DurationMinutes *int    `json:"duration_minutes"`
	Note            string  `json:"note"`
}

// StartTimerResponse 开始计时结果；closed 为被自动结束的上一条记录
type StartTimerResponse struct {
	Entry  TimeEntryResponse  `json:"entry"`
	Closed *TimeEntryResponse `json:"closed,omitempty"`
}

// ElapsedResponse 计时已用时长（供前端轮询）
type ElapsedResponse struct {
	EntryID        string `json:"entry_id"`
	Open           bool   `json:"open"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
	ElapsedMinutes int    `json:"elapsed_minutes"`
}

// CloseStaleResponse 过期计时清理结果
type CloseStaleResponse struct {
	Count  int                 `json:"count"`
	Closed []TimeEntryResponse `json:"closed"`
}

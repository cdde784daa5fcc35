package dto

// ── 考勤模块 DTO ──

// WorkdayActionRequest 打卡动作请求；date 为空表示业务时区的今天
type WorkdayActionRequest struct {
	Date *string `json:"date"` // "2026-03-02"
}

// ListWorkdaysRequest 考勤记录查询
type ListWorkdaysRequest struct {
	WindowRequest
	PersonID string `form:"person_id"`
}

// WorkdayResponse 考勤日响应
type WorkdayResponse struct {
	ID           string             `json:"id,omitempty"` // 尚未上班打卡时为空
	PersonID     string             `json:"person_id"`
	Date         string             `json:"date"`
	State        string             `json:"state"`
	ClockIn      *string            `json:"clock_in"`
	BreakOut     *string            `json:"break_out"`
	BreakIn      *string            `json:"break_in"`
	ClockOut     *string            `json:"clock_out"`
	TotalMinutes *int               `json:"total_minutes"`
	StoppedTimer *TimeEntryResponse `json:"stopped_timer,omitempty"` // 下班时自动结束的计时
}

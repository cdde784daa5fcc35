package dto

// ── 任务模块 DTO ──

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	Title          string   `json:"title"           binding:"required,min=1,max=200"`
	Description    string   `json:"description"     binding:"max=5000"`
	Priority       string   `json:"priority"        binding:"omitempty,oneof=URGENT HIGH MEDIUM LOW"`
	EstimatedHours *float64 `json:"estimated_hours" binding:"omitempty,min=0"`
	AssigneeID     *string  `json:"assignee_id"     binding:"omitempty,uuid"`
	ProjectID      *string  `json:"project_id"      binding:"omitempty,uuid"`
	DueDate        *string  `json:"due_date"`                                          // "2026-09-01"
	Subtasks       []string `json:"subtasks"        binding:"omitempty,dive,min=1,max=200"` // 初始检查清单
}

// UpdateTaskRequest 更新任务请求；状态只能通过 transition 接口变更
// assignee_id / project_id / due_date 传空字符串表示清空
type UpdateTaskRequest struct {
	Title          *string  `json:"title"           binding:"omitempty,min=1,max=200"`
	Description    *string  `json:"description"     binding:"omitempty,max=5000"`
	Priority       *string  `json:"priority"        binding:"omitempty,oneof=URGENT HIGH MEDIUM LOW"`
	EstimatedHours *float64 `json:"estimated_hours" binding:"omitempty,min=0"`
	AssigneeID     *string  `json:"assignee_id"`
	ProjectID      *string  `json:"project_id"`
	DueDate        *string  `json:"due_date"`
	Version        int      `json:"version"         binding:"required,min=1"`
}

// ListTasksRequest 任务列表过滤
type ListTasksRequest struct {
	PaginationRequest
	Status     string `form:"status"`
	AssigneeID string `form:"assignee_id"`
	ProjectID  string `form:"project_id"`
}

// TransitionTaskRequest 状态流转请求
type TransitionTaskRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateSubtaskRequest 新增检查清单项
type CreateSubtaskRequest struct {
	Title string `json:"title" binding:"required,min=1,max=200"`
}

// UpdateSubtaskRequest 更新检查清单项
type UpdateSubtaskRequest struct {
	Title    *string `json:"title"    binding:"omitempty,min=1,max=200"`
	Done     *bool   `json:"done"`
	Position *int    `json:"position" binding:"omitempty,min=0"`
}

// SubtaskResponse 检查清单项
type SubtaskResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Done     bool   `json:"done"`
	Position int    `json:"position"`
}

// TaskResponse 任务信息响应
type TaskResponse struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Status         string            `json:"status"`
	Priority       string            `json:"priority"`
	EstimatedHours *float64          `json:"estimated_hours"`
	AssigneeID     *string           `json:"assignee_id"`
	ProjectID      *string           `json:"project_id"`
	DueDate        *string           `json:"due_date"`
	RevisionCount  int               `json:"revision_count"`
	Version        int               `json:"version"`
	Subtasks       []SubtaskResponse `json:"subtasks"`
	AllowedNext    []string          `json:"allowed_next"`
	CreatedAt      string            `json:"created_at"`
	UpdatedAt      string            `json:"updated_at"`
}

// TransitionResponse 状态流转结果
type TransitionResponse struct {
	Task           TaskResponse `json:"task"`
	From           string       `json:"from"`
	To             string       `json:"to"`
	AuditRequested bool         `json:"audit_requested"`
}

// TransitionLogResponse 状态流转日志
type TransitionLogResponse struct {
	ID             string  `json:"id"`
	From           string  `json:"from"`
	To             string  `json:"to"`
	RevisionCount  int     `json:"revision_count"`
	AuditRequested bool    `json:"audit_requested"`
	OperatorID     *string `json:"operator_id"`
	CreatedAt      string  `json:"created_at"`
}

// BreachResponse SLA 超期扫描结果
type BreachResponse struct {
	Count    int            `json:"count"`
	Breached []TaskResponse `json:"breached"`
}

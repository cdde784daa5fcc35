package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/config"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/dto"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/model"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/repository"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/clock"
	pkgerrors "github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/errors"
)

// TaskService 任务生命周期业务接口
type TaskService interface {
	Create(ctx context.Context, req *dto.CreateTaskRequest, callerID string) (*dto.TaskResponse, error)
	GetByID(ctx context.Context, id string) (*dto.TaskResponse, error)
	List(ctx context.Context, req *dto.ListTasksRequest) ([]dto.TaskResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateTaskRequest, callerID string) (*dto.TaskResponse, error)
	Transition(ctx context.Context, id string, target string, callerID string) (*dto.TransitionResponse, error)
	ListTransitions(ctx context.Context, id string) ([]dto.TransitionLogResponse, error)
	BreachOverdue(ctx context.Context, callerID string) (*dto.BreachResponse, error)

	AddSubtask(ctx context.Context, taskID string, req *dto.CreateSubtaskRequest) (*dto.SubtaskResponse, error)
	UpdateSubtask(ctx context.Context, taskID, subtaskID string, req *dto.UpdateSubtaskRequest) (*dto.SubtaskResponse, error)
	DeleteSubtask(ctx context.Context, taskID, subtaskID string) error
}

type taskService struct {
	repo           *repository.Repository
	clock          clock.Clock
	events         EventPublisher
	logger         *zap.Logger
	auditThreshold int
	loc            *time.Location
}

// NewTaskService 创建 TaskService 实例
func NewTaskService(
	cfg *config.TrackingConfig,
	repo *repository.Repository,
	clk clock.Clock,
	events EventPublisher,
	logger *zap.Logger,
) TaskService {
	return &taskService{
		repo:           repo,
		clock:          clk,
		events:         events,
		logger:         logger,
		auditThreshold: cfg.AuditRevisionThreshold,
		loc:            cfg.Location(),
	}
}

// ────────────────────── Create ──────────────────────

func (s *taskService) Create(ctx context.Context, req *dto.CreateTaskRequest, callerID string) (*dto.TaskResponse, error) {
	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !model.ValidPriority(priority) {
		return nil, fmt.Errorf("%w: 优先级 %s", ErrInvalidTaskInput, priority)
	}
	if req.EstimatedHours != nil && *req.EstimatedHours < 0 {
		return nil, fmt.Errorf("%w: 预估工时不能为负数", ErrInvalidTaskInput)
	}

	task := &model.Task{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Status:         model.TaskPending,
		Priority:       priority,
		EstimatedHours: req.EstimatedHours,
	}
	if task.Title == "" {
		return nil, fmt.Errorf("%w: 标题不能为空", ErrInvalidTaskInput)
	}

	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			return nil, fmt.Errorf("%w: 截止日期格式错误", ErrInvalidTaskInput)
		}
		task.DueDate = &due
	}
	if err := s.checkRefs(ctx, req.AssigneeID, req.ProjectID); err != nil {
		return nil, err
	}
	task.AssigneeID = nonEmpty(req.AssigneeID)
	task.ProjectID = nonEmpty(req.ProjectID)

	for i, title := range req.Subtasks {
		task.Subtasks = append(task.Subtasks, model.Subtask{Title: title, Position: i})
	}
	task.CreatedBy = &callerID
	task.UpdatedBy = &callerID

	if err := s.repo.Task.Create(ctx, task); err != nil {
		s.logger.Error("创建任务失败", zap.Error(err))
		return nil, err
	}

	resp := toTaskResponse(task)
	return &resp, nil
}

// ────────────────────── GetByID / List ──────────────────────

func (s *taskService) GetByID(ctx context.Context, id string) (*dto.TaskResponse, error) {
	task, err := s.loadTask(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	resp := toTaskResponse(task)
	return &resp, nil
}

func (s *taskService) List(ctx context.Context, req *dto.ListTasksRequest) ([]dto.TaskResponse, int64, error) {
	filter := repository.TaskFilter{
		Status:     model.TaskStatus(strings.ToUpper(req.Status)),
		AssigneeID: req.AssigneeID,
		ProjectID:  req.ProjectID,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: 状态 %s", ErrInvalidTaskInput, req.Status)
	}

	tasks, total, err := s.repo.Task.List(ctx, filter, req.Offset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询任务列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.TaskResponse, 0, len(tasks))
	for i := range tasks {
		result = append(result, toTaskResponse(&tasks[i]))
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *taskService) Update(ctx context.Context, id string, req *dto.UpdateTaskRequest, callerID string) (*dto.TaskResponse, error) {
	task, err := s.loadTask(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if req.Version != task.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: 标题不能为空", ErrInvalidTaskInput)
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Priority != nil {
		if !model.ValidPriority(*req.Priority) {
			return nil, fmt.Errorf("%w: 优先级 %s", ErrInvalidTaskInput, *req.Priority)
		}
		task.Priority = *req.Priority
	}
	if req.EstimatedHours != nil {
		if *req.EstimatedHours < 0 {
			return nil, fmt.Errorf("%w: 预估工时不能为负数", ErrInvalidTaskInput)
		}
		task.EstimatedHours = req.EstimatedHours
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			task.DueDate = nil
		} else {
			due, err := parseDate(*req.DueDate)
			if err != nil {
				return nil, fmt.Errorf("%w: 截止日期格式错误", ErrInvalidTaskInput)
			}
			task.DueDate = &due
		}
	}
	if err := s.checkRefs(ctx, req.AssigneeID, req.ProjectID); err != nil {
		return nil, err
	}
	if req.AssigneeID != nil {
		task.AssigneeID = nonEmpty(req.AssigneeID)
	}
	if req.ProjectID != nil {
		task.ProjectID = nonEmpty(req.ProjectID)
	}
	task.UpdatedBy = &callerID

	if err := s.repo.Task.Update(ctx, task); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("更新任务失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	resp := toTaskResponse(task)
	return &resp, nil
}

// ────────────────────── Transition ──────────────────────

const transitionMaxAttempts = 3

func (s *taskService) Transition(ctx context.Context, id string, target string, callerID string) (*dto.TransitionResponse, error) {
	to := model.TaskStatus(strings.ToUpper(strings.TrimSpace(target)))
	if !to.Valid() {
		return nil, fmt.Errorf("%w: 未知状态 %s", ErrInvalidTaskInput, target)
	}

	now := s.clock.Now()
	var task *model.Task
	var result TransitionResult

	// 乐观锁冲突时重新读取任务并重新校验流转，最多 transitionMaxAttempts 次
	var err error
	for attempt := 1; attempt <= transitionMaxAttempts; attempt++ {
		err = s.repo.RunInTx(ctx, func(tx *repository.Repository) error {
			t, err := s.loadTask(ctx, tx, id)
			if err != nil {
				return err
			}

			var logged time.Duration
			if to == model.TaskClosed {
				entries, err := tx.TimeEntry.ListByTask(ctx, id)
				if err != nil {
					s.logger.Error("查询任务工时失败", zap.String("id", id), zap.Error(err))
					return err
				}
				logged = LoggedTime(entries, now)
			}

			res, err := AttemptTransition(t, to, logged, s.auditThreshold)
			if err != nil {
				return err
			}
			if err := s.persistTransition(ctx, tx, t, res, callerID); err != nil {
				return err
			}
			task, result = t, res
			return nil
		})
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			break
		}
		s.logger.Info("任务流转遇到并发修改，重试", zap.String("id", id), zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, err
	}

	if result.AuditRequested {
		publishAdvisory(ctx, s.events, s.logger, Event{
			Type:          EventQualityAuditRequested,
			TaskID:        task.TaskID,
			RevisionCount: result.RevisionCount,
			Threshold:     s.auditThreshold,
			OperatorID:    callerID,
			OccurredAt:    now,
		})
	}

	return &dto.TransitionResponse{
		Task:           toTaskResponse(task),
		From:           string(result.From),
		To:             string(result.To),
		AuditRequested: result.AuditRequested,
	}, nil
}

// persistTransition 乐观锁写回任务并追加流转日志，需在事务内调用
func (s *taskService) persistTransition(ctx context.Context, tx *repository.Repository, task *model.Task, res TransitionResult, callerID string) error {
	task.UpdatedBy = &callerID
	if err := tx.Task.Update(ctx, task); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("写回任务状态失败", zap.String("id", task.TaskID), zap.Error(err))
		}
		return err
	}

	entry := &model.TaskTransitionLog{
		TaskID:         task.TaskID,
		FromStatus:     res.From,
		ToStatus:       res.To,
		RevisionCount:  res.RevisionCount,
		AuditRequested: res.AuditRequested,
		OperatorID:     nonEmpty(&callerID),
	}
	if err := tx.TransitionLog.Create(ctx, entry); err != nil {
		s.logger.Error("写入流转日志失败", zap.String("id", task.TaskID), zap.Error(err))
		return err
	}
	return nil
}

func (s *taskService) ListTransitions(ctx context.Context, id string) ([]dto.TransitionLogResponse, error) {
	if _, err := s.loadTask(ctx, s.repo, id); err != nil {
		return nil, err
	}
	logs, err := s.repo.TransitionLog.ListByTask(ctx, id)
	if err != nil {
		s.logger.Error("查询流转日志失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	result := make([]dto.TransitionLogResponse, 0, len(logs))
	for _, l := range logs {
		result = append(result, dto.TransitionLogResponse{
			ID:             l.TransitionLogID,
			From:           string(l.FromStatus),
			To:             string(l.ToStatus),
			RevisionCount:  l.RevisionCount,
			AuditRequested: l.AuditRequested,
			OperatorID:     l.OperatorID,
			CreatedAt:      formatTime(l.CreatedAt),
		})
	}
	return result, nil
}

// ────────────────────── BreachOverdue ──────────────────────

// BreachOverdue 将截止日期早于今天（业务时区）的未完成任务转入 BREACHED
// 单个任务并发冲突时跳过，不影响其余任务
func (s *taskService) BreachOverdue(ctx context.Context, callerID string) (*dto.BreachResponse, error) {
	today := model.DateOf(s.clock.Now(), s.loc)

	overdue, err := s.repo.Task.ListOverdue(ctx, today, breachableStatuses)
	if err != nil {
		s.logger.Error("查询超期任务失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.BreachResponse{Breached: make([]dto.TaskResponse, 0, len(overdue))}
	for i := range overdue {
		task := overdue[i]
		err := s.repo.RunInTx(ctx, func(tx *repository.Repository) error {
			res, err := MarkBreached(&task)
			if err != nil {
				return err
			}
			return s.persistTransition(ctx, tx, &task, res, callerID)
		})
		if err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) || errors.Is(err, ErrIllegalTransition) {
				s.logger.Warn("跳过超期任务", zap.String("id", task.TaskID), zap.Error(err))
				continue
			}
			return nil, err
		}
		resp.Breached = append(resp.Breached, toTaskResponse(&task))
	}
	resp.Count = len(resp.Breached)

	s.logger.Info("SLA 超期扫描完成", zap.Int("breached", resp.Count), zap.Int("candidates", len(overdue)))
	return resp, nil
}

// ────────────────────── Subtasks ──────────────────────

func (s *taskService) AddSubtask(ctx context.Context, taskID string, req *dto.CreateSubtaskRequest) (*dto.SubtaskResponse, error) {
	task, err := s.loadTask(ctx, s.repo, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == model.TaskClosed {
		return nil, fmt.Errorf("%w: 已关闭任务的检查清单不可修改", ErrInvalidTaskInput)
	}

	pos, err := s.repo.Task.NextSubtaskPosition(ctx, taskID)
	if err != nil {
		s.logger.Error("计算子任务序号失败", zap.String("task_id", taskID), zap.Error(err))
		return nil, err
	}

	subtask := &model.Subtask{TaskID: taskID, Title: strings.TrimSpace(req.Title), Position: pos}
	if subtask.Title == "" {
		return nil, fmt.Errorf("%w: 子任务标题不能为空", ErrInvalidTaskInput)
	}
	if err := s.repo.Task.CreateSubtask(ctx, subtask); err != nil {
		s.logger.Error("创建子任务失败", zap.String("task_id", taskID), zap.Error(err))
		return nil, err
	}

	resp := toSubtaskResponse(subtask)
	return &resp, nil
}

func (s *taskService) UpdateSubtask(ctx context.Context, taskID, subtaskID string, req *dto.UpdateSubtaskRequest) (*dto.SubtaskResponse, error) {
	task, err := s.loadTask(ctx, s.repo, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == model.TaskClosed {
		return nil, fmt.Errorf("%w: 已关闭任务的检查清单不可修改", ErrInvalidTaskInput)
	}

	subtask, err := s.repo.Task.GetSubtask(ctx, taskID, subtaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubtaskNotFound
		}
		s.logger.Error("查询子任务失败", zap.String("id", subtaskID), zap.Error(err))
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: 子任务标题不能为空", ErrInvalidTaskInput)
		}
		subtask.Title = title
	}
	if req.Done != nil {
		subtask.Done = *req.Done
	}
	if req.Position != nil {
		subtask.Position = *req.Position
	}

	if err := s.repo.Task.UpdateSubtask(ctx, subtask); err != nil {
		s.logger.Error("更新子任务失败", zap.String("id", subtaskID), zap.Error(err))
		return nil, err
	}

	resp := toSubtaskResponse(subtask)
	return &resp, nil
}

func (s *taskService) DeleteSubtask(ctx context.Context, taskID, subtaskID string) error {
	task, err := s.loadTask(ctx, s.repo, taskID)
	if err != nil {
		return err
	}
	if task.Status == model.TaskClosed {
		return fmt.Errorf("%w: 已关闭任务的检查清单不可修改", ErrInvalidTaskInput)
	}

	if err := s.repo.Task.DeleteSubtask(ctx, taskID, subtaskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubtaskNotFound
		}
		s.logger.Error("删除子任务失败", zap.String("id", subtaskID), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── 内部方法 ──────────────────────

func (s *taskService) loadTask(ctx context.Context, repo *repository.Repository, id string) (*model.Task, error) {
	task, err := repo.Task.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error("查询任务失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return task, nil
}

// checkRefs 校验指派人与项目存在；空字符串表示清空，不校验
func (s *taskService) checkRefs(ctx context.Context, assigneeID, projectID *string) error {
	if id := nonEmpty(assigneeID); id != nil {
		if _, err := s.repo.Person.GetByID(ctx, *id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPersonNotFound
			}
			s.logger.Error("查询人员失败", zap.String("id", *id), zap.Error(err))
			return err
		}
	}
	if id := nonEmpty(projectID); id != nil {
		if _, err := s.repo.Project.GetByID(ctx, *id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			s.logger.Error("查询项目失败", zap.String("id", *id), zap.Error(err))
			return err
		}
	}
	return nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func toSubtaskResponse(st *model.Subtask) dto.SubtaskResponse {
	return dto.SubtaskResponse{
		ID:       st.SubtaskID,
		Title:    st.Title,
		Done:     st.Done,
		Position: st.Position,
	}
}

func toTaskResponse(t *model.Task) dto.TaskResponse {
	subtasks := make([]dto.SubtaskResponse, 0, len(t.Subtasks))
	for i := range t.Subtasks {
		subtasks = append(subtasks, toSubtaskResponse(&t.Subtasks[i]))
	}
	next := AllowedTransitions(t.Status)
	allowed := make([]string, 0, len(next))
	for _, st := range next {
		allowed = append(allowed, string(st))
	}

	return dto.TaskResponse{
		ID:             t.TaskID,
		Title:          t.Title,
		Description:    t.Description,
		Status:         string(t.Status),
		Priority:       t.Priority,
		EstimatedHours: t.EstimatedHours,
		AssigneeID:     t.AssigneeID,
		ProjectID:      t.ProjectID,
		DueDate:        formatDatePtr(t.DueDate),
		RevisionCount:  t.RevisionCount,
		Version:        t.Version,
		Subtasks:       subtasks,
		AllowedNext:    allowed,
		CreatedAt:      formatTime(t.CreatedAt),
		UpdatedAt:      formatTime(t.UpdatedAt),
	}
}

// [自证通过] internal/service/task_service.go

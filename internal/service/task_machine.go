package service

import (
	"fmt"
	"time"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/model"
)

// taskEdges 声明的状态边；未出现的状态（CLOSED、CANCELLED）没有出边
var taskEdges = map[model.TaskStatus][]model.TaskStatus{
	model.TaskPending:    {model.TaskInProgress},
	model.TaskInProgress: {model.TaskInReview, model.TaskPending},
	model.TaskInReview:   {model.TaskApproved, model.TaskCorrection},
	model.TaskCorrection: {model.TaskInProgress},
	model.TaskApproved:   {model.TaskClosed},
	model.TaskBreached:   {model.TaskClosed},
}

// breachableStatuses SLA 超期扫描会转入 BREACHED 的状态
var breachableStatuses = []model.TaskStatus{
	model.TaskPending,
	model.TaskInProgress,
	model.TaskInReview,
	model.TaskCorrection,
}

// AllowedTransitions 返回 from 的合法目标状态
func AllowedTransitions(from model.TaskStatus) []model.TaskStatus {
	next := taskEdges[from]
	out := make([]model.TaskStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition 判断 from → to 是否为声明的边
func CanTransition(from, to model.TaskStatus) bool {
	for _, s := range taskEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionResult 一次成功流转的结果
type TransitionResult struct {
	From           model.TaskStatus
	To             model.TaskStatus
	RevisionCount  int
	AuditRequested bool
}

// AttemptTransition 尝试将 task 流转到 target
// 校验顺序：边是否合法 → 关闭时检查清单 → 关闭时已记录工时
// 仅在成功时修改 task；进入 CORRECTION 时 revision_count +1，超过 auditThreshold 时标记质量审计
func AttemptTransition(task *model.Task, target model.TaskStatus, logged time.Duration, auditThreshold int) (TransitionResult, error) {
	from := task.Status
	if !CanTransition(from, target) {
		return TransitionResult{}, fmt.Errorf("%w: %s → %s", ErrIllegalTransition, from, target)
	}

	if target == model.TaskClosed {
		if pending := task.IncompleteSubtasks(); len(pending) > 0 {
			return TransitionResult{}, fmt.Errorf("%w: 剩余 %d 项", ErrIncompleteChecklist, len(pending))
		}
		if logged <= 0 {
			return TransitionResult{}, ErrNoTimeLogged
		}
	}

	revisions := task.RevisionCount
	if target == model.TaskCorrection {
		revisions++
	}

	task.Status = target
	task.RevisionCount = revisions

	return TransitionResult{
		From:           from,
		To:             target,
		RevisionCount:  revisions,
		AuditRequested: target == model.TaskCorrection && revisions > auditThreshold,
	}, nil
}

// MarkBreached 将超期任务转入 BREACHED；不在可超期状态时返回 ErrIllegalTransition
func MarkBreached(task *model.Task) (TransitionResult, error) {
	from := task.Status
	for _, s := range breachableStatuses {
		if s == from {
			task.Status = model.TaskBreached
			return TransitionResult{From: from, To: model.TaskBreached, RevisionCount: task.RevisionCount}, nil
		}
	}
	return TransitionResult{}, fmt.Errorf("%w: %s → %s", ErrIllegalTransition, from, model.TaskBreached)
}

// LoggedTime 累计记录时长，进行中的记录截至 now
func LoggedTime(entries []model.TimeEntry, now time.Time) time.Duration {
	var total time.Duration
	for i := range entries {
		total += entries[i].Duration(now)
	}
	return total
}

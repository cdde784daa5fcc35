package service

import (
	"errors"
	"testing"
	"time"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/model"
)

func newMachineTask(status model.TaskStatus, subtasksDone ...bool) *model.Task {
	t := &model.Task{TaskID: "t-1", Status: status}
	for i, done := range subtasksDone {
		t.Subtasks = append(t.Subtasks, model.Subtask{SubtaskID: string(rune('a' + i)), Done: done, Position: i})
	}
	return t
}

// ── 状态边 ──

func TestAttemptTransition_DeclaredEdges(t *testing.T) {
	cases := []struct {
		from model.TaskStatus
		to   model.TaskStatus
		ok   bool
	}{
		{model.TaskPending, model.TaskInProgress, true},
		{model.TaskPending, model.TaskInReview, false},
		{model.TaskInProgress, model.TaskInReview, true},
		{model.TaskInProgress, model.TaskPending, true},
		{model.TaskInReview, model.TaskApproved, true},
		{model.TaskInReview, model.TaskCorrection, true},
		{model.TaskInReview, model.TaskClosed, false},
		{model.TaskCorrection, model.TaskInProgress, true},
		{model.TaskCorrection, model.TaskApproved, false},
		{model.TaskApproved, model.TaskClosed, true},
		{model.TaskBreached, model.TaskClosed, true},
		{model.TaskClosed, model.TaskPending, false},
		{model.TaskClosed, model.TaskInProgress, false},
		{model.TaskCancelled, model.TaskPending, false},
		{model.TaskPending, model.TaskCancelled, false},
		{model.TaskPending, model.TaskBreached, false},
	}
	for _, tc := range cases {
		task := newMachineTask(tc.from)
		_, err := AttemptTransition(task, tc.to, time.Hour, 3)
		if tc.ok && err != nil {
			t.Errorf("%s → %s 应成功，实际: %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("%s → %s 期望 ErrIllegalTransition，实际: %v", tc.from, tc.to, err)
		}
	}
}

func TestAttemptTransition_NoMutationOnError(t *testing.T) {
	task := newMachineTask(model.TaskApproved, true, false)
	task.RevisionCount = 2
	before := *task

	if _, err := AttemptTransition(task, model.TaskClosed, time.Hour, 3); err == nil {
		t.Fatal("存在未完成子任务时关闭应失败")
	}
	if _, err := AttemptTransition(task, model.TaskCorrection, time.Hour, 3); err == nil {
		t.Fatal("APPROVED → CORRECTION 应失败")
	}
	if task.Status != before.Status || task.RevisionCount != before.RevisionCount {
		t.Errorf("失败时任务不应被修改，实际 status=%s revision=%d", task.Status, task.RevisionCount)
	}
}

// ── 关闭门禁 ──

func TestAttemptTransition_ClosureGates(t *testing.T) {
	// 一项未完成 + 有工时 → IncompleteChecklist
	task := newMachineTask(model.TaskApproved, true, false)
	_, err := AttemptTransition(task, model.TaskClosed, 30*time.Minute, 3)
	if !errors.Is(err, ErrIncompleteChecklist) {
		t.Fatalf("期望 ErrIncompleteChecklist，实际: %v", err)
	}

	// 全部完成 + 零工时 → NoTimeLogged
	task = newMachineTask(model.TaskApproved, true, true)
	_, err = AttemptTransition(task, model.TaskClosed, 0, 3)
	if !errors.Is(err, ErrNoTimeLogged) {
		t.Fatalf("期望 ErrNoTimeLogged，实际: %v", err)
	}

	// 两者都满足 → 成功
	res, err := AttemptTransition(task, model.TaskClosed, 30*time.Minute, 3)
	if err != nil {
		t.Fatalf("满足门禁时关闭应成功: %v", err)
	}
	if task.Status != model.TaskClosed || res.From != model.TaskApproved || res.To != model.TaskClosed {
		t.Errorf("期望 APPROVED → CLOSED，实际 %s → %s（task=%s）", res.From, res.To, task.Status)
	}
}

func TestAttemptTransition_ChecklistCheckedBeforeTime(t *testing.T) {
	task := newMachineTask(model.TaskBreached, false)
	_, err := AttemptTransition(task, model.TaskClosed, 0, 3)
	if !errors.Is(err, ErrIncompleteChecklist) {
		t.Errorf("两个门禁都不满足时应先报 ErrIncompleteChecklist，实际: %v", err)
	}
}

func TestAttemptTransition_NoSubtasksOnlyNeedsTime(t *testing.T) {
	task := newMachineTask(model.TaskBreached)
	if _, err := AttemptTransition(task, model.TaskClosed, time.Second, 3); err != nil {
		t.Errorf("无子任务且有工时时应可关闭: %v", err)
	}
}

// ── 返工计数 ──

func TestAttemptTransition_RevisionCounterAndAudit(t *testing.T) {
	task := newMachineTask(model.TaskInReview)

	for i := 1; i <= 4; i++ {
		res, err := AttemptTransition(task, model.TaskCorrection, 0, 3)
		if err != nil {
			t.Fatalf("第 %d 次进入 CORRECTION 应成功: %v", i, err)
		}
		if res.RevisionCount != i || task.RevisionCount != i {
			t.Errorf("第 %d 次期望 revision=%d，实际=%d", i, i, task.RevisionCount)
		}
		wantAudit := i == 4
		if res.AuditRequested != wantAudit {
			t.Errorf("第 %d 次期望 AuditRequested=%v，实际=%v", i, wantAudit, res.AuditRequested)
		}

		// 回到 IN_REVIEW 准备下一轮
		if _, err := AttemptTransition(task, model.TaskInProgress, 0, 3); err != nil {
			t.Fatalf("CORRECTION → IN_PROGRESS 应成功: %v", err)
		}
		if _, err := AttemptTransition(task, model.TaskInReview, 0, 3); err != nil {
			t.Fatalf("IN_PROGRESS → IN_REVIEW 应成功: %v", err)
		}
	}
}

func TestAttemptTransition_OtherEdgesKeepRevisionCount(t *testing.T) {
	task := newMachineTask(model.TaskInReview)
	task.RevisionCount = 5
	res, err := AttemptTransition(task, model.TaskApproved, 0, 3)
	if err != nil {
		t.Fatalf("IN_REVIEW → APPROVED 应成功: %v", err)
	}
	if res.RevisionCount != 5 || res.AuditRequested {
		t.Errorf("非 CORRECTION 流转不应改变计数或触发审计，实际 revision=%d audit=%v", res.RevisionCount, res.AuditRequested)
	}
}

// ── BREACHED ──

func TestMarkBreached(t *testing.T) {
	for _, s := range []model.TaskStatus{model.TaskPending, model.TaskInProgress, model.TaskInReview, model.TaskCorrection} {
		task := newMachineTask(s)
		res, err := MarkBreached(task)
		if err != nil {
			t.Errorf("%s 应可转入 BREACHED: %v", s, err)
			continue
		}
		if task.Status != model.TaskBreached || res.From != s {
			t.Errorf("期望 %s → BREACHED，实际 %s", s, task.Status)
		}
	}
	for _, s := range []model.TaskStatus{model.TaskApproved, model.TaskClosed, model.TaskBreached, model.TaskCancelled} {
		task := newMachineTask(s)
		if _, err := MarkBreached(task); !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("%s 不应转入 BREACHED，实际: %v", s, err)
		}
		if task.Status != s {
			t.Errorf("失败时状态不应改变，实际 %s", task.Status)
		}
	}
}

func TestLoggedTime_CountsOpenEntriesUntilNow(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)
	entries := []model.TimeEntry{
		{StartTime: start, EndTime: &end},
		{StartTime: start.Add(time.Hour)},
	}
	got := LoggedTime(entries, start.Add(90*time.Minute))
	if got != 75*time.Minute {
		t.Errorf("期望 75m，实际 %v", got)
	}
}

func TestAllowedTransitions_ReturnsCopy(t *testing.T) {
	next := AllowedTransitions(model.TaskInReview)
	next[0] = model.TaskClosed
	if !CanTransition(model.TaskInReview, model.TaskApproved) {
		t.Error("修改返回值不应影响状态边定义")
	}
	if len(AllowedTransitions(model.TaskClosed)) != 0 {
		t.Error("CLOSED 应为终态")
	}
}

package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/config"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/model"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/repository"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/clock"
	pkgerrors "github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/errors"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/keylock"
)

// ── Mock PersonRepository ──

type mockPersonRepo struct {
	mu      sync.Mutex
	persons map[string]*model.Person
}

func newMockPersonRepo() *mockPersonRepo {
	return &mockPersonRepo{persons: make(map[string]*model.Person)}
}

func (m *mockPersonRepo) Create(_ context.Context, p *model.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.PersonID == "" {
		p.PersonID = fmt.Sprintf("person-%d", len(m.persons)+1)
	}
	cp := *p
	m.persons[p.PersonID] = &cp
	return nil
}

func (m *mockPersonRepo) GetByID(_ context.Context, id string) (*model.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.persons[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPersonRepo) ListActive(_ context.Context) ([]model.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Person
	for _, p := range m.persons {
		if p.Active {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ── Mock ProjectRepository ──

type mockProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*model.Project
}

func newMockProjectRepo() *mockProjectRepo {
	return &mockProjectRepo{projects: make(map[string]*model.Project)}
}

func (m *mockProjectRepo) Create(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ProjectID == "" {
		p.ProjectID = fmt.Sprintf("project-%d", len(m.projects)+1)
	}
	cp := *p
	m.projects[p.ProjectID] = &cp
	return nil
}

func (m *mockProjectRepo) GetByID(_ context.Context, id string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.projects[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock TaskRepository ──

// 读取返回副本，模拟数据库行与内存对象相互独立
type mockTaskRepo struct {
	mu       sync.Mutex
	seq      int
	tasks    map[string]*model.Task
	updateFn func(task *model.Task) error // 注入更新失败
}

func newMockTaskRepo() *mockTaskRepo {
	return &mockTaskRepo{tasks: make(map[string]*model.Task)}
}

func cloneTask(t *model.Task) *model.Task {
	cp := *t
	cp.Subtasks = append([]model.Subtask(nil), t.Subtasks...)
	return &cp
}

func (m *mockTaskRepo) Create(_ context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if task.TaskID == "" {
		task.TaskID = fmt.Sprintf("task-%d", m.seq)
	}
	if task.Version == 0 {
		task.Version = 1
	}
	for i := range task.Subtasks {
		m.seq++
		task.Subtasks[i].TaskID = task.TaskID
		if task.Subtasks[i].SubtaskID == "" {
			task.Subtasks[i].SubtaskID = fmt.Sprintf("subtask-%d", m.seq)
		}
	}
	m.tasks[task.TaskID] = cloneTask(task)
	return nil
}

func (m *mockTaskRepo) GetByID(_ context.Context, id string) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		return cloneTask(t), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTaskRepo) List(_ context.Context, f repository.TaskFilter, offset, limit int) ([]model.Task, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Task
	for _, t := range m.tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.AssigneeID != "" && (t.AssigneeID == nil || *t.AssigneeID != f.AssigneeID) {
			continue
		}
		if f.ProjectID != "" && (t.ProjectID == nil || *t.ProjectID != f.ProjectID) {
			continue
		}
		all = append(all, *cloneTask(t))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TaskID < all[j].TaskID })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockTaskRepo) ListOpen(_ context.Context) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Task
	for _, t := range m.tasks {
		if t.Status.IsOpen() {
			result = append(result, *cloneTask(t))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TaskID < result[j].TaskID })
	return result, nil
}

func (m *mockTaskRepo) ListByProject(_ context.Context, projectID string) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Task
	for _, t := range m.tasks {
		if t.ProjectID != nil && *t.ProjectID == projectID {
			result = append(result, *cloneTask(t))
		}
	}
	return result, nil
}

func (m *mockTaskRepo) ListOverdue(_ context.Context, before time.Time, statuses []model.TaskStatus) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Task
	for _, t := range m.tasks {
		if t.DueDate == nil || !t.DueDate.Before(before) {
			continue
		}
		for _, s := range statuses {
			if t.Status == s {
				result = append(result, *cloneTask(t))
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TaskID < result[j].TaskID })
	return result, nil
}

func (m *mockTaskRepo) Update(_ context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateFn != nil {
		if err := m.updateFn(task); err != nil {
			return err
		}
	}
	stored, ok := m.tasks[task.TaskID]
	if !ok || stored.Version != task.Version {
		return pkgerrors.ErrOptimisticLock
	}
	task.Version++
	cp := cloneTask(task)
	cp.Subtasks = stored.Subtasks
	m.tasks[task.TaskID] = cp
	return nil
}

func (m *mockTaskRepo) CreateSubtask(_ context.Context, st *model.Subtask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[st.TaskID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	m.seq++
	if st.SubtaskID == "" {
		st.SubtaskID = fmt.Sprintf("subtask-%d", m.seq)
	}
	t.Subtasks = append(t.Subtasks, *st)
	return nil
}

func (m *mockTaskRepo) GetSubtask(_ context.Context, taskID, subtaskID string) (*model.Subtask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[taskID]; ok {
		for _, st := range t.Subtasks {
			if st.SubtaskID == subtaskID {
				cp := st
				return &cp, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTaskRepo) UpdateSubtask(_ context.Context, st *model.Subtask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[st.TaskID]; ok {
		for i := range t.Subtasks {
			if t.Subtasks[i].SubtaskID == st.SubtaskID {
				t.Subtasks[i] = *st
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockTaskRepo) DeleteSubtask(_ context.Context, taskID, subtaskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[taskID]; ok {
		for i := range t.Subtasks {
			if t.Subtasks[i].SubtaskID == subtaskID {
				t.Subtasks = append(t.Subtasks[:i], t.Subtasks[i+1:]...)
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockTaskRepo) NextSubtaskPosition(_ context.Context, taskID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := 0
	if t, ok := m.tasks[taskID]; ok {
		for _, st := range t.Subtasks {
			if st.Position >= next {
				next = st.Position + 1
			}
		}
	}
	return next, nil
}

// ── Mock TransitionLogRepository ──

type mockTransitionLogRepo struct {
	mu   sync.Mutex
	logs []model.TaskTransitionLog
}

func newMockTransitionLogRepo() *mockTransitionLogRepo {
	return &mockTransitionLogRepo{}
}

func (m *mockTransitionLogRepo) Create(_ context.Context, l *model.TaskTransitionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.TransitionLogID == "" {
		l.TransitionLogID = fmt.Sprintf("log-%d", len(m.logs)+1)
	}
	m.logs = append(m.logs, *l)
	return nil
}

func (m *mockTransitionLogRepo) ListByTask(_ context.Context, taskID string) ([]model.TaskTransitionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.TaskTransitionLog
	for _, l := range m.logs {
		if l.TaskID == taskID {
			result = append(result, l)
		}
	}
	return result, nil
}

// ── Mock TimeEntryRepository ──

// Create 校验每人最多一条进行中记录，模拟部分唯一索引
type mockTimeEntryRepo struct {
	mu      sync.Mutex
	seq     int
	entries map[string]*model.TimeEntry
}

func newMockTimeEntryRepo() *mockTimeEntryRepo {
	return &mockTimeEntryRepo{entries: make(map[string]*model.TimeEntry)}
}

func (m *mockTimeEntryRepo) Create(_ context.Context, e *model.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.EndTime == nil {
		for _, x := range m.entries {
			if x.PersonID == e.PersonID && x.EndTime == nil {
				return pkgerrors.ErrDuplicate
			}
		}
	}
	m.seq++
	if e.TimeEntryID == "" {
		e.TimeEntryID = fmt.Sprintf("entry-%d", m.seq)
	}
	cp := *e
	m.entries[e.TimeEntryID] = &cp
	return nil
}

func (m *mockTimeEntryRepo) GetByID(_ context.Context, id string) (*model.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTimeEntryRepo) GetOpenByPerson(_ context.Context, personID string) (*model.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.PersonID == personID && e.EndTime == nil {
			cp := *e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTimeEntryRepo) Close(_ context.Context, id string, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.EndTime != nil {
		return gorm.ErrRecordNotFound
	}
	// 模拟 chk_time_entries_order
	if end.Before(e.StartTime) {
		return fmt.Errorf("new row violates check constraint chk_time_entries_order")
	}
	e.EndTime = &end
	return nil
}

func (m *mockTimeEntryRepo) ListByPerson(_ context.Context, personID string, from, to time.Time) ([]model.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.TimeEntry
	for _, e := range m.entries {
		if e.PersonID != personID || !e.StartTime.Before(to) {
			continue
		}
		if e.EndTime != nil && !e.EndTime.After(from) {
			continue
		}
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (m *mockTimeEntryRepo) ListByTask(_ context.Context, taskID string) ([]model.TimeEntry, error) {
	return m.ListByTasks(context.Background(), []string{taskID})
}

func (m *mockTimeEntryRepo) ListByTasks(_ context.Context, taskIDs []string) ([]model.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		want[id] = true
	}
	var result []model.TimeEntry
	for _, e := range m.entries {
		if e.TaskID != nil && want[*e.TaskID] {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (m *mockTimeEntryRepo) ListOpenStartedBefore(_ context.Context, before time.Time) ([]model.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.TimeEntry
	for _, e := range m.entries {
		if e.EndTime == nil && e.StartTime.Before(before) {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

// openCount 某人进行中的记录数
func (m *mockTimeEntryRepo) openCount(personID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.PersonID == personID && e.EndTime == nil {
			n++
		}
	}
	return n
}

// ── Mock WorkdayRepository ──

type mockWorkdayRepo struct {
	mu   sync.Mutex
	seq  int
	days map[string]*model.Workday // key: personID|date
}

func newMockWorkdayRepo() *mockWorkdayRepo {
	return &mockWorkdayRepo{days: make(map[string]*model.Workday)}
}

func workdayKey(personID string, date time.Time) string {
	return personID + "|" + date.Format("2006-01-02")
}

func (m *mockWorkdayRepo) Create(_ context.Context, d *model.Workday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := workdayKey(d.PersonID, d.WorkDate)
	if _, exists := m.days[key]; exists {
		return pkgerrors.ErrDuplicate
	}
	m.seq++
	if d.WorkdayID == "" {
		d.WorkdayID = fmt.Sprintf("workday-%d", m.seq)
	}
	cp := *d
	m.days[key] = &cp
	return nil
}

func (m *mockWorkdayRepo) GetByPersonDate(_ context.Context, personID string, date time.Time) (*model.Workday, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.days[workdayKey(personID, date)]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWorkdayRepo) Update(_ context.Context, d *model.Workday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := workdayKey(d.PersonID, d.WorkDate)
	if _, ok := m.days[key]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *d
	m.days[key] = &cp
	return nil
}

func (m *mockWorkdayRepo) ListByPerson(_ context.Context, personID string, from, to time.Time) ([]model.Workday, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Workday
	for _, d := range m.days {
		if d.PersonID == personID && !d.WorkDate.Before(from) && !d.WorkDate.After(to) {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WorkDate.Before(result[j].WorkDate) })
	return result, nil
}

// ── Mock LockRepository ──

type mockLockRepo struct{}

func (mockLockRepo) XactLock(_ context.Context, _, _ string) error { return nil }

// ── Mock EventPublisher ──

type mockPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

// ── 测试装配 ──

// testEnv 共享的 mock 仓储、时钟与配置
type testEnv struct {
	repo     *repository.Repository
	persons  *mockPersonRepo
	projects *mockProjectRepo
	tasks    *mockTaskRepo
	logs     *mockTransitionLogRepo
	entries  *mockTimeEntryRepo
	workdays *mockWorkdayRepo
	clock    *clock.Manual
	events   *mockPublisher
	locker   *keylock.Memory
	tracking *config.TrackingConfig
	logger   *zap.Logger
}

// 2026-03-02 是周一
var testStart = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newTestEnv() *testEnv {
	env := &testEnv{
		persons:  newMockPersonRepo(),
		projects: newMockProjectRepo(),
		tasks:    newMockTaskRepo(),
		logs:     newMockTransitionLogRepo(),
		entries:  newMockTimeEntryRepo(),
		workdays: newMockWorkdayRepo(),
		clock:    clock.NewManual(testStart),
		events:   &mockPublisher{},
		locker:   keylock.NewMemory(),
		tracking: &config.TrackingConfig{
			Timezone:               "UTC",
			LateCutoff:             "09:30",
			AuditRevisionThreshold: 3,
			FullTimeWeeklyHours:    37.5,
			HalfTimeWeeklyHours:    20,
			StaleTimerPolicy:       config.StaleTimerKeep,
			StopTimerOnClockOut:    true,
			LockBackend:            config.LockBackendMemory,
			LockTTL:                10 * time.Second,
		},
		logger: zap.NewNop(),
	}
	env.repo = &repository.Repository{
		Person:        env.persons,
		Project:       env.projects,
		Task:          env.tasks,
		TransitionLog: env.logs,
		TimeEntry:     env.entries,
		Workday:       env.workdays,
		Lock:          mockLockRepo{},
	}
	return env
}

func (e *testEnv) taskService() TaskService {
	return NewTaskService(e.tracking, e.repo, e.clock, e.events, e.logger)
}

func (e *testEnv) timerService() TimerService {
	return NewTimerService(e.tracking, e.repo, e.locker, e.clock, e.logger)
}

func (e *testEnv) workdayService() WorkdayService {
	return NewWorkdayService(e.tracking, e.repo, e.timerService(), e.locker, e.clock, e.logger)
}

func (e *testEnv) reportService() ReportService {
	return NewReportService(e.tracking, e.repo, e.clock, e.logger)
}

func (e *testEnv) addPerson(id, name, contract string) *model.Person {
	p := &model.Person{PersonID: id, Name: name, Role: "member", ContractType: contract, Active: true}
	_ = e.persons.Create(context.Background(), p)
	return p
}

func ptr[T any](v T) *T { return &v }

package service

import (
	"math"
	"sort"
	"time"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/model"
)

// ── 合规与负荷聚合（纯函数，不修改输入） ──

// Baselines 合同周工时基线
type Baselines struct {
	FullTime float64
	HalfTime float64
}

// WeeklyHours 按合同类型取周工时；未知类型按全职计
func (b Baselines) WeeklyHours(contractType string) float64 {
	if contractType == model.ContractHalf {
		return b.HalfTime
	}
	return b.FullTime
}

// Window 闭区间日历日期 [From, To]，日期为 model.DateOf 归一化值
type Window struct {
	From time.Time
	To   time.Time
}

// Empty From 晚于 To 时窗口不含任何日期
func (w Window) Empty() bool { return w.From.After(w.To) }

// Contains 日期 d 是否落在窗口内
func (w Window) Contains(d time.Time) bool {
	return !d.Before(w.From) && !d.After(w.To)
}

// Bounds 窗口在 loc 时区下对应的时刻区间 [start, end)
func (w Window) Bounds(loc *time.Location) (time.Time, time.Time) {
	return model.StartOfDate(w.From, loc), model.StartOfDate(w.To.AddDate(0, 0, 1), loc)
}

// CountWeekdays 窗口内周一至周五的天数
func CountWeekdays(w Window) int {
	if w.Empty() {
		return 0
	}
	n := 0
	for d := w.From; !d.After(w.To); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}

// ExpectedHours (周工时 / 5) × 工作日天数
func ExpectedHours(weekly float64, w Window) float64 {
	return weekly / 5 * float64(CountWeekdays(w))
}

// ratio 分母为零时返回 errDivisionGuarded
func ratio(num, den float64) (float64, error) {
	if den == 0 {
		return 0, errDivisionGuarded
	}
	return num / den, nil
}

// percent round(num / den × 100)，分母为零返回 0
func percent(num, den float64) int {
	r, err := ratio(num, den)
	if err != nil {
		return 0
	}
	return int(math.Round(r * 100))
}

// CompliancePercent round(实际工时 / 应出勤工时 × 100)
func CompliancePercent(worked, expected float64) int {
	return percent(worked, expected)
}

// WorkloadPercent min(100, round(预估工时 / 周工时 × 100))
func WorkloadPercent(estimated, weekly float64) int {
	p := percent(estimated, weekly)
	if p > 100 {
		return 100
	}
	return p
}

// OvertimeHours Σ max(0, 当日分钟 − 周工时/5×60) / 60，仅统计已下班的考勤日
func OvertimeHours(days []model.Workday, weekly float64) float64 {
	dailyExpected := weekly / 5 * 60
	var extra float64
	for i := range days {
		if days[i].State != model.WorkdayFinished || days[i].TotalMinutes == nil {
			continue
		}
		if over := float64(*days[i].TotalMinutes) - dailyExpected; over > 0 {
			extra += over
		}
	}
	return extra / 60
}

// LateDates 上班打卡时刻（loc 时区）晚于 cutoffMinutes 的日期
func LateDates(days []model.Workday, loc *time.Location, cutoffMinutes int) []time.Time {
	cutoff := time.Duration(cutoffMinutes) * time.Minute
	var out []time.Time
	for i := range days {
		if days[i].ClockIn == nil {
			continue
		}
		if wallClock(days[i].ClockIn.In(loc)) > cutoff {
			out = append(out, days[i].WorkDate)
		}
	}
	return out
}

// wallClock 本地墙上时间距当日零点的时长（不受夏令时切换影响）
func wallClock(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

// TrackedDuration 计时记录落在 [start, end) 内的时长，进行中记录截至 now
func TrackedDuration(entries []model.TimeEntry, start, end, now time.Time) time.Duration {
	var total time.Duration
	for i := range entries {
		s := entries[i].StartTime
		e := now
		if entries[i].EndTime != nil {
			e = *entries[i].EndTime
		}
		if s.Before(start) {
			s = start
		}
		if e.After(end) {
			e = end
		}
		if e.After(s) {
			total += e.Sub(s)
		}
	}
	return total
}

// ── 绩效快照 ──

// SnapshotInput 单人快照的输入
type SnapshotInput struct {
	Person        model.Person
	Weekly        float64
	Window        Window
	Location      *time.Location
	CutoffMinutes int
	Now           time.Time
	Workdays      []model.Workday
	Entries       []model.TimeEntry
	OpenTasks     []model.Task // 已按人员过滤
}

// PerformanceSnapshot 派生指标，不落库
type PerformanceSnapshot struct {
	Person               model.Person
	Window               Window
	HoursWorked          float64
	HoursExpected        float64
	CompliancePercent    int
	DaysWorked           int
	AverageMinutesPerDay int
	LateDates            []time.Time
	OvertimeHours        float64
	TrackedHours         float64
	WorkloadPercent      int
}

// BuildSnapshot 计算单人在窗口内的绩效快照
func BuildSnapshot(in SnapshotInput) PerformanceSnapshot {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}

	var finished []model.Workday
	var inWindow []model.Workday
	totalMinutes := 0
	for _, d := range in.Workdays {
		if !in.Window.Contains(d.WorkDate) {
			continue
		}
		inWindow = append(inWindow, d)
		if d.State == model.WorkdayFinished && d.TotalMinutes != nil {
			finished = append(finished, d)
			totalMinutes += *d.TotalMinutes
		}
	}

	snap := PerformanceSnapshot{
		Person:        in.Person,
		Window:        in.Window,
		HoursWorked:   float64(totalMinutes) / 60,
		HoursExpected: ExpectedHours(in.Weekly, in.Window),
		DaysWorked:    len(finished),
		LateDates:     LateDates(inWindow, loc, in.CutoffMinutes),
		OvertimeHours: OvertimeHours(finished, in.Weekly),
	}
	snap.CompliancePercent = CompliancePercent(snap.HoursWorked, snap.HoursExpected)
	if avg, err := ratio(float64(totalMinutes), float64(snap.DaysWorked)); err == nil {
		snap.AverageMinutesPerDay = int(math.Round(avg))
	}

	if !in.Window.Empty() {
		start, end := in.Window.Bounds(loc)
		snap.TrackedHours = TrackedDuration(in.Entries, start, end, in.Now).Hours()
	}

	estimated := 0.0
	for _, t := range in.OpenTasks {
		if t.Status.IsOpen() && t.EstimatedHours != nil {
			estimated += *t.EstimatedHours
		}
	}
	snap.WorkloadPercent = WorkloadPercent(estimated, in.Weekly)
	return snap
}

// ── 工作负荷报表 ──

// PersonWorkload 单人负荷
type PersonWorkload struct {
	Person          model.Person
	WeeklyHours     float64
	EstimatedHours  float64
	OpenTasks       int
	WorkloadPercent int
}

// UnassignedTask 未归属任务；Orphaned 表示指派给了未知人员
type UnassignedTask struct {
	Task     model.Task
	Orphaned bool
}

// WorkloadReport 负荷报表
type WorkloadReport struct {
	Persons    []PersonWorkload
	Unassigned []UnassignedTask
}

// BuildWorkload 按人员汇总未完成任务的预估工时
// period 非空时只统计无截止日期或截止日期落在 period 内的任务
func BuildWorkload(persons []model.Person, tasks []model.Task, baselines Baselines, period *Window) WorkloadReport {
	index := make(map[string]int, len(persons))
	report := WorkloadReport{Persons: make([]PersonWorkload, len(persons))}
	for i, p := range persons {
		index[p.PersonID] = i
		report.Persons[i] = PersonWorkload{Person: p, WeeklyHours: baselines.WeeklyHours(p.ContractType)}
	}

	for _, t := range tasks {
		if !t.Status.IsOpen() {
			continue
		}
		if period != nil && t.DueDate != nil && !period.Contains(model.DateOf(*t.DueDate, time.UTC)) {
			continue
		}
		if t.AssigneeID == nil || *t.AssigneeID == "" {
			report.Unassigned = append(report.Unassigned, UnassignedTask{Task: t})
			continue
		}
		i, ok := index[*t.AssigneeID]
		if !ok {
			report.Unassigned = append(report.Unassigned, UnassignedTask{Task: t, Orphaned: true})
			continue
		}
		report.Persons[i].OpenTasks++
		if t.EstimatedHours != nil {
			report.Persons[i].EstimatedHours += *t.EstimatedHours
		}
	}

	for i := range report.Persons {
		pw := &report.Persons[i]
		pw.WorkloadPercent = WorkloadPercent(pw.EstimatedHours, pw.WeeklyHours)
	}
	sort.SliceStable(report.Persons, func(a, b int) bool {
		return report.Persons[a].WorkloadPercent > report.Persons[b].WorkloadPercent
	})
	return report
}

// ── 项目盈利 ──

// ProfitabilityFigures 项目盈利偏差
type ProfitabilityFigures struct {
	HoursReal             float64
	CostReal              float64
	Profitability         int
	HoursDeviationPercent int
}

// Profitability costReal = hoursReal × hourlyRate
// profitability = round((budget − costReal) / budget × 100)，budget 为 0 时为 0
// hoursDeviationPercent = round((hoursReal − hoursEstimated) / hoursEstimated × 100)，预估为 0 时为 0
func Profitability(budget, hourlyRate, hoursEstimated, hoursReal float64) ProfitabilityFigures {
	cost := hoursReal * hourlyRate
	out := ProfitabilityFigures{HoursReal: hoursReal, CostReal: cost}
	if budget > 0 {
		out.Profitability = percent(budget-cost, budget)
	}
	if hoursEstimated > 0 {
		out.HoursDeviationPercent = percent(hoursReal-hoursEstimated, hoursEstimated)
	}
	return out
}

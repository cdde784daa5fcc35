package service

import (
	"testing"
	"time"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func finishedDay(d time.Time, clockIn time.Time, minutes int) model.Workday {
	in := clockIn
	out := clockIn.Add(time.Duration(minutes) * time.Minute)
	return model.Workday{
		WorkDate:     d,
		State:        model.WorkdayFinished,
		ClockIn:      &in,
		ClockOut:     &out,
		TotalMinutes: &minutes,
	}
}

var baselines = Baselines{FullTime: 37.5, HalfTime: 20}

// ── 工作日与应出勤工时 ──

func TestCountWeekdays(t *testing.T) {
	cases := []struct {
		name string
		w    Window
		want int
	}{
		{"周一至周五", Window{date(2026, 3, 2), date(2026, 3, 6)}, 5},
		{"整周含周末", Window{date(2026, 3, 2), date(2026, 3, 8)}, 5},
		{"仅周末", Window{date(2026, 3, 7), date(2026, 3, 8)}, 0},
		{"单日", Window{date(2026, 3, 4), date(2026, 3, 4)}, 1},
		{"两周", Window{date(2026, 3, 2), date(2026, 3, 15)}, 10},
		{"反向窗口", Window{date(2026, 3, 6), date(2026, 3, 2)}, 0},
	}
	for _, tc := range cases {
		if got := CountWeekdays(tc.w); got != tc.want {
			t.Errorf("%s: 期望 %d，实际 %d", tc.name, tc.want, got)
		}
	}
}

func TestExpectedHours(t *testing.T) {
	w := Window{date(2026, 3, 2), date(2026, 3, 6)}
	if got := ExpectedHours(37.5, w); got != 37.5 {
		t.Errorf("全职一周期望 37.5，实际 %v", got)
	}
	if got := ExpectedHours(20, Window{date(2026, 3, 2), date(2026, 3, 3)}); got != 8 {
		t.Errorf("半职两天期望 8，实际 %v", got)
	}
}

// ── 合规率 ──

func TestBuildSnapshot_HalfTimeFullCompliance(t *testing.T) {
	person := model.Person{PersonID: "p-1", ContractType: model.ContractHalf}
	var days []model.Workday
	for i := 0; i < 5; i++ {
		d := date(2026, 3, 2+i)
		days = append(days, finishedDay(d, d.Add(9*time.Hour), 240)) // 4h × 5 = 20h
	}

	snap := BuildSnapshot(SnapshotInput{
		Person:        person,
		Weekly:        baselines.WeeklyHours(person.ContractType),
		Window:        Window{date(2026, 3, 2), date(2026, 3, 6)},
		Location:      time.UTC,
		CutoffMinutes: 9*60 + 30,
		Now:           date(2026, 3, 7),
		Workdays:      days,
	})

	if snap.HoursWorked != 20 || snap.HoursExpected != 20 {
		t.Errorf("期望 worked=20 expected=20，实际 %v / %v", snap.HoursWorked, snap.HoursExpected)
	}
	if snap.CompliancePercent != 100 {
		t.Errorf("期望 compliance=100，实际 %d", snap.CompliancePercent)
	}
	if snap.DaysWorked != 5 || snap.AverageMinutesPerDay != 240 {
		t.Errorf("期望 days=5 avg=240，实际 %d / %d", snap.DaysWorked, snap.AverageMinutesPerDay)
	}
	if snap.OvertimeHours != 0 {
		t.Errorf("期望无加班，实际 %v", snap.OvertimeHours)
	}
}

func TestBuildSnapshot_ZeroDayWindow(t *testing.T) {
	snap := BuildSnapshot(SnapshotInput{
		Person: model.Person{PersonID: "p-1", ContractType: model.ContractFull},
		Weekly: 37.5,
		Window: Window{date(2026, 3, 7), date(2026, 3, 8)}, // 周末
	})
	if snap.HoursExpected != 0 || snap.CompliancePercent != 0 {
		t.Errorf("零工作日窗口期望 expected=0 compliance=0，实际 %v / %d", snap.HoursExpected, snap.CompliancePercent)
	}
	if snap.AverageMinutesPerDay != 0 {
		t.Errorf("无出勤期望平均 0，实际 %d", snap.AverageMinutesPerDay)
	}

	reversed := BuildSnapshot(SnapshotInput{Weekly: 37.5, Window: Window{date(2026, 3, 6), date(2026, 3, 2)}})
	if reversed.HoursExpected != 0 || reversed.CompliancePercent != 0 || reversed.TrackedHours != 0 {
		t.Error("反向窗口应视为零天")
	}
}

func TestBuildSnapshot_IgnoresUnfinishedAndOutOfWindowDays(t *testing.T) {
	d := date(2026, 3, 2)
	in := d.Add(10 * time.Hour)
	open := model.Workday{WorkDate: date(2026, 3, 3), State: model.WorkdayInProgress, ClockIn: &in}
	outside := finishedDay(date(2026, 2, 27), date(2026, 2, 27).Add(9*time.Hour), 600)

	snap := BuildSnapshot(SnapshotInput{
		Weekly:        37.5,
		Window:        Window{date(2026, 3, 2), date(2026, 3, 6)},
		Location:      time.UTC,
		CutoffMinutes: 9*60 + 30,
		Workdays:      []model.Workday{finishedDay(d, d.Add(9*time.Hour), 450), open, outside},
	})
	if snap.DaysWorked != 1 || snap.HoursWorked != 7.5 {
		t.Errorf("只统计窗口内已下班的考勤日，实际 days=%d worked=%v", snap.DaysWorked, snap.HoursWorked)
	}
	// 进行中的那天 10:00 上班仍算迟到
	if len(snap.LateDates) != 1 || !snap.LateDates[0].Equal(date(2026, 3, 3)) {
		t.Errorf("期望 2026-03-03 迟到，实际 %v", snap.LateDates)
	}
}

// ── 迟到与加班 ──

func TestLateDates_StrictlyAfterCutoff(t *testing.T) {
	mon, tue, wed := date(2026, 3, 2), date(2026, 3, 3), date(2026, 3, 4)
	days := []model.Workday{
		finishedDay(mon, mon.Add(9*time.Hour+30*time.Minute), 480), // 09:30 整，不算迟到
		finishedDay(tue, tue.Add(9*time.Hour+31*time.Minute), 480), // 09:31
		finishedDay(wed, wed.Add(8*time.Hour), 480),                // 08:00
	}
	late := LateDates(days, time.UTC, 9*60+30)
	if len(late) != 1 || !late[0].Equal(tue) {
		t.Errorf("期望仅 03-03 迟到，实际 %v", late)
	}
}

func TestLateDates_UsesBusinessTimezone(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skipf("缺少时区数据: %v", err)
	}
	d := date(2026, 3, 2)
	// 08:45 UTC = 09:45 马德里（冬令时 UTC+1）
	days := []model.Workday{finishedDay(d, d.Add(8*time.Hour+45*time.Minute), 480)}
	if got := LateDates(days, madrid, 9*60+30); len(got) != 1 {
		t.Errorf("按马德里时间应算迟到，实际 %v", got)
	}
	if got := LateDates(days, time.UTC, 9*60+30); len(got) != 0 {
		t.Errorf("按 UTC 不应算迟到，实际 %v", got)
	}
}

func TestOvertimeHours(t *testing.T) {
	d := date(2026, 3, 2)
	days := []model.Workday{
		finishedDay(d, d.Add(9*time.Hour), 540),                  // 9h，全职日基线 7.5h，多 1.5h
		finishedDay(d.AddDate(0, 0, 1), d.Add(33*time.Hour), 420), // 7h，不足不抵扣
	}
	if got := OvertimeHours(days, 37.5); got != 1.5 {
		t.Errorf("期望加班 1.5h，实际 %v", got)
	}
}

// ── 工作负荷 ──

func TestWorkloadPercent(t *testing.T) {
	if got := WorkloadPercent(30, 37.5); got != 80 {
		t.Errorf("30/37.5 期望 80，实际 %d", got)
	}
	if got := WorkloadPercent(80, 37.5); got != 100 {
		t.Errorf("超过基线应封顶 100，实际 %d", got)
	}
	if got := WorkloadPercent(10, 0); got != 0 {
		t.Errorf("基线为 0 时期望 0，实际 %d", got)
	}
	// math.Round 远离零取整
	if got := WorkloadPercent(0.125, 1); got != 13 {
		t.Errorf("12.5 期望舍入为 13，实际 %d", got)
	}
}

func TestBuildWorkload(t *testing.T) {
	ana := model.Person{PersonID: "ana", Name: "Ana", ContractType: model.ContractFull}
	ben := model.Person{PersonID: "ben", Name: "Ben", ContractType: model.ContractHalf}
	inPeriod := date(2026, 3, 4)
	outside := date(2026, 4, 1)

	tasks := []model.Task{
		{TaskID: "t1", Status: model.TaskInProgress, AssigneeID: ptr("ana"), EstimatedHours: ptr(15.0)},
		{TaskID: "t2", Status: model.TaskPending, AssigneeID: ptr("ana"), EstimatedHours: ptr(15.0), DueDate: &inPeriod},
		{TaskID: "t3", Status: model.TaskClosed, AssigneeID: ptr("ana"), EstimatedHours: ptr(100.0)},
		{TaskID: "t4", Status: model.TaskCancelled, AssigneeID: ptr("ben"), EstimatedHours: ptr(100.0)},
		{TaskID: "t5", Status: model.TaskInReview, AssigneeID: ptr("ben"), EstimatedHours: ptr(30.0)},
		{TaskID: "t6", Status: model.TaskPending, AssigneeID: ptr("ben"), EstimatedHours: ptr(5.0), DueDate: &outside},
		{TaskID: "t7", Status: model.TaskPending, EstimatedHours: ptr(3.0)},
		{TaskID: "t8", Status: model.TaskPending, AssigneeID: ptr("ghost")},
	}
	period := &Window{date(2026, 3, 2), date(2026, 3, 6)}

	report := BuildWorkload([]model.Person{ana, ben}, tasks, baselines, period)

	got := map[string]PersonWorkload{}
	for _, pw := range report.Persons {
		got[pw.Person.PersonID] = pw
	}
	if got["ana"].EstimatedHours != 30 || got["ana"].WorkloadPercent != 80 || got["ana"].OpenTasks != 2 {
		t.Errorf("Ana 期望 30h / 80%% / 2 项，实际 %+v", got["ana"])
	}
	if got["ben"].EstimatedHours != 30 || got["ben"].WorkloadPercent != 100 {
		t.Errorf("Ben 期望 30h / 100%%（封顶），实际 %+v", got["ben"])
	}
	if report.Persons[0].Person.PersonID != "ben" {
		t.Error("应按负荷从高到低排序")
	}

	if len(report.Unassigned) != 2 {
		t.Fatalf("期望 2 个未归属任务，实际 %d", len(report.Unassigned))
	}
	for _, u := range report.Unassigned {
		switch u.Task.TaskID {
		case "t7":
			if u.Orphaned {
				t.Error("t7 未指派，不应标记为 orphaned")
			}
		case "t8":
			if !u.Orphaned {
				t.Error("t8 指派给未知人员，应标记为 orphaned")
			}
		default:
			t.Errorf("意外的未归属任务 %s", u.Task.TaskID)
		}
	}
}

// ── 项目盈利 ──

func TestProfitability(t *testing.T) {
	fig := Profitability(1000, 40, 0, 10)
	if fig.CostReal != 400 || fig.Profitability != 60 {
		t.Errorf("期望 cost=400 profitability=60，实际 %v / %d", fig.CostReal, fig.Profitability)
	}
	if fig.HoursDeviationPercent != 0 {
		t.Errorf("预估为 0 时偏差应为 0，实际 %d", fig.HoursDeviationPercent)
	}

	fig = Profitability(0, 40, 8, 10)
	if fig.Profitability != 0 {
		t.Errorf("预算为 0 时期望 0，实际 %d", fig.Profitability)
	}
	if fig.HoursDeviationPercent != 25 {
		t.Errorf("(10-8)/8 期望 25，实际 %d", fig.HoursDeviationPercent)
	}

	fig = Profitability(100, 50, 10, 4)
	if fig.Profitability != -100 || fig.HoursDeviationPercent != -60 {
		t.Errorf("超支时期望 -100 / -60，实际 %d / %d", fig.Profitability, fig.HoursDeviationPercent)
	}
}

func TestTrackedDuration_ClipsToWindowAndNow(t *testing.T) {
	start := date(2026, 3, 2)
	end := date(2026, 3, 3)
	e1End := start.Add(time.Hour)
	entries := []model.TimeEntry{
		{StartTime: start.Add(-time.Hour), EndTime: &e1End}, // 窗口内 1h
		{StartTime: end.Add(-30 * time.Minute)},             // 进行中，截至窗口结束 30m
		{StartTime: end.Add(time.Hour)},                     // 窗口外
	}
	got := TrackedDuration(entries, start, end, end.Add(2*time.Hour))
	if got != 90*time.Minute {
		t.Errorf("期望 90m，实际 %v", got)
	}
}

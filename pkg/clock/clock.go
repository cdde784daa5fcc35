package clock

import (
	"sync"
	"time"
)

// Clock 时间源；业务代码统一经由 Clock 取当前时间，便于测试固定时刻
type Clock interface {
	Now() time.Time
}

// Real 系统时钟
type Real struct{}

// Now 返回当前 UTC 时间
func (Real) Now() time.Time { return time.Now().UTC() }

// Manual 手动推进的时钟，仅用于测试与回放
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual 创建固定在 t 的手动时钟
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

// Now 返回当前设定时刻
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set 将时钟拨到 t
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance 将时钟向前推进 d
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

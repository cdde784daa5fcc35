package keylock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockTimeout 在 ctx 结束前未能取得锁
var ErrLockTimeout = errors.New("获取锁超时")

// Unlock 释放已取得的锁，可重复调用
type Unlock func()

// Locker 按 key 串行化的锁
// 计时器使用 personID 作为 key，考勤使用 personID:date
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// ── 进程内实现 ──

type entry struct {
	sem  chan struct{}
	refs int
}

// Memory 进程内按 key 互斥，适用于单实例部署与测试
type Memory struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// NewMemory 创建进程内 Locker
func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*entry)}
}

// Lock 阻塞直到取得 key 的锁或 ctx 结束
func (m *Memory) Lock(ctx context.Context, key string) (Unlock, error) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.release(key, e)
		})
	}, nil
}

// release 引用计数归零时回收 key，避免 map 无限增长
func (m *Memory) release(key string, e *entry) {
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}

// size 当前持有或等待中的 key 数量（测试用）
func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

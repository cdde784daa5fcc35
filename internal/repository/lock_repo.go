package repository

import (
	"context"
	"hash/fnv"

	"gorm.io/gorm"
)

// LockRepository 事务级数据库锁
type LockRepository interface {
	// XactLock 在当前事务内对 namespace:key 加 PostgreSQL advisory 锁，事务结束自动释放
	// 非 PostgreSQL 方言下为空操作
	XactLock(ctx context.Context, namespace, key string) error
}

type lockRepo struct {
	db *gorm.DB
}

// NewLockRepo 创建 LockRepository 实例
func NewLockRepo(db *gorm.DB) LockRepository {
	return &lockRepo{db: db}
}

func (r *lockRepo) XactLock(ctx context.Context, namespace, key string) error {
	if r.db == nil || namespace == "" || key == "" {
		return nil
	}
	if r.db.Dialector == nil || r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(?)", advisoryKey64(namespace, key)).Error
}

func advisoryKey64(namespace, key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(namespace))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}

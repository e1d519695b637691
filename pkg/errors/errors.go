package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrTransactionTimeout 原子单元超出时间预算（准入等待或执行超时），
// 保证超时发生时不留下任何部分写入
var ErrTransactionTimeout = errors.New("事务超出时间预算")

// ErrRepository 底层存储失败，不可本地恢复
var ErrRepository = errors.New("存储层操作失败")

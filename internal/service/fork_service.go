package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MR-GREEN1337/Thoth-sub001/config"
	"github.com/MR-GREEN1337/Thoth-sub001/internal/dto"
	"github.com/MR-GREEN1337/Thoth-sub001/internal/model"
	"github.com/MR-GREEN1337/Thoth-sub001/internal/repository"
	pkgerrors "github.com/MR-GREEN1337/Thoth-sub001/pkg/errors"
	"github.com/MR-GREEN1337/Thoth-sub001/pkg/redis"
)

// ── Fork 模块业务错误 ──

var ErrDuplicateFork = errors.New("已 Fork 过该课程")

// ForkService Fork 创建协调器
//
// 前置校验（有序短路）：
//  1. 源课程存在，否则课程不存在
//  2. 该用户未 Fork 过该源课程，否则重复 Fork
//
// 核心操作是一个原子单元：新课程、模块深拷贝、标签关联、血缘边，
// 全部成功或全部不可见。并发去重最终由 (original, forker) 唯一索引
// 在提交时裁决——先检查后插入的竞态窗口由该索引闭合
type ForkService interface {
	CreateFork(ctx context.Context, userID, sourceCourseID string) (*dto.ForkedCourseResponse, error)
}

type forkService struct {
	cfg    *config.Config
	repo   *repository.Repository
	rdb    *redis.Client // 可为 nil（降级运行）
	logger *zap.Logger
}

// NewForkService 创建 ForkService 实例
func NewForkService(cfg *config.Config, repo *repository.Repository, rdb *redis.Client, logger *zap.Logger) ForkService {
	return &forkService{cfg: cfg, repo: repo, rdb: rdb, logger: logger}
}

func (s *forkService) CreateFork(ctx context.Context, userID, sourceCourseID string) (*dto.ForkedCourseResponse, error) {
	// ── 前置校验 1：源课程存在 ──
	source, err := s.repo.Course.GetByID(ctx, sourceCourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询源课程失败", zap.String("course_id", sourceCourseID), zap.Error(err))
		return nil, wrapRepoErr(err)
	}

	// ── 前置校验 2：该用户未 Fork 过该源 ──
	_, err = s.repo.ForkEdge.Find(ctx, sourceCourseID, userID)
	if err == nil {
		return nil, ErrDuplicateFork
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询血缘边失败", zap.String("course_id", sourceCourseID), zap.Error(err))
		return nil, wrapRepoErr(err)
	}

	// ── 原子单元：(a) 新课程 (b) 模块深拷贝 (c) 标签关联 (d) 血缘边 ──
	var newCourseID string
	err = s.repo.Atomic.RunAtomic(ctx, func(tx *repository.Repository) error {
		forked := s.cloneCourse(source, userID)
		if err := tx.Course.Create(ctx, forked); err != nil {
			return err
		}
		newCourseID = forked.CourseID

		modules := cloneModules(source.Modules, forked.CourseID, userID)
		if err := tx.Module.BatchCreate(ctx, modules); err != nil {
			return err
		}

		// 标签共享引用同一批行，不复制
		if err := tx.Interest.AttachToCourse(ctx, forked.CourseID, source.Interests); err != nil {
			return err
		}

		edge := &model.ForkEdge{
			OriginalCourseID: sourceCourseID,
			ForkedCourseID:   forked.CourseID,
			ForkerUserID:     userID,
		}
		return tx.ForkEdge.Create(ctx, edge)
	})
	if err != nil {
		return nil, s.mapForkTxErr(err, userID, sourceCourseID)
	}

	// ── 提交后回读：完整新课程 + 源课程最新 Fork 数 ──
	forked, err := s.repo.Course.GetByID(ctx, newCourseID)
	if err != nil {
		s.logger.Error("回读新课程失败", zap.String("course_id", newCourseID), zap.Error(err))
		return nil, wrapRepoErr(err)
	}

	forkCount, err := s.repo.ForkEdge.CountByOriginal(ctx, sourceCourseID)
	if err != nil {
		s.logger.Error("统计 Fork 数失败", zap.String("course_id", sourceCourseID), zap.Error(err))
		return nil, wrapRepoErr(err)
	}

	s.refreshForkCountCache(ctx, sourceCourseID, forkCount)

	s.logger.Info("课程 Fork 成功",
		zap.String("user_id", userID),
		zap.String("source_course_id", sourceCourseID),
		zap.String("forked_course_id", newCourseID),
	)

	return &dto.ForkedCourseResponse{
		Course:            *toCourseDetailResponse(forked, int64(0)),
		OriginalCourseID:  sourceCourseID,
		OriginalForkCount: forkCount,
		ForkedAt:          time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// ── 内部辅助方法 ──

// cloneCourse 按源课程构造新副本：标题加后缀，内容字段逐项拷贝，
// 新副本从 DRAFT 开始、归属 Fork 用户
func (s *forkService) cloneCourse(source *model.Course, userID string) *model.Course {
	forked := &model.Course{
		Title:          source.Title + s.cfg.Fork.TitleSuffix,
		Description:    source.Description,
		Status:         model.CourseStatusDraft,
		AuthorID:       userID,
		MarketScore:    source.MarketScore,
		TrendScore:     source.TrendScore,
		KeyTakeaways:   append(model.StringArray(nil), source.KeyTakeaways...),
		Prerequisites:  append(model.StringArray(nil), source.Prerequisites...),
		EstimatedHours: source.EstimatedHours,
	}
	forked.CreatedBy = &userID
	forked.UpdatedBy = &userID
	return forked
}

// cloneModules 深拷贝模块：保持顺序、时长、内容与 AI 标记，
// 主键留空由存储生成（新课程作用域下的全新标识符）
func cloneModules(src []model.Module, courseID, userID string) []model.Module {
	modules := make([]model.Module, 0, len(src))
	for _, m := range src {
		cloned := model.Module{
			CourseID:        courseID,
			Title:           m.Title,
			Content:         m.Content,
			Position:        m.Position,
			DurationMinutes: m.DurationMinutes,
			IsAIGenerated:   m.IsAIGenerated,
		}
		cloned.CreatedBy = &userID
		cloned.UpdatedBy = &userID
		modules = append(modules, cloned)
	}
	return modules
}

// mapForkTxErr 原子单元错误到业务错误的映射
// 唯一约束冲突 = 并发 Fork 输掉裁决，归为重复 Fork；
// 时间预算超限与 context 取消原样透传；其余标记为存储错误（已回滚）
func (s *forkService) mapForkTxErr(err error, userID, sourceCourseID string) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		s.logger.Info("并发 Fork 冲突，按重复处理",
			zap.String("user_id", userID),
			zap.String("source_course_id", sourceCourseID),
		)
		return ErrDuplicateFork
	case errors.Is(err, pkgerrors.ErrTransactionTimeout):
		s.logger.Warn("Fork 事务超出时间预算",
			zap.String("user_id", userID),
			zap.String("source_course_id", sourceCourseID),
		)
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		s.logger.Error("Fork 事务失败，已回滚",
			zap.String("user_id", userID),
			zap.String("source_course_id", sourceCourseID),
			zap.Error(err),
		)
		return wrapRepoErr(err)
	}
}

// refreshForkCountCache 尽力更新计数缓存，失败只告警不影响主流程
func (s *forkService) refreshForkCountCache(ctx context.Context, courseID string, count int64) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.SetForkCount(ctx, courseID, count); err != nil {
		s.logger.Warn("更新 Fork 计数缓存失败", zap.String("course_id", courseID), zap.Error(err))
	}
}

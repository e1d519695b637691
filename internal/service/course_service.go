package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MR-GREEN1337/Thoth-sub001/internal/dto"
	"github.com/MR-GREEN1337/Thoth-sub001/internal/model"
	"github.com/MR-GREEN1337/Thoth-sub001/internal/repository"
	pkgerrors "github.com/MR-GREEN1337/Thoth-sub001/pkg/errors"
	"github.com/MR-GREEN1337/Thoth-sub001/pkg/redis"
)

// ── 课程模块业务错误 ──

var (
	ErrNotCourseAuthor   = errors.New("仅课程作者可执行该操作")
	ErrInvalidTransition = errors.New("非法的课程状态变更")
)

// CourseService 课程业务接口
type CourseService interface {
	Create(ctx context.Context, req *dto.CreateCourseRequest, callerID string) (*dto.CourseDetailResponse, error)
	GetByID(ctx context.Context, id string) (*dto.CourseDetailResponse, error)
	ListPublished(ctx context.Context, req *dto.CourseListRequest) ([]dto.CourseResponse, int64, error)
	ListMine(ctx context.Context, callerID string) ([]dto.CourseResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateCourseRequest, callerID string) (*dto.CourseDetailResponse, error)
	// Publish DRAFT → PUBLISHED
	Publish(ctx context.Context, id string, callerID string) (*dto.CourseDetailResponse, error)
	// Archive PUBLISHED → ARCHIVED
	Archive(ctx context.Context, id string, callerID string) (*dto.CourseDetailResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
}

type courseService struct {
	repo   *repository.Repository
	rdb    *redis.Client // 可为 nil
	logger *zap.Logger
}

// NewCourseService 创建 CourseService 实例
func NewCourseService(repo *repository.Repository, rdb *redis.Client, logger *zap.Logger) CourseService {
	return &courseService{repo: repo, rdb: rdb, logger: logger}
}

// ────────────────────── Create ──────────────────────

// Create 创建课程：课程、模块与标签关联是一个原子单元
func (s *courseService) Create(ctx context.Context, req *dto.CreateCourseRequest, callerID string) (*dto.CourseDetailResponse, error) {
	// 标签先行解析（GetOrCreate 幂等，留在事务外避免放大锁范围）
	interests := make([]model.Interest, 0, len(req.Interests))
	for _, name := range req.Interests {
		interest, err := s.repo.Interest.GetOrCreateByName(ctx, name)
		if err != nil {
			s.logger.Error("解析兴趣标签失败", zap.String("name", name), zap.Error(err))
			return nil, wrapRepoErr(err)
		}
		interests = append(interests, *interest)
	}

	var courseID string
	err := s.repo.Atomic.RunAtomic(ctx, func(tx *repository.Repository) error {
		course := &model.Course{
			Title:          req.Title,
			Description:    req.Description,
			Status:         model.CourseStatusDraft,
			AuthorID:       callerID,
			KeyTakeaways:   model.StringArray(req.KeyTakeaways),
			Prerequisites:  model.StringArray(req.Prerequisites),
			EstimatedHours: req.EstimatedHours,
		}
		course.CreatedBy = &callerID
		course.UpdatedBy = &callerID

		if err := tx.Course.Create(ctx, course); err != nil {
			return err
		}
		courseID = course.CourseID

		modules := make([]model.Module, 0, len(req.Modules))
		for i, m := range req.Modules {
			mod := model.Module{
				CourseID:        course.CourseID,
				Title:           m.Title,
				Content:         m.Content,
				Position:        i,
				DurationMinutes: m.DurationMinutes,
				IsAIGenerated:   m.IsAIGenerated,
			}
			mod.CreatedBy = &callerID
			mod.UpdatedBy = &callerID
			modules = append(modules, mod)
		}
		if err := tx.Module.BatchCreate(ctx, modules); err != nil {
			return err
		}

		return tx.Interest.AttachToCourse(ctx, course.CourseID, interests)
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrTransactionTimeout) {
			return nil, err
		}
		s.logger.Error("创建课程失败", zap.Error(err))
		return nil, wrapRepoErr(err)
	}

	return s.GetByID(ctx, courseID)
}

// ────────────────────── GetByID ──────────────────────

func (s *courseService) GetByID(ctx context.Context, id string) (*dto.CourseDetailResponse, error) {
	course, err := s.repo.Course.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.String("id", id), zap.Error(err))
		return nil, wrapRepoErr(err)
	}

	forkCount := s.forkCountCached(ctx, id)

	return toCourseDetailResponse(course, forkCount), nil
}

// ────────────────────── List ──────────────────────

func (s *courseService) ListPublished(ctx context.Context, req *dto.CourseListRequest) ([]dto.CourseResponse, int64, error) {
	courses, total, err := s.repo.Course.ListPublished(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出已发布课程失败", zap.Error(err))
		return nil, 0, wrapRepoErr(err)
	}

	result := make([]dto.CourseResponse, 0, len(courses))
	for i := range courses {
		result = append(result, *toCourseResponse(&courses[i]))
	}
	return result, total, nil
}

func (s *courseService) ListMine(ctx context.Context, callerID string) ([]dto.CourseResponse, error) {
	courses, err := s.repo.Course.ListByAuthor(ctx, callerID)
	if err != nil {
		s.logger.Error("列出我的课程失败", zap.String("user_id", callerID), zap.Error(err))
		return nil, wrapRepoErr(err)
	}

	result := make([]dto.CourseResponse, 0, len(courses))
	for i := range courses {
		result = append(result, *toCourseResponse(&courses[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *courseService) Update(ctx context.Context, id string, req *dto.UpdateCourseRequest, callerID string) (*dto.CourseDetailResponse, error) {
	course, err := s.getOwned(ctx, id, callerID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.KeyTakeaways != nil {
		course.KeyTakeaways = model.StringArray(req.KeyTakeaways)
	}
	if req.Prerequisites != nil {
		course.Prerequisites = model.StringArray(req.Prerequisites)
	}
	if req.EstimatedHours != nil {
		course.EstimatedHours = *req.EstimatedHours
	}
	course.Version = req.Version
	course.UpdatedBy = &callerID

	if err := s.repo.Course.Update(ctx, course); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, err
		}
		s.logger.Error("更新课程失败", zap.String("id", id), zap.Error(err))
		return nil, wrapRepoErr(err)
	}

	return s.GetByID(ctx, id)
}

// ────────────────────── Publish / Archive ──────────────────────

func (s *courseService) Publish(ctx context.Context, id string, callerID string) (*dto.CourseDetailResponse, error) {
	return s.transition(ctx, id, callerID, model.CourseStatusDraft, model.CourseStatusPublished)
}

func (s *courseService) Archive(ctx context.Context, id string, callerID string) (*dto.CourseDetailResponse, error) {
	return s.transition(ctx, id, callerID, model.CourseStatusPublished, model.CourseStatusArchived)
}

func (s *courseService) transition(ctx context.Context, id, callerID, from, to string) (*dto.CourseDetailResponse, error) {
	course, err := s.getOwned(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	if course.Status != from {
		return nil, ErrInvalidTransition
	}

	course.Status = to
	course.UpdatedBy = &callerID

	if err := s.repo.Course.Update(ctx, course); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, err
		}
		s.logger.Error("变更课程状态失败", zap.String("id", id), zap.Error(err))
		return nil, wrapRepoErr(err)
	}

	return s.GetByID(ctx, id)
}

// ────────────────────── Delete ──────────────────────

// Delete 软删除课程。已有 Fork 指向它的血缘边被容忍为悬挂边，
// 树构建时静默跳过（产品决策未定前不级联、不阻断）
func (s *courseService) Delete(ctx context.Context, id string, callerID string) error {
	if _, err := s.getOwned(ctx, id, callerID); err != nil {
		return err
	}

	if err := s.repo.Course.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("删除课程失败", zap.String("id", id), zap.Error(err))
		return wrapRepoErr(err)
	}

	// 课程已删除，缓存的 Fork 计数随之作废；失效失败只告警
	if s.rdb != nil {
		if err := s.rdb.InvalidateForkCount(ctx, id); err != nil {
			s.logger.Warn("失效 Fork 计数缓存失败", zap.String("id", id), zap.Error(err))
		}
	}
	return nil
}

// ── 内部辅助方法 ──

func (s *courseService) getOwned(ctx context.Context, id, callerID string) (*model.Course, error) {
	course, err := s.repo.Course.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.String("id", id), zap.Error(err))
		return nil, wrapRepoErr(err)
	}
	if course.AuthorID != callerID {
		return nil, ErrNotCourseAuthor
	}
	return course, nil
}

// forkCountCached 读取直接 Fork 数：缓存命中直接返回，
// 未命中回源统计并回填；缓存异常降级为回源
func (s *courseService) forkCountCached(ctx context.Context, courseID string) int64 {
	if s.rdb != nil {
		if n, hit, err := s.rdb.GetForkCount(ctx, courseID); err == nil && hit {
			return n
		}
	}

	count, err := s.repo.ForkEdge.CountByOriginal(ctx, courseID)
	if err != nil {
		s.logger.Warn("统计 Fork 数失败，回退为0", zap.String("course_id", courseID), zap.Error(err))
		return 0
	}

	if s.rdb != nil {
		if err := s.rdb.SetForkCount(ctx, courseID, count); err != nil {
			s.logger.Warn("回填 Fork 计数缓存失败", zap.String("course_id", courseID), zap.Error(err))
		}
	}
	return count
}

// ── DTO 映射（课程/Fork/导出共用） ──

func authorName(author *model.User) string {
	if author == nil {
		return ""
	}
	return author.Name
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func interestNames(interests []model.Interest) []string {
	if len(interests) == 0 {
		return nil
	}
	names := make([]string, 0, len(interests))
	for _, i := range interests {
		names = append(names, i.Name)
	}
	return names
}

func toModuleResponses(modules []model.Module) []dto.ModuleResponse {
	result := make([]dto.ModuleResponse, 0, len(modules))
	for _, m := range modules {
		result = append(result, dto.ModuleResponse{
			ID:              m.ModuleID,
			Title:           m.Title,
			Content:         m.Content,
			Position:        m.Position,
			DurationMinutes: m.DurationMinutes,
			IsAIGenerated:   m.IsAIGenerated,
		})
	}
	return result
}

func toCourseResponse(course *model.Course) *dto.CourseResponse {
	return &dto.CourseResponse{
		ID:             course.CourseID,
		Title:          course.Title,
		Description:    course.Description,
		Status:         course.Status,
		AuthorName:     authorName(course.Author),
		EstimatedHours: course.EstimatedHours,
		Interests:      interestNames(course.Interests),
		CreatedAt:      formatTime(course.CreatedAt),
	}
}

func toCourseDetailResponse(course *model.Course, forkCount int64) *dto.CourseDetailResponse {
	return &dto.CourseDetailResponse{
		ID:             course.CourseID,
		Title:          course.Title,
		Description:    course.Description,
		Status:         course.Status,
		AuthorID:       course.AuthorID,
		AuthorName:     authorName(course.Author),
		MarketScore:    course.MarketScore,
		TrendScore:     course.TrendScore,
		KeyTakeaways:   course.KeyTakeaways,
		Prerequisites:  course.Prerequisites,
		EstimatedHours: course.EstimatedHours,
		Interests:      interestNames(course.Interests),
		Modules:        toModuleResponses(course.Modules),
		ForkCount:      forkCount,
		Version:        course.Version,
		CreatedAt:      formatTime(course.CreatedAt),
		UpdatedAt:      formatTime(course.UpdatedAt),
	}
}

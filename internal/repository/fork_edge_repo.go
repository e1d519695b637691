package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/MR-GREEN1337/Thoth-sub001/internal/model"
)

// ForkEdgeRepository 血缘边数据访问接口
type ForkEdgeRepository interface {
	// Create 插入血缘边；唯一约束冲突返回 gorm.ErrDuplicatedKey
	Create(ctx context.Context, edge *model.ForkEdge) error
	// GetByForked 按子节点查父边；无入边返回 gorm.ErrRecordNotFound
	GetByForked(ctx context.Context, forkedCourseID string) (*model.ForkEdge, error)
	// ListByOriginal 按父节点列出出边，保持写入顺序（created_at 升序）
	ListByOriginal(ctx context.Context, originalCourseID string) ([]model.ForkEdge, error)
	// Find 查找指定用户对指定源课程的 Fork 边
	Find(ctx context.Context, originalCourseID, forkerUserID string) (*model.ForkEdge, error)
	CountByOriginal(ctx context.Context, originalCourseID string) (int64, error)
}

// forkEdgeRepo ForkEdgeRepository 的 GORM 实现
type forkEdgeRepo struct {
	db *gorm.DB
}

// NewForkEdgeRepo 创建 ForkEdgeRepository 实例
func NewForkEdgeRepo(db *gorm.DB) ForkEdgeRepository {
	return &forkEdgeRepo{db: db}
}

func (r *forkEdgeRepo) Create(ctx context.Context, edge *model.ForkEdge) error {
	return r.db.WithContext(ctx).Create(edge).Error
}

func (r *forkEdgeRepo) GetByForked(ctx context.Context, forkedCourseID string) (*model.ForkEdge, error) {
	var edge model.ForkEdge
	err := r.db.WithContext(ctx).
		Where("forked_course_id = ?", forkedCourseID).
		First(&edge).Error
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

func (r *forkEdgeRepo) ListByOriginal(ctx context.Context, originalCourseID string) ([]model.ForkEdge, error) {
	var edges []model.ForkEdge
	err := r.db.WithContext(ctx).
		Where("original_course_id = ?", originalCourseID).
		Order("created_at ASC").
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	return edges, nil
}

func (r *forkEdgeRepo) Find(ctx context.Context, originalCourseID, forkerUserID string) (*model.ForkEdge, error) {
	var edge model.ForkEdge
	err := r.db.WithContext(ctx).
		Where("original_course_id = ? AND forker_user_id = ?", originalCourseID, forkerUserID).
		First(&edge).Error
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

func (r *forkEdgeRepo) CountByOriginal(ctx context.Context, originalCourseID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ForkEdge{}).
		Where("original_course_id = ?", originalCourseID).
		Count(&count).Error
	return count, err
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/MR-GREEN1337/Thoth-sub001/internal/model"
)

// InterestRepository 兴趣标签数据访问接口
type InterestRepository interface {
	GetOrCreateByName(ctx context.Context, name string) (*model.Interest, error)
	ListByCourse(ctx context.Context, courseID string) ([]model.Interest, error)
	// AttachToCourse 建立课程与标签的关联（共享标签行，不复制）
	AttachToCourse(ctx context.Context, courseID string, interests []model.Interest) error
}

// interestRepo InterestRepository 的 GORM 实现
type interestRepo struct {
	db *gorm.DB
}

// NewInterestRepo 创建 InterestRepository 实例
func NewInterestRepo(db *gorm.DB) InterestRepository {
	return &interestRepo{db: db}
}

func (r *interestRepo) GetOrCreateByName(ctx context.Context, name string) (*model.Interest, error) {
	var interest model.Interest
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		FirstOrCreate(&interest, model.Interest{Name: name}).Error
	if err != nil {
		return nil, err
	}
	return &interest, nil
}

func (r *interestRepo) ListByCourse(ctx context.Context, courseID string) ([]model.Interest, error) {
	var interests []model.Interest
	err := r.db.WithContext(ctx).
		Joins("JOIN course_interests ci ON ci.interest_id = interests.interest_id").
		Where("ci.course_id = ?", courseID).
		Order("interests.name ASC").
		Find(&interests).Error
	if err != nil {
		return nil, err
	}
	return interests, nil
}

func (r *interestRepo) AttachToCourse(ctx context.Context, courseID string, interests []model.Interest) error {
	if len(interests) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.Course{CourseID: courseID}).
		Association("Interests").
		Append(&interests)
}

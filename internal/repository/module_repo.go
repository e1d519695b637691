package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/MR-GREEN1337/Thoth-sub001/internal/model"
)

// ModuleRepository 课程模块数据访问接口
type ModuleRepository interface {
	BatchCreate(ctx context.Context, modules []model.Module) error
	ListByCourse(ctx context.Context, courseID string) ([]model.Module, error)
}

// moduleRepo ModuleRepository 的 GORM 实现
type moduleRepo struct {
	db *gorm.DB
}

// NewModuleRepo 创建 ModuleRepository 实例
func NewModuleRepo(db *gorm.DB) ModuleRepository {
	return &moduleRepo{db: db}
}

func (r *moduleRepo) BatchCreate(ctx context.Context, modules []model.Module) error {
	if len(modules) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&modules).Error
}

func (r *moduleRepo) ListByCourse(ctx context.Context, courseID string) ([]model.Module, error) {
	var modules []model.Module
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("position ASC").
		Find(&modules).Error
	if err != nil {
		return nil, err
	}
	return modules, nil
}

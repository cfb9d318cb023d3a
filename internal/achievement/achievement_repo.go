package achievement

import (
	"context"

	"gorm.io/gorm"
)

//go:generate mockgen -source=achievement_repo.go -destination=mock/achievement_repo_mock.go -package=mock
type Repository interface {
	Create(ctx context.Context, a *Achievement) error
	FindAllByUser(ctx context.Context, userID string) ([]Achievement, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, a *Achievement) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *repository) FindAllByUser(ctx context.Context, userID string) ([]Achievement, error) {
	var rows []Achievement
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("award_date DESC").
		Find(&rows).Error
	return rows, err
}

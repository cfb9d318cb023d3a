package member

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

//go:generate mockgen -source=member_repo.go -destination=mock/member_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, m *Membership) error
	FindByGroupAndUser(ctx context.Context, groupID, userID string) (*Membership, error)
	FindAllByGroup(ctx context.Context, groupID string) ([]Membership, error)
	FindGroupIDsByUser(ctx context.Context, userID string) ([]string, error)
}

type repository struct {
	db *gorm.DB
	tx *sql.Tx
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{db: r.db, tx: tx}
}

func (r *repository) Create(ctx context.Context, m *Membership) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *repository) FindByGroupAndUser(ctx context.Context, groupID, userID string) (*Membership, error) {
	var m Membership
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Where("user_id = ?", userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) FindAllByGroup(ctx context.Context, groupID string) ([]Membership, error) {
	var rows []Membership
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("display_name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindGroupIDsByUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&Membership{}).
		Where("user_id = ?", userID).
		Pluck("group_id::text", &ids).Error
	return ids, err
}

package group

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

//go:generate mockgen -source=group_repo.go -destination=mock/group_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, g *Group) error
	FindByID(ctx context.Context, id string) (*Group, error)
	FindByIDs(ctx context.Context, ids []string) ([]Group, error)
	FindAll(ctx context.Context) ([]Group, error)
	Update(ctx context.Context, g *Group) error
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

func (r *repository) Create(ctx context.Context, g *Group) error {
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*Group, error) {
	var g Group
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []string) ([]Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []Group
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

func (r *repository) FindAll(ctx context.Context) ([]Group, error) {
	var rows []Group
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) Update(ctx context.Context, g *Group) error {
	return r.db.WithContext(ctx).Save(g).Error
}

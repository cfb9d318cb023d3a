package presence

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"
)

//go:generate mockgen -source=presence_repo.go -destination=mock/presence_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Upsert(ctx context.Context, rec *PresenceRecord) error
	FindByUserAndGroup(ctx context.Context, userID, groupID string) (*PresenceRecord, error)
	FindAllByGroup(ctx context.Context, groupID string) ([]PresenceRecord, error)
	FindExpiredManual(ctx context.Context, now time.Time) ([]PresenceRecord, error)
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

// Upsert is a single atomic statement so concurrent writers for the same
// (user_id, group_id) never race a read-modify-write cycle.
func (r *repository) Upsert(ctx context.Context, rec *PresenceRecord) error {
	query := `
		INSERT INTO presence_records
			(user_id, group_id, is_present, is_manual, display_name, auto_checkout_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, group_id) DO UPDATE SET
			is_present = EXCLUDED.is_present,
			is_manual = EXCLUDED.is_manual,
			display_name = EXCLUDED.display_name,
			auto_checkout_at = EXCLUDED.auto_checkout_at,
			last_updated = EXCLUDED.last_updated
	`
	if r.tx != nil {
		_, err := r.tx.ExecContext(ctx, query,
			rec.UserID, rec.GroupID, rec.IsPresent, rec.IsManual,
			rec.DisplayName, rec.AutoCheckoutAt, rec.LastUpdated,
		)
		return err
	}
	return r.db.WithContext(ctx).Exec(query,
		rec.UserID, rec.GroupID, rec.IsPresent, rec.IsManual,
		rec.DisplayName, rec.AutoCheckoutAt, rec.LastUpdated,
	).Error
}

func (r *repository) FindByUserAndGroup(ctx context.Context, userID, groupID string) (*PresenceRecord, error) {
	var rec PresenceRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("group_id = ?", groupID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repository) FindAllByGroup(ctx context.Context, groupID string) ([]PresenceRecord, error) {
	var rows []PresenceRecord
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("display_name ASC").
		Find(&rows).Error
	return rows, err
}

// FindExpiredManual returns manual presences whose auto-checkout deadline
// has passed. Used by the lazy deadline sweep; covers records from
// sessions lost to a crash or restart.
func (r *repository) FindExpiredManual(ctx context.Context, now time.Time) ([]PresenceRecord, error) {
	var rows []PresenceRecord
	err := r.db.WithContext(ctx).
		Where("is_present = ?", true).
		Where("is_manual = ?", true).
		Where("auto_checkout_at IS NOT NULL").
		Where("auto_checkout_at <= ?", now).
		Find(&rows).Error
	return rows, err
}

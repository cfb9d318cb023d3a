package arrival

import (
	"context"
	"time"

	"gorm.io/gorm"
)

//go:generate mockgen -source=arrival_repo.go -destination=mock/arrival_repo_mock.go -package=mock
type Repository interface {
	// TryCreate performs a conditional create-if-absent write and reports
	// whether this call inserted the row. Atomic across processes, not
	// just goroutines: the database enforces the (group_id, claim_date)
	// primary key.
	TryCreate(ctx context.Context, claim *DailyArrivalClaim) (bool, error)
	FindByGroupAndDate(ctx context.Context, groupID string, date time.Time) (*DailyArrivalClaim, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) TryCreate(ctx context.Context, claim *DailyArrivalClaim) (bool, error) {
	// Raw SQL so the precondition and the insert are one atomic statement.
	res := r.db.WithContext(ctx).Exec(`
		INSERT INTO daily_arrival_claims (group_id, claim_date, user_id, claimed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (group_id, claim_date) DO NOTHING
	`, claim.GroupID, claim.ClaimDate.Format("2006-01-02"), claim.UserID, claim.ClaimedAt)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindByGroupAndDate(ctx context.Context, groupID string, date time.Time) (*DailyArrivalClaim, error) {
	var claim DailyArrivalClaim
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Where("claim_date = ?", date.Format("2006-01-02")).
		First(&claim).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

package arrival

import (
	"time"

	"github.com/google/uuid"
)

// DailyArrivalClaim records the single first arrival at a group on a
// calendar date. Created at most once per (group_id, claim_date); never
// updated after the winning write.
type DailyArrivalClaim struct {
	GroupID   uuid.UUID `gorm:"column:group_id;type:uuid;primaryKey"`
	ClaimDate time.Time `gorm:"column:claim_date;type:date;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	ClaimedAt time.Time `gorm:"column:claimed_at;type:timestamptz;not null"`
}

func (DailyArrivalClaim) TableName() string {
	return "daily_arrival_claims"
}

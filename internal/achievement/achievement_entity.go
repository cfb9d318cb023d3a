package achievement

import (
	"time"

	"github.com/google/uuid"
)

const KindFirstArrival = "FIRST_ARRIVAL"

// Achievement is an awarded badge. One first-arrival award per user,
// group and day, enforced by a unique constraint.
type Achievement struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_achievement_award"`
	GroupID   uuid.UUID `gorm:"column:group_id;type:uuid;not null;uniqueIndex:uq_achievement_award"`
	Kind      string    `gorm:"column:kind;type:varchar(40);not null;uniqueIndex:uq_achievement_award"`
	AwardDate time.Time `gorm:"column:award_date;type:date;not null;uniqueIndex:uq_achievement_award"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Achievement) TableName() string {
	return "achievements"
}

package presence

import (
	"time"

	"github.com/google/uuid"
)

// PresenceRecord is the stored fact that a user is or was present at a
// group. The authoritative copy lives in storage; the state machine holds
// a local optimistic copy per (user, group). AutoCheckoutAt is an
// absolute deadline, not a countdown, so a late evaluation after process
// suspension still resolves correctly.
type PresenceRecord struct {
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey"`
	GroupID        uuid.UUID  `gorm:"column:group_id;type:uuid;primaryKey"`
	IsPresent      bool       `gorm:"column:is_present;not null"`
	IsManual       bool       `gorm:"column:is_manual;not null"`
	DisplayName    string     `gorm:"column:display_name;type:varchar(100);not null"`
	AutoCheckoutAt *time.Time `gorm:"column:auto_checkout_at;type:timestamptz"`
	LastUpdated    time.Time  `gorm:"column:last_updated;type:timestamptz;not null"`
}

func (PresenceRecord) TableName() string {
	return "presence_records"
}

// State of the per-(user,group) machine, derived from the record pair
// (is_present, is_manual).
type State string

const (
	StateAbsent        State = "ABSENT"
	StatePresentManual State = "PRESENT_MANUAL"
	StatePresentAuto   State = "PRESENT_AUTO"
)

func (r *PresenceRecord) State() State {
	switch {
	case !r.IsPresent:
		return StateAbsent
	case r.IsManual:
		return StatePresentManual
	default:
		return StatePresentAuto
	}
}

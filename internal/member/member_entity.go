package member

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleOwner  = "OWNER"
	RoleMember = "MEMBER"
)

// Membership links a user to a group. DisplayName is what other members
// see in the presence roster; presence itself never exposes coordinates.
type Membership struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	GroupID     uuid.UUID      `gorm:"column:group_id;type:uuid;not null;uniqueIndex:uq_membership_group_user"`
	UserID      uuid.UUID      `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_membership_group_user"`
	DisplayName string         `gorm:"column:display_name;type:varchar(100);not null"`
	Role        string         `gorm:"column:role;type:varchar(20);not null;default:MEMBER"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Membership) TableName() string {
	return "memberships"
}

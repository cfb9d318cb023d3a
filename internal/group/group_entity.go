package group

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"go-presence/internal/geo"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Boundary is the ordered polygon stored as a jsonb column. Immutable
// once the group exists except through the boundary edit flow, which
// re-validates before persisting.
type Boundary []geo.Point

func (b Boundary) Value() (driver.Value, error) {
	return json.Marshal(b)
}

func (b *Boundary) Scan(value any) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	default:
		return errors.New("unsupported boundary column type")
	}
}

type Group struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID     uuid.UUID      `gorm:"column:owner_id;type:uuid;not null;index"`
	Name        string         `gorm:"column:name;type:varchar(100);not null"`
	Boundary    Boundary       `gorm:"column:boundary;type:jsonb;not null"`
	CentroidLat float64        `gorm:"column:centroid_lat;not null"`
	CentroidLon float64        `gorm:"column:centroid_lon;not null"`
	// Derived covering radius in meters, clamped by the scheduler when a
	// region is registered.
	RadiusMeters float64        `gorm:"column:radius_meters;not null"`
	DisplayMode  string         `gorm:"column:display_mode;type:varchar(20);not null;default:COUNT"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Group) TableName() string {
	return "groups"
}

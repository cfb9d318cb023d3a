package group

import (
	"time"

	"go-presence/internal/geo"
)

type CreateGroupRequest struct {
	Name        string      `json:"name" binding:"required,max=100"`
	Boundary    []geo.Point `json:"boundary" binding:"required"`
	DisplayMode string      `json:"display_mode" binding:"omitempty,oneof=COUNT NAMES"`
}

type UpdateBoundaryRequest struct {
	Boundary []geo.Point `json:"boundary" binding:"required"`
}

type UpdateDisplayModeRequest struct {
	DisplayMode string `json:"display_mode" binding:"required,oneof=COUNT NAMES"`
}

type GroupResponse struct {
	ID           string      `json:"id"`
	OwnerID      string      `json:"owner_id"`
	Name         string      `json:"name"`
	Boundary     Boundary    `json:"boundary"`
	CentroidLat  float64     `json:"centroid_lat"`
	CentroidLon  float64     `json:"centroid_lon"`
	RadiusMeters float64     `json:"radius_meters"`
	DisplayMode  string      `json:"display_mode"`
	CreatedAt    time.Time   `json:"created_at"`
}

package session

const (
	RegionEventEnter = "ENTER"
	RegionEventExit  = "EXIT"
)

type SignInRequest struct {
	ContinuousLocation bool `json:"continuous_location"`
}

type LocationRequest struct {
	Lat float64 `json:"lat" binding:"min=-90,max=90"`
	Lon float64 `json:"lon" binding:"min=-180,max=180"`
}

type RegionEventRequest struct {
	GroupID string `json:"group_id" binding:"required,uuid"`
	Event   string `json:"event" binding:"required,oneof=ENTER EXIT"`
}

type SessionResponse struct {
	UserID             string `json:"user_id"`
	DisplayName        string `json:"display_name"`
	ContinuousLocation bool   `json:"continuous_location"`
	Degraded           bool   `json:"degraded"`
	SignedInAt         string `json:"signed_in_at"`
}

type LocationResponse struct {
	Candidates int      `json:"candidates"`
	Monitored  []string `json:"monitored"`
	Degraded   bool     `json:"degraded"`
}

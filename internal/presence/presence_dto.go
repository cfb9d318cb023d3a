package presence

type CheckInRequest struct {
	DurationMinutes int `json:"duration_minutes" binding:"omitempty,oneof=15 30 60 120 240"`
}

type PresenceResponse struct {
	UserID         string  `json:"user_id"`
	GroupID        string  `json:"group_id"`
	State          string  `json:"state"`
	IsPresent      bool    `json:"is_present"`
	IsManual       bool    `json:"is_manual"`
	DisplayName    string  `json:"display_name"`
	AutoCheckoutAt *string `json:"auto_checkout_at,omitempty"`
	LastUpdated    string  `json:"last_updated"`
}

type SummaryResponse struct {
	GroupID        string   `json:"group_id"`
	PresentCount   int      `json:"present_count"`
	PresentMembers []string `json:"present_members,omitempty"`
	Display        string   `json:"display"`
}

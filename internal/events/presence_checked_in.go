package events

import "time"

const PresenceCheckInTopic = "presence.checkin.v1"

// PresenceCheckInEvent feeds the achievement engine on every transition
// to present. WonFirstArrival is true only for the single daily winner.
type PresenceCheckInEvent struct {
	EventType       string    `json:"event_type"`
	UserID          string    `json:"user_id"`
	GroupID         string    `json:"group_id"`
	IsManual        bool      `json:"is_manual"`
	WonFirstArrival bool      `json:"won_first_arrival"`
	OccurredAt      time.Time `json:"occurred_at"`
}

package events

import "time"

const PresenceAnalyticsTopic = "presence.analytics.v1"

const (
	AnalyticsCheckIn      = "check_in"
	AnalyticsCheckOut     = "check_out"
	AnalyticsAutoCheckOut = "auto_check_out"
)

// PresenceAnalyticsEvent is a fire-and-forget structured analytics event.
// DurationMinutes is set on check_out and auto_check_out only.
type PresenceAnalyticsEvent struct {
	EventType       string    `json:"event_type"`
	GroupID         string    `json:"group_id"`
	IsManual        bool      `json:"is_manual"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

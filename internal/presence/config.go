package presence

import "time"

const (
	// Minimum gap between accepted automatic presence updates for the
	// same (user, group).
	ThrottleWindow = 30 * time.Second

	// Presence older than this is treated as absent on every read.
	MaxPresenceDuration = 10 * time.Hour

	DefaultAutoCheckoutMinutes = 60
)

// AutoCheckoutOptions are the selectable auto-checkout durations in
// minutes.
var AutoCheckoutOptions = []int{15, 30, 60, 120, 240}

func validAutoCheckoutMinutes(minutes int) bool {
	for _, opt := range AutoCheckoutOptions {
		if minutes == opt {
			return true
		}
	}
	return false
}

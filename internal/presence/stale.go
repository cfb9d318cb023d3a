package presence

import "time"

// IsStale reports whether a record is older than MaxPresenceDuration.
// Strictly greater-than: a record exactly at the limit is not stale.
// Stale records are treated as absent wherever presence is read; deleting
// them is the storage layer's concern.
func IsStale(rec *PresenceRecord, now time.Time) bool {
	return now.Sub(rec.LastUpdated) > MaxPresenceDuration
}

package presence

import (
	"time"

	"github.com/google/uuid"
)

const snapshotChannelPrefix = "presence.group."

// SnapshotChannel is the Redis pub/sub channel carrying authoritative
// presence records for one group. Every committed transition publishes
// here; reconcilers on other devices subscribe to converge.
func SnapshotChannel(groupID string) string {
	return snapshotChannelPrefix + groupID
}

// Snapshot is the wire form of a PresenceRecord on the snapshot stream.
// It carries boolean presence only, never raw coordinates.
type Snapshot struct {
	UserID      string    `json:"user_id"`
	GroupID     string    `json:"group_id"`
	IsPresent   bool      `json:"is_present"`
	IsManual    bool      `json:"is_manual"`
	DisplayName string    `json:"display_name"`
	LastUpdated time.Time `json:"last_updated"`
}

func snapshotFromRecord(rec *PresenceRecord) Snapshot {
	return Snapshot{
		UserID:      rec.UserID.String(),
		GroupID:     rec.GroupID.String(),
		IsPresent:   rec.IsPresent,
		IsManual:    rec.IsManual,
		DisplayName: rec.DisplayName,
		LastUpdated: rec.LastUpdated,
	}
}

func recordFromSnapshot(snap Snapshot) *PresenceRecord {
	rec := &PresenceRecord{
		IsPresent:   snap.IsPresent,
		IsManual:    snap.IsManual,
		DisplayName: snap.DisplayName,
		LastUpdated: snap.LastUpdated,
	}
	if id, err := uuid.Parse(snap.UserID); err == nil {
		rec.UserID = id
	}
	if id, err := uuid.Parse(snap.GroupID); err == nil {
		rec.GroupID = id
	}
	if rec.DisplayName == "" {
		rec.DisplayName = snap.UserID
	}
	return rec
}

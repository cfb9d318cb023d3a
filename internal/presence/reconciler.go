package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Display modes for the human-facing summary, owned by the group entity.
const (
	DisplayModeCount = "COUNT"
	DisplayModeNames = "NAMES"
)

// GroupSummary is the UI-facing aggregation of who is present.
type GroupSummary struct {
	GroupID        string   `json:"group_id"`
	PresentCount   int      `json:"present_count"`
	PresentMembers []string `json:"present_members"`
}

// BuildSummary filters out absent and stale records and aggregates the
// rest into a summary with a stable name ordering.
func BuildSummary(groupID string, records []*PresenceRecord, now time.Time) GroupSummary {
	members := make([]string, 0, len(records))
	for _, rec := range records {
		if !rec.IsPresent || IsStale(rec, now) {
			continue
		}
		name := rec.DisplayName
		if name == "" {
			name = rec.UserID.String()
		}
		members = append(members, name)
	}
	sort.Strings(members)
	return GroupSummary{
		GroupID:        groupID,
		PresentCount:   len(members),
		PresentMembers: members,
	}
}

// FormatSummary renders the display line for a summary. A pure function
// of the summary and the group's display mode.
func FormatSummary(s GroupSummary, displayMode string) string {
	if s.PresentCount == 0 {
		return "No one here"
	}
	if displayMode == DisplayModeNames {
		return strings.Join(s.PresentMembers, ", ")
	}
	if s.PresentCount == 1 {
		return "1 person here"
	}
	return fmt.Sprintf("%d people here", s.PresentCount)
}

// Reconciler mirrors the authoritative snapshot stream for one group and
// merges it with whatever this device already believes, last writer wins
// on last_updated with the remote value preferred on ties so every
// device converges on one truth.
type Reconciler struct {
	groupID string
	logger  *zap.Logger

	mu      sync.Mutex
	records map[string]Snapshot
}

func NewReconciler(groupID string, logger ...*zap.Logger) *Reconciler {
	l := zap.L().Named("presence.reconciler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("presence.reconciler")
	}
	return &Reconciler{
		groupID: groupID,
		logger:  l,
		records: make(map[string]Snapshot),
	}
}

// Seed installs an initial authoritative load, typically the stored rows
// fetched when the subscription starts.
func (r *Reconciler) Seed(records []PresenceRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range records {
		snap := snapshotFromRecord(&records[i])
		r.applyLocked(snap)
	}
}

// Apply merges one snapshot. Older updates than what is already held are
// discarded; equal timestamps take the incoming remote value.
func (r *Reconciler) Apply(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyLocked(snap)
}

func (r *Reconciler) applyLocked(snap Snapshot) {
	existing, ok := r.records[snap.UserID]
	if ok && existing.LastUpdated.After(snap.LastUpdated) {
		return
	}
	r.records[snap.UserID] = snap
}

// Summary aggregates the merged view, applying the stale filter.
func (r *Reconciler) Summary(now time.Time) GroupSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]*PresenceRecord, 0, len(r.records))
	for _, snap := range r.records {
		rec := &PresenceRecord{
			IsPresent:   snap.IsPresent,
			IsManual:    snap.IsManual,
			DisplayName: snap.DisplayName,
			LastUpdated: snap.LastUpdated,
		}
		if rec.DisplayName == "" {
			rec.DisplayName = snap.UserID
		}
		records = append(records, rec)
	}
	return BuildSummary(r.groupID, records, now)
}

// Snapshots returns a copy of the merged view for callers folding it
// into a wider aggregation.
func (r *Reconciler) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.records))
	for _, snap := range r.records {
		out = append(out, snap)
	}
	return out
}

// Run subscribes to the group's snapshot channel and consumes it until
// the context ends.
func (r *Reconciler) Run(ctx context.Context, rdb *redis.Client) {
	sub := rdb.Subscribe(ctx, SnapshotChannel(r.groupID))
	defer sub.Close()

	r.logger.Info("snapshot subscription started", zap.String("group_id", r.groupID))
	r.consume(ctx, sub.Channel())
	r.logger.Info("snapshot subscription stopped", zap.String("group_id", r.groupID))
}

func (r *Reconciler) consume(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var snap Snapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
				r.logger.Error("decode presence snapshot failed", zap.Error(err))
				continue
			}
			r.Apply(snap)
		}
	}
}

package geofence

import (
	"context"
	"sort"
	"sync"

	"go-presence/internal/geo"

	"go.uber.org/zap"
)

// Candidate is a group eligible for monitoring, with its derived center
// and covering radius already computed from the boundary.
type Candidate struct {
	GroupID string
	Center  geo.Point
	Radius  float64
}

// Scheduler keeps the session's monitored-region set within the platform
// ceiling, preferring the groups nearest the current location. Reconcile
// is idempotent: repeated calls with the same inputs perform no platform
// registrations or unregistrations.
type Scheduler struct {
	mu         sync.Mutex
	monitor    RegionMonitor
	registered map[string]Registration
	logger     *zap.Logger
}

func NewScheduler(monitor RegionMonitor, logger ...*zap.Logger) *Scheduler {
	l := zap.L().Named("geofence.scheduler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("geofence.scheduler")
	}
	return &Scheduler{
		monitor:    monitor,
		registered: make(map[string]Registration),
		logger:     l,
	}
}

// Reconcile selects the MaxMonitoredRegions nearest candidates (haversine
// distance to center, stable group-id tiebreak) and diffs them against
// the currently registered set. When monitoring is unavailable the set is
// emptied and ErrUnavailable is returned so the caller can degrade to
// manual-only presence.
func (s *Scheduler) Reconcile(ctx context.Context, candidates []Candidate, location geo.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.monitor.Available() {
		s.clearLocked(ctx)
		return ErrUnavailable
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		di := geo.Distance(location, sorted[i].Center)
		dj := geo.Distance(location, sorted[j].Center)
		if di != dj {
			return di < dj
		}
		return sorted[i].GroupID < sorted[j].GroupID
	})

	limit := len(sorted)
	if limit > MaxMonitoredRegions {
		limit = MaxMonitoredRegions
	}

	desired := make(map[string]Registration, limit)
	for _, c := range sorted[:limit] {
		desired[c.GroupID] = Registration{
			GroupID: c.GroupID,
			Center:  c.Center,
			Radius:  clampRadius(c.Radius),
		}
	}

	for groupID := range s.registered {
		if _, keep := desired[groupID]; keep {
			continue
		}
		if err := s.monitor.Unregister(ctx, groupID); err != nil {
			s.logger.Error("unregister region failed",
				zap.String("group_id", groupID),
				zap.Error(err),
			)
			continue
		}
		delete(s.registered, groupID)
	}

	for groupID, reg := range desired {
		if _, exists := s.registered[groupID]; exists {
			continue
		}
		if err := s.monitor.Register(ctx, reg); err != nil {
			s.logger.Error("register region failed",
				zap.String("group_id", groupID),
				zap.Error(err),
			)
			continue
		}
		s.registered[groupID] = reg
	}

	s.logger.Debug("reconciled monitored regions",
		zap.Int("candidates", len(candidates)),
		zap.Int("registered", len(s.registered)),
	)
	return nil
}

// Clear unregisters every region. Called at sign-out so no registration
// leaks across a session boundary.
func (s *Scheduler) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(ctx)
}

func (s *Scheduler) clearLocked(ctx context.Context) {
	for groupID := range s.registered {
		if err := s.monitor.Unregister(ctx, groupID); err != nil {
			s.logger.Error("unregister region failed",
				zap.String("group_id", groupID),
				zap.Error(err),
			)
		}
		delete(s.registered, groupID)
	}
}

// Registered returns the monitored set sorted by group id.
func (s *Scheduler) Registered() []Registration {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Registration, 0, len(s.registered))
	for _, reg := range s.registered {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out
}

func clampRadius(r float64) float64 {
	if r < MinRegionRadiusMeters {
		return MinRegionRadiusMeters
	}
	if r > MaxRegionRadiusMeters {
		return MaxRegionRadiusMeters
	}
	return r
}

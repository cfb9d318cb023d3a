package geofence

import (
	"context"
	"net/http"
	"sync"

	"go-presence/internal/geo"
	"go-presence/internal/shared/apperror"
)

const (
	// Hard platform ceiling on concurrently monitored regions per session.
	MaxMonitoredRegions = 20

	// Allowed radius range for a platform region, in meters.
	MinRegionRadiusMeters = 100.0
	MaxRegionRadiusMeters = 10_000.0
)

// ErrUnavailable means the region-monitoring capability cannot be used
// (permission denied or unsupported). The session degrades to manual-only
// presence; this is not a fatal error.
var ErrUnavailable = apperror.New(
	apperror.CodeGeofencingUnavailable,
	"region monitoring is unavailable, presence falls back to manual check-in",
	http.StatusConflict,
)

// Registration is one monitored circular region, derived from a group
// boundary whenever the desired set changes.
type Registration struct {
	GroupID string
	Center  geo.Point
	Radius  float64
}

// RegionMonitor abstracts the platform region-monitoring capability.
// Register and Unregister must be idempotent: they may be invoked
// redundantly after a crash or restart.
//
//go:generate mockgen -source=monitor.go -destination=mock/monitor_mock.go -package=mock
type RegionMonitor interface {
	Available() bool
	Register(ctx context.Context, reg Registration) error
	Unregister(ctx context.Context, groupID string) error
}

// MemoryMonitor is an in-process RegionMonitor used by tests and by
// sessions whose device relays raw region signals over the API.
type MemoryMonitor struct {
	mu        sync.Mutex
	available bool
	regions   map[string]Registration
}

func NewMemoryMonitor(available bool) *MemoryMonitor {
	return &MemoryMonitor{
		available: available,
		regions:   make(map[string]Registration),
	}
}

func (m *MemoryMonitor) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

func (m *MemoryMonitor) SetAvailable(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = v
}

func (m *MemoryMonitor) Register(_ context.Context, reg Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return ErrUnavailable
	}
	m.regions[reg.GroupID] = reg
	return nil
}

func (m *MemoryMonitor) Unregister(_ context.Context, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.regions, groupID)
	return nil
}

func (m *MemoryMonitor) Regions() []Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Registration, 0, len(m.regions))
	for _, r := range m.regions {
		out = append(out, r)
	}
	return out
}

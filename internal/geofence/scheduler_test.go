package geofence

import (
	"context"
	"fmt"
	"testing"

	"go-presence/internal/geo"

	"github.com/stretchr/testify/assert"
)

type countingMonitor struct {
	*MemoryMonitor
	registers   int
	unregisters int
}

func newCountingMonitor(available bool) *countingMonitor {
	return &countingMonitor{MemoryMonitor: NewMemoryMonitor(available)}
}

func (m *countingMonitor) Register(ctx context.Context, reg Registration) error {
	m.registers++
	return m.MemoryMonitor.Register(ctx, reg)
}

func (m *countingMonitor) Unregister(ctx context.Context, groupID string) error {
	m.unregisters++
	return m.MemoryMonitor.Unregister(ctx, groupID)
}

func candidateRow(i int) Candidate {
	// Each candidate is ~111 m per index further from the origin.
	return Candidate{
		GroupID: fmt.Sprintf("group-%03d", i),
		Center:  geo.Point{Lat: 0.001 * float64(i), Lon: 0},
		Radius:  150,
	}
}

func TestScheduler_SelectsTwentyNearest(t *testing.T) {
	monitor := newCountingMonitor(true)
	sched := NewScheduler(monitor)

	candidates := make([]Candidate, 25)
	for i := range candidates {
		candidates[i] = candidateRow(i)
	}

	err := sched.Reconcile(context.Background(), candidates, geo.Point{Lat: 0, Lon: 0})
	assert.NoError(t, err)

	regs := sched.Registered()
	assert.Len(t, regs, MaxMonitoredRegions)
	assert.Equal(t, MaxMonitoredRegions, monitor.registers)

	// The 20 nearest are indexes 0..19; 20..24 must be excluded.
	registered := make(map[string]bool, len(regs))
	for _, r := range regs {
		registered[r.GroupID] = true
	}
	for i := 0; i < 20; i++ {
		assert.True(t, registered[fmt.Sprintf("group-%03d", i)])
	}
	for i := 20; i < 25; i++ {
		assert.False(t, registered[fmt.Sprintf("group-%03d", i)])
	}
}

func TestScheduler_ReconcileIsIdempotent(t *testing.T) {
	monitor := newCountingMonitor(true)
	sched := NewScheduler(monitor)

	candidates := make([]Candidate, 25)
	for i := range candidates {
		candidates[i] = candidateRow(i)
	}
	location := geo.Point{Lat: 0, Lon: 0}

	assert.NoError(t, sched.Reconcile(context.Background(), candidates, location))
	registersAfterFirst := monitor.registers
	unregistersAfterFirst := monitor.unregisters

	assert.NoError(t, sched.Reconcile(context.Background(), candidates, location))
	assert.Equal(t, registersAfterFirst, monitor.registers)
	assert.Equal(t, unregistersAfterFirst, monitor.unregisters)
}

func TestScheduler_SwapsRegionsWhenLocationMoves(t *testing.T) {
	monitor := newCountingMonitor(true)
	sched := NewScheduler(monitor)

	candidates := make([]Candidate, 25)
	for i := range candidates {
		candidates[i] = candidateRow(i)
	}

	ctx := context.Background()
	assert.NoError(t, sched.Reconcile(ctx, candidates, geo.Point{Lat: 0, Lon: 0}))
	// Moving to the far end should pull in indexes 5..24 instead.
	assert.NoError(t, sched.Reconcile(ctx, candidates, geo.Point{Lat: 0.024, Lon: 0}))

	regs := sched.Registered()
	assert.Len(t, regs, MaxMonitoredRegions)
	registered := make(map[string]bool, len(regs))
	for _, r := range regs {
		registered[r.GroupID] = true
	}
	assert.False(t, registered["group-000"])
	assert.True(t, registered["group-024"])
}

func TestScheduler_UnavailableDegradesToEmptySet(t *testing.T) {
	monitor := newCountingMonitor(true)
	sched := NewScheduler(monitor)
	ctx := context.Background()

	assert.NoError(t, sched.Reconcile(ctx, []Candidate{candidateRow(0)}, geo.Point{}))
	assert.Len(t, sched.Registered(), 1)

	monitor.SetAvailable(false)
	err := sched.Reconcile(ctx, []Candidate{candidateRow(0)}, geo.Point{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, sched.Registered())
}

func TestScheduler_ClearRemovesEverything(t *testing.T) {
	monitor := newCountingMonitor(true)
	sched := NewScheduler(monitor)
	ctx := context.Background()

	candidates := []Candidate{candidateRow(0), candidateRow(1)}
	assert.NoError(t, sched.Reconcile(ctx, candidates, geo.Point{}))

	sched.Clear(ctx)
	assert.Empty(t, sched.Registered())
	assert.Empty(t, monitor.Regions())
}

func TestClampRadius(t *testing.T) {
	assert.Equal(t, MinRegionRadiusMeters, clampRadius(10))
	assert.Equal(t, 500.0, clampRadius(500))
	assert.Equal(t, MaxRegionRadiusMeters, clampRadius(50_000))
}

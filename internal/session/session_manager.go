package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go-presence/internal/geo"
	"go-presence/internal/geofence"
	"go-presence/internal/presence"
	sessionerrors "go-presence/internal/session/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CandidateSource yields the monitorable regions for a user, one per
// group membership.
type CandidateSource interface {
	CandidatesForUser(ctx context.Context, userID string) ([]geofence.Candidate, error)
}

// MonitorFactory builds the region monitor backing one session. Each
// session owns its monitor: the platform ceiling is per device, not per
// process.
type MonitorFactory func() geofence.RegionMonitor

// Session is one signed-in device. Without continuous location
// permission it runs manual-only: no regions are monitored and region
// signals are rejected.
type Session struct {
	UserID             string
	DisplayName        string
	ContinuousLocation bool
	Degraded           bool
	SignedInAt         time.Time

	scheduler *geofence.Scheduler
}

//go:generate mockgen -source=session_manager.go -destination=mock/session_manager_mock.go -package=mock
type Manager interface {
	SignIn(ctx context.Context, userID, displayName string, continuous bool) (SessionResponse, error)
	SignOut(ctx context.Context, userID string) error
	UpdateLocation(ctx context.Context, userID string, lat, lon float64) (LocationResponse, error)
	RegionEvent(ctx context.Context, userID, groupID, event string) (presence.PresenceResponse, error)
}

type manager struct {
	groups   CandidateSource
	presence presence.Service
	monitors MonitorFactory
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(groups CandidateSource, presenceSvc presence.Service, monitors MonitorFactory, logger ...*zap.Logger) Manager {
	l := zap.L().Named("session.manager")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("session.manager")
	}
	if monitors == nil {
		monitors = func() geofence.RegionMonitor { return geofence.NewMemoryMonitor(true) }
	}
	return &manager{
		groups:   groups,
		presence: presenceSvc,
		monitors: monitors,
		logger:   l,
		sessions: make(map[string]*Session),
	}
}

// SignIn replaces any previous session for the user. The old session's
// regions are cleared first so nothing leaks across the boundary.
func (m *manager) SignIn(ctx context.Context, userID, displayName string, continuous bool) (SessionResponse, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return SessionResponse{}, sessionerrors.ErrInvalidUserID
	}

	m.mu.Lock()
	if old, ok := m.sessions[userID]; ok {
		old.scheduler.Clear(ctx)
		m.presence.Teardown(userID)
	}
	sess := &Session{
		UserID:             userID,
		DisplayName:        displayName,
		ContinuousLocation: continuous,
		SignedInAt:         time.Now().UTC(),
		scheduler:          geofence.NewScheduler(m.monitors()),
	}
	m.sessions[userID] = sess
	m.mu.Unlock()

	m.logger.Info("session started",
		zap.String("user_id", userID),
		zap.Bool("continuous_location", continuous),
	)
	return mapToResponse(sess), nil
}

func (m *manager) SignOut(ctx context.Context, userID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	if !ok {
		return sessionerrors.ErrNoSession
	}

	sess.scheduler.Clear(ctx)
	m.presence.Teardown(userID)

	m.logger.Info("session ended", zap.String("user_id", userID))
	return nil
}

// UpdateLocation re-plans the monitored region set around the new
// location. Monitoring going unavailable is not an error: the session
// degrades to manual-only and recovers on a later update.
func (m *manager) UpdateLocation(ctx context.Context, userID string, lat, lon float64) (LocationResponse, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return LocationResponse{}, sessionerrors.ErrInvalidCoordinate
	}
	sess, err := m.session(userID)
	if err != nil {
		return LocationResponse{}, err
	}
	if !sess.ContinuousLocation {
		return LocationResponse{}, sessionerrors.ErrNoContinuousPermission
	}

	candidates, err := m.groups.CandidatesForUser(ctx, userID)
	if err != nil {
		return LocationResponse{}, err
	}

	err = sess.scheduler.Reconcile(ctx, candidates, geo.Point{Lat: lat, Lon: lon})
	if err != nil {
		if !errors.Is(err, geofence.ErrUnavailable) {
			return LocationResponse{}, err
		}
		sess.Degraded = true
		m.logger.Warn("region monitoring unavailable, manual-only presence",
			zap.String("user_id", userID),
		)
	} else {
		sess.Degraded = false
	}

	registered := sess.scheduler.Registered()
	monitored := make([]string, len(registered))
	for i, reg := range registered {
		monitored[i] = reg.GroupID
	}
	return LocationResponse{
		Candidates: len(candidates),
		Monitored:  monitored,
		Degraded:   sess.Degraded,
	}, nil
}

// RegionEvent applies a platform boundary signal to the presence engine.
// Signals are only honored from sessions with continuous permission and
// only for regions this session actually monitors.
func (m *manager) RegionEvent(ctx context.Context, userID, groupID, event string) (presence.PresenceResponse, error) {
	sess, err := m.session(userID)
	if err != nil {
		return presence.PresenceResponse{}, err
	}
	if !sess.ContinuousLocation {
		return presence.PresenceResponse{}, sessionerrors.ErrNoContinuousPermission
	}

	monitored := false
	for _, reg := range sess.scheduler.Registered() {
		if reg.GroupID == groupID {
			monitored = true
			break
		}
	}
	if !monitored {
		return presence.PresenceResponse{}, sessionerrors.ErrRegionNotMonitored
	}

	if event == RegionEventEnter {
		return m.presence.RegionEntered(ctx, userID, groupID, sess.DisplayName)
	}
	return m.presence.RegionExited(ctx, userID, groupID)
}

func (m *manager) session(userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	if !ok {
		return nil, sessionerrors.ErrNoSession
	}
	return sess, nil
}

func mapToResponse(sess *Session) SessionResponse {
	return SessionResponse{
		UserID:             sess.UserID,
		DisplayName:        sess.DisplayName,
		ContinuousLocation: sess.ContinuousLocation,
		Degraded:           sess.Degraded,
		SignedInAt:         sess.SignedInAt.Format(time.RFC3339),
	}
}

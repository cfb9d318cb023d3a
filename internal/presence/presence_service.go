package presence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go-presence/internal/arrival"
	"go-presence/internal/events"
	"go-presence/internal/messaging/kafka"
	presenceerrors "go-presence/internal/presence/errors"
	"go-presence/internal/shared/apperror"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	maxWriteAttempts = 3
	writeRetryDelay  = 100 * time.Millisecond
)

//go:generate mockgen -source=presence_service.go -destination=mock/presence_service_mock.go -package=mock
type Service interface {
	CheckIn(ctx context.Context, userID, groupID, displayName string, durationMinutes int) (PresenceResponse, error)
	CheckOut(ctx context.Context, userID, groupID string) (PresenceResponse, error)
	RegionEntered(ctx context.Context, userID, groupID, displayName string) (PresenceResponse, error)
	RegionExited(ctx context.Context, userID, groupID string) (PresenceResponse, error)
	EvaluateDeadlines(ctx context.Context, now time.Time) (int, error)
	Summary(ctx context.Context, groupID string) (GroupSummary, error)
	Teardown(userID string)
}

// machine serializes transitions for one (user, group) key. Different
// keys proceed independently; within a key, a manual action and a
// concurrently arriving region signal are applied one at a time in
// arrival order.
type machine struct {
	mu      sync.Mutex
	rec     *PresenceRecord
	limiter *rate.Limiter // throttles automatic signals only
}

type service struct {
	db      *sql.DB
	repo    Repository
	outbox  kafka.OutboxRepository
	arbiter arrival.Service
	rdb     *redis.Client
	sf      *singleflight.Group
	logger  *zap.Logger
	now     func() time.Time

	mu          sync.Mutex
	machines    map[string]*machine
	reconcilers map[string]*Reconciler
}

func NewService(
	db *sql.DB,
	repo Repository,
	outboxRepo kafka.OutboxRepository,
	arbiter arrival.Service,
	rdb *redis.Client,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("presence.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("presence.service")
	}
	return &service{
		db:          db,
		repo:        repo,
		outbox:      outboxRepo,
		arbiter:     arbiter,
		rdb:         rdb,
		sf:          &singleflight.Group{},
		logger:      l,
		now:         time.Now,
		machines:    make(map[string]*machine),
		reconcilers: make(map[string]*Reconciler),
	}
}

func (s *service) CheckIn(ctx context.Context, userID, groupID, displayName string, durationMinutes int) (PresenceResponse, error) {
	userUUID, groupUUID, err := parseKey(userID, groupID)
	if err != nil {
		return PresenceResponse{}, err
	}
	if durationMinutes == 0 {
		durationMinutes = DefaultAutoCheckoutMinutes
	}
	if !validAutoCheckoutMinutes(durationMinutes) {
		return PresenceResponse{}, presenceerrors.ErrInvalidDuration
	}

	m := s.machineFor(userID, groupID)
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := s.loadLocked(ctx, m, userUUID, groupUUID); err != nil {
		return PresenceResponse{}, err
	}
	now := s.now().UTC()
	s.expireLocked(ctx, m, now)

	if displayName != "" {
		m.rec.DisplayName = displayName
	}
	deadline := now.Add(time.Duration(durationMinutes) * time.Minute)
	m.rec.IsPresent = true
	m.rec.IsManual = true
	m.rec.AutoCheckoutAt = &deadline
	m.rec.LastUpdated = now

	outcome, err := s.arbiter.Claim(ctx, groupID, userID, now)
	if err != nil {
		s.logger.Warn("first arrival claim failed",
			zap.String("user_id", userID),
			zap.String("group_id", groupID),
			zap.Error(err),
		)
		outcome = arrival.OutcomeAlreadyClaimed
	}

	outboxEvents := []kafka.OutboxEvent{
		s.checkInEvent(userID, groupID, true, outcome == arrival.OutcomeWon, now),
		s.analyticsEvent(events.AnalyticsCheckIn, groupID, true, nil, now),
	}
	if err := s.writeTransition(ctx, m.rec, outboxEvents); err != nil {
		return PresenceResponse{}, err
	}

	s.logger.Info("manual check-in",
		zap.String("user_id", userID),
		zap.String("group_id", groupID),
		zap.Int("duration_minutes", durationMinutes),
		zap.Bool("won_first_arrival", outcome == arrival.OutcomeWon),
	)
	return mapToResponse(m.rec), nil
}

func (s *service) CheckOut(ctx context.Context, userID, groupID string) (PresenceResponse, error) {
	userUUID, groupUUID, err := parseKey(userID, groupID)
	if err != nil {
		return PresenceResponse{}, err
	}

	m := s.machineFor(userID, groupID)
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := s.loadLocked(ctx, m, userUUID, groupUUID); err != nil {
		return PresenceResponse{}, err
	}
	now := s.now().UTC()
	s.expireLocked(ctx, m, now)

	if m.rec.State() == StateAbsent {
		return PresenceResponse{}, presenceerrors.ErrNotPresent
	}

	duration := int(now.Sub(m.rec.LastUpdated).Minutes())
	m.rec.IsPresent = false
	m.rec.IsManual = false
	m.rec.AutoCheckoutAt = nil
	m.rec.LastUpdated = now

	outboxEvents := []kafka.OutboxEvent{
		s.analyticsEvent(events.AnalyticsCheckOut, groupID, true, &duration, now),
	}
	if err := s.writeTransition(ctx, m.rec, outboxEvents); err != nil {
		return PresenceResponse{}, err
	}

	s.logger.Info("manual check-out",
		zap.String("user_id", userID),
		zap.String("group_id", groupID),
		zap.Int("duration_minutes", duration),
	)
	return mapToResponse(m.rec), nil
}

// RegionEntered applies an automatic enter signal. Manual presence wins
// over automatic signals, and automatic updates inside the throttle
// window are suppressed without a storage write.
func (s *service) RegionEntered(ctx context.Context, userID, groupID, displayName string) (PresenceResponse, error) {
	userUUID, groupUUID, err := parseKey(userID, groupID)
	if err != nil {
		return PresenceResponse{}, err
	}

	m := s.machineFor(userID, groupID)
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := s.loadLocked(ctx, m, userUUID, groupUUID); err != nil {
		return PresenceResponse{}, err
	}
	now := s.now().UTC()
	s.expireLocked(ctx, m, now)

	if m.rec.State() == StatePresentManual {
		return mapToResponse(m.rec), nil
	}
	// The window is only burned after a write lands (below), so a failed
	// write does not swallow the next signal.
	if m.limiter.Tokens() < 1 {
		s.logger.Debug("region enter throttled",
			zap.String("user_id", userID),
			zap.String("group_id", groupID),
		)
		return mapToResponse(m.rec), nil
	}

	if displayName != "" {
		m.rec.DisplayName = displayName
	}
	m.rec.IsPresent = true
	m.rec.IsManual = false
	m.rec.AutoCheckoutAt = nil
	m.rec.LastUpdated = now

	outcome, err := s.arbiter.Claim(ctx, groupID, userID, now)
	if err != nil {
		outcome = arrival.OutcomeAlreadyClaimed
	}

	outboxEvents := []kafka.OutboxEvent{
		s.checkInEvent(userID, groupID, false, outcome == arrival.OutcomeWon, now),
		s.analyticsEvent(events.AnalyticsCheckIn, groupID, false, nil, now),
	}
	if err := s.writeTransition(ctx, m.rec, outboxEvents); err != nil {
		return PresenceResponse{}, err
	}
	m.limiter.Allow()
	return mapToResponse(m.rec), nil
}

func (s *service) RegionExited(ctx context.Context, userID, groupID string) (PresenceResponse, error) {
	userUUID, groupUUID, err := parseKey(userID, groupID)
	if err != nil {
		return PresenceResponse{}, err
	}

	m := s.machineFor(userID, groupID)
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := s.loadLocked(ctx, m, userUUID, groupUUID); err != nil {
		return PresenceResponse{}, err
	}
	now := s.now().UTC()
	s.expireLocked(ctx, m, now)

	switch m.rec.State() {
	case StatePresentManual, StateAbsent:
		return mapToResponse(m.rec), nil
	}
	if m.limiter.Tokens() < 1 {
		s.logger.Debug("region exit throttled",
			zap.String("user_id", userID),
			zap.String("group_id", groupID),
		)
		return mapToResponse(m.rec), nil
	}

	duration := int(now.Sub(m.rec.LastUpdated).Minutes())
	m.rec.IsPresent = false
	m.rec.IsManual = false
	m.rec.AutoCheckoutAt = nil
	m.rec.LastUpdated = now

	outboxEvents := []kafka.OutboxEvent{
		s.analyticsEvent(events.AnalyticsCheckOut, groupID, false, &duration, now),
	}
	if err := s.writeTransition(ctx, m.rec, outboxEvents); err != nil {
		return PresenceResponse{}, err
	}
	m.limiter.Allow()
	return mapToResponse(m.rec), nil
}

// EvaluateDeadlines sweeps stored manual presences whose absolute
// deadline has passed and checks them out. It runs on a periodic tick,
// on process resume, and lazily before summary reads; it never blocks on
// a sleeping timer, so suspension only delays the sweep, never breaks it.
func (s *service) EvaluateDeadlines(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.FindExpiredManual(ctx, now)
	if err != nil {
		return 0, err
	}

	checkedOut := 0
	for i := range expired {
		rec := expired[i]
		m := s.machineFor(rec.UserID.String(), rec.GroupID.String())
		m.mu.Lock()
		adopted := false
		if m.rec == nil {
			// Session for this record is gone (crash or sign-out); adopt
			// the stored row so the sweep still enforces the deadline.
			m.rec = &rec
			adopted = true
		}
		if s.expireLocked(ctx, m, now) {
			checkedOut++
		}
		m.mu.Unlock()
		if adopted {
			// The row had no live session, so keeping the machine around
			// would only grow the registry until that user's next teardown.
			s.dropMachine(rec.UserID.String(), rec.GroupID.String())
		}
	}
	return checkedOut, nil
}

// expireLocked performs the DeadlineCheck transition on a loaded machine.
// Returns true when an auto check-out was applied. m.mu must be held.
func (s *service) expireLocked(ctx context.Context, m *machine, now time.Time) bool {
	if m.rec == nil || m.rec.State() != StatePresentManual || m.rec.AutoCheckoutAt == nil {
		return false
	}
	deadline := *m.rec.AutoCheckoutAt
	if now.Before(deadline) {
		return false
	}

	// Presence is honored up to the deadline, so a late evaluation
	// reports the nominal duration rather than the evaluation lag.
	duration := int(deadline.Sub(m.rec.LastUpdated).Minutes())
	groupID := m.rec.GroupID.String()
	userID := m.rec.UserID.String()

	m.rec.IsPresent = false
	m.rec.IsManual = false
	m.rec.AutoCheckoutAt = nil
	m.rec.LastUpdated = now

	outboxEvents := []kafka.OutboxEvent{
		s.analyticsEvent(events.AnalyticsAutoCheckOut, groupID, false, &duration, now),
	}
	if err := s.writeTransition(ctx, m.rec, outboxEvents); err != nil {
		s.logger.Error("auto check-out persist failed",
			zap.String("user_id", userID),
			zap.String("group_id", groupID),
			zap.Error(err),
		)
		return false
	}

	s.logger.Info("auto check-out",
		zap.String("user_id", userID),
		zap.String("group_id", groupID),
		zap.Int("duration_minutes", duration),
	)
	return true
}

// Summary merges the authoritative rows with this process's optimistic
// copies (last writer wins on last_updated, remote preferred on ties),
// drops stale records, and aggregates who is present.
func (s *service) Summary(ctx context.Context, groupID string) (GroupSummary, error) {
	if _, err := uuid.Parse(groupID); err != nil {
		return GroupSummary{}, presenceerrors.ErrInvalidGroupID
	}

	now := s.now().UTC()
	if _, err := s.EvaluateDeadlines(ctx, now); err != nil {
		s.logger.Warn("deadline sweep before summary failed", zap.Error(err))
	}

	v, err, _ := s.sf.Do("summary:"+groupID, func() (any, error) {
		return s.repo.FindAllByGroup(ctx, groupID)
	})
	if err != nil {
		return GroupSummary{}, err
	}
	rows := v.([]PresenceRecord)

	merged := make(map[string]*PresenceRecord, len(rows))
	for i := range rows {
		merged[rows[i].UserID.String()] = &rows[i]
	}
	if r := s.reconcilerFor(ctx, groupID); r != nil {
		// Snapshots are remote truth: they take ties against the stored
		// rows, which may lag the stream.
		for _, snap := range r.Snapshots() {
			existing, ok := merged[snap.UserID]
			if !ok || !snap.LastUpdated.Before(existing.LastUpdated) {
				merged[snap.UserID] = recordFromSnapshot(snap)
			}
		}
	}
	for _, m := range s.machinesForGroup(groupID) {
		m.mu.Lock()
		local := m.rec
		if local != nil {
			remote, ok := merged[local.UserID.String()]
			if !ok || local.LastUpdated.After(remote.LastUpdated) {
				cp := *local
				merged[cp.UserID.String()] = &cp
			}
		}
		m.mu.Unlock()
	}

	records := make([]*PresenceRecord, 0, len(merged))
	for _, rec := range merged {
		records = append(records, rec)
	}
	return BuildSummary(groupID, records, now), nil
}

// Teardown drops every machine owned by the user. In-process deadline
// state goes with them; stored deadlines remain and are enforced by the
// sweep, so a new session never inherits another session's timers.
func (s *service) Teardown(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := userID + "|"
	for key := range s.machines {
		if strings.HasPrefix(key, prefix) {
			delete(s.machines, key)
		}
	}
}

func (s *service) machineFor(userID, groupID string) *machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "|" + groupID
	m, ok := s.machines[key]
	if !ok {
		m = &machine{limiter: rate.NewLimiter(rate.Every(ThrottleWindow), 1)}
		s.machines[key] = m
	}
	return m
}

// reconcilerFor returns the group's snapshot reconciler, seeding it from
// storage and starting the subscription on first use. Subscriptions live
// for the process, like the deadline sweep. Without Redis there is no
// stream and summaries work from storage and local machines alone.
func (s *service) reconcilerFor(ctx context.Context, groupID string) *Reconciler {
	if s.rdb == nil {
		return nil
	}
	s.mu.Lock()
	r, ok := s.reconcilers[groupID]
	if ok {
		s.mu.Unlock()
		return r
	}
	r = NewReconciler(groupID)
	s.reconcilers[groupID] = r
	s.mu.Unlock()

	if rows, err := s.repo.FindAllByGroup(ctx, groupID); err == nil {
		r.Seed(rows)
	} else {
		s.logger.Warn("seed snapshot reconciler failed",
			zap.String("group_id", groupID),
			zap.Error(err),
		)
	}
	go r.Run(context.Background(), s.rdb)
	return r
}

func (s *service) dropMachine(userID, groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.machines, userID+"|"+groupID)
}

func (s *service) machinesForGroup(groupID string) []*machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	suffix := "|" + groupID
	out := make([]*machine, 0)
	for key, m := range s.machines {
		if strings.HasSuffix(key, suffix) {
			out = append(out, m)
		}
	}
	return out
}

// loadLocked populates the machine's optimistic copy from storage on
// first touch. m.mu must be held.
func (s *service) loadLocked(ctx context.Context, m *machine, userUUID, groupUUID uuid.UUID) error {
	if m.rec != nil {
		return nil
	}
	rec, err := s.repo.FindByUserAndGroup(ctx, userUUID.String(), groupUUID.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m.rec = &PresenceRecord{UserID: userUUID, GroupID: groupUUID}
			return nil
		}
		return err
	}
	m.rec = rec
	return nil
}

// writeTransition persists the record and its outbox events in one
// transaction, retrying transient failures with backoff. On exhausted
// retries the optimistic copy is retained and the failure surfaced; it is
// never silently dropped.
func (s *service) writeTransition(ctx context.Context, rec *PresenceRecord, outboxEvents []kafka.OutboxEvent) error {
	var lastErr error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		if err := s.writeOnce(ctx, rec, outboxEvents); err != nil {
			lastErr = err
			s.logger.Warn("presence write attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if attempt < maxWriteAttempts {
				time.Sleep(writeRetryDelay * time.Duration(attempt))
			}
			continue
		}
		s.publishSnapshot(ctx, rec)
		return nil
	}
	return apperror.Wrap(lastErr, apperror.CodeStorageWriteFailed,
		"presence storage write failed", http.StatusServiceUnavailable)
}

func (s *service) writeOnce(ctx context.Context, rec *PresenceRecord, outboxEvents []kafka.OutboxEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	if err := qtx.Upsert(ctx, rec); err != nil {
		return err
	}

	obtx := s.outbox.WithTx(tx)
	for _, event := range outboxEvents {
		if err := kafka.ValidateOutboxEvent(event); err != nil {
			return err
		}
		if err := obtx.Create(ctx, event); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// publishSnapshot pushes the committed record onto the group's snapshot
// channel. Best effort: reconcilers converge from storage regardless.
func (s *service) publishSnapshot(ctx context.Context, rec *PresenceRecord) {
	if s.rdb == nil {
		return
	}
	payload, err := json.Marshal(snapshotFromRecord(rec))
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, SnapshotChannel(rec.GroupID.String()), payload).Err(); err != nil {
		s.logger.Warn("publish presence snapshot failed",
			zap.String("group_id", rec.GroupID.String()),
			zap.Error(err),
		)
	}
}

func (s *service) analyticsEvent(eventType, groupID string, isManual bool, durationMinutes *int, at time.Time) kafka.OutboxEvent {
	payload, _ := json.Marshal(events.PresenceAnalyticsEvent{
		EventType:       eventType,
		GroupID:         groupID,
		IsManual:        isManual,
		DurationMinutes: durationMinutes,
		OccurredAt:      at,
	})
	return kafka.OutboxEvent{
		ID:            uuid.New().String(),
		AggregateType: "presence",
		AggregateID:   groupID,
		EventType:     eventType,
		Topic:         events.PresenceAnalyticsTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	}
}

func (s *service) checkInEvent(userID, groupID string, isManual, won bool, at time.Time) kafka.OutboxEvent {
	payload, _ := json.Marshal(events.PresenceCheckInEvent{
		EventType:       events.AnalyticsCheckIn,
		UserID:          userID,
		GroupID:         groupID,
		IsManual:        isManual,
		WonFirstArrival: won,
		OccurredAt:      at,
	})
	return kafka.OutboxEvent{
		ID:            uuid.New().String(),
		AggregateType: "presence",
		AggregateID:   groupID,
		EventType:     events.AnalyticsCheckIn,
		Topic:         events.PresenceCheckInTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	}
}

func parseKey(userID, groupID string) (uuid.UUID, uuid.UUID, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, presenceerrors.ErrInvalidUserID
	}
	groupUUID, err := uuid.Parse(groupID)
	if err != nil {
		return uuid.Nil, uuid.Nil, presenceerrors.ErrInvalidGroupID
	}
	return userUUID, groupUUID, nil
}

func mapToResponse(rec *PresenceRecord) PresenceResponse {
	resp := PresenceResponse{
		UserID:      rec.UserID.String(),
		GroupID:     rec.GroupID.String(),
		State:       string(rec.State()),
		IsPresent:   rec.IsPresent,
		IsManual:    rec.IsManual,
		DisplayName: rec.DisplayName,
		LastUpdated: rec.LastUpdated.Format(time.RFC3339),
	}
	if rec.AutoCheckoutAt != nil {
		v := rec.AutoCheckoutAt.Format(time.RFC3339)
		resp.AutoCheckoutAt = &v
	}
	return resp
}

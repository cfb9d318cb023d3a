package presence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go-presence/internal/arrival"
	"go-presence/internal/events"
	"go-presence/internal/messaging/kafka"
	presenceerrors "go-presence/internal/presence/errors"
	"go-presence/internal/shared/apperror"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type fakeRepo struct {
	mu          sync.Mutex
	rows        map[string]PresenceRecord
	upsertCount int
	failUpserts int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]PresenceRecord)}
}

func (f *fakeRepo) key(userID, groupID string) string { return userID + "|" + groupID }

func (f *fakeRepo) WithTx(tx *sql.Tx) Repository { return f }

func (f *fakeRepo) Upsert(ctx context.Context, rec *PresenceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCount++
	if f.failUpserts > 0 {
		f.failUpserts--
		return errors.New("connection reset")
	}
	f.rows[f.key(rec.UserID.String(), rec.GroupID.String())] = *rec
	return nil
}

func (f *fakeRepo) FindByUserAndGroup(ctx context.Context, userID, groupID string) (*PresenceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.rows[f.key(userID, groupID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := rec
	return &cp, nil
}

func (f *fakeRepo) FindAllByGroup(ctx context.Context, groupID string) ([]PresenceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []PresenceRecord
	for _, rec := range f.rows {
		if rec.GroupID.String() == groupID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRepo) FindExpiredManual(ctx context.Context, now time.Time) ([]PresenceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []PresenceRecord
	for _, rec := range f.rows {
		if rec.IsPresent && rec.IsManual && rec.AutoCheckoutAt != nil && !now.Before(*rec.AutoCheckoutAt) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []kafka.OutboxEvent
}

func (f *fakeOutbox) WithTx(tx *sql.Tx) kafka.OutboxRepository { return f }
func (f *fakeOutbox) Create(ctx context.Context, event kafka.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}
func (f *fakeOutbox) ListPending(ctx context.Context, limit int) ([]kafka.OutboxEvent, error) {
	return nil, nil
}
func (f *fakeOutbox) MarkSent(ctx context.Context, id string) error               { return nil }
func (f *fakeOutbox) MarkFailed(ctx context.Context, id string, reason string) error { return nil }

func (f *fakeOutbox) byType(eventType string) []kafka.OutboxEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []kafka.OutboxEvent
	for _, e := range f.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeArbiter struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func (f *fakeArbiter) Claim(ctx context.Context, groupID, userID string, at time.Time) (arrival.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimed == nil {
		f.claimed = make(map[string]bool)
	}
	key := groupID + "|" + at.Format("2006-01-02")
	if f.claimed[key] {
		return arrival.OutcomeAlreadyClaimed, nil
	}
	f.claimed[key] = true
	return arrival.OutcomeWon, nil
}

// expectWrites queues n transaction expectations; every state transition
// commits exactly one.
func expectWrites(mock sqlmock.Sqlmock, n int) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

func newTestService(t *testing.T, repo *fakeRepo, outbox *fakeOutbox) (*service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(db, repo, outbox, &fakeArbiter{}, nil).(*service)
	return svc, mock
}

func TestService_CheckIn_ManualWinsOverRegionSignals(t *testing.T) {
	repo := newFakeRepo()
	outbox := &fakeOutbox{}
	svc, mock := newTestService(t, repo, outbox)

	userID := uuid.New().String()
	groupID := uuid.New().String()
	ctx := context.Background()

	expectWrites(mock, 1)
	resp, err := svc.CheckIn(ctx, userID, groupID, "Alice", 0)
	assert.NoError(t, err)
	assert.Equal(t, string(StatePresentManual), resp.State)
	assert.NotNil(t, resp.AutoCheckoutAt)

	// Automatic signals must not override a manual presence, and the
	// suppressed signals must not touch storage.
	before := repo.upsertCount
	resp, err = svc.RegionExited(ctx, userID, groupID)
	assert.NoError(t, err)
	assert.Equal(t, string(StatePresentManual), resp.State)

	resp, err = svc.RegionEntered(ctx, userID, groupID, "Alice")
	assert.NoError(t, err)
	assert.Equal(t, string(StatePresentManual), resp.State)
	assert.Equal(t, before, repo.upsertCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_CheckIn_DefaultAndInvalidDuration(t *testing.T) {
	repo := newFakeRepo()
	svc, mock := newTestService(t, repo, &fakeOutbox{})

	userID := uuid.New().String()
	groupID := uuid.New().String()

	_, err := svc.CheckIn(context.Background(), userID, groupID, "Alice", 45)
	assert.ErrorIs(t, err, presenceerrors.ErrInvalidDuration)

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	expectWrites(mock, 1)
	resp, err := svc.CheckIn(context.Background(), userID, groupID, "Alice", 0)
	assert.NoError(t, err)
	want := start.Add(time.Duration(DefaultAutoCheckoutMinutes) * time.Minute).Format(time.RFC3339)
	assert.Equal(t, want, *resp.AutoCheckoutAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_CheckOut_RequiresPresence(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo, &fakeOutbox{})

	_, err := svc.CheckOut(context.Background(), uuid.New().String(), uuid.New().String())
	assert.ErrorIs(t, err, presenceerrors.ErrNotPresent)
}

func TestService_CheckOutThenRegionEnter_BecomesAutomatic(t *testing.T) {
	repo := newFakeRepo()
	outbox := &fakeOutbox{}
	svc, mock := newTestService(t, repo, outbox)

	userID := uuid.New().String()
	groupID := uuid.New().String()
	ctx := context.Background()

	expectWrites(mock, 3)
	_, err := svc.CheckIn(ctx, userID, groupID, "Alice", 60)
	assert.NoError(t, err)

	resp, err := svc.CheckOut(ctx, userID, groupID)
	assert.NoError(t, err)
	assert.Equal(t, string(StateAbsent), resp.State)

	// Manual override ended with the check-out, so the next region enter
	// is honored as automatic presence.
	resp, err = svc.RegionEntered(ctx, userID, groupID, "Alice")
	assert.NoError(t, err)
	assert.Equal(t, string(StatePresentAuto), resp.State)
	assert.Nil(t, resp.AutoCheckoutAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_RegionSignals_Throttled(t *testing.T) {
	repo := newFakeRepo()
	svc, mock := newTestService(t, repo, &fakeOutbox{})

	userID := uuid.New().String()
	groupID := uuid.New().String()
	ctx := context.Background()

	expectWrites(mock, 1)
	resp, err := svc.RegionEntered(ctx, userID, groupID, "Alice")
	assert.NoError(t, err)
	assert.Equal(t, string(StatePresentAuto), resp.State)
	assert.Equal(t, 1, repo.upsertCount)

	// A flapping boundary produces a burst of signals; only the first
	// within the throttle window may write.
	resp, err = svc.RegionExited(ctx, userID, groupID)
	assert.NoError(t, err)
	assert.Equal(t, string(StatePresentAuto), resp.State)

	_, err = svc.RegionEntered(ctx, userID, groupID, "Alice")
	assert.NoError(t, err)
	assert.Equal(t, 1, repo.upsertCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_EvaluateDeadlines_LateEvaluation(t *testing.T) {
	repo := newFakeRepo()
	outbox := &fakeOutbox{}
	svc, mock := newTestService(t, repo, outbox)

	userID := uuid.New().String()
	groupID := uuid.New().String()
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	expectWrites(mock, 1)
	_, err := svc.CheckIn(ctx, userID, groupID, "Alice", 60)
	assert.NoError(t, err)

	// One minute early: nothing expires.
	n, err := svc.EvaluateDeadlines(ctx, start.Add(59*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, 0, n)

	// Evaluated a minute late, the duration still reports the honored
	// 60 minutes, not the evaluation lag.
	expectWrites(mock, 1)
	n, err = svc.EvaluateDeadlines(ctx, start.Add(61*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	autoOuts := outbox.byType(events.AnalyticsAutoCheckOut)
	assert.Len(t, autoOuts, 1)
	var payload events.PresenceAnalyticsEvent
	assert.NoError(t, json.Unmarshal(autoOuts[0].Payload, &payload))
	assert.NotNil(t, payload.DurationMinutes)
	assert.Equal(t, 60, *payload.DurationMinutes)

	rec, err := repo.FindByUserAndGroup(ctx, userID, groupID)
	assert.NoError(t, err)
	assert.False(t, rec.IsPresent)
	assert.Nil(t, rec.AutoCheckoutAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_EvaluateDeadlines_AdoptsStoredRows(t *testing.T) {
	repo := newFakeRepo()
	outbox := &fakeOutbox{}
	svc, mock := newTestService(t, repo, outbox)

	userID := uuid.New()
	groupID := uuid.New()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	deadline := start.Add(30 * time.Minute)

	// Row persisted by a session that is gone; no machine exists for it.
	repo.rows[repo.key(userID.String(), groupID.String())] = PresenceRecord{
		UserID:         userID,
		GroupID:        groupID,
		IsPresent:      true,
		IsManual:       true,
		DisplayName:    "Bob",
		AutoCheckoutAt: &deadline,
		LastUpdated:    start,
	}

	expectWrites(mock, 1)
	n, err := svc.EvaluateDeadlines(context.Background(), start.Add(31*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	autoOuts := outbox.byType(events.AnalyticsAutoCheckOut)
	assert.Len(t, autoOuts, 1)
	var payload events.PresenceAnalyticsEvent
	assert.NoError(t, json.Unmarshal(autoOuts[0].Payload, &payload))
	assert.Equal(t, 30, *payload.DurationMinutes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_CheckIn_FirstArrivalFlag(t *testing.T) {
	repo := newFakeRepo()
	outbox := &fakeOutbox{}
	svc, mock := newTestService(t, repo, outbox)

	groupID := uuid.New().String()
	first := uuid.New().String()
	second := uuid.New().String()
	ctx := context.Background()

	expectWrites(mock, 2)
	_, err := svc.CheckIn(ctx, first, groupID, "Alice", 60)
	assert.NoError(t, err)
	_, err = svc.CheckIn(ctx, second, groupID, "Bob", 60)
	assert.NoError(t, err)

	checkIns := outbox.byType(events.AnalyticsCheckIn)
	won := 0
	for _, e := range checkIns {
		if e.Topic != events.PresenceCheckInTopic {
			continue
		}
		var payload events.PresenceCheckInEvent
		assert.NoError(t, json.Unmarshal(e.Payload, &payload))
		if payload.WonFirstArrival {
			won++
			assert.Equal(t, first, payload.UserID)
		}
	}
	assert.Equal(t, 1, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_WriteTransition_RetriesTransientFailures(t *testing.T) {
	repo := newFakeRepo()
	repo.failUpserts = 2
	svc, mock := newTestService(t, repo, &fakeOutbox{})

	userID := uuid.New().String()
	groupID := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := svc.CheckIn(context.Background(), userID, groupID, "Alice", 60)
	assert.NoError(t, err)
	assert.True(t, resp.IsPresent)
	assert.Equal(t, 3, repo.upsertCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_WriteTransition_SurfacesExhaustedRetries(t *testing.T) {
	repo := newFakeRepo()
	repo.failUpserts = 10
	svc, mock := newTestService(t, repo, &fakeOutbox{})

	for i := 0; i < maxWriteAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	_, err := svc.CheckIn(context.Background(), uuid.New().String(), uuid.New().String(), "Alice", 60)
	assert.Error(t, err)

	var appErr *apperror.AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.CodeStorageWriteFailed, appErr.Code)
	assert.Equal(t, 503, appErr.HTTPStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Summary_MergesLocalAndStored(t *testing.T) {
	repo := newFakeRepo()
	svc, mock := newTestService(t, repo, &fakeOutbox{})

	groupID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	// Stored: Bob present, Alice present but stale.
	repo.rows[repo.key(bob.String(), groupID.String())] = PresenceRecord{
		UserID: bob, GroupID: groupID, IsPresent: true,
		DisplayName: "Bob", LastUpdated: now.Add(-time.Hour),
	}
	repo.rows[repo.key(alice.String(), groupID.String())] = PresenceRecord{
		UserID: alice, GroupID: groupID, IsPresent: true,
		DisplayName: "Alice", LastUpdated: now.Add(-MaxPresenceDuration - time.Second),
	}

	summary, err := svc.Summary(context.Background(), groupID.String())
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.PresentCount)
	assert.Equal(t, []string{"Bob"}, summary.PresentMembers)

	// A fresher local transition for Alice wins over her stale stored row.
	expectWrites(mock, 1)
	_, err = svc.CheckIn(context.Background(), alice.String(), groupID.String(), "Alice", 60)
	assert.NoError(t, err)

	summary, err = svc.Summary(context.Background(), groupID.String())
	assert.NoError(t, err)
	assert.Equal(t, 2, summary.PresentCount)
	assert.Equal(t, []string{"Alice", "Bob"}, summary.PresentMembers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Teardown_DropsMachinesForUser(t *testing.T) {
	repo := newFakeRepo()
	svc, mock := newTestService(t, repo, &fakeOutbox{})

	userID := uuid.New().String()
	other := uuid.New().String()
	groupID := uuid.New().String()
	ctx := context.Background()

	expectWrites(mock, 2)
	_, err := svc.CheckIn(ctx, userID, groupID, "Alice", 60)
	assert.NoError(t, err)
	_, err = svc.CheckIn(ctx, other, groupID, "Bob", 60)
	assert.NoError(t, err)

	svc.Teardown(userID)

	svc.mu.Lock()
	_, mine := svc.machines[userID+"|"+groupID]
	_, theirs := svc.machines[other+"|"+groupID]
	svc.mu.Unlock()
	assert.False(t, mine)
	assert.True(t, theirs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_RegionSignals_FailedWriteKeepsThrottleOpen(t *testing.T) {
	repo := newFakeRepo()
	repo.failUpserts = maxWriteAttempts
	outbox := &fakeOutbox{}
	svc, mock := newTestService(t, repo, outbox)
	ctx := context.Background()

	userID := uuid.New().String()
	groupID := uuid.New().String()

	for i := 0; i < maxWriteAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.RegionEntered(ctx, userID, groupID, "Alice")
	assert.Error(t, err)

	// Nothing was written, so the immediate retry must not be throttled.
	resp, err := svc.RegionEntered(ctx, userID, groupID, "Alice")
	assert.NoError(t, err)
	assert.True(t, resp.IsPresent)
	assert.Equal(t, maxWriteAttempts+1, repo.upsertCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_EvaluateDeadlines_DropsAdoptedMachines(t *testing.T) {
	repo := newFakeRepo()
	outbox := &fakeOutbox{}
	svc, mock := newTestService(t, repo, outbox)

	userID := uuid.New()
	groupID := uuid.New()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	deadline := start.Add(30 * time.Minute)

	repo.rows[repo.key(userID.String(), groupID.String())] = PresenceRecord{
		UserID:         userID,
		GroupID:        groupID,
		IsPresent:      true,
		IsManual:       true,
		DisplayName:    "Bob",
		AutoCheckoutAt: &deadline,
		LastUpdated:    start,
	}

	expectWrites(mock, 1)
	n, err := svc.EvaluateDeadlines(context.Background(), start.Add(31*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	// The row had no live session; a long-running sweep must not grow
	// the machine registry with every expired row it adopts.
	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Empty(t, svc.machines)
}

func TestService_CheckIn_PublishesSnapshot(t *testing.T) {
	repo := newFakeRepo()
	outbox := &fakeOutbox{}
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	rdb, redisMock := redismock.NewClientMock()
	svc := NewService(db, repo, outbox, &fakeArbiter{}, rdb).(*service)

	frozen := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return frozen }

	userID := uuid.New()
	groupID := uuid.New()
	payload, _ := json.Marshal(Snapshot{
		UserID:      userID.String(),
		GroupID:     groupID.String(),
		IsPresent:   true,
		IsManual:    true,
		DisplayName: "Alice",
		LastUpdated: frozen,
	})
	redisMock.ExpectPublish(SnapshotChannel(groupID.String()), payload).SetVal(1)

	expectWrites(mock, 1)
	_, err = svc.CheckIn(context.Background(), userID.String(), groupID.String(), "Alice", 60)
	assert.NoError(t, err)
	assert.NoError(t, redisMock.ExpectationsWereMet())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Summary_MergesSubscribedSnapshots(t *testing.T) {
	repo := newFakeRepo()
	outbox := &fakeOutbox{}
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	rdb, _ := redismock.NewClientMock()
	svc := NewService(db, repo, outbox, &fakeArbiter{}, rdb).(*service)

	groupID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	now := time.Now().UTC()

	// The stored row lags the stream: it still shows Alice absent.
	repo.rows[repo.key(alice.String(), groupID.String())] = PresenceRecord{
		UserID:      alice,
		GroupID:     groupID,
		IsPresent:   false,
		DisplayName: "Alice",
		LastUpdated: now.Add(-time.Minute),
	}

	r := NewReconciler(groupID.String())
	r.Apply(Snapshot{
		UserID: alice.String(), GroupID: groupID.String(),
		IsPresent: true, DisplayName: "Alice", LastUpdated: now,
	})
	r.Apply(Snapshot{
		UserID: bob.String(), GroupID: groupID.String(),
		IsPresent: true, DisplayName: "Bob", LastUpdated: now,
	})
	svc.mu.Lock()
	svc.reconcilers[groupID.String()] = r
	svc.mu.Unlock()

	summary, err := svc.Summary(context.Background(), groupID.String())
	assert.NoError(t, err)
	assert.Equal(t, 2, summary.PresentCount)
	assert.Equal(t, []string{"Alice", "Bob"}, summary.PresentMembers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

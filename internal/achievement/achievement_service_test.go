package achievement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

type fakeRepo struct {
	createFn        func(ctx context.Context, a *Achievement) error
	findAllByUserFn func(ctx context.Context, userID string) ([]Achievement, error)
}

func (f *fakeRepo) Create(ctx context.Context, a *Achievement) error { return f.createFn(ctx, a) }
func (f *fakeRepo) FindAllByUser(ctx context.Context, userID string) ([]Achievement, error) {
	return f.findAllByUserFn(ctx, userID)
}

func TestService_AwardFirstArrival(t *testing.T) {
	userID := uuid.New().String()
	groupID := uuid.New().String()
	at := time.Date(2026, 3, 1, 7, 42, 13, 0, time.UTC)

	var saved Achievement
	repo := &fakeRepo{createFn: func(ctx context.Context, a *Achievement) error {
		saved = *a
		return nil
	}}
	svc := NewService(repo)

	resp, err := svc.AwardFirstArrival(context.Background(), userID, groupID, at)
	assert.NoError(t, err)
	assert.Equal(t, KindFirstArrival, resp.Kind)
	assert.Equal(t, "2026-03-01", resp.AwardDate)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), saved.AwardDate)
}

func TestService_AwardFirstArrival_Duplicate(t *testing.T) {
	repo := &fakeRepo{createFn: func(ctx context.Context, a *Achievement) error {
		return &pgconn.PgError{Code: "23505", ConstraintName: "uq_achievement_award"}
	}}
	svc := NewService(repo)

	_, err := svc.AwardFirstArrival(context.Background(), uuid.New().String(), uuid.New().String(), time.Now())
	assert.ErrorIs(t, err, ErrAlreadyAwarded)
}

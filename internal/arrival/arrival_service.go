package arrival

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome of a first-arrival claim. AlreadyClaimed is a normal negative
// result, not an error.
type Outcome string

const (
	OutcomeWon            Outcome = "WON"
	OutcomeAlreadyClaimed Outcome = "ALREADY_CLAIMED"
)

const (
	maxClaimAttempts = 3
	claimRetryDelay  = 50 * time.Millisecond
)

//go:generate mockgen -source=arrival_service.go -destination=mock/arrival_service_mock.go -package=mock
type Service interface {
	Claim(ctx context.Context, groupID, userID string, at time.Time) (Outcome, error)
}

type service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger ...*zap.Logger) Service {
	l := zap.L().Named("arrival.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("arrival.service")
	}
	return &service{repo: repo, logger: l}
}

// Claim attempts the create-if-absent write for (groupID, date-of-at).
// Transient storage errors are retried a bounded number of times and then
// resolved conservatively as AlreadyClaimed; the arbiter never blocks or
// retries indefinitely.
func (s *service) Claim(ctx context.Context, groupID, userID string, at time.Time) (Outcome, error) {
	groupUUID, err := uuid.Parse(groupID)
	if err != nil {
		return OutcomeAlreadyClaimed, err
	}
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return OutcomeAlreadyClaimed, err
	}

	claim := &DailyArrivalClaim{
		GroupID:   groupUUID,
		ClaimDate: at.UTC().Truncate(24 * time.Hour),
		UserID:    userUUID,
		ClaimedAt: at.UTC(),
	}

	var lastErr error
	for attempt := 1; attempt <= maxClaimAttempts; attempt++ {
		inserted, err := s.repo.TryCreate(ctx, claim)
		if err == nil {
			if inserted {
				s.logger.Info("first arrival won",
					zap.String("group_id", groupID),
					zap.String("user_id", userID),
					zap.String("claim_date", claim.ClaimDate.Format("2006-01-02")),
				)
				return OutcomeWon, nil
			}
			return OutcomeAlreadyClaimed, nil
		}

		lastErr = err
		s.logger.Warn("arrival claim attempt failed",
			zap.String("group_id", groupID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < maxClaimAttempts {
			time.Sleep(claimRetryDelay * time.Duration(attempt))
		}
	}

	s.logger.Error("arrival claim exhausted retries, resolving as already claimed",
		zap.String("group_id", groupID),
		zap.Error(lastErr),
	)
	return OutcomeAlreadyClaimed, nil
}

package achievement

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go-presence/internal/shared/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

var ErrAlreadyAwarded = apperror.New(
	apperror.CodeConflict,
	"achievement already awarded for this day",
	http.StatusConflict,
)

//go:generate mockgen -source=achievement_service.go -destination=mock/achievement_service_mock.go -package=mock
type Service interface {
	AwardFirstArrival(ctx context.Context, userID, groupID string, day time.Time) (AchievementResponse, error)
	ListForUser(ctx context.Context, userID string) ([]AchievementResponse, error)
}

type service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger ...*zap.Logger) Service {
	l := zap.L().Named("achievement.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("achievement.service")
	}
	return &service{repo: repo, logger: l}
}

func (s *service) AwardFirstArrival(ctx context.Context, userID, groupID string, day time.Time) (AchievementResponse, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return AchievementResponse{}, apperror.ErrInvalidInput
	}
	groupUUID, err := uuid.Parse(groupID)
	if err != nil {
		return AchievementResponse{}, apperror.ErrInvalidInput
	}

	a := &Achievement{
		ID:        uuid.New(),
		UserID:    userUUID,
		GroupID:   groupUUID,
		Kind:      KindFirstArrival,
		AwardDate: day.UTC().Truncate(24 * time.Hour),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if isUniqueAwardViolation(err) {
			return AchievementResponse{}, ErrAlreadyAwarded
		}
		return AchievementResponse{}, err
	}

	s.logger.Info("first arrival awarded",
		zap.String("user_id", userID),
		zap.String("group_id", groupID),
		zap.String("award_date", a.AwardDate.Format("2006-01-02")),
	)
	return mapToResponse(*a), nil
}

func (s *service) ListForUser(ctx context.Context, userID string) ([]AchievementResponse, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, apperror.ErrInvalidInput
	}
	rows, err := s.repo.FindAllByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := make([]AchievementResponse, len(rows))
	for i, a := range rows {
		res[i] = mapToResponse(a)
	}
	return res, nil
}

func isUniqueAwardViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "uq_achievement_award"
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate key value") && strings.Contains(errMsg, "uq_achievement_award")
}

func mapToResponse(a Achievement) AchievementResponse {
	return AchievementResponse{
		ID:        a.ID.String(),
		UserID:    a.UserID.String(),
		GroupID:   a.GroupID.String(),
		Kind:      a.Kind,
		AwardDate: a.AwardDate.Format("2006-01-02"),
	}
}

package member

import (
	"context"
	"errors"
	"strings"

	membererrors "go-presence/internal/member/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:generate mockgen -source=member_service.go -destination=mock/member_service_mock.go -package=mock
type Service interface {
	Join(ctx context.Context, groupID, userID, displayName string) (MemberResponse, error)
	List(ctx context.Context, groupID string) ([]MemberResponse, error)
	Get(ctx context.Context, groupID, userID string) (MemberResponse, error)
	GroupIDsFor(ctx context.Context, userID string) ([]string, error)
}

type service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger ...*zap.Logger) Service {
	l := zap.L().Named("member.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("member.service")
	}
	return &service{repo: repo, logger: l}
}

func (s *service) Join(ctx context.Context, groupID, userID, displayName string) (MemberResponse, error) {
	groupUUID, err := uuid.Parse(groupID)
	if err != nil {
		return MemberResponse{}, membererrors.ErrInvalidGroupID
	}
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return MemberResponse{}, membererrors.ErrInvalidUserID
	}
	if strings.TrimSpace(displayName) == "" {
		return MemberResponse{}, membererrors.ErrDisplayNameRequired
	}

	m := &Membership{
		ID:          uuid.New(),
		GroupID:     groupUUID,
		UserID:      userUUID,
		DisplayName: displayName,
		Role:        RoleMember,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return MemberResponse{}, mapRepositoryError(err)
	}

	s.logger.Info("member joined group",
		zap.String("group_id", groupID),
		zap.String("user_id", userID),
	)
	return mapToResponse(*m), nil
}

func (s *service) List(ctx context.Context, groupID string) ([]MemberResponse, error) {
	if _, err := uuid.Parse(groupID); err != nil {
		return nil, membererrors.ErrInvalidGroupID
	}
	rows, err := s.repo.FindAllByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	res := make([]MemberResponse, len(rows))
	for i, m := range rows {
		res[i] = mapToResponse(m)
	}
	return res, nil
}

func (s *service) Get(ctx context.Context, groupID, userID string) (MemberResponse, error) {
	m, err := s.repo.FindByGroupAndUser(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return MemberResponse{}, membererrors.ErrMemberNotFound
		}
		return MemberResponse{}, err
	}
	return mapToResponse(*m), nil
}

func (s *service) GroupIDsFor(ctx context.Context, userID string) ([]string, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, membererrors.ErrInvalidUserID
	}
	return s.repo.FindGroupIDsByUser(ctx, userID)
}

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return membererrors.ErrAlreadyMember
	}
	if strings.Contains(strings.ToLower(err.Error()), "duplicate key value") {
		return membererrors.ErrAlreadyMember
	}
	return err
}

func mapToResponse(m Membership) MemberResponse {
	return MemberResponse{
		ID:          m.ID.String(),
		GroupID:     m.GroupID.String(),
		UserID:      m.UserID.String(),
		DisplayName: m.DisplayName,
		Role:        m.Role,
	}
}

package group

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go-presence/internal/geo"
	"go-presence/internal/geofence"
	grouperrors "go-presence/internal/group/errors"
	"go-presence/internal/member"
	"go-presence/internal/presence"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:generate mockgen -source=group_service.go -destination=mock/group_service_mock.go -package=mock
type Service interface {
	Create(ctx context.Context, ownerID, ownerDisplayName string, req CreateGroupRequest) (GroupResponse, error)
	GetByID(ctx context.Context, groupID string) (GroupResponse, error)
	ListForUser(ctx context.Context, userID string) ([]GroupResponse, error)
	UpdateBoundary(ctx context.Context, groupID, actorID string, req UpdateBoundaryRequest) (GroupResponse, error)
	UpdateDisplayMode(ctx context.Context, groupID, actorID string, req UpdateDisplayModeRequest) (GroupResponse, error)
	CandidatesForUser(ctx context.Context, userID string) ([]geofence.Candidate, error)
	DisplayModeFor(ctx context.Context, groupID string) (string, error)
}

type service struct {
	db         *sql.DB
	repo       Repository
	memberRepo member.Repository
	logger     *zap.Logger
}

func NewService(db *sql.DB, repo Repository, memberRepo member.Repository, logger ...*zap.Logger) Service {
	l := zap.L().Named("group.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("group.service")
	}
	return &service{db: db, repo: repo, memberRepo: memberRepo, logger: l}
}

func (s *service) Create(ctx context.Context, ownerID, ownerDisplayName string, req CreateGroupRequest) (GroupResponse, error) {
	ownerUUID, err := uuid.Parse(ownerID)
	if err != nil {
		return GroupResponse{}, grouperrors.ErrInvalidOwnerID
	}

	boundary, center, radius, err := resolveBoundary(req.Boundary)
	if err != nil {
		return GroupResponse{}, err
	}

	g := &Group{
		ID:           uuid.New(),
		OwnerID:      ownerUUID,
		Name:         req.Name,
		Boundary:     boundary,
		CentroidLat:  center.Lat,
		CentroidLon:  center.Lon,
		RadiusMeters: radius,
		DisplayMode:  presence.DisplayModeCount,
	}
	if req.DisplayMode != "" {
		g.DisplayMode = req.DisplayMode
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return GroupResponse{}, err
	}
	defer tx.Rollback()

	if err := s.repo.WithTx(tx).Create(ctx, g); err != nil {
		return GroupResponse{}, err
	}
	owner := &member.Membership{
		ID:          uuid.New(),
		GroupID:     g.ID,
		UserID:      ownerUUID,
		DisplayName: ownerDisplayName,
		Role:        member.RoleOwner,
	}
	if err := s.memberRepo.WithTx(tx).Create(ctx, owner); err != nil {
		return GroupResponse{}, err
	}
	if err := tx.Commit(); err != nil {
		return GroupResponse{}, err
	}

	s.logger.Info("group created",
		zap.String("group_id", g.ID.String()),
		zap.String("owner_id", ownerID),
		zap.Float64("radius_m", radius),
	)
	return mapToResponse(*g), nil
}

func (s *service) GetByID(ctx context.Context, groupID string) (GroupResponse, error) {
	g, err := s.findGroup(ctx, groupID)
	if err != nil {
		return GroupResponse{}, err
	}
	return mapToResponse(*g), nil
}

func (s *service) ListForUser(ctx context.Context, userID string) ([]GroupResponse, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, grouperrors.ErrInvalidOwnerID
	}
	ids, err := s.memberRepo.FindGroupIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []GroupResponse{}, nil
	}
	groups, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	res := make([]GroupResponse, len(groups))
	for i, g := range groups {
		res[i] = mapToResponse(g)
	}
	return res, nil
}

func (s *service) UpdateBoundary(ctx context.Context, groupID, actorID string, req UpdateBoundaryRequest) (GroupResponse, error) {
	g, err := s.findGroup(ctx, groupID)
	if err != nil {
		return GroupResponse{}, err
	}
	if g.OwnerID.String() != actorID {
		return GroupResponse{}, grouperrors.ErrNotGroupOwner
	}

	boundary, center, radius, err := resolveBoundary(req.Boundary)
	if err != nil {
		return GroupResponse{}, err
	}

	g.Boundary = boundary
	g.CentroidLat = center.Lat
	g.CentroidLon = center.Lon
	g.RadiusMeters = radius
	g.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, g); err != nil {
		return GroupResponse{}, err
	}

	s.logger.Info("group boundary updated",
		zap.String("group_id", groupID),
		zap.Int("points", len(boundary)),
	)
	return mapToResponse(*g), nil
}

func (s *service) UpdateDisplayMode(ctx context.Context, groupID, actorID string, req UpdateDisplayModeRequest) (GroupResponse, error) {
	g, err := s.findGroup(ctx, groupID)
	if err != nil {
		return GroupResponse{}, err
	}
	if g.OwnerID.String() != actorID {
		return GroupResponse{}, grouperrors.ErrNotGroupOwner
	}
	if req.DisplayMode != presence.DisplayModeCount && req.DisplayMode != presence.DisplayModeNames {
		return GroupResponse{}, grouperrors.ErrInvalidDisplayMode
	}

	g.DisplayMode = req.DisplayMode
	g.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, g); err != nil {
		return GroupResponse{}, err
	}
	return mapToResponse(*g), nil
}

// CandidatesForUser turns every group the user belongs to into a geofence
// candidate. The scheduler decides which of them fit under the region ceiling.
func (s *service) CandidatesForUser(ctx context.Context, userID string) ([]geofence.Candidate, error) {
	ids, err := s.memberRepo.FindGroupIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	groups, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	candidates := make([]geofence.Candidate, len(groups))
	for i, g := range groups {
		candidates[i] = geofence.Candidate{
			GroupID: g.ID.String(),
			Center:  geo.Point{Lat: g.CentroidLat, Lon: g.CentroidLon},
			Radius:  g.RadiusMeters,
		}
	}
	return candidates, nil
}

// DisplayModeFor satisfies the presence handler's group directory.
func (s *service) DisplayModeFor(ctx context.Context, groupID string) (string, error) {
	g, err := s.findGroup(ctx, groupID)
	if err != nil {
		return "", err
	}
	return g.DisplayMode, nil
}

func (s *service) findGroup(ctx context.Context, groupID string) (*Group, error) {
	if _, err := uuid.Parse(groupID); err != nil {
		return nil, grouperrors.ErrInvalidGroupID
	}
	g, err := s.repo.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, grouperrors.ErrGroupNotFound
		}
		return nil, err
	}
	return g, nil
}

// resolveBoundary validates the polygon and derives the circular region
// that approximates it for geofence monitoring.
func resolveBoundary(points []geo.Point) ([]geo.Point, geo.Point, float64, error) {
	if err := geo.Validate(points); err != nil {
		return nil, geo.Point{}, 0, grouperrors.BoundaryInvalid(err)
	}
	center := geo.Centroid(points)
	radius := geo.MaxRadius(center, points)
	return points, center, radius, nil
}

func mapToResponse(g Group) GroupResponse {
	return GroupResponse{
		ID:           g.ID.String(),
		OwnerID:      g.OwnerID.String(),
		Name:         g.Name,
		Boundary:     g.Boundary,
		CentroidLat:  g.CentroidLat,
		CentroidLon:  g.CentroidLon,
		RadiusMeters: g.RadiusMeters,
		DisplayMode:  g.DisplayMode,
		CreatedAt:    g.CreatedAt,
	}
}

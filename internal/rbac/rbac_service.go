package rbac

import (
	"sync"

	"github.com/casbin/casbin/v2"
	"go.uber.org/zap"
)

//go:generate mockgen -source=rbac_service.go -destination=mock/rbac_service_mock.go -package=mock
type Service interface {
	LoadPolicy() error
	Enforce(req EnforceRequest) (bool, error)
}

type service struct {
	repo     Repository
	enforcer *casbin.Enforcer
	logger   *zap.Logger
	mu       sync.Mutex
}

func NewService(repo Repository, enforcer *casbin.Enforcer, logger ...*zap.Logger) Service {
	l := zap.L().Named("rbac.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("rbac.service")
	}
	return &service{
		repo:     repo,
		enforcer: enforcer,
		logger:   l,
	}
}

func (s *service) LoadPolicy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadPolicyUnlocked()
}

func (s *service) loadPolicyUnlocked() error {
	s.enforcer.ClearPolicy()

	rolePerms, err := s.repo.GetRolePermissions()
	if err != nil {
		return err
	}

	for _, rp := range rolePerms {
		_, err := s.enforcer.AddPolicy(rp.Role, rp.Resource, rp.Action)
		if err != nil {
			return err
		}
	}

	s.logger.Debug("rbac policy loaded", zap.Int("role_permissions", len(rolePerms)))
	return nil
}

// Enforce reloads the policy, binds the caller to their JWT role and
// evaluates the request.
func (s *service) Enforce(req EnforceRequest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadPolicyUnlocked(); err != nil {
		return false, err
	}
	if _, err := s.enforcer.AddGroupingPolicy(req.UserID, req.Role); err != nil {
		return false, err
	}

	allowed, err := s.enforcer.Enforce(req.UserID, req.Resource, req.Action)
	if err != nil {
		return false, err
	}

	s.logger.Debug("rbac enforce",
		zap.String("user_id", req.UserID),
		zap.String("role", req.Role),
		zap.String("resource", req.Resource),
		zap.String("action", req.Action),
		zap.Bool("allowed", allowed),
	)
	return allowed, nil
}

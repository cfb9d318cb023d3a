package rbac

import (
	"testing"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/stretchr/testify/assert"
)

type mockRepo struct{}

func (m *mockRepo) GetRolePermissions() ([]RolePermissionRow, error) {
	return []RolePermissionRow{
		{Role: "USER", Resource: "presence", Action: "create"},
		{Role: "USER", Resource: "presence", Action: "read"},
		{Role: "ADMIN", Resource: "group", Action: "delete"},
	}, nil
}

func newTestEnforcer(t *testing.T) *casbin.Enforcer {
	modelText := `[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

	m, err := model.NewModelFromString(modelText)
	assert.NoError(t, err)

	e, err := casbin.NewEnforcer(m)
	assert.NoError(t, err)

	return e
}

func TestRBACService_Enforce(t *testing.T) {
	service := NewService(&mockRepo{}, newTestEnforcer(t))

	allowed, err := service.Enforce(EnforceRequest{
		UserID:   "user-1",
		Role:     "USER",
		Resource: "presence",
		Action:   "create",
	})
	assert.NoError(t, err)
	assert.True(t, allowed)

	denied, err := service.Enforce(EnforceRequest{
		UserID:   "user-1",
		Role:     "USER",
		Resource: "group",
		Action:   "delete",
	})
	assert.NoError(t, err)
	assert.False(t, denied)

	admin, err := service.Enforce(EnforceRequest{
		UserID:   "user-2",
		Role:     "ADMIN",
		Resource: "group",
		Action:   "delete",
	})
	assert.NoError(t, err)
	assert.True(t, admin)
}

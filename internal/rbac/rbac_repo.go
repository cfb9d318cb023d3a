package rbac

import "gorm.io/gorm"

//go:generate mockgen -source=rbac_repo.go -destination=mock/rbac_repo_mock.go -package=mock
type Repository interface {
	GetRolePermissions() ([]RolePermissionRow, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// RolePermissionRow grants one action on one resource to a role. Rows
// are seeded by migration; the role itself comes from the JWT claim.
type RolePermissionRow struct {
	Role     string
	Resource string
	Action   string
}

func (r *repository) GetRolePermissions() ([]RolePermissionRow, error) {
	var result []RolePermissionRow

	err := r.db.
		Table("role_permissions").
		Select("role_permissions.role, role_permissions.resource, role_permissions.action").
		Scan(&result).Error

	return result, err
}

package group

import (
	"go-presence/internal/middleware"
	"go-presence/internal/rbac"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler, rbacService rbac.Service) {
	groups := r.Group("/groups")
	groups.Use(middleware.AuthMiddleware())
	{
		groups.GET("", middleware.RBACAuthorize(rbacService, "group", "read"), h.ListMine)
		groups.POST("", middleware.RBACAuthorize(rbacService, "group", "create"), h.Create)
		groups.GET("/:group_id", middleware.RBACAuthorize(rbacService, "group", "read"), h.Get)
		groups.PUT("/:group_id/boundary", middleware.RBACAuthorize(rbacService, "group", "update"), h.UpdateBoundary)
		groups.PUT("/:group_id/display-mode", middleware.RBACAuthorize(rbacService, "group", "update"), h.UpdateDisplayMode)
	}
}

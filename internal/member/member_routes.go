package member

import (
	"go-presence/internal/middleware"
	"go-presence/internal/rbac"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler, rbacService rbac.Service) {
	members := r.Group("/groups/:group_id/members")
	members.Use(middleware.AuthMiddleware())
	{
		members.GET("", middleware.RBACAuthorize(rbacService, "member", "read"), h.List)
		members.POST("", middleware.RBACAuthorize(rbacService, "member", "create"), h.Join)
	}
}

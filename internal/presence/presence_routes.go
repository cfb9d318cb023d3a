package presence

import (
	"go-presence/internal/middleware"
	"go-presence/internal/rbac"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler, rbacService rbac.Service) {
	groups := r.Group("/groups/:group_id")
	groups.Use(middleware.AuthMiddleware())
	{
		groups.POST("/check-in", middleware.RBACAuthorize(rbacService, "presence", "create"), h.CheckIn)
		groups.POST("/check-out", middleware.RBACAuthorize(rbacService, "presence", "create"), h.CheckOut)
		groups.GET("/presence", middleware.RBACAuthorize(rbacService, "presence", "read"), h.Summary)
	}
}

package achievement

import (
	"go-presence/internal/middleware"
	"go-presence/internal/rbac"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler, rbacService rbac.Service) {
	achievements := r.Group("/achievements")
	achievements.Use(middleware.AuthMiddleware())
	{
		achievements.GET("", middleware.RBACAuthorize(rbacService, "achievement", "read"), h.ListMine)
	}
}

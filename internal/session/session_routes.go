package session

import (
	"go-presence/internal/middleware"
	"go-presence/internal/rbac"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler, rbacService rbac.Service) {
	sessions := r.Group("/sessions")
	sessions.Use(middleware.AuthMiddleware())
	{
		sessions.POST("", middleware.RBACAuthorize(rbacService, "session", "create"), h.SignIn)
		sessions.DELETE("", middleware.RBACAuthorize(rbacService, "session", "delete"), h.SignOut)
		signals := sessions.Group("")
		signals.Use(middleware.RateLimitByUser(rate.Limit(2), 5))
		{
			signals.PUT("/location", middleware.RBACAuthorize(rbacService, "session", "update"), h.UpdateLocation)
			signals.POST("/region-events", middleware.RBACAuthorize(rbacService, "session", "update"), h.RegionEvent)
		}
	}
}

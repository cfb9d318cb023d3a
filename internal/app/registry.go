package app

import (
	"database/sql"
	"path/filepath"

	"go-presence/internal/achievement"
	"go-presence/internal/arrival"
	"go-presence/internal/group"
	"go-presence/internal/member"
	"go-presence/internal/messaging/kafka"
	"go-presence/internal/middleware"
	"go-presence/internal/presence"
	"go-presence/internal/rbac"
	"go-presence/internal/rbac/infra"
	"go-presence/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func registerModules(
	router *gin.Engine,
	db *sql.DB,
	gormDB *gorm.DB,
	rdb *redis.Client,
) (presence.Service, error) {
	// --- Repositories ---
	rbacRepo := rbac.NewRepository(gormDB)
	groupRepo := group.NewRepository(gormDB)
	memberRepo := member.NewRepository(gormDB)
	presenceRepo := presence.NewRepository(gormDB)
	arrivalRepo := arrival.NewRepository(gormDB)
	achievementRepo := achievement.NewRepository(gormDB)
	outboxRepo := kafka.NewOutboxRepository(db)

	// --- RBAC Core ---
	enforcer, err := infra.NewEnforcer(filepath.Join("internal", "rbac", "infra", "model.conf"))
	if err != nil {
		return nil, err
	}
	rbacService := rbac.NewService(rbacRepo, enforcer)

	// --- Services ---
	arrivalService := arrival.NewService(arrivalRepo)
	presenceService := presence.NewService(db, presenceRepo, outboxRepo, arrivalService, rdb)
	groupService := group.NewService(db, groupRepo, memberRepo)
	memberService := member.NewService(memberRepo)
	achievementService := achievement.NewService(achievementRepo)
	sessionManager := session.NewManager(groupService, presenceService, nil)

	// --- Handlers ---
	groupHandler := group.NewHandler(groupService)
	memberHandler := member.NewHandler(memberService)
	presenceHandler := presence.NewHandler(presenceService, groupService)
	sessionHandler := session.NewHandler(sessionManager)
	achievementHandler := achievement.NewHandler(achievementService)

	// --- Routes Registration ---
	router.Use(middleware.RequestID())

	api := router.Group("/api/v1")
	api.Use(middleware.RateLimitByIP(rate.Limit(20), 40))
	api.Use(middleware.Idempotency(rdb))
	{
		group.RegisterRoutes(api, groupHandler, rbacService)
		member.RegisterRoutes(api, memberHandler, rbacService)
		presence.RegisterRoutes(api, presenceHandler, rbacService)
		session.RegisterRoutes(api, sessionHandler, rbacService)
		achievement.RegisterRoutes(api, achievementHandler, rbacService)
	}

	return presenceService, nil
}

package app

import (
	"context"
	"os"
	"time"

	"go-presence/internal/presence"
	"go-presence/internal/shared/connection"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// deadlineSweepInterval paces the periodic auto-checkout sweep. The
// sweep compares stored deadlines against wall-clock time, so a delayed
// tick (process suspension, redeploy) only postpones enforcement.
const deadlineSweepInterval = time.Minute

func BuildApp(router *gin.Engine) error {
	gormDB, err := connection.ConnectGORMWithRetry(
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_SSLMODE"),
		5,
	)
	if err != nil {
		return err
	}
	zap.L().Info("database connection established")

	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}

	redisClient, err := connection.ConnectRedisWithRetry(os.Getenv("REDIS_ADDR"), 5)
	if err != nil {
		return err
	}
	zap.L().Info("redis connection established")

	presenceService, err := registerModules(router, sqlDB, gormDB, redisClient)
	if err != nil {
		return err
	}

	go runDeadlineSweep(context.Background(), presenceService)

	return nil
}

func runDeadlineSweep(ctx context.Context, svc presence.Service) {
	logger := zap.L().Named("app.deadline_sweep")

	// Immediate sweep on startup catches deadlines that elapsed while the
	// process was down.
	sweep(ctx, svc, logger)

	ticker := time.NewTicker(deadlineSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, svc, logger)
		}
	}
}

func sweep(ctx context.Context, svc presence.Service, logger *zap.Logger) {
	n, err := svc.EvaluateDeadlines(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("deadline sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("deadline sweep checked out", zap.Int("count", n))
	}
}

package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"go-presence/internal/achievement"
	"go-presence/internal/events"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ConsumePresenceCheckIn awards the first-arrival achievement for
// check-in events whose arbiter claim won. The award insert is
// idempotent, so redelivered messages are safe.
func ConsumePresenceCheckIn(
	ctx context.Context,
	reader *kafkago.Reader,
	achievementService achievement.Service,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.presence_checkin")
	log.Info("presence check-in consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("presence check-in consumer stopped")
				return
			}
			log.Error("fetch presence check-in message failed", zap.Error(err))
			continue
		}

		var event events.PresenceCheckInEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode presence check-in event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		if !event.WonFirstArrival {
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		_, err = achievementService.AwardFirstArrival(ctx, event.UserID, event.GroupID, event.OccurredAt)
		if err != nil {
			if errors.Is(err, achievement.ErrAlreadyAwarded) {
				log.Warn("first arrival already awarded, skipping",
					zap.String("user_id", event.UserID),
					zap.String("group_id", event.GroupID),
				)
				_ = reader.CommitMessages(ctx, msg)
				continue
			}

			log.Error("award first arrival failed",
				zap.String("user_id", event.UserID),
				zap.String("group_id", event.GroupID),
				zap.Error(err),
			)
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit presence check-in message failed", zap.Error(err))
			continue
		}

		log.Info("first arrival awarded from check-in event",
			zap.String("user_id", event.UserID),
			zap.String("group_id", event.GroupID),
		)
	}
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-checkin/internal/checkin"
	"ms-checkin/internal/events"
	"ms-checkin/internal/kafka"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/sse"
)

// AttendanceChannel is the Redis pub/sub channel carrying attendance
// updates between instances.
const AttendanceChannel = "checkin.attendance"

type StatsSource interface {
	CountsForEvent(ctx context.Context, eventID string) (*events.EventStats, error)
}

// Notifier fans a winning check-in out to the live-attendance plumbing and
// to Kafka. It implements checkin.Publisher: delivery is best effort and
// never fails the check-in that triggered it.
type Notifier struct {
	Producer *kafka.Producer // nil when Kafka is disabled
	Redis    *redis.Client   // nil when Redis is disabled
	Emitter  *sse.AttendanceEmitter
	Stats    StatsSource
	Logger   *logger.Logger
}

// CheckinRecorded publishes the update. The caller's context is not used:
// the transition is already committed and is not undone by a caller
// cancelling, so notifications run detached.
func (n *Notifier) CheckinRecorded(_ context.Context, result checkin.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update := sse.AttendanceUpdate{
		EventID:     result.EventID,
		AttendeeID:  result.AttendeeID,
		FullName:    result.FullName,
		CheckedInAt: result.CheckedInAt,
	}

	if n.Stats != nil {
		stats, err := n.Stats.CountsForEvent(ctx, result.EventID)
		if err != nil {
			n.logError("NOTIFY", fmt.Sprintf("Failed to compute stats for event %s: %v", result.EventID, err))
		} else {
			update.Total = stats.Total
			update.CheckedIn = stats.CheckedIn
			update.NotCheckedIn = stats.NotCheckedIn
		}
	}

	n.publishAttendance(ctx, update)

	if n.Producer != nil {
		record := kafka.CheckinRecord{
			AttendeeID:  result.AttendeeID,
			EventID:     result.EventID,
			FullName:    result.FullName,
			CheckedInAt: result.CheckedInAt,
		}
		go func() {
			publishCtx, publishCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer publishCancel()
			if err := n.Producer.PublishCheckinRecorded(publishCtx, record); err != nil {
				n.logError("KAFKA", fmt.Sprintf("Failed to publish check-in for attendee %s: %v", result.AttendeeID, err))
			}
		}()
	}
}

// publishAttendance routes the update through Redis pub/sub when available
// so every instance's SSE clients see it; the subscription loop delivers it
// back to the local emitter. Without Redis the emitter is fed directly.
func (n *Notifier) publishAttendance(ctx context.Context, update sse.AttendanceUpdate) {
	if n.Redis == nil {
		if n.Emitter != nil {
			n.Emitter.Emit(update)
		}
		return
	}

	payload, err := json.Marshal(update)
	if err != nil {
		n.logError("NOTIFY", fmt.Sprintf("Failed to marshal attendance update: %v", err))
		return
	}

	if err := n.Redis.Publish(ctx, AttendanceChannel, payload).Err(); err != nil {
		n.logError("REDIS", fmt.Sprintf("Failed to publish attendance update: %v", err))
		// Local clients still get the update even if the broadcast failed.
		if n.Emitter != nil {
			n.Emitter.Emit(update)
		}
	}
}

func (n *Notifier) logError(category, message string) {
	if n.Logger != nil {
		n.Logger.Error(category, message)
	}
}

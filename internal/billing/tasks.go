package billing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-vat/internal/lock"
)

// TaskRenewal is the asynq task type for processing one billing cycle.
const TaskRenewal = "billing:renewal"

type renewalPayload struct {
	SubscriptionID uuid.UUID `json:"subscriptionId"`
}

// Enqueuer schedules renewal tasks.
type Enqueuer struct {
	Client *asynq.Client
}

// EnqueueRenewal schedules one renewal for the subscription at the given time.
func (e Enqueuer) EnqueueRenewal(subscriptionID uuid.UUID, at time.Time) error {
	payload, err := json.Marshal(renewalPayload{SubscriptionID: subscriptionID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskRenewal, payload)
	_, err = e.Client.Enqueue(task, asynq.ProcessAt(at), asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
	return err
}

// NewRenewalHandler adapts the service to an asynq handler. A per-subscription
// lock keeps concurrent workers from double-billing the same cycle.
func NewRenewalHandler(service *Service, locker lock.Locker, lockTTL time.Duration) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload renewalPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return err
		}
		if locker.R == nil {
			_, err := service.ProcessRenewal(ctx, payload.SubscriptionID)
			return err
		}
		return locker.WithLock(ctx, "billing:renewal:"+payload.SubscriptionID.String(), lockTTL, func(ctx context.Context) error {
			_, err := service.ProcessRenewal(ctx, payload.SubscriptionID)
			return err
		})
	}
}

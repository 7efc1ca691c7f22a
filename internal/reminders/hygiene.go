package reminders

import (
	"context"

	"go.uber.org/zap"

	"github.com/Lakshya1002/healthmate3-sub000/internal/models"
	"github.com/Lakshya1002/healthmate3-sub000/internal/push"
)

// Hygiene prunes subscriptions the push service has permanently rejected.
// Only 404 and 410 count as permanent; a wrongly deleted subscription
// silently disables a user's reminders until they re-subscribe.
type Hygiene struct {
	store SubscriptionDeleter
	log   *zap.Logger
}

func NewHygiene(store SubscriptionDeleter, log *zap.Logger) *Hygiene {
	return &Hygiene{store: store, log: log}
}

// HandleDeliveryFailure classifies err and deletes sub when the failure is
// permanent. It reports whether the subscription was removed.
func (h *Hygiene) HandleDeliveryFailure(ctx context.Context, sub models.PushSubscription, err error) bool {
	fields := []zap.Field{
		zap.Int("user_id", sub.UserID),
		zap.String("endpoint", push.ShortEndpoint(sub.Endpoint)),
		zap.Int("status", push.StatusCode(err)),
		zap.Error(err),
	}

	if !push.IsPermanent(err) {
		h.log.Warn("push delivery failed, keeping subscription", fields...)
		return false
	}

	n, derr := h.store.DeleteSubscription(ctx, sub.Endpoint)
	if derr != nil {
		h.log.Error("failed to remove expired subscription", append(fields, zap.NamedError("delete_error", derr))...)
		return false
	}
	h.log.Info("removed expired subscription", append(fields, zap.Int64("rows", n))...)
	return true
}

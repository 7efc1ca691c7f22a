package api

import (
	"context"
	"database/sql"

	"github.com/Lakshya1002/healthmate3-sub000/internal/models"
	"github.com/Lakshya1002/healthmate3-sub000/internal/reminders"

	"github.com/gofiber/fiber/v2"
)

// Notifier fans a payload out to a set of subscriptions.
type Notifier interface {
	Deliver(ctx context.Context, subs []models.PushSubscription, p reminders.Payload) (reminders.Summary, error)
}

// VapidPublicKeyHandler exposes the application server key browsers need
// to subscribe.
func VapidPublicKeyHandler(publicKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if publicKey == "" {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Push notifications not configured")
		}
		return c.JSON(fiber.Map{"publicKey": publicKey})
	}
}

// SubscribePushHandler stores a browser subscription. Both the flat shape
// and the PushSubscription.toJSON() shape with nested keys are accepted.
func SubscribePushHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var req models.SubscribeRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		p256dh, authKey := req.P256dh, req.Auth
		if p256dh == "" {
			p256dh = req.Keys.P256dh
		}
		if authKey == "" {
			authKey = req.Keys.Auth
		}
		if req.Endpoint == "" || p256dh == "" || authKey == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Missing subscription fields")
		}

		// Upsert subscription
		_, err := db.Exec(
			`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, endpoint) DO UPDATE SET
			p256dh = excluded.p256dh,
			auth = excluded.auth`,
			userID, req.Endpoint, p256dh, authKey,
		)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true})
	}
}

func UnsubscribePushHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var body struct {
			Endpoint string `json:"endpoint"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if body.Endpoint == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Endpoint is required")
		}

		_, err := db.Exec(
			"DELETE FROM push_subscriptions WHERE user_id = ? AND endpoint = ?",
			userID, body.Endpoint,
		)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{"success": true})
	}
}

// TestPushHandler sends a test notification to every device of the user.
// Dead subscriptions found on the way are pruned like in the scheduler.
func TestPushHandler(store *reminders.SQLStore, notifier Notifier, payload reminders.PayloadConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		if notifier == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Push notifications not configured")
		}

		subs, err := store.ListUserSubscriptions(c.UserContext(), userID)
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "No push subscriptions for this user")
		}

		s, err := notifier.Deliver(c.UserContext(), subs, payload.TestNotification())
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"attempted": s.Attempted,
			"delivered": s.Delivered,
			"failed":    s.Failed,
			"removed":   s.Pruned,
		})
	}
}

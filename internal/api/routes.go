package api

import (
	"database/sql"

	"github.com/Lakshya1002/healthmate3-sub000/internal/reminders"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Config carries what the routes need beyond the database.
type Config struct {
	DisableRegistration bool
	// VAPIDPublicKey is empty when push is not configured.
	VAPIDPublicKey string
	// Notifier is nil when push is not configured.
	Notifier Notifier
	Payload  reminders.PayloadConfig
	Log      *zap.Logger
}

func SetupRoutes(app *fiber.App, db *sql.DB, cfg Config) {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	api := app.Group("/api")

	// Configuration endpoint (public)
	api.Get("/config", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"disableRegistration": cfg.DisableRegistration,
			"pushEnabled":         cfg.VAPIDPublicKey != "",
		})
	})

	// Auth routes
	auth := api.Group("/auth")
	if !cfg.DisableRegistration {
		auth.Post("/register", RegisterHandler(db, cfg.Log))
	}
	auth.Post("/login", LoginHandler(db, cfg.Log))
	auth.Post("/refresh", RefreshTokenHandler(db, cfg.Log))
	auth.Post("/logout", LogoutHandler(db))

	// VAPID public key endpoint (public - must be before protected routes for proper routing)
	api.Get("/push/vapid-public-key", VapidPublicKeyHandler(cfg.VAPIDPublicKey))

	// Protected routes
	protected := api.Group("/", AuthMiddleware())

	// Medicine routes
	medicines := protected.Group("/medicines")
	medicines.Post("/", CreateMedicineHandler(db))
	medicines.Get("/", ListMedicinesHandler(db))
	medicines.Get("/:id", GetMedicineHandler(db))
	medicines.Put("/:id", UpdateMedicineHandler(db))
	medicines.Delete("/:id", DeleteMedicineHandler(db))

	// Reminder routes
	reminderRoutes := protected.Group("/reminders")
	reminderRoutes.Post("/", CreateReminderHandler(db))
	reminderRoutes.Get("/", ListRemindersHandler(db))
	reminderRoutes.Get("/:id", GetReminderHandler(db))
	reminderRoutes.Put("/:id/status", UpdateReminderStatusHandler(db, cfg.Log))
	reminderRoutes.Delete("/:id", DeleteReminderHandler(db))

	// Dose history
	protected.Get("/doses", ListDosesHandler(db))

	// Push subscription routes
	push := protected.Group("/push")
	push.Post("/subscribe", SubscribePushHandler(db))
	push.Delete("/unsubscribe", UnsubscribePushHandler(db))
	push.Post("/test", TestPushHandler(reminders.NewSQLStore(db), cfg.Notifier, cfg.Payload))

	// User profile routes
	user := protected.Group("/user")
	user.Get("/profile", GetUserProfileHandler(db, cfg.Notifier != nil, cfg.Log))
	user.Put("/email", UpdateUserEmailHandler(db, cfg.Log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

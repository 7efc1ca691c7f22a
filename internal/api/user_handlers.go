package api

import (
	"database/sql"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type UpdateEmailRequest struct {
	Email *string `json:"email"`
}

// PushStatus tells the client whether reminders can reach any of its devices.
type PushStatus struct {
	Enabled       bool `json:"enabled"`
	Subscriptions int  `json:"subscriptions"`
}

type UserProfile struct {
	ID        int        `json:"id"`
	Username  string     `json:"username"`
	Email     *string    `json:"email"`
	CreatedAt string     `json:"created_at"`
	Medicines int        `json:"medicines"`
	Reminders int        `json:"active_reminders"`
	Push      PushStatus `json:"push"`
}

// UpdateUserEmailHandler sets or clears the user's email address.
func UpdateUserEmailHandler(db *sql.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var req UpdateEmailRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		var email any
		if req.Email != nil {
			if e := strings.TrimSpace(*req.Email); e != "" {
				if len(e) > 254 || !strings.Contains(e, "@") {
					return fiber.NewError(fiber.StatusBadRequest, "Invalid email format")
				}
				email = e
			}
		}

		if _, err := db.Exec("UPDATE users SET email = ? WHERE id = ?", email, userID); err != nil {
			log.Error("failed to update email", zap.Int("user_id", userID), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to update email")
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Email updated successfully",
		})
	}
}

// GetUserProfileHandler returns the account together with how many medicines,
// scheduled reminders and push subscriptions it has. A user with scheduled
// reminders but no subscriptions receives no notifications.
func GetUserProfileHandler(db *sql.DB, pushEnabled bool, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		p := UserProfile{ID: userID, Push: PushStatus{Enabled: pushEnabled}}
		var email sql.NullString
		err := db.QueryRow(`
			SELECT u.username, u.email, u.created_at,
				(SELECT COUNT(*) FROM medicines WHERE user_id = u.id),
				(SELECT COUNT(*) FROM reminders WHERE user_id = u.id AND status = 'scheduled'),
				(SELECT COUNT(*) FROM push_subscriptions WHERE user_id = u.id)
			FROM users u WHERE u.id = ?`,
			userID,
		).Scan(&p.Username, &email, &p.CreatedAt, &p.Medicines, &p.Reminders, &p.Push.Subscriptions)
		if err == sql.ErrNoRows {
			return fiber.NewError(fiber.StatusNotFound, "User not found")
		}
		if err != nil {
			log.Error("failed to load user profile", zap.Int("user_id", userID), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to get user profile")
		}
		if email.Valid {
			p.Email = &email.String
		}

		return c.JSON(p)
	}
}

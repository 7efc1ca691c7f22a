package api

import (
	"database/sql"
	"strconv"

	"github.com/Lakshya1002/healthmate3-sub000/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListDosesHandler returns the user's dose history, newest first,
// optionally filtered by ?medicine_id=.
func ListDosesHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		query := `SELECT d.id, d.user_id, d.medicine_id, m.name, d.reminder_id, d.status, d.taken_at
			FROM dose_history d JOIN medicines m ON m.id = d.medicine_id
			WHERE d.user_id = ?`
		args := []interface{}{userID}

		if v := c.Query("medicine_id"); v != "" {
			medicineID, err := strconv.Atoi(v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid medicine ID")
			}
			query += " AND d.medicine_id = ?"
			args = append(args, medicineID)
		}

		query += " ORDER BY d.taken_at DESC, d.id DESC"

		rows, err := db.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		doses := []models.DoseHistory{}
		for rows.Next() {
			var d models.DoseHistory
			var reminderID sql.NullInt64
			err := rows.Scan(&d.ID, &d.UserID, &d.MedicineID, &d.MedicineName, &reminderID, &d.Status, &d.TakenAt)
			if err != nil {
				return err
			}
			if reminderID.Valid {
				id := int(reminderID.Int64)
				d.ReminderID = &id
			}
			doses = append(doses, d)
		}

		return c.JSON(doses)
	}
}

package api

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/Lakshya1002/healthmate3-sub000/internal/models"
	"github.com/Lakshya1002/healthmate3-sub000/internal/recurrence"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const reminderSelect = `SELECT r.id, r.user_id, r.medicine_id, m.name, r.reminder_time, r.status,
	r.frequency, COALESCE(r.week_days, ''), r.day_interval, r.created_at
	FROM reminders r JOIN medicines m ON m.id = r.medicine_id`

func scanReminder(row rowScanner) (models.Reminder, error) {
	var r models.Reminder
	var interval sql.NullInt64
	err := row.Scan(
		&r.ID, &r.UserID, &r.MedicineID, &r.MedicineName, &r.ReminderTime, &r.Status,
		&r.Frequency, &r.WeekDays, &interval, &r.CreatedAt,
	)
	if err != nil {
		return r, err
	}
	if interval.Valid {
		n := int(interval.Int64)
		r.DayInterval = &n
	}
	return r, nil
}

// CreateReminderHandler schedules a reminder for one of the user's
// medicines. The recurrence is validated and stored in canonical form.
func CreateReminderHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var req models.CreateReminderRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		at, err := recurrence.ParseClock(req.ReminderTime)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid reminder_time, expected HH:MM")
		}
		if req.Frequency == "" {
			req.Frequency = recurrence.FrequencyDaily
		}
		interval := 0
		if req.DayInterval != nil {
			interval = *req.DayInterval
		}
		if strings.EqualFold(strings.TrimSpace(req.Frequency), recurrence.FrequencyWeekly) {
			if _, err := recurrence.ParseWeekdays(req.WeekDays); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		rule, err := recurrence.Parse(req.Frequency, req.WeekDays, interval)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		// Check medicine ownership
		var ownerID int
		err = db.QueryRow("SELECT user_id FROM medicines WHERE id = ?", req.MedicineID).Scan(&ownerID)
		if err == sql.ErrNoRows {
			return fiber.NewError(fiber.StatusNotFound, "Medicine not found")
		}
		if err != nil {
			return err
		}
		if ownerID != userID {
			return fiber.NewError(fiber.StatusForbidden, "Not authorized")
		}

		var weekDays, dayInterval any
		switch r := rule.(type) {
		case recurrence.Weekly:
			weekDays = recurrence.FormatWeekdays(r.Days)
		case recurrence.Interval:
			dayInterval = r.Days
		}

		result, err := db.Exec(
			`INSERT INTO reminders (user_id, medicine_id, reminder_time, status, frequency, week_days, day_interval)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			userID, req.MedicineID, at.String(), models.StatusScheduled, rule.Frequency(), weekDays, dayInterval,
		)
		if err != nil {
			return err
		}

		reminderID, _ := result.LastInsertId()

		reminder, err := scanReminder(db.QueryRow(reminderSelect+" WHERE r.id = ?", reminderID))
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(reminder)
	}
}

func ListRemindersHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		rows, err := db.Query(
			reminderSelect+" WHERE r.user_id = ? ORDER BY r.reminder_time ASC, r.id ASC",
			userID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		reminders := []models.Reminder{}
		for rows.Next() {
			r, err := scanReminder(rows)
			if err != nil {
				return err
			}
			reminders = append(reminders, r)
		}

		return c.JSON(reminders)
	}
}

func GetReminderHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		reminderID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid reminder ID")
		}

		reminder, err := scanReminder(db.QueryRow(reminderSelect+" WHERE r.id = ? AND r.user_id = ?", reminderID, userID))
		if err == sql.ErrNoRows {
			return fiber.NewError(fiber.StatusNotFound, "Reminder not found")
		}
		if err != nil {
			return err
		}

		return c.JSON(reminder)
	}
}

// UpdateReminderStatusHandler records a dose action. Marking a reminder
// taken or skipped appends dose history; taken also draws down the
// medicine's tracked inventory. Setting it back to scheduled re-arms it.
func UpdateReminderStatusHandler(db *sql.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		reminderID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid reminder ID")
		}

		var req models.UpdateReminderStatusRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		validStatuses := map[string]bool{
			models.StatusScheduled: true,
			models.StatusTaken:     true,
			models.StatusSkipped:   true,
		}
		if !validStatuses[req.Status] {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid status")
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		// Check ownership
		var ownerID, medicineID int
		var dosage string
		err = tx.QueryRow(
			`SELECT r.user_id, r.medicine_id, m.dosage FROM reminders r
			JOIN medicines m ON m.id = r.medicine_id WHERE r.id = ?`,
			reminderID,
		).Scan(&ownerID, &medicineID, &dosage)
		if err == sql.ErrNoRows {
			return fiber.NewError(fiber.StatusNotFound, "Reminder not found")
		}
		if err != nil {
			return err
		}
		if ownerID != userID {
			return fiber.NewError(fiber.StatusForbidden, "Not authorized")
		}

		if _, err := tx.Exec("UPDATE reminders SET status = ? WHERE id = ?", req.Status, reminderID); err != nil {
			return err
		}

		if req.Status != models.StatusScheduled {
			_, err = tx.Exec(
				"INSERT INTO dose_history (user_id, medicine_id, reminder_id, status) VALUES (?, ?, ?, ?)",
				userID, medicineID, reminderID, req.Status,
			)
			if err != nil {
				return err
			}
		}

		if req.Status == models.StatusTaken {
			_, err = tx.Exec(
				`UPDATE medicines SET remaining_quantity = MAX(remaining_quantity - ?, 0),
				updated_at = CURRENT_TIMESTAMP
				WHERE id = ? AND remaining_quantity IS NOT NULL`,
				models.DoseQuantity(dosage), medicineID,
			)
			if err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return err
		}

		log.Debug("reminder status updated",
			zap.Int("reminder_id", reminderID),
			zap.Int("user_id", userID),
			zap.String("status", req.Status),
		)
		return c.JSON(fiber.Map{"success": true, "status": req.Status})
	}
}

func DeleteReminderHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		reminderID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid reminder ID")
		}

		result, err := db.Exec(
			"DELETE FROM reminders WHERE id = ? AND user_id = ?",
			reminderID, userID,
		)
		if err != nil {
			return err
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Reminder not found")
		}

		return c.JSON(fiber.Map{"success": true})
	}
}

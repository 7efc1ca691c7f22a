package api

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/Lakshya1002/healthmate3-sub000/internal/models"
	"github.com/Lakshya1002/healthmate3-sub000/internal/recurrence"

	"github.com/gofiber/fiber/v2"
)

const medicineColumns = `id, user_id, name, dosage, start_date, end_date, remaining_quantity, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedicine(row rowScanner) (models.Medicine, error) {
	var m models.Medicine
	var endDate sql.NullString
	var remaining sql.NullInt64
	err := row.Scan(
		&m.ID, &m.UserID, &m.Name, &m.Dosage, &m.StartDate,
		&endDate, &remaining, &m.Notes, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return m, err
	}
	if endDate.Valid && endDate.String != "" {
		m.EndDate = &endDate.String
	}
	if remaining.Valid {
		n := int(remaining.Int64)
		m.RemainingQuantity = &n
	}
	return m, nil
}

// validateMedicine normalizes and checks a create/update request.
func validateMedicine(req *models.CreateMedicineRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Dosage = strings.TrimSpace(req.Dosage)
	if req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Name is required")
	}
	if req.StartDate == "" {
		req.StartDate = time.Now().Format(recurrence.DateFormat)
	}
	start, err := recurrence.ParseDate(req.StartDate, time.Local)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid start_date, expected YYYY-MM-DD")
	}
	if req.EndDate != nil && strings.TrimSpace(*req.EndDate) == "" {
		req.EndDate = nil
	}
	if req.EndDate != nil {
		end, err := recurrence.ParseDate(*req.EndDate, time.Local)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid end_date, expected YYYY-MM-DD")
		}
		if end.Before(start) {
			return fiber.NewError(fiber.StatusBadRequest, "end_date must not be before start_date")
		}
	}
	if req.RemainingQuantity != nil && *req.RemainingQuantity < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "remaining_quantity must not be negative")
	}
	return nil
}

func CreateMedicineHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var req models.CreateMedicineRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if err := validateMedicine(&req); err != nil {
			return err
		}

		result, err := db.Exec(
			`INSERT INTO medicines (user_id, name, dosage, start_date, end_date, remaining_quantity, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			userID, req.Name, req.Dosage, req.StartDate, req.EndDate, req.RemainingQuantity, req.Notes,
		)
		if err != nil {
			return err
		}

		medicineID, _ := result.LastInsertId()

		medicine, err := scanMedicine(db.QueryRow(
			"SELECT "+medicineColumns+" FROM medicines WHERE id = ?", medicineID,
		))
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(medicine)
	}
}

func ListMedicinesHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		rows, err := db.Query(
			"SELECT "+medicineColumns+" FROM medicines WHERE user_id = ? ORDER BY name ASC",
			userID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		medicines := []models.Medicine{}
		for rows.Next() {
			m, err := scanMedicine(rows)
			if err != nil {
				return err
			}
			medicines = append(medicines, m)
		}

		return c.JSON(medicines)
	}
}

func GetMedicineHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		medicineID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid medicine ID")
		}

		medicine, err := scanMedicine(db.QueryRow(
			"SELECT "+medicineColumns+" FROM medicines WHERE id = ? AND user_id = ?",
			medicineID, userID,
		))
		if err == sql.ErrNoRows {
			return fiber.NewError(fiber.StatusNotFound, "Medicine not found")
		}
		if err != nil {
			return err
		}

		return c.JSON(medicine)
	}
}

func UpdateMedicineHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		medicineID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid medicine ID")
		}

		var req models.CreateMedicineRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if err := validateMedicine(&req); err != nil {
			return err
		}

		// Check ownership
		var ownerID int
		err = db.QueryRow("SELECT user_id FROM medicines WHERE id = ?", medicineID).Scan(&ownerID)
		if err == sql.ErrNoRows {
			return fiber.NewError(fiber.StatusNotFound, "Medicine not found")
		}
		if err != nil {
			return err
		}
		if ownerID != userID {
			return fiber.NewError(fiber.StatusForbidden, "Not authorized")
		}

		_, err = db.Exec(
			`UPDATE medicines SET name = ?, dosage = ?, start_date = ?, end_date = ?,
			remaining_quantity = ?, notes = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			req.Name, req.Dosage, req.StartDate, req.EndDate, req.RemainingQuantity, req.Notes, medicineID,
		)
		if err != nil {
			return err
		}

		medicine, err := scanMedicine(db.QueryRow(
			"SELECT "+medicineColumns+" FROM medicines WHERE id = ?", medicineID,
		))
		if err != nil {
			return err
		}

		return c.JSON(medicine)
	}
}

// DeleteMedicineHandler removes a medicine; its reminders and dose history
// go with it.
func DeleteMedicineHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		medicineID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid medicine ID")
		}

		result, err := db.Exec("DELETE FROM medicines WHERE id = ? AND user_id = ?", medicineID, userID)
		if err != nil {
			return err
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Medicine not found")
		}

		return c.JSON(fiber.Map{"success": true})
	}
}

package database

import (
	"database/sql"
	"fmt"
)

// columnExists checks if a column exists on a given table (SQLite PRAGMA table_info)
func columnExists(db *sql.DB, table string, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var cid int
	var name string
	var ctype string
	var notnull int
	var dflt sql.NullString
	var pk int

	for rows.Next() {
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func addColumnIfMissing(db *sql.DB, table, column, ddl string) error {
	exists, err := columnExists(db, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, ddl))
	return err
}

// MigrateMedicineInventory adds the end_date, remaining_quantity and notes
// columns to medicines tables created before they existed (idempotent).
func MigrateMedicineInventory(db *sql.DB) error {
	columns := []struct{ name, ddl string }{
		{"end_date", "TEXT"},
		{"remaining_quantity", "INTEGER"},
		{"notes", "TEXT NOT NULL DEFAULT ''"},
	}
	for _, c := range columns {
		if err := addColumnIfMissing(db, "medicines", c.name, c.ddl); err != nil {
			return fmt.Errorf("medicines.%s: %w", c.name, err)
		}
	}
	return nil
}

// MigrateReminderRecurrence adds the recurrence columns to reminders tables
// that predate weekly and interval schedules. Existing rows become daily.
func MigrateReminderRecurrence(db *sql.DB) error {
	columns := []struct{ name, ddl string }{
		{"frequency", "TEXT NOT NULL DEFAULT 'daily'"},
		{"week_days", "TEXT"},
		{"day_interval", "INTEGER"},
	}
	for _, c := range columns {
		if err := addColumnIfMissing(db, "reminders", c.name, c.ddl); err != nil {
			return fmt.Errorf("reminders.%s: %w", c.name, err)
		}
	}
	return nil
}

// Migrate runs every migration in order.
func Migrate(db *sql.DB) error {
	if err := MigrateMedicineInventory(db); err != nil {
		return err
	}
	return MigrateReminderRecurrence(db)
}

package models

import (
	"regexp"
	"strconv"
	"time"
)

// Reminder status values.
const (
	StatusScheduled = "scheduled"
	StatusTaken     = "taken"
	StatusSkipped   = "skipped"
)

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Medicine struct {
	ID                int       `json:"id"`
	UserID            int       `json:"user_id"`
	Name              string    `json:"name"`
	Dosage            string    `json:"dosage"`
	StartDate         string    `json:"start_date"`
	EndDate           *string   `json:"end_date,omitempty"`
	RemainingQuantity *int      `json:"remaining_quantity,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Reminder struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	MedicineID   int       `json:"medicine_id"`
	MedicineName string    `json:"medicine_name,omitempty"`
	ReminderTime string    `json:"reminder_time"`
	Status       string    `json:"status"`
	Frequency    string    `json:"frequency"`
	WeekDays     string    `json:"week_days,omitempty"`
	DayInterval  *int      `json:"day_interval,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type PushSubscription struct {
	ID       int    `json:"id"`
	UserID   int    `json:"user_id"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

type DoseHistory struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	MedicineID   int       `json:"medicine_id"`
	MedicineName string    `json:"medicine_name,omitempty"`
	ReminderID   *int      `json:"reminder_id,omitempty"`
	Status       string    `json:"status"`
	TakenAt      time.Time `json:"taken_at"`
}

// ActiveReminder is one row of the scheduler's due-set query: a scheduled
// reminder, its medicine, and one push subscription of the owning user.
type ActiveReminder struct {
	ReminderID   int
	UserID       int
	MedicineID   int
	ReminderTime string
	Frequency    string
	WeekDays     string
	DayInterval  int
	MedicineName string
	Dosage       string
	StartDate    string
	EndDate      string
	Subscription PushSubscription
}

type CreateMedicineRequest struct {
	Name              string  `json:"name"`
	Dosage            string  `json:"dosage"`
	StartDate         string  `json:"start_date"`
	EndDate           *string `json:"end_date,omitempty"`
	RemainingQuantity *int    `json:"remaining_quantity,omitempty"`
	Notes             string  `json:"notes,omitempty"`
}

type CreateReminderRequest struct {
	MedicineID   int    `json:"medicine_id"`
	ReminderTime string `json:"reminder_time"`
	Frequency    string `json:"frequency"`
	WeekDays     string `json:"week_days,omitempty"`
	DayInterval  *int   `json:"day_interval,omitempty"`
}

type UpdateReminderStatusRequest struct {
	Status string `json:"status"`
}

type SubscribeRequest struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

var quantityPattern = regexp.MustCompile(`\d+`)

// DoseQuantity extracts the unit count from a free-text dosage such as
// "2 pills". Dosages without a number count as one unit.
func DoseQuantity(dosage string) int {
	m := quantityPattern.FindString(dosage)
	if m == "" {
		return 1
	}
	n, err := strconv.Atoi(m)
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

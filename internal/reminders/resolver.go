package reminders

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Lakshya1002/healthmate3-sub000/internal/models"
	"github.com/Lakshya1002/healthmate3-sub000/internal/recurrence"
)

// DueCandidate is one push to send: a due reminder paired with one of its
// owner's devices.
type DueCandidate struct {
	ReminderID   int
	UserID       int
	MedicineID   int
	MedicineName string
	Dosage       string
	Subscription models.PushSubscription
}

type activeLister interface {
	ListActiveReminders(ctx context.Context) ([]models.ActiveReminder, error)
}

// Resolver selects the reminders that fire at a given minute.
type Resolver struct {
	store activeLister
	log   *zap.Logger
}

func NewResolver(store activeLister, log *zap.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

type evaluated struct {
	schedule recurrence.Schedule
	start    time.Time
	end      *time.Time
	ok       bool
}

// Resolve returns the candidates due at now. Reminders with malformed
// recurrence, time or date data are skipped, never reported as errors.
func (r *Resolver) Resolve(ctx context.Context, now time.Time) ([]DueCandidate, error) {
	rows, err := r.store.ListActiveReminders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active reminders: %w", err)
	}

	// Rows repeat per subscription; evaluate each reminder once.
	cache := make(map[int]evaluated)
	var due []DueCandidate
	for _, row := range rows {
		ev, seen := cache[row.ReminderID]
		if !seen {
			ev = r.evaluate(row, now.Location())
			cache[row.ReminderID] = ev
		}
		if !ev.ok {
			continue
		}
		if ev.end != nil && now.After(endOfDay(*ev.end)) {
			continue
		}
		if !ev.schedule.IsDueNow(now, ev.start) {
			continue
		}
		due = append(due, DueCandidate{
			ReminderID:   row.ReminderID,
			UserID:       row.UserID,
			MedicineID:   row.MedicineID,
			MedicineName: row.MedicineName,
			Dosage:       row.Dosage,
			Subscription: row.Subscription,
		})
	}

	r.log.Debug("resolved due reminders",
		zap.Time("tick", now),
		zap.Int("active_rows", len(rows)),
		zap.Int("due", len(due)),
	)
	return due, nil
}

func (r *Resolver) evaluate(row models.ActiveReminder, loc *time.Location) evaluated {
	rule, err := recurrence.Parse(row.Frequency, row.WeekDays, row.DayInterval)
	if err != nil {
		r.log.Debug("skipping reminder with invalid recurrence",
			zap.Int("reminder_id", row.ReminderID), zap.Error(err))
		return evaluated{}
	}
	at, err := recurrence.ParseClock(row.ReminderTime)
	if err != nil {
		r.log.Debug("skipping reminder with invalid time",
			zap.Int("reminder_id", row.ReminderID), zap.String("reminder_time", row.ReminderTime))
		return evaluated{}
	}
	start, err := recurrence.ParseDate(row.StartDate, loc)
	if err != nil {
		r.log.Debug("skipping reminder with invalid start date",
			zap.Int("reminder_id", row.ReminderID), zap.String("start_date", row.StartDate))
		return evaluated{}
	}

	ev := evaluated{
		schedule: recurrence.Schedule{At: at, Rule: rule},
		start:    start,
		ok:       true,
	}
	if row.EndDate != "" {
		end, err := recurrence.ParseDate(row.EndDate, loc)
		if err != nil {
			r.log.Debug("ignoring invalid end date",
				zap.Int("reminder_id", row.ReminderID), zap.String("end_date", row.EndDate))
		} else {
			ev.end = &end
		}
	}
	return ev
}

func endOfDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(time.Second-1), d.Location())
}

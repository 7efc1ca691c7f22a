package reminders

import (
	"context"
	"database/sql"

	"github.com/Lakshya1002/healthmate3-sub000/internal/models"
)

// Store is the storage the engine reads from and prunes.
type Store interface {
	ListActiveReminders(ctx context.Context) ([]models.ActiveReminder, error)
	SubscriptionDeleter
}

// SubscriptionDeleter removes push subscriptions by endpoint.
type SubscriptionDeleter interface {
	DeleteSubscription(ctx context.Context, endpoint string) (int64, error)
}

// SQLStore implements Store on the application database.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const activeRemindersQuery = `
	SELECT r.id, r.user_id, r.medicine_id, r.reminder_time, r.frequency,
		COALESCE(r.week_days, ''), r.day_interval,
		m.name, m.dosage, m.start_date, COALESCE(m.end_date, ''),
		ps.id, ps.endpoint, ps.p256dh, ps.auth
	FROM reminders r
	JOIN medicines m ON m.id = r.medicine_id
	JOIN push_subscriptions ps ON ps.user_id = r.user_id
	WHERE r.status = 'scheduled'
	ORDER BY r.id, ps.id
`

// ListActiveReminders returns one row per scheduled reminder and push
// subscription of its owner. Reminders of users without subscriptions are
// not returned.
func (s *SQLStore) ListActiveReminders(ctx context.Context) ([]models.ActiveReminder, error) {
	rows, err := s.db.QueryContext(ctx, activeRemindersQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ActiveReminder
	for rows.Next() {
		var a models.ActiveReminder
		var interval sql.NullInt64
		err := rows.Scan(
			&a.ReminderID, &a.UserID, &a.MedicineID, &a.ReminderTime, &a.Frequency,
			&a.WeekDays, &interval,
			&a.MedicineName, &a.Dosage, &a.StartDate, &a.EndDate,
			&a.Subscription.ID, &a.Subscription.Endpoint, &a.Subscription.P256dh, &a.Subscription.Auth,
		)
		if err != nil {
			return nil, err
		}
		if interval.Valid {
			a.DayInterval = int(interval.Int64)
		}
		a.Subscription.UserID = a.UserID
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteSubscription removes every subscription row registered for endpoint.
func (s *SQLStore) DeleteSubscription(ctx context.Context, endpoint string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListUserSubscriptions returns all push subscriptions of one user.
func (s *SQLStore) ListUserSubscriptions(ctx context.Context, userID int) ([]models.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, endpoint, p256dh, auth FROM push_subscriptions WHERE user_id = ? ORDER BY id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []models.PushSubscription{}
	for rows.Next() {
		var sub models.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

package reminders

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Lakshya1002/healthmate3-sub000/internal/models"
	"github.com/Lakshya1002/healthmate3-sub000/internal/push"
)

type fakeStore struct {
	mu      sync.Mutex
	rows    []models.ActiveReminder
	listErr   error
	deleteErr error
	lists     int
	deleted   []string
}

func (s *fakeStore) ListActiveReminders(ctx context.Context) ([]models.ActiveReminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]models.ActiveReminder(nil), s.rows...), nil
}

func (s *fakeStore) DeleteSubscription(ctx context.Context, endpoint string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, endpoint)
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	return 1, nil
}

func (s *fakeStore) deletedEndpoints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

type sent struct {
	endpoint string
	payload  string
}

type fakeTransport struct {
	mu       sync.Mutex
	failures map[string]error
	hang     map[string]chan struct{}
	panics   map[string]bool
	calls    []sent
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		failures: map[string]error{},
		hang:     map[string]chan struct{}{},
		panics:   map[string]bool{},
	}
}

func (t *fakeTransport) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	t.mu.Lock()
	release := t.hang[sub.Endpoint]
	err := t.failures[sub.Endpoint]
	shouldPanic := t.panics[sub.Endpoint]
	t.mu.Unlock()

	if release != nil {
		<-release
	}
	if shouldPanic {
		panic("transport exploded")
	}

	t.mu.Lock()
	t.calls = append(t.calls, sent{endpoint: sub.Endpoint, payload: string(payload)})
	t.mu.Unlock()
	return err
}

func (t *fakeTransport) sentTo() []sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sent(nil), t.calls...)
}

func statusErr(endpoint string, code int) error {
	return &push.DeliveryError{Endpoint: endpoint, StatusCode: code}
}

var errGone = statusErr("", http.StatusGone)

func row(reminderID, userID int, endpoint string) models.ActiveReminder {
	return models.ActiveReminder{
		ReminderID:   reminderID,
		UserID:       userID,
		MedicineID:   reminderID * 10,
		ReminderTime: "08:00",
		Frequency:    "daily",
		MedicineName: "Metformin",
		Dosage:       "2 pills",
		StartDate:    "2026-10-18",
		Subscription: models.PushSubscription{ID: reminderID*100 + userID, UserID: userID, Endpoint: endpoint},
	}
}

func localTime(date string, hour, minute int) time.Time {
	d, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		panic(err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.Local)
}

package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Lakshya1002/healthmate3-sub000/internal/api"
	"github.com/Lakshya1002/healthmate3-sub000/internal/auth"
	"github.com/Lakshya1002/healthmate3-sub000/internal/database"
	"github.com/Lakshya1002/healthmate3-sub000/internal/models"
	"github.com/Lakshya1002/healthmate3-sub000/internal/push"
	"github.com/Lakshya1002/healthmate3-sub000/internal/reminders"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	err := auth.Configure(auth.Settings{
		Secret:       "test-secret-that-is-at-least-32-characters-long",
		CookieSecure: false,
	})
	if err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// stubTransport records deliveries and answers 410 for endpoints in gone.
type stubTransport struct {
	mu   sync.Mutex
	gone map[string]bool
	sent []string
}

func (s *stubTransport) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sub.Endpoint)
	if s.gone[sub.Endpoint] {
		return &push.DeliveryError{Endpoint: sub.Endpoint, StatusCode: http.StatusGone}
	}
	return nil
}

func setupTestDB(t *testing.T) *sql.DB {
	db, err := database.Initialize(":memory:", "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestApp(db *sql.DB, cfg api.Config) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: api.ErrorHandler})
	api.SetupRoutes(app, db, cfg)
	return app
}

func pushConfig(db *sql.DB, transport reminders.Transport) api.Config {
	log := zap.NewNop()
	store := reminders.NewSQLStore(db)
	payload := reminders.DefaultPayloadConfig()
	return api.Config{
		VAPIDPublicKey: "test-public-key",
		Notifier:       reminders.NewDispatcher(transport, reminders.NewHygiene(store, log), payload, log),
		Payload:        payload,
		Log:            log,
	}
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	return resp, respBody
}

func register(t *testing.T, app *fiber.App, username string) string {
	t.Helper()
	resp, body := doJSON(t, app, "POST", "/api/auth/register", "", models.RegisterRequest{
		Username: username,
		Password: "password123",
	})
	if resp.StatusCode != 201 {
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, body)
	}
	var authResp models.AuthResponse
	json.Unmarshal(body, &authResp)
	return authResp.Token
}

func createMedicine(t *testing.T, app *fiber.App, token string, req models.CreateMedicineRequest) models.Medicine {
	t.Helper()
	resp, body := doJSON(t, app, "POST", "/api/medicines/", token, req)
	if resp.StatusCode != 201 {
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, body)
	}
	var m models.Medicine
	json.Unmarshal(body, &m)
	return m
}

func createReminder(t *testing.T, app *fiber.App, token string, req models.CreateReminderRequest) models.Reminder {
	t.Helper()
	resp, body := doJSON(t, app, "POST", "/api/reminders/", token, req)
	if resp.StatusCode != 201 {
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, body)
	}
	var r models.Reminder
	json.Unmarshal(body, &r)
	return r
}

func intPtr(n int) *int { return &n }

func TestRegisterAndLogin(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, api.Config{})

	token := register(t, app, "testuser")
	if token == "" {
		t.Fatal("Expected token in response")
	}

	// Duplicate username
	resp, _ := doJSON(t, app, "POST", "/api/auth/register", "", models.RegisterRequest{
		Username: "testuser",
		Password: "password123",
	})
	if resp.StatusCode != 409 {
		t.Fatalf("Expected status 409, got %d", resp.StatusCode)
	}

	resp, body := doJSON(t, app, "POST", "/api/auth/login", "", models.LoginRequest{
		Username: "testuser",
		Password: "password123",
	})
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var loginResp models.AuthResponse
	json.Unmarshal(body, &loginResp)
	if loginResp.Token == "" || loginResp.User.Username != "testuser" {
		t.Fatalf("Unexpected login response %s", body)
	}

	resp, _ = doJSON(t, app, "POST", "/api/auth/login", "", models.LoginRequest{
		Username: "testuser",
		Password: "wrong-password",
	})
	if resp.StatusCode != 401 {
		t.Fatalf("Expected status 401, got %d", resp.StatusCode)
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, api.Config{})
	register(t, app, "rotator")

	resp, _ := doJSON(t, app, "POST", "/api/auth/login", "", models.LoginRequest{
		Username: "rotator",
		Password: "password123",
	})
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "refresh_token" {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatal("Expected refresh_token cookie")
	}

	refresh := func(value string) *http.Response {
		req := httptest.NewRequest("POST", "/api/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: value})
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	// Tokens issued within the same second are identical, so wait for a new iat.
	time.Sleep(1100 * time.Millisecond)

	resp = refresh(cookie.Value)
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	// The old token was revoked by rotation.
	resp = refresh(cookie.Value)
	if resp.StatusCode != 401 {
		t.Fatalf("Expected rotated token to be rejected, got %d", resp.StatusCode)
	}
}

func TestRegistrationDisabled(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, api.Config{DisableRegistration: true})

	resp, _ := doJSON(t, app, "POST", "/api/auth/register", "", models.RegisterRequest{
		Username: "testuser",
		Password: "password123",
	})
	if resp.StatusCode == 201 {
		t.Fatal("Expected registration to be unavailable")
	}

	resp, body := doJSON(t, app, "GET", "/api/config", "", nil)
	if resp.StatusCode != 200 || !strings.Contains(string(body), `"disableRegistration":true`) {
		t.Fatalf("Unexpected config response %d: %s", resp.StatusCode, body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, api.Config{})

	resp, _ := doJSON(t, app, "GET", "/api/medicines/", "", nil)
	if resp.StatusCode != 401 {
		t.Fatalf("Expected status 401, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, app, "GET", "/api/medicines/", "not-a-jwt", nil)
	if resp.StatusCode != 401 {
		t.Fatalf("Expected status 401, got %d", resp.StatusCode)
	}
}

func TestMedicineCRUD(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, api.Config{})
	token := register(t, app, "testuser")

	resp, _ := doJSON(t, app, "POST", "/api/medicines/", token, models.CreateMedicineRequest{
		Name:      "Metformin",
		StartDate: "18/10/2026",
	})
	if resp.StatusCode != 400 {
		t.Fatalf("Expected status 400 for bad date, got %d", resp.StatusCode)
	}

	end := "2026-10-01"
	resp, _ = doJSON(t, app, "POST", "/api/medicines/", token, models.CreateMedicineRequest{
		Name:      "Metformin",
		StartDate: "2026-10-18",
		EndDate:   &end,
	})
	if resp.StatusCode != 400 {
		t.Fatalf("Expected status 400 for end before start, got %d", resp.StatusCode)
	}

	m := createMedicine(t, app, token, models.CreateMedicineRequest{
		Name:              "Metformin",
		Dosage:            "2 pills",
		StartDate:         "2026-10-18",
		RemainingQuantity: intPtr(30),
	})
	if m.Name != "Metformin" || m.RemainingQuantity == nil || *m.RemainingQuantity != 30 || m.EndDate != nil {
		t.Fatalf("Unexpected medicine %+v", m)
	}

	createMedicine(t, app, token, models.CreateMedicineRequest{Name: "Aspirin", StartDate: "2026-10-18"})

	resp, body := doJSON(t, app, "GET", "/api/medicines/", token, nil)
	var list []models.Medicine
	json.Unmarshal(body, &list)
	if resp.StatusCode != 200 || len(list) != 2 {
		t.Fatalf("Expected 2 medicines, got %d: %s", len(list), body)
	}

	end = "2026-12-31"
	resp, body = doJSON(t, app, "PUT", fmt.Sprintf("/api/medicines/%d", m.ID), token, models.CreateMedicineRequest{
		Name:      "Metformin XR",
		Dosage:    "1 pill",
		StartDate: "2026-10-18",
		EndDate:   &end,
	})
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body)
	}
	var updated models.Medicine
	json.Unmarshal(body, &updated)
	if updated.Name != "Metformin XR" || updated.EndDate == nil || *updated.EndDate != end {
		t.Fatalf("Unexpected updated medicine %+v", updated)
	}

	// Another user can neither see nor change it.
	other := register(t, app, "intruder")
	resp, _ = doJSON(t, app, "GET", fmt.Sprintf("/api/medicines/%d", m.ID), other, nil)
	if resp.StatusCode != 404 {
		t.Fatalf("Expected status 404 for foreign medicine, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, app, "PUT", fmt.Sprintf("/api/medicines/%d", m.ID), other, models.CreateMedicineRequest{Name: "x"})
	if resp.StatusCode != 403 {
		t.Fatalf("Expected status 403 for foreign update, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, app, "DELETE", fmt.Sprintf("/api/medicines/%d", m.ID), token, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, app, "GET", fmt.Sprintf("/api/medicines/%d", m.ID), token, nil)
	if resp.StatusCode != 404 {
		t.Fatalf("Expected status 404 after delete, got %d", resp.StatusCode)
	}
}

func TestCreateReminderValidation(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, api.Config{})
	token := register(t, app, "testuser")
	m := createMedicine(t, app, token, models.CreateMedicineRequest{Name: "Vitamin D", StartDate: "2026-10-18"})

	bad := []models.CreateReminderRequest{
		{MedicineID: m.ID, ReminderTime: "25:00"},
		{MedicineID: m.ID, ReminderTime: "08:00", Frequency: "hourly"},
		{MedicineID: m.ID, ReminderTime: "08:00", Frequency: "weekly"},
		{MedicineID: m.ID, ReminderTime: "08:00", Frequency: "weekly", WeekDays: "Funday"},
		{MedicineID: m.ID, ReminderTime: "08:00", Frequency: "weekly", WeekDays: "Monday,Funday"},
		{MedicineID: m.ID, ReminderTime: "08:00", Frequency: "interval", DayInterval: intPtr(0)},
	}
	for _, req := range bad {
		resp, body := doJSON(t, app, "POST", "/api/reminders/", token, req)
		if resp.StatusCode != 400 {
			t.Errorf("Expected status 400 for %+v, got %d: %s", req, resp.StatusCode, body)
		}
	}

	other := register(t, app, "intruder")
	resp, _ := doJSON(t, app, "POST", "/api/reminders/", other, models.CreateReminderRequest{MedicineID: m.ID, ReminderTime: "08:00"})
	if resp.StatusCode != 403 {
		t.Fatalf("Expected status 403, got %d", resp.StatusCode)
	}

	weekly := createReminder(t, app, token, models.CreateReminderRequest{
		MedicineID:   m.ID,
		ReminderTime: "8:05",
		Frequency:    "Weekly",
		WeekDays:     "wednesday, monday",
	})
	if weekly.ReminderTime != "08:05" || weekly.Frequency != "weekly" || weekly.WeekDays != "Wednesday,Monday" {
		t.Fatalf("Expected canonical reminder, got %+v", weekly)
	}
	if weekly.Status != models.StatusScheduled || weekly.MedicineName != "Vitamin D" {
		t.Fatalf("Unexpected reminder %+v", weekly)
	}

	daily := createReminder(t, app, token, models.CreateReminderRequest{MedicineID: m.ID, ReminderTime: "20:00"})
	if daily.Frequency != "daily" || daily.DayInterval != nil {
		t.Fatalf("Expected daily default, got %+v", daily)
	}

	resp, body := doJSON(t, app, "GET", "/api/reminders/", token, nil)
	var list []models.Reminder
	json.Unmarshal(body, &list)
	if resp.StatusCode != 200 || len(list) != 2 || list[0].ID != weekly.ID {
		t.Fatalf("Expected reminders ordered by time, got %s", body)
	}
}

func TestReminderStatusRecordsDoseAndInventory(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, api.Config{})
	token := register(t, app, "testuser")

	m := createMedicine(t, app, token, models.CreateMedicineRequest{
		Name:              "Metformin",
		Dosage:            "2 pills",
		StartDate:         "2026-10-18",
		RemainingQuantity: intPtr(3),
	})
	r := createReminder(t, app, token, models.CreateReminderRequest{MedicineID: m.ID, ReminderTime: "08:00"})

	setStatus := func(status string) int {
		resp, _ := doJSON(t, app, "PUT", fmt.Sprintf("/api/reminders/%d/status", r.ID), token,
			models.UpdateReminderStatusRequest{Status: status})
		return resp.StatusCode
	}
	remaining := func() int {
		var n int
		if err := db.QueryRow("SELECT remaining_quantity FROM medicines WHERE id = ?", m.ID).Scan(&n); err != nil {
			t.Fatal(err)
		}
		return n
	}

	if code := setStatus("postponed"); code != 400 {
		t.Fatalf("Expected status 400 for unknown status, got %d", code)
	}

	if code := setStatus(models.StatusTaken); code != 200 {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if n := remaining(); n != 1 {
		t.Fatalf("Expected 1 remaining after taking 2, got %d", n)
	}

	if code := setStatus(models.StatusSkipped); code != 200 {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if n := remaining(); n != 1 {
		t.Fatalf("Expected skipped dose to leave inventory alone, got %d", n)
	}

	if code := setStatus(models.StatusTaken); code != 200 {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if n := remaining(); n != 0 {
		t.Fatalf("Expected inventory to floor at 0, got %d", n)
	}

	if code := setStatus(models.StatusScheduled); code != 200 {
		t.Fatalf("Expected status 200, got %d", code)
	}

	resp, body := doJSON(t, app, "GET", fmt.Sprintf("/api/doses?medicine_id=%d", m.ID), token, nil)
	var doses []models.DoseHistory
	json.Unmarshal(body, &doses)
	if resp.StatusCode != 200 || len(doses) != 3 {
		t.Fatalf("Expected 3 dose history entries, got %s", body)
	}
	for _, d := range doses {
		if d.ReminderID == nil || *d.ReminderID != r.ID || d.MedicineName != "Metformin" {
			t.Fatalf("Unexpected dose entry %+v", d)
		}
	}

	var status string
	db.QueryRow("SELECT status FROM reminders WHERE id = ?", r.ID).Scan(&status)
	if status != models.StatusScheduled {
		t.Fatalf("Expected reminder re-armed, got %s", status)
	}

	other := register(t, app, "intruder")
	resp, _ = doJSON(t, app, "PUT", fmt.Sprintf("/api/reminders/%d/status", r.ID), other,
		models.UpdateReminderStatusRequest{Status: models.StatusTaken})
	if resp.StatusCode != 403 {
		t.Fatalf("Expected status 403, got %d", resp.StatusCode)
	}
}

func TestSubscribeUpsertAndUnsubscribe(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, api.Config{})
	token := register(t, app, "testuser")

	nested := map[string]any{
		"endpoint": "https://push.test/device",
		"keys":     map[string]string{"p256dh": "key-1", "auth": "auth-1"},
	}
	resp, body := doJSON(t, app, "POST", "/api/push/subscribe", token, nested)
	if resp.StatusCode != 201 {
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, body)
	}

	flat := models.SubscribeRequest{Endpoint: "https://push.test/device", P256dh: "key-2", Auth: "auth-2"}
	resp, _ = doJSON(t, app, "POST", "/api/push/subscribe", token, flat)
	if resp.StatusCode != 201 {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}

	var count int
	var p256dh string
	db.QueryRow("SELECT COUNT(*), MAX(p256dh) FROM push_subscriptions").Scan(&count, &p256dh)
	if count != 1 || p256dh != "key-2" {
		t.Fatalf("Expected one upserted subscription, got %d rows with key %q", count, p256dh)
	}

	resp, _ = doJSON(t, app, "POST", "/api/push/subscribe", token, map[string]string{"endpoint": "https://push.test/x"})
	if resp.StatusCode != 400 {
		t.Fatalf("Expected status 400 for missing keys, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, app, "DELETE", "/api/push/unsubscribe", token, map[string]string{"endpoint": "https://push.test/device"})
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	db.QueryRow("SELECT COUNT(*) FROM push_subscriptions").Scan(&count)
	if count != 0 {
		t.Fatalf("Expected subscription to be removed, %d remain", count)
	}
}

func TestPushNotConfigured(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, api.Config{})
	token := register(t, app, "testuser")

	resp, _ := doJSON(t, app, "GET", "/api/push/vapid-public-key", "", nil)
	if resp.StatusCode != 503 {
		t.Fatalf("Expected status 503, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, app, "POST", "/api/push/test", token, nil)
	if resp.StatusCode != 503 {
		t.Fatalf("Expected status 503, got %d", resp.StatusCode)
	}
}

func TestSendTestNotificationPrunesGoneDevices(t *testing.T) {
	db := setupTestDB(t)
	transport := &stubTransport{gone: map[string]bool{"https://push.test/old": true}}
	app := setupTestApp(db, pushConfig(db, transport))
	token := register(t, app, "testuser")

	resp, body := doJSON(t, app, "GET", "/api/push/vapid-public-key", "", nil)
	if resp.StatusCode != 200 || !strings.Contains(string(body), "test-public-key") {
		t.Fatalf("Unexpected key response %d: %s", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, app, "POST", "/api/push/test", token, nil)
	if resp.StatusCode != 404 {
		t.Fatalf("Expected status 404 without subscriptions, got %d", resp.StatusCode)
	}

	for _, ep := range []string{"https://push.test/old", "https://push.test/new"} {
		resp, _ := doJSON(t, app, "POST", "/api/push/subscribe", token, models.SubscribeRequest{Endpoint: ep, P256dh: "k", Auth: "a"})
		if resp.StatusCode != 201 {
			t.Fatalf("Expected status 201, got %d", resp.StatusCode)
		}
	}

	resp, body = doJSON(t, app, "POST", "/api/push/test", token, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body)
	}
	var summary map[string]int
	json.Unmarshal(body, &summary)
	if summary["attempted"] != 2 || summary["delivered"] != 1 || summary["removed"] != 1 {
		t.Fatalf("Unexpected summary %v", summary)
	}

	var endpoint string
	if err := db.QueryRow("SELECT endpoint FROM push_subscriptions").Scan(&endpoint); err != nil {
		t.Fatal(err)
	}
	if endpoint != "https://push.test/new" {
		t.Fatalf("Expected only the live device to remain, got %s", endpoint)
	}
}

func TestUserProfileAndEmail(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, pushConfig(db, &stubTransport{}))
	token := register(t, app, "testuser")

	getProfile := func() api.UserProfile {
		t.Helper()
		resp, body := doJSON(t, app, "GET", "/api/user/profile", token, nil)
		if resp.StatusCode != 200 {
			t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body)
		}
		var p api.UserProfile
		if err := json.Unmarshal(body, &p); err != nil {
			t.Fatal(err)
		}
		return p
	}

	p := getProfile()
	if p.Username != "testuser" || p.Email != nil {
		t.Fatalf("Unexpected profile %+v", p)
	}
	if !p.Push.Enabled || p.Push.Subscriptions != 0 {
		t.Fatalf("Expected push enabled with no subscriptions, got %+v", p.Push)
	}

	resp, _ := doJSON(t, app, "PUT", "/api/user/email", token, map[string]string{"email": "not-an-address"})
	if resp.StatusCode != 400 {
		t.Fatalf("Expected status 400, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, app, "PUT", "/api/user/email", token, map[string]string{"email": " me@example.test "})
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	m := createMedicine(t, app, token, models.CreateMedicineRequest{Name: "Vitamin D", StartDate: "2026-10-18"})
	createReminder(t, app, token, models.CreateReminderRequest{MedicineID: m.ID, ReminderTime: "08:00"})
	resp, _ = doJSON(t, app, "POST", "/api/push/subscribe", token,
		models.SubscribeRequest{Endpoint: "https://push.test/phone", P256dh: "k", Auth: "a"})
	if resp.StatusCode != 201 {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}

	p = getProfile()
	if p.Email == nil || *p.Email != "me@example.test" {
		t.Fatalf("Expected trimmed email, got %v", p.Email)
	}
	if p.Medicines != 1 || p.Reminders != 1 || p.Push.Subscriptions != 1 {
		t.Fatalf("Unexpected counts %+v", p)
	}

	resp, _ = doJSON(t, app, "PUT", "/api/user/email", token, map[string]string{"email": ""})
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if p = getProfile(); p.Email != nil {
		t.Fatalf("Expected email to be cleared, got %q", *p.Email)
	}
}

func TestUserProfileReportsPushDisabled(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, api.Config{})
	token := register(t, app, "testuser")

	resp, body := doJSON(t, app, "GET", "/api/user/profile", token, nil)
	var p api.UserProfile
	json.Unmarshal(body, &p)
	if resp.StatusCode != 200 || p.Push.Enabled {
		t.Fatalf("Expected push disabled, got %d: %s", resp.StatusCode, body)
	}
}

func TestUserHandlersLogDatabaseFailures(t *testing.T) {
	db := setupTestDB(t)
	core, logs := observer.New(zap.ErrorLevel)
	app := setupTestApp(db, api.Config{Log: zap.New(core)})
	token := register(t, app, "testuser")

	db.Close()

	resp, _ := doJSON(t, app, "GET", "/api/user/profile", token, nil)
	if resp.StatusCode != 500 {
		t.Fatalf("Expected status 500, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, app, "PUT", "/api/user/email", token, map[string]string{"email": "me@example.test"})
	if resp.StatusCode != 500 {
		t.Fatalf("Expected status 500, got %d", resp.StatusCode)
	}

	if n := logs.FilterMessage("failed to load user profile").Len(); n != 1 {
		t.Errorf("Expected one profile failure log, got %d", n)
	}
	if n := logs.FilterMessage("failed to update email").Len(); n != 1 {
		t.Errorf("Expected one email failure log, got %d", n)
	}
}

func TestValidateRefreshTokenInDB(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.Exec("INSERT INTO users (id, username, password_hash) VALUES (1, 'u', 'x')"); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if err := api.StoreRefreshToken(db, 1, "tok", now.Add(time.Hour), 7); err != nil {
		t.Fatal(err)
	}

	userID, ttl, err := api.ValidateRefreshTokenInDB(db, "tok", now)
	if err != nil || userID != 1 || ttl != 7 {
		t.Fatalf("Expected user 1 with ttl 7, got %d %d %v", userID, ttl, err)
	}
	if _, _, err := api.ValidateRefreshTokenInDB(db, "tok", now.Add(2*time.Hour)); !errors.Is(err, api.ErrRefreshTokenExpired) {
		t.Errorf("Expected ErrRefreshTokenExpired, got %v", err)
	}
	if _, _, err := api.ValidateRefreshTokenInDB(db, "missing", now); !errors.Is(err, api.ErrRefreshTokenNotFound) {
		t.Errorf("Expected ErrRefreshTokenNotFound, got %v", err)
	}

	if err := api.RevokeRefreshToken(db, "tok"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := api.ValidateRefreshTokenInDB(db, "tok", now); !errors.Is(err, api.ErrRefreshTokenRevoked) {
		t.Errorf("Expected ErrRefreshTokenRevoked, got %v", err)
	}

	// Storing the same token again re-arms it.
	if err := api.StoreRefreshToken(db, 1, "tok", now.Add(time.Hour), 30); err != nil {
		t.Fatal(err)
	}
	if _, ttl, err := api.ValidateRefreshTokenInDB(db, "tok", now); err != nil || ttl != 30 {
		t.Errorf("Expected re-armed token with ttl 30, got %d %v", ttl, err)
	}
}

func TestPruneRefreshTokens(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.Exec("INSERT INTO users (id, username, password_hash) VALUES (1, 'u', 'x')"); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	if err := api.StoreRefreshToken(db, 1, "expired", now.Add(-time.Hour), 7); err != nil {
		t.Fatal(err)
	}
	if err := api.StoreRefreshToken(db, 1, "revoked", now.Add(time.Hour), 7); err != nil {
		t.Fatal(err)
	}
	if err := api.RevokeRefreshToken(db, "revoked"); err != nil {
		t.Fatal(err)
	}
	if err := api.StoreRefreshToken(db, 1, "live", now.Add(time.Hour), 7); err != nil {
		t.Fatal(err)
	}

	n, err := api.PruneRefreshTokens(context.Background(), db, now, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 pruned tokens, got %d", n)
	}
	if _, _, err := api.ValidateRefreshTokenInDB(db, "live", now); err != nil {
		t.Fatalf("Expected live token to survive: %v", err)
	}

	n, err = api.PruneRefreshTokens(context.Background(), db, now, zap.NewNop())
	if err != nil || n != 0 {
		t.Fatalf("Expected nothing left to prune, got n=%d err=%v", n, err)
	}
}

func TestHealth(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db, api.Config{})

	resp, body := doJSON(t, app, "GET", "/health", "", nil)
	if resp.StatusCode != 200 || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("Unexpected health response %d: %s", resp.StatusCode, body)
	}
}

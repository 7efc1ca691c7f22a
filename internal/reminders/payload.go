package reminders

import "fmt"

// Payload is the JSON document the service worker renders as a notification.
// Field names and order are part of the browser contract.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	Badge string `json:"badge"`
	URL   string `json:"url"`
}

// PayloadConfig holds the static parts of every notification.
type PayloadConfig struct {
	Icon  string
	Badge string
	URL   string
}

func DefaultPayloadConfig() PayloadConfig {
	return PayloadConfig{
		Icon:  "/icons/icon-192x192.png",
		Badge: "/icons/badge-72x72.png",
		URL:   "/reminders",
	}
}

// ForCandidate builds the due-dose notification for c.
func (p PayloadConfig) ForCandidate(c DueCandidate) Payload {
	return Payload{
		Title: fmt.Sprintf("Time for your %s!", c.MedicineName),
		Body:  fmt.Sprintf("It's time to take your %s dose.", c.Dosage),
		Icon:  p.Icon,
		Badge: p.Badge,
		URL:   p.URL,
	}
}

// TestNotification is sent when a user checks their push setup.
func (p PayloadConfig) TestNotification() Payload {
	return Payload{
		Title: "HealthMate test notification",
		Body:  "Push notifications are working on this device.",
		Icon:  p.Icon,
		Badge: p.Badge,
		URL:   p.URL,
	}
}

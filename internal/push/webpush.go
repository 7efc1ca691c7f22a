// Package push delivers Web Push messages to browser subscriptions using VAPID.
package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/Lakshya1002/healthmate3-sub000/internal/models"
)

var ErrNotConfigured = errors.New("web push not configured")

// Config holds the VAPID identity and delivery limits.
type Config struct {
	Subscriber      string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	TTL             int
	Timeout         time.Duration
}

// Client sends encrypted push messages. The zero HTTP timeout falls back to
// ten seconds so a hung push service cannot hold a delivery forever.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured checks if VAPID keys are configured
func (c *Client) Configured() bool {
	return c.cfg.VAPIDPublicKey != "" && c.cfg.VAPIDPrivateKey != "" && c.cfg.Subscriber != ""
}

func (c *Client) PublicKey() string {
	return c.cfg.VAPIDPublicKey
}

func (c *Client) options() *webpush.Options {
	return &webpush.Options{
		HTTPClient:      c.httpClient,
		Subscriber:      c.cfg.Subscriber,
		VAPIDPublicKey:  c.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: c.cfg.VAPIDPrivateKey,
		TTL:             c.cfg.TTL,
		Urgency:         webpush.UrgencyHigh,
	}
}

// Send encrypts payload for sub and posts it to the subscription endpoint.
// Any non-2xx answer from the push service is returned as *DeliveryError.
func (c *Client) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	subscription := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, subscription, c.options())
	if err != nil {
		return &DeliveryError{Endpoint: sub.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &DeliveryError{
		Endpoint:   sub.Endpoint,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}

// DeliveryError describes a failed push. StatusCode is zero when the push
// service was never reached.
type DeliveryError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("push to %s failed: %v", ShortEndpoint(e.Endpoint), e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("push to %s rejected with status %d: %s", ShortEndpoint(e.Endpoint), e.StatusCode, e.Body)
	}
	return fmt.Sprintf("push to %s rejected with status %d", ShortEndpoint(e.Endpoint), e.StatusCode)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether the push service said the subscription will
// never accept another message (404 Not Found or 410 Gone).
func IsPermanent(err error) bool {
	var de *DeliveryError
	if !errors.As(err, &de) {
		return false
	}
	return de.StatusCode == http.StatusGone || de.StatusCode == http.StatusNotFound
}

// StatusCode returns the push service status carried by err, or zero.
func StatusCode(err error) int {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.StatusCode
	}
	return 0
}

// ShortEndpoint trims an endpoint URL for log lines.
func ShortEndpoint(endpoint string) string {
	if len(endpoint) <= 50 {
		return endpoint
	}
	return endpoint[:50] + "..."
}

// GenerateKeys creates a new VAPID key pair.
func GenerateKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	return publicKey, privateKey, err
}

// Package relay forwards newly created bookings to the automation platform
// webhook (a Make.com scenario) that fans them out to the operators' sheets
// and messaging tools. Delivery is best-effort: the booking is already
// committed when the relay runs, and a failed delivery is logged only.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/luvia-backend/internal/domain"
	"github.com/tbourn/luvia-backend/internal/notify"
)

const (
	StatusNewRequest     = "New Request"
	StatusPendingPayment = "Pending Payment"
)

// BookingEvent is the JSON document posted to the webhook.
type BookingEvent struct {
	BookingCode    string `json:"bookingCode"`
	CustomerName   string `json:"customerName"`
	CustomerPhone  string `json:"customerPhone"`
	ServiceName    string `json:"serviceName"`
	ServiceID      string `json:"serviceId"`
	PackageName    string `json:"packageName"`
	TotalPrice     int64  `json:"totalPrice"`
	FormattedPrice string `json:"formattedPrice"`
	Note           string `json:"note"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt"`
}

// EventFromBooking builds the webhook payload for b. Free requests are
// reported as "New Request", priced ones as "Pending Payment".
func EventFromBooking(b domain.Booking) BookingEvent {
	status := StatusPendingPayment
	formatted := notify.FormatVND(b.Amount)
	if b.Amount == 0 {
		status = StatusNewRequest
		formatted = strings.TrimSpace(b.PackagePrice)
	}
	return BookingEvent{
		BookingCode:    b.BookingCode,
		CustomerName:   b.CustomerName,
		CustomerPhone:  b.CustomerPhone,
		ServiceName:    b.ServiceName,
		ServiceID:      b.ServiceID,
		PackageName:    b.PackageName,
		TotalPrice:     b.Amount,
		FormattedPrice: formatted,
		Note:           b.Note,
		Status:         status,
		CreatedAt:      b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Config configures the webhook client.
type Config struct {
	URL        string
	Timeout    time.Duration // per attempt
	MaxTries   uint
	BaseDelay  time.Duration
	HTTPClient *http.Client
}

// Client posts booking events. A Client with an empty URL is disabled and
// Send returns nil without doing anything.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a Client with defaults applied.
func New(cfg Config) *Client {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{cfg: cfg, http: hc}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool { return c != nil && c.cfg.URL != "" }

// Send posts ev, retrying 5xx and transport failures.
func (c *Client) Send(ctx context.Context, ev BookingEvent) error {
	if !c.Enabled() {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BaseDelay
	b.MaxInterval = 10 * c.cfg.BaseDelay

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.post(ctx, body)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.cfg.MaxTries))

	result := "ok"
	if err != nil {
		result = "failed"
	}
	deliveries.WithLabelValues(result).Inc()
	return err
}

func (c *Client) post(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("relay: http %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("relay: http %d", resp.StatusCode))
	}
}

// Dispatch sends the event for b in the background, detached from the
// caller's cancellation but bounded by timeout. Failures are logged.
func (c *Client) Dispatch(ctx context.Context, b domain.Booking, timeout time.Duration) {
	if !c.Enabled() {
		return
	}
	ev := EventFromBooking(b)
	bg := context.WithoutCancel(ctx)
	go func() {
		sctx, cancel := context.WithTimeout(bg, timeout)
		defer cancel()
		if err := c.Send(sctx, ev); err != nil {
			log.Error().Err(err).Str("booking_code", ev.BookingCode).Msg("booking webhook delivery failed")
		}
	}()
}

var deliveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "booking_webhook_deliveries_total",
		Help: "Total number of booking webhook deliveries by result.",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(deliveries)
}

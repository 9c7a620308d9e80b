// Package notify delivers operator-facing messages. The production channel is
// a Telegram group; when its credentials are absent a no-op notifier is used
// so a missing bot token never breaks the booking flow.
package notify

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Notifier sends a pre-formatted message to operators.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, text string) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, text string) error { return f(ctx, text) }

// Nop drops messages after logging that nothing was sent.
type Nop struct{}

// Notify logs a warning and returns nil.
func (Nop) Notify(_ context.Context, _ string) error {
	log.Warn().Msg("notification credentials missing; skipping notification")
	sent.WithLabelValues("skipped").Inc()
	return nil
}

// sent counts notification attempts by result (ok|failed|skipped).
var sent = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of operator notifications by result.",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(sent)
}

// Package services – ReconcileService
//
// ReconcileService answers "has booking <code> been paid?" by asking the
// external ledger and, when the ledger says paid, moves the matching local
// bookings to "paid" and tells the operators.
//
// Concurrency: concurrent checks for the same code are collapsed with
// singleflight, and the transition itself is a conditional update
// (repo.MarkBookingPaid) whose affected-row count decides who notifies. Either
// guard alone keeps the transition to one write and one notification; the
// conditional update is what holds across processes.
//
// Ordering: the paid write commits before the notification is attempted. A
// notification failure is logged and leaves notified_at NULL; it never undoes
// the write and never reaches the caller.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/tbourn/luvia-backend/internal/domain"
	"github.com/tbourn/luvia-backend/internal/ledger"
	"github.com/tbourn/luvia-backend/internal/notify"
	"github.com/tbourn/luvia-backend/internal/repo"
)

// Ledger looks a booking code up in the external payment ledger.
type Ledger interface {
	Lookup(ctx context.Context, code string) ledger.Result
}

// CheckResult is the outcome of one reconciliation check.
type CheckResult struct {
	Code    string
	Outcome ledger.Outcome
	// Status is the raw ledger status when a record was found.
	Status string
	IsPaid bool
	// Transitioned counts local bookings this call moved to paid.
	Transitioned int
}

// ConfigurationMissing reports whether the ledger is not configured.
func (r CheckResult) ConfigurationMissing() bool {
	return r.Outcome == ledger.OutcomeConfigMissing
}

// ReconcileService drives the paid transition.
type ReconcileService struct {
	DB            *gorm.DB
	Ledger        Ledger
	Notifier      notify.Notifier
	NotifyTimeout time.Duration
	Now           func() time.Time

	group singleflight.Group
}

// NewReconcileService wires a ReconcileService. A nil notifier becomes notify.Nop.
func NewReconcileService(db *gorm.DB, l Ledger, n notify.Notifier) *ReconcileService {
	if n == nil {
		n = notify.Nop{}
	}
	return &ReconcileService{
		DB:            db,
		Ledger:        l,
		Notifier:      n,
		NotifyTimeout: 15 * time.Second,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// Check looks code up and applies the paid transition when the ledger
// reports it paid. Transient ledger failures return ErrLedgerUnavailable;
// configuration-missing and not-found are ordinary results.
func (s *ReconcileService) Check(ctx context.Context, code string) (CheckResult, error) {
	code = NormalizeCode(code)
	if code == "" {
		return CheckResult{}, ErrEmptyCode
	}

	// The shared call must not die with whichever caller happened to start it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(strings.ToLower(code), func() (any, error) {
		return s.check(shared, code)
	})
	res, _ := v.(CheckResult)
	res.Code = code
	return res, err
}

func (s *ReconcileService) check(ctx context.Context, code string) (CheckResult, error) {
	tr := otel.Tracer("services/ReconcileService")
	ctx, span := tr.Start(ctx, "Check", trace.WithAttributes(attribute.String("booking.code", code)))
	defer span.End()

	lr := s.Ledger.Lookup(ctx, code)
	checks.WithLabelValues(string(lr.Outcome)).Inc()
	out := CheckResult{Code: code, Outcome: lr.Outcome, Status: lr.Status}
	span.SetAttributes(attribute.String("ledger.outcome", string(lr.Outcome)))

	switch lr.Outcome {
	case ledger.OutcomeError:
		return out, fmt.Errorf("%w: %v", ErrLedgerUnavailable, lr.Err)
	case ledger.OutcomeFoundPaid:
		out.IsPaid = true
		n, err := s.markPaid(ctx, code)
		out.Transitioned = n
		if err != nil {
			span.RecordError(err)
			return out, err
		}
	}
	return out, nil
}

// markPaid transitions every unpaid local booking carrying code.
func (s *ReconcileService) markPaid(ctx context.Context, code string) (int, error) {
	rows, err := repo.FindUnpaidByCode(ctx, s.DB, code)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range rows {
		b := rows[i]
		now := s.Now()
		won, err := repo.MarkBookingPaid(ctx, s.DB, b.ID, now)
		if err != nil {
			return n, err
		}
		if !won {
			continue
		}
		n++
		transitions.Inc()
		b.Status = domain.StatusPaid
		b.PaidAt = &now
		log.Info().Uint("booking_id", b.ID).Str("booking_code", b.BookingCode).Int64("amount", b.Amount).Msg("booking marked paid")
		s.notifyPaid(ctx, b)
	}
	return n, nil
}

// notifyPaid sends the operator message for b and stamps notified_at on
// success. Failures are logged only.
func (s *ReconcileService) notifyPaid(ctx context.Context, b domain.Booking) {
	nctx := context.WithoutCancel(ctx)
	if s.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(nctx, s.NotifyTimeout)
		defer cancel()
	}

	if err := s.Notifier.Notify(nctx, notify.PaymentMessage(b)); err != nil {
		log.Error().Err(err).Uint("booking_id", b.ID).Str("booking_code", b.BookingCode).Msg("paid notification failed")
		return
	}
	// Nop reports success without sending; leave notified_at empty then.
	if _, skipped := s.Notifier.(notify.Nop); skipped {
		return
	}
	if err := repo.MarkNotified(nctx, s.DB, b.ID, s.Now()); err != nil && !errors.Is(err, repo.ErrNotFound) {
		log.Error().Err(err).Uint("booking_id", b.ID).Msg("stamp notified_at failed")
	}
}

// Package services – SweepJob
//
// SweepJob re-checks recent unpaid bookings through ReconcileService so a
// payment still clears when the customer closed the payment view before the
// ledger caught up. It carries the same idempotence as GET /check-booking
// because it goes through the same conditional transition.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/luvia-backend/internal/repo"
)

// Checker is the part of ReconcileService the sweep needs.
type Checker interface {
	Check(ctx context.Context, code string) (CheckResult, error)
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Checked      int
	Paid         int
	Transitioned int
	Failed       int
	// Aborted is set when the ledger turned out to be unconfigured.
	Aborted bool
}

// SweepJob scans unpaid bookings created within Window, at most Batch per run.
// Every booking a run looks at is stamped, so later runs reach the rest.
type SweepJob struct {
	DB      *gorm.DB
	Checker Checker
	Window  time.Duration
	Batch   int
	Now     func() time.Time
}

// Run performs one sweep. Each distinct code is checked once.
func (j *SweepJob) Run(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	now := time.Now().UTC()
	if j.Now != nil {
		now = j.Now()
	}
	window := j.Window
	if window <= 0 {
		window = 24 * time.Hour
	}
	batch := j.Batch
	if batch <= 0 {
		batch = 20
	}

	rows, err := repo.ListSweepCandidates(ctx, j.DB, now.Add(-window), batch)
	if err != nil {
		return rep, err
	}
	seen := make(map[string]struct{}, len(rows))
	swept := make([]uint, 0, len(rows))
	defer func() {
		if err := repo.MarkSwept(context.WithoutCancel(ctx), j.DB, swept, now); err != nil {
			log.Error().Err(err).Int("bookings", len(swept)).Msg("stamp swept_at failed")
		}
	}()
	for _, b := range rows {
		key := strings.ToLower(strings.TrimSpace(b.BookingCode))
		if key == "" {
			swept = append(swept, b.ID)
			continue
		}
		if _, dup := seen[key]; dup {
			swept = append(swept, b.ID)
			continue
		}
		seen[key] = struct{}{}

		if err := ctx.Err(); err != nil {
			return rep, err
		}
		swept = append(swept, b.ID)
		res, err := j.Checker.Check(ctx, b.BookingCode)
		rep.Checked++
		if err != nil {
			rep.Failed++
			if !errors.Is(err, ErrLedgerUnavailable) {
				log.Error().Err(err).Str("booking_code", b.BookingCode).Msg("sweep check failed")
			}
			continue
		}
		if res.ConfigurationMissing() {
			rep.Aborted = true
			break
		}
		if res.IsPaid {
			rep.Paid++
		}
		rep.Transitioned += res.Transitioned
	}
	return rep, nil
}

// Schedule registers the sweep on c under spec (standard five-field cron or
// descriptors like "@every 5m"). Each run is bounded by timeout.
func (j *SweepJob) Schedule(c *cron.Cron, spec string, timeout time.Duration) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		rep, err := j.Run(ctx)
		if err != nil {
			sweepRuns.WithLabelValues("failed").Inc()
			log.Error().Err(err).Msg("reconcile sweep failed")
			return
		}
		result := "ok"
		if rep.Aborted {
			result = "aborted"
		}
		sweepRuns.WithLabelValues(result).Inc()
		log.Info().
			Int("checked", rep.Checked).
			Int("paid", rep.Paid).
			Int("transitioned", rep.Transitioned).
			Int("failed", rep.Failed).
			Bool("aborted", rep.Aborted).
			Msg("reconcile sweep done")
	})
}

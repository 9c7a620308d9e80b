// Command paywatch waits for one booking to be paid by polling a running API.
//
//	paywatch -api http://localhost:8080/api -code CB7777
//
// Exit status: 0 paid, 2 usage, 3 ledger not configured, 130 interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tbourn/luvia-backend/internal/config"
	"github.com/tbourn/luvia-backend/internal/poller"
	"github.com/tbourn/luvia-backend/internal/sysutil"
)

const (
	exitPaid          = 0
	exitUsage         = 2
	exitConfigMissing = 3
	exitInterrupted   = 130
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	interval, successDelay := poller.DefaultInterval, poller.DefaultSuccessDelay
	if cfg, err := config.Load(); err == nil {
		interval, successDelay = cfg.Poll.Interval, cfg.Poll.SuccessDelay
	}

	fs := flag.NewFlagSet("paywatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	api := fs.String("api", "", "API base URL including the base path (env PAYWATCH_API)")
	code := fs.String("code", "", "booking code to watch")
	fs.DurationVar(&interval, "interval", interval, "poll interval")
	fs.DurationVar(&successDelay, "success-delay", successDelay, "pause after the paid confirmation")
	timeout := fs.Duration("timeout", 10*time.Second, "per-request timeout")
	verbose := fs.Bool("v", false, "log every attempt")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	base := sysutil.FirstNonEmpty(*api, os.Getenv("PAYWATCH_API"), "http://localhost:8080/api")
	if *code == "" {
		fmt.Fprintln(stderr, "paywatch: -code is required")
		fs.Usage()
		return exitUsage
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Str("code", *code).Logger()

	checker := poller.HTTPChecker{BaseURL: base, Client: &http.Client{Timeout: *timeout}}
	p := poller.New(*code, checker,
		poller.WithInterval(interval),
		poller.WithSuccessDelay(successDelay),
		poller.WithObserver(func(ev poller.Event) {
			switch {
			case ev.Kind == poller.EventFinished && ev.Err != nil:
				logger.Warn().Err(ev.Err).Int("attempt", ev.Attempt).Msg("check failed; will retry")
			case ev.Kind == poller.EventFinished:
				logger.Debug().Int("attempt", ev.Attempt).Str("status", ev.Observation.Status).Bool("paid", ev.Observation.IsPaid).Msg("checked")
			case ev.Kind == poller.EventSucceeded:
				logger.Info().Int("attempt", ev.Attempt).Str("status", ev.Observation.Status).Msg("payment confirmed")
			}
		}),
	)

	logger.Info().Str("api", base).Dur("interval", interval).Msg("waiting for payment")
	p.CheckNow()
	res, err := p.Run(ctx)
	switch {
	case errors.Is(err, poller.ErrConfigurationMissing):
		logger.Error().Msg("payment ledger is not configured on the server")
		return exitConfigMissing
	case err != nil:
		logger.Warn().Int("attempts", res.Attempts).Msg("stopped before payment was confirmed")
		return exitInterrupted
	}
	logger.Info().Int("attempts", res.Attempts).Msg("done")
	return exitPaid
}

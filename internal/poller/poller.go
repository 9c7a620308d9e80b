// Package poller drives the payment-wait loop for one booking: it asks
// "has this booking been paid?" on a fixed interval until the answer is yes,
// the ledger turns out to be unconfigured, or the owner cancels.
//
// States move pending -> checking -> pending ... -> success. Only one check is
// in flight at a time; a tick that arrives while a check is running is
// skipped, never queued. Transient failures, "not found" and "found but
// unpaid" all return to pending and wait for the next tick.
//
// The loop never outlives its context: cancelling ctx stops the ticker and
// Run returns ctx.Err().
package poller

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the poller's externally visible state.
type State string

const (
	StatePending  State = "pending"
	StateChecking State = "checking"
	StateSuccess  State = "success"
)

const (
	DefaultInterval     = 3 * time.Second
	DefaultSuccessDelay = 1500 * time.Millisecond
)

// ErrConfigurationMissing is returned by Run when the server reports that the
// ledger credentials are absent. Retrying cannot help.
var ErrConfigurationMissing = errors.New("poller: ledger configuration missing")

// Observation is what a single check learned.
type Observation struct {
	Status        string
	IsPaid        bool
	ConfigMissing bool
}

// Checker performs one payment check for code.
type Checker interface {
	Check(ctx context.Context, code string) (Observation, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, code string) (Observation, error)

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context, code string) (Observation, error) {
	return f(ctx, code)
}

// Ticker is the subset of *time.Ticker the poller needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// EventKind labels an Event.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventFinished  EventKind = "finished"
	EventSkipped   EventKind = "skipped"
	EventSucceeded EventKind = "succeeded"
)

// Event reports progress to an observer. Observers run on the poller's
// goroutine and must not block.
type Event struct {
	Kind        EventKind
	State       State
	Attempt     int
	Observation Observation
	Err         error
}

// Result summarizes a finished Run.
type Result struct {
	State    State
	Attempts int
	Skipped  int
	Last     Observation
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithSuccessDelay sets the pause between observing "paid" and returning.
func WithSuccessDelay(d time.Duration) Option {
	return func(p *Poller) {
		if d >= 0 {
			p.successDelay = d
		}
	}
}

// WithTickerFactory replaces time.NewTicker, mainly for tests.
func WithTickerFactory(f func(time.Duration) Ticker) Option {
	return func(p *Poller) {
		if f != nil {
			p.newTicker = f
		}
	}
}

// WithObserver registers a progress callback.
func WithObserver(fn func(Event)) Option {
	return func(p *Poller) { p.observer = fn }
}

// Poller polls one booking code. A Poller is single-use: call Run once.
type Poller struct {
	code         string
	checker      Checker
	interval     time.Duration
	successDelay time.Duration
	newTicker    func(time.Duration) Ticker
	observer     func(Event)
	manual       chan struct{}

	mu       sync.Mutex
	state    State
	attempts int
	skipped  int
	inflight bool
}

// New returns a Poller for code.
func New(code string, checker Checker, opts ...Option) *Poller {
	p := &Poller{
		code:         code,
		checker:      checker,
		interval:     DefaultInterval,
		successDelay: DefaultSuccessDelay,
		newTicker:    func(d time.Duration) Ticker { return stdTicker{time.NewTicker(d)} },
		manual:       make(chan struct{}, 1),
		state:        StatePending,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// State returns the current state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Attempts returns how many checks have been started.
func (p *Poller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// CheckNow requests an immediate check, independent of the timer, and moves
// the state to checking right away. It reports false when the poller has
// already succeeded. Requests made while a check is in flight coalesce with it.
func (p *Poller) CheckNow() bool {
	p.mu.Lock()
	if p.state == StateSuccess {
		p.mu.Unlock()
		return false
	}
	p.state = StateChecking
	p.mu.Unlock()

	select {
	case p.manual <- struct{}{}:
	default:
	}
	return true
}

type attempt struct {
	obs Observation
	err error
}

// Run polls until the booking is paid, the ledger is reported unconfigured,
// or ctx is done.
func (p *Poller) Run(ctx context.Context) (Result, error) {
	ticker := p.newTicker(p.interval)
	defer ticker.Stop()

	// One slot: at most one attempt is ever in flight, so the sender never
	// blocks even after Run has returned.
	results := make(chan attempt, 1)
	var last Observation

	for {
		select {
		case <-ctx.Done():
			p.setState(StatePending, StateChecking)
			return p.result(last), ctx.Err()

		case <-ticker.C():
			p.start(ctx, results, false)

		case <-p.manual:
			p.start(ctx, results, true)

		case r := <-results:
			n := p.finish()
			p.emit(Event{Kind: EventFinished, State: p.State(), Attempt: n, Observation: r.obs, Err: r.err})
			if r.err != nil {
				continue
			}
			last = r.obs
			switch {
			case r.obs.ConfigMissing:
				return p.result(last), ErrConfigurationMissing
			case r.obs.IsPaid:
				p.mu.Lock()
				p.state = StateSuccess
				p.mu.Unlock()
				p.emit(Event{Kind: EventSucceeded, State: StateSuccess, Attempt: n, Observation: r.obs})
				if err := p.pause(ctx); err != nil {
					return p.result(last), err
				}
				return p.result(last), nil
			}
		}
	}
}

// start launches a check unless one is already running.
func (p *Poller) start(ctx context.Context, results chan<- attempt, manual bool) {
	p.mu.Lock()
	if p.inflight {
		if !manual {
			p.skipped++
		}
		p.mu.Unlock()
		p.emit(Event{Kind: EventSkipped, State: StateChecking})
		return
	}
	p.inflight = true
	p.attempts++
	p.state = StateChecking
	n := p.attempts
	p.mu.Unlock()

	p.emit(Event{Kind: EventStarted, State: StateChecking, Attempt: n})
	go func() {
		obs, err := p.checker.Check(ctx, p.code)
		results <- attempt{obs: obs, err: err}
	}()
}

// finish clears the in-flight flag and returns to pending.
func (p *Poller) finish() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inflight = false
	p.state = StatePending
	return p.attempts
}

func (p *Poller) setState(to State, from ...State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range from {
		if p.state == f {
			p.state = to
			return
		}
	}
}

func (p *Poller) pause(ctx context.Context) error {
	if p.successDelay <= 0 {
		return nil
	}
	t := time.NewTimer(p.successDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) result(last Observation) Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Result{State: p.state, Attempts: p.attempts, Skipped: p.skipped, Last: last}
}

func (p *Poller) emit(ev Event) {
	if p.observer != nil {
		p.observer(ev)
	}
}

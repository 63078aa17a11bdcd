package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/osa030/saloon/internal/app/pricing"
	"github.com/osa030/saloon/internal/domain/errs"
	"github.com/osa030/saloon/internal/domain/session"
	"github.com/osa030/saloon/internal/domain/table"
	"github.com/osa030/saloon/internal/infra/clock"
)

// Pricer computes the charge of a stopped session.
type Pricer interface {
	Price(elapsedSeconds int64, hourlyRate decimal.Decimal, payingPlayers int) decimal.Decimal
}

// PricerFunc adapts a function to Pricer.
type PricerFunc func(elapsedSeconds int64, hourlyRate decimal.Decimal, payingPlayers int) decimal.Decimal

// Price calls f.
func (f PricerFunc) Price(elapsedSeconds int64, hourlyRate decimal.Decimal, payingPlayers int) decimal.Decimal {
	return f(elapsedSeconds, hourlyRate, payingPlayers)
}

// Option configures a Resource.
type Option func(*Resource)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(r *Resource) { r.clock = c }
}

// WithPricer sets the pricing policy.
func WithPricer(p Pricer) Option {
	return func(r *Resource) { r.pricer = p }
}

// WithHistory seeds the history with previously stored sessions.
func WithHistory(history []session.Session) Option {
	return func(r *Resource) {
		r.history = append(make([]session.Session, 0, len(history)), history...)
	}
}

// Resource owns the session timer of one table and its finished sessions.
// All methods are safe for concurrent use.
type Resource struct {
	mu sync.RWMutex

	clock  clock.Clock
	pricer Pricer

	info    table.Info
	history []session.Session
	state   State
}

// New creates an idle resource.
func New(info table.Info, opts ...Option) *Resource {
	r := &Resource{
		clock:  clock.Real{},
		pricer: PricerFunc(pricing.Price),
		info:   info,
		state:  Idle{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Info returns the table info.
func (r *Resource) Info() table.Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info
}

// SetInfo replaces the table info. A new rate applies from the next stop.
func (r *Resource) SetInfo(info table.Info) error {
	if err := info.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info = info
	return nil
}

// State returns the current timer state.
func (r *Resource) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Start opens a session for party. It does nothing unless the table is idle
// and reports whether a session was opened.
func (r *Resource) Start(party session.Party) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.state.(Idle); !ok {
		return false
	}
	r.state = Running{Since: r.clock.Now(), Accumulated: 0, Party: party}
	return true
}

// Pause freezes a running session. It does nothing unless the table is running.
func (r *Resource) Pause() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	running, ok := r.state.(Running)
	if !ok {
		return false
	}
	r.state = Paused{
		Accumulated: running.Accumulated + secondsBetween(running.Since, r.clock.Now()),
		Party:       running.Party,
	}
	return true
}

// Resume restarts a paused session. It does nothing unless the table is paused.
func (r *Resource) Resume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	paused, ok := r.state.(Paused)
	if !ok {
		return false
	}
	r.state = Running{Since: r.clock.Now(), Accumulated: paused.Accumulated, Party: paused.Party}
	return true
}

// Stop closes the open session, prices it and appends it to the history.
// It fails with errs.ErrInvalidState when the table is idle.
func (r *Resource) Stop() (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	var (
		elapsed int64
		party   session.Party
	)
	switch s := r.state.(type) {
	case Running:
		elapsed = s.Accumulated + secondsBetween(s.Since, now)
		party = s.Party
	case Paused:
		elapsed = s.Accumulated
		party = s.Party
	default:
		return session.Session{}, errs.InvalidStatef("timer not running on %s", r.info.Name)
	}

	charge := r.pricer.Price(elapsed, r.info.HourlyRate, party.Paying()).RoundBank(2)
	rec := session.New(now.Truncate(time.Second), elapsed, charge, party)

	r.history = append(r.history, rec)
	r.state = Idle{}
	return rec, nil
}

// IsRunning reports whether time is accruing.
func (r *Resource) IsRunning() bool {
	return r.State().Phase() == PhaseRunning
}

// IsPaused reports whether an open session is paused.
func (r *Resource) IsPaused() bool {
	return r.State().Phase() == PhasePaused
}

// HasSession reports whether a session is open.
func (r *Resource) HasSession() bool {
	return r.State().Phase() != PhaseIdle
}

// ElapsedSeconds returns the billed seconds of the open session, or 0 when idle.
func (r *Resource) ElapsedSeconds() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.elapsedLocked(r.clock.Now())
}

// elapsedLocked must be called with r.mu held.
func (r *Resource) elapsedLocked(now time.Time) int64 {
	switch s := r.state.(type) {
	case Running:
		return s.Accumulated + secondsBetween(s.Since, now)
	case Paused:
		return s.Accumulated
	default:
		return 0
	}
}

// Party returns the players of the open session, or the default party for
// the next session when idle.
func (r *Resource) Party() session.Party {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.partyLocked()
}

// partyLocked must be called with r.mu held.
func (r *Resource) partyLocked() session.Party {
	switch s := r.state.(type) {
	case Running:
		return s.Party
	case Paused:
		return s.Party
	default:
		return session.DefaultParty()
	}
}

// History returns a copy of the finished sessions in completion order.
func (r *Resource) History() []session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]session.Session, len(r.history))
	copy(out, r.history)
	return out
}

// Snapshot is a consistent read of a resource.
type Snapshot struct {
	Info     table.Info
	Phase    Phase
	Elapsed  int64
	Party    session.Party
	Sessions int
}

// Snapshot reads info, phase, elapsed time and party under one lock.
func (r *Resource) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		Info:     r.info,
		Phase:    r.state.Phase(),
		Elapsed:  r.elapsedLocked(r.clock.Now()),
		Party:    r.partyLocked(),
		Sessions: len(r.history),
	}
}

// Package ledger provides the per-table session timer and its history.
package ledger

import (
	"time"

	"github.com/osa030/saloon/internal/domain/session"
)

// Phase represents the timer phase of a table.
type Phase int

const (
	PhaseIdle    Phase = iota // No open session
	PhaseRunning              // Session open, time accruing
	PhasePaused               // Session open, time frozen
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhasePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// State is the timer state of a table: Idle, Running or Paused.
type State interface {
	Phase() Phase
	sealed()
}

// Idle is the state with no open session.
type Idle struct{}

// Running is an open session accruing time since Since.
type Running struct {
	Since       time.Time     // Start of the current running stretch
	Accumulated int64         // Seconds billed before Since
	Party       session.Party // Players of the open session
}

// Paused is an open session with time frozen.
type Paused struct {
	Accumulated int64         // Seconds billed so far
	Party       session.Party // Players of the open session
}

func (Idle) Phase() Phase    { return PhaseIdle }
func (Running) Phase() Phase { return PhaseRunning }
func (Paused) Phase() Phase  { return PhasePaused }

func (Idle) sealed()    {}
func (Running) sealed() {}
func (Paused) sealed()  {}

// secondsBetween returns the whole seconds from since to now, never negative.
func secondsBetween(since, now time.Time) int64 {
	d := now.Sub(since)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

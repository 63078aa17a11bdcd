// Package session provides the finalized Session record and the player party.
package session

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/osa030/saloon/internal/domain/errs"
)

// Default party composition offered for the next session.
const (
	DefaultMemberPlayers = 0
	DefaultPayingPlayers = 2
)

// Party is the player composition of a session.
// Counts are validated by NewParty and never negative.
type Party struct {
	members int
	paying  int
}

// NewParty validates and builds a party.
func NewParty(members, paying int) (Party, error) {
	if members < 0 {
		return Party{}, errs.Validationf("member players must not be negative: %d", members)
	}
	if paying < 0 {
		return Party{}, errs.Validationf("paying players must not be negative: %d", paying)
	}
	return Party{members: members, paying: paying}, nil
}

// DefaultParty returns the party used when none is chosen: 0 members, 2 paying.
func DefaultParty() Party {
	return Party{members: DefaultMemberPlayers, paying: DefaultPayingPlayers}
}

// Members returns the number of member players.
func (p Party) Members() int { return p.members }

// Paying returns the number of paying players.
func (p Party) Paying() int { return p.paying }

// Total returns the number of players.
func (p Party) Total() int { return p.members + p.paying }

// Session is a finalized, immutable usage record of a table.
type Session struct {
	StartTime       time.Time       // Start of the session (end minus billed duration)
	EndTime         time.Time       // Moment the session was stopped
	DurationSeconds int64           // Billed seconds, paused time excluded
	Charge          decimal.Decimal // Per paying player when 2+, total when 1, zero when none
	MemberPlayers   int             // Member players (never billed)
	PayingPlayers   int             // Paying players
	HasAnyMember    bool            // MemberPlayers > 0
}

// New builds a session ending at end after elapsed billed seconds.
func New(end time.Time, elapsed int64, charge decimal.Decimal, party Party) Session {
	return Session{
		StartTime:       end.Add(-time.Duration(elapsed) * time.Second),
		EndTime:         end,
		DurationSeconds: elapsed,
		Charge:          charge,
		MemberPlayers:   party.Members(),
		PayingPlayers:   party.Paying(),
		HasAnyMember:    party.Members() > 0,
	}
}

// Players returns the total number of players.
func (s Session) Players() int {
	return s.MemberPlayers + s.PayingPlayers
}

// Duration returns the billed duration.
func (s Session) Duration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}

// TotalCollected returns the amount collected from all paying players.
func (s Session) TotalCollected() decimal.Decimal {
	if s.PayingPlayers >= 2 {
		return s.Charge.Mul(decimal.NewFromInt(int64(s.PayingPlayers)))
	}
	return s.Charge
}

// PriceSummary describes the charge the way it is shown at the counter.
func (s Session) PriceSummary(currency string) string {
	if s.Charge.IsZero() {
		return "Free"
	}
	if s.PayingPlayers == 1 {
		return fmt.Sprintf("%s%s total (single player discount)", currency, s.Charge.StringFixed(2))
	}
	return fmt.Sprintf("%s%s per paying player (%s%s total)",
		currency, s.Charge.StringFixed(2), currency, s.TotalCollected().StringFixed(2))
}

// PartySummary describes the player composition, e.g. "3 players (1 members + 2 paying)".
func (s Session) PartySummary() string {
	total := fmt.Sprintf("%d players", s.Players())
	switch {
	case s.MemberPlayers > 0 && s.PayingPlayers > 0:
		return fmt.Sprintf("%s (%d members + %d paying)", total, s.MemberPlayers, s.PayingPlayers)
	case s.MemberPlayers > 0:
		return total + " (all members)"
	default:
		return total + " (all paying)"
	}
}

// FormatDuration renders seconds as HH:MM:SS.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hrs := seconds / 3600
	mins := (seconds % 3600) / 60
	secs := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hrs, mins, secs)
}

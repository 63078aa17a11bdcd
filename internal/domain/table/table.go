// Package table provides the billable table domain entity.
package table

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/osa030/saloon/internal/domain/errs"
)

// Kind represents the kind of billable resource.
type Kind int

const (
	KindBilliard Kind = iota // Pool table (default)
	KindSnooker              // Snooker table
	KindDarts                // Darts board
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindBilliard:
		return "Billiard"
	case KindSnooker:
		return "Snooker"
	case KindDarts:
		return "Darts"
	default:
		return "Unknown"
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k >= KindBilliard && k <= KindDarts
}

// Kinds returns all known kinds in display order.
func Kinds() []Kind {
	return []Kind{KindBilliard, KindSnooker, KindDarts}
}

// ParseKind parses a kind name, ignoring case.
// An empty name yields KindBilliard.
func ParseKind(s string) (Kind, error) {
	name := strings.TrimSpace(s)
	if name == "" {
		return KindBilliard, nil
	}
	for _, k := range Kinds() {
		if strings.EqualFold(k.String(), name) {
			return k, nil
		}
	}
	return KindBilliard, errs.Validationf("unknown table kind %q", s)
}

// Info is the descriptive part of a table.
type Info struct {
	Name       string          // Display name
	HourlyRate decimal.Decimal // Price per hour
	Kind       Kind            // Billiard, Snooker or Darts
}

// NewInfo validates and builds table info.
func NewInfo(name string, hourlyRate decimal.Decimal, kind Kind) (Info, error) {
	info := Info{
		Name:       strings.TrimSpace(name),
		HourlyRate: hourlyRate,
		Kind:       kind,
	}
	if err := info.Validate(); err != nil {
		return Info{}, err
	}
	return info, nil
}

// Validate checks the table info invariants.
func (i Info) Validate() error {
	if i.Name == "" {
		return errs.Validationf("table name must not be empty")
	}
	if i.HourlyRate.IsNegative() {
		return errs.Validationf("hourly rate must not be negative: %s", i.HourlyRate)
	}
	if !i.Kind.Valid() {
		return errs.Validationf("unknown table kind %d", int(i.Kind))
	}
	return nil
}

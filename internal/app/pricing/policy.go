// Package pricing computes the charge of a finished session.
package pricing

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// DefaultPolicy is the policy used when none is configured.
const DefaultPolicy = "standard"

// Policy maps billed time, hourly rate and paying players to a charge.
type Policy interface {
	// Name returns the policy name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// Price returns the charge rounded to cents.
	Price(elapsedSeconds int64, hourlyRate decimal.Decimal, payingPlayers int) decimal.Decimal
}

// Factory builds a policy from its config settings.
type Factory func(settings map[string]any) (Policy, error)

// registry holds registered policy factories.
var registry = make(map[string]Factory)

// Register registers a policy factory.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Names returns the registered policy names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the named policy. An empty name selects DefaultPolicy.
func New(name string, settings map[string]any) (Policy, error) {
	if name == "" {
		name = DefaultPolicy
	}
	factory, ok := registry[name]
	if !ok {
		return nil, errors.Newf("unsupported pricing policy: %s", name)
	}
	p, err := factory(settings)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create pricing policy %s", name)
	}
	return p, nil
}

// round rounds to cents, half to even.
func round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

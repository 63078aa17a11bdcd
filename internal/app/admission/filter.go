// Package admission provides the filter chain a start request passes before
// a session is opened on a table.
package admission

import (
	"context"

	"github.com/osa030/saloon/internal/domain/table"
)

// StartRequest represents a request to open a session.
type StartRequest struct {
	TableID string
	Table   table.Info
	Members int
	Paying  int
}

// Players returns the total number of players.
func (r StartRequest) Players() int {
	return r.Members + r.Paying
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "party_too_small", "party_too_large"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for start request filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should be applied to tables of the given kind.
	AppliesTo(kind table.Kind) bool
	// Check performs the filter check.
	Check(ctx context.Context, req StartRequest) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}

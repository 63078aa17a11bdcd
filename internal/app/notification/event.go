// Package notification broadcasts table lifecycle events to subscribed sinks.
package notification

import (
	"time"

	"github.com/osa030/saloon/internal/domain/session"
	"github.com/osa030/saloon/internal/domain/table"
)

// EventType represents a table lifecycle event type.
type EventType int

const (
	EventSessionStarted EventType = iota // Session opened on a table
	EventSessionPaused                   // Open session paused
	EventSessionResumed                  // Paused session resumed
	EventSessionStopped                  // Session stopped and billed
	EventTableAdded                      // Table added to the hall
	EventTableUpdated                    // Table name, rate or kind changed
	EventTableRemoved                    // Table and its history removed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSessionStarted:
		return "session_started"
	case EventSessionPaused:
		return "session_paused"
	case EventSessionResumed:
		return "session_resumed"
	case EventSessionStopped:
		return "session_stopped"
	case EventTableAdded:
		return "table_added"
	case EventTableUpdated:
		return "table_updated"
	case EventTableRemoved:
		return "table_removed"
	default:
		return "unknown"
	}
}

// Event is a table lifecycle event.
type Event struct {
	SequenceNo uint64
	Type       EventType
	TableID    string
	Table      table.Info
	Party      session.Party
	Session    *session.Session // Set for EventSessionStopped
	OpenAfter  int              // Open sessions in the hall after the event
	At         time.Time
}

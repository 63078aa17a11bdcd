package notification

import (
	"github.com/rs/zerolog"
)

// LogSink writes every event to logger.
func LogSink(logger zerolog.Logger) Sink {
	return SinkFunc(func(e Event) error {
		ev := logger.Info().
			Uint64("seq", e.SequenceNo).
			Str("event", e.Type.String()).
			Str("table", e.Table.Name).
			Str("kind", e.Table.Kind.String()).
			Int("open", e.OpenAfter)
		switch e.Type {
		case EventSessionStarted:
			ev = ev.Int("members", e.Party.Members()).Int("paying", e.Party.Paying())
		case EventSessionStopped:
			if e.Session != nil {
				ev = ev.Int64("seconds", e.Session.DurationSeconds).
					Str("charge", e.Session.Charge.StringFixed(2)).
					Str("collected", e.Session.TotalCollected().StringFixed(2))
			}
		}
		ev.Msg("table event")
		return nil
	})
}

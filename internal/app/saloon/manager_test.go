package saloon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/saloon/internal/app/ledger"
	"github.com/osa030/saloon/internal/app/notification"
	"github.com/osa030/saloon/internal/domain/errs"
	"github.com/osa030/saloon/internal/domain/session"
	"github.com/osa030/saloon/internal/domain/table"
	"github.com/osa030/saloon/internal/infra/clock"
	"github.com/osa030/saloon/internal/infra/config"
	"github.com/osa030/saloon/internal/infra/store"
)

var base = time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC)

// memStore is an in-memory store.Store.
type memStore struct {
	mu      sync.Mutex
	records []store.Record
	stored  bool
	loadErr error
	saveErr error
	saves   int
}

func (s *memStore) Load(ctx context.Context) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if !s.stored {
		return nil, store.ErrNotFound
	}
	return s.records, nil
}

func (s *memStore) Save(ctx context.Context, records []store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records = records
	s.stored = true
	s.saves++
	return nil
}

func (s *memStore) Close() error { return nil }

type eventLog struct {
	mu     sync.Mutex
	events []notification.Event
}

func (l *eventLog) Send(e notification.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) types() []notification.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]notification.EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func (l *eventLog) last() notification.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

func newTestManager(t *testing.T, st store.Store) (*Manager, *clock.Fake, *eventLog) {
	t.Helper()
	if st == nil {
		st = &memStore{}
	}
	clk := clock.NewFake(base)
	m, err := NewManager(config.Default(), st, WithClock(clk))
	require.NoError(t, err)
	require.NoError(t, m.Load(context.Background()))

	events := &eventLog{}
	m.Notifications().Subscribe(events)
	t.Cleanup(m.Close)
	return m, clk, events
}

func TestNewManager_BadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Pricing.Policy = "happy_hour"
	_, err := NewManager(cfg, &memStore{})
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Admission["no_such_filter"] = config.FilterConfig{Enabled: true}
	_, err = NewManager(cfg, &memStore{})
	assert.Error(t, err)
}

func TestManager_LoadSeedsDefaults(t *testing.T) {
	m, _, _ := newTestManager(t, nil)

	status := m.Status()
	require.Len(t, status, 3)
	assert.Equal(t, "Table 1", status[0].Info.Name)
	assert.Equal(t, table.KindBilliard, status[0].Info.Kind)
	assert.Equal(t, table.KindSnooker, status[1].Info.Kind)
	assert.Equal(t, table.KindDarts, status[2].Info.Kind)
	assert.Equal(t, "10.00", status[2].Info.HourlyRate.StringFixed(2))
	assert.Equal(t, 3, status[2].Position)
}

func TestManager_LoadFallsBackOnBadData(t *testing.T) {
	st := &memStore{loadErr: errors.New("malformed table data")}
	m, _, _ := newTestManager(t, st)
	assert.Equal(t, 3, m.TableCount())
}

func TestManager_SaveAndReload(t *testing.T) {
	st := store.NewJSONFile(filepath.Join(t.TempDir(), "tables.json"))
	m, clk, _ := newTestManager(t, st)
	ctx := context.Background()

	_, started, err := m.Start(ctx, "1", 1, 2)
	require.NoError(t, err)
	require.True(t, started)
	clk.Advance(time.Hour)
	_, sess, err := m.Stop("1")
	require.NoError(t, err)

	_, err = m.AddTable("Corner", decimal.NewFromInt(8), table.KindSnooker)
	require.NoError(t, err)

	// The open session on table 2 is not persisted.
	_, _, err = m.Start(ctx, "2", 0, 2)
	require.NoError(t, err)
	require.NoError(t, m.Save(ctx))

	reloaded, _, _ := newTestManager(t, st)
	status := reloaded.Status()
	require.Len(t, status, 4)
	assert.Equal(t, "Corner", status[3].Info.Name)
	assert.Equal(t, ledger.PhaseIdle, status[1].Phase)

	_, history, err := reloaded.History("Table 1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, sess.EndTime.Equal(history[0].EndTime))
	assert.Equal(t, sess.Charge.StringFixed(2), history[0].Charge.StringFixed(2))
	assert.Equal(t, 1, history[0].MemberPlayers)
}

func TestManager_LoadKeepsHighRateTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.json")
	data := []byte(`[
  {"name": "VIP", "hourlyRate": 150, "kind": "Snooker", "history": []},
  {"name": "Main", "hourlyRate": 10, "kind": "Billiard", "history": [
    {"startTime": "2024-05-09T18:00:00Z", "endTime": "2024-05-09T19:00:00Z", "durationSeconds": 3600,
     "charge": 5, "memberPlayers": 0, "payingPlayers": 2}
  ]}
]`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m, _, _ := newTestManager(t, store.NewJSONFile(path))

	status := m.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "VIP", status[0].Info.Name)
	assert.Equal(t, "150.00", status[0].Info.HourlyRate.StringFixed(2))
	_, history, err := m.History("Main")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestManager_SaveError(t *testing.T) {
	st := &memStore{}
	m, _, _ := newTestManager(t, st)
	st.saveErr = errors.New("disk full")

	err := m.Save(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestManager_SessionLifecycle(t *testing.T) {
	m, clk, events := newTestManager(t, nil)
	ctx := context.Background()

	snap, started, err := m.Start(ctx, "table 1", 0, 2)
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, ledger.PhaseRunning, snap.Phase)
	assert.Equal(t, 1, m.OpenSessions())

	clk.Advance(40 * time.Minute)
	snap, paused, err := m.Pause("1")
	require.NoError(t, err)
	assert.True(t, paused)
	assert.Equal(t, int64(2400), snap.Elapsed)

	clk.Advance(time.Hour)
	_, resumed, err := m.Resume("1")
	require.NoError(t, err)
	assert.True(t, resumed)

	clk.Advance(20 * time.Minute)
	info, sess, err := m.Stop("1")
	require.NoError(t, err)
	assert.Equal(t, "Table 1", info.Name)
	assert.Equal(t, int64(3600), sess.DurationSeconds)
	assert.Equal(t, "5.00", sess.Charge.StringFixed(2))
	assert.Equal(t, "10.00", sess.TotalCollected().StringFixed(2))
	assert.Equal(t, 0, m.OpenSessions())

	assert.Equal(t, []notification.EventType{
		notification.EventSessionStarted,
		notification.EventSessionPaused,
		notification.EventSessionResumed,
		notification.EventSessionStopped,
	}, events.types())

	last := events.last()
	require.NotNil(t, last.Session)
	assert.Equal(t, uint64(4), last.SequenceNo)
	assert.Equal(t, 2, last.Party.Paying())
	assert.Equal(t, 0, last.OpenAfter)
}

func TestManager_NoOpsAreReported(t *testing.T) {
	m, _, events := newTestManager(t, nil)
	ctx := context.Background()

	_, paused, err := m.Pause("1")
	require.NoError(t, err)
	assert.False(t, paused)

	_, resumed, err := m.Resume("1")
	require.NoError(t, err)
	assert.False(t, resumed)

	_, started, err := m.Start(ctx, "1", 0, 2)
	require.NoError(t, err)
	require.True(t, started)

	snap, started, err := m.Start(ctx, "1", 0, 5)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, 2, snap.Party.Paying(), "party of the open session is kept")

	_, resumed, err = m.Resume("1")
	require.NoError(t, err)
	assert.False(t, resumed)

	assert.Equal(t, []notification.EventType{notification.EventSessionStarted}, events.types())
}

func TestManager_StopIdle(t *testing.T) {
	m, _, events := newTestManager(t, nil)

	_, _, err := m.Stop("2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidState))

	_, history, err := m.History("2")
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, events.types())
}

func TestManager_StartValidation(t *testing.T) {
	m, _, _ := newTestManager(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		ref     string
		members int
		paying  int
		wantErr error
	}{
		{name: "negative members", ref: "1", members: -1, paying: 2, wantErr: errs.ErrValidation},
		{name: "empty party", ref: "1", members: 0, paying: 0, wantErr: errs.ErrValidation},
		{name: "party too large", ref: "1", members: 9, paying: 9, wantErr: errs.ErrValidation},
		{name: "unknown table", ref: "Table 9", members: 0, paying: 2, wantErr: errs.ErrTableNotFound},
		{name: "position out of range", ref: "7", members: 0, paying: 2, wantErr: errs.ErrTableNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, started, err := m.Start(ctx, tt.ref, tt.members, tt.paying)
			require.Error(t, err)
			assert.False(t, started)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
	assert.Equal(t, 0, m.OpenSessions())
}

func TestManager_AllMembersPlayFree(t *testing.T) {
	m, clk, _ := newTestManager(t, nil)

	_, _, err := m.Start(context.Background(), "3", 3, 0)
	require.NoError(t, err)
	clk.Advance(2 * time.Hour)
	_, sess, err := m.Stop("3")
	require.NoError(t, err)

	assert.True(t, sess.Charge.IsZero())
	assert.True(t, sess.HasAnyMember)
	assert.Equal(t, "Free", sess.PriceSummary("€"))
}

func TestManager_AddTable(t *testing.T) {
	m, _, events := newTestManager(t, nil)

	entry, err := m.AddTable("  ", decimal.NewFromInt(12), table.KindDarts)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, DefaultTableName, entry.Resource.Info().Name)
	assert.Equal(t, 4, m.TableCount())
	assert.Equal(t, notification.EventTableAdded, events.last().Type)

	premium, err := m.AddTable("Premium", decimal.NewFromInt(120), table.KindSnooker)
	require.NoError(t, err)
	assert.Equal(t, "120", premium.Resource.Info().HourlyRate.String())
	assert.Equal(t, 5, m.TableCount())

	_, err = m.AddTable("Negative", decimal.NewFromInt(-1), table.KindBilliard)
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.Equal(t, 5, m.TableCount())
}

func TestManager_UpdateTable(t *testing.T) {
	m, clk, events := newTestManager(t, nil)

	_, _, err := m.Start(context.Background(), "1", 0, 1)
	require.NoError(t, err)
	clk.Advance(time.Hour)

	name := "Window"
	rate := decimal.NewFromInt(20)
	kind := table.KindSnooker
	info, err := m.UpdateTable("1", TableUpdate{Name: &name, HourlyRate: &rate, Kind: &kind})
	require.NoError(t, err)
	assert.Equal(t, "Window", info.Name)
	assert.Equal(t, table.KindSnooker, info.Kind)
	assert.Equal(t, notification.EventTableUpdated, events.last().Type)

	// The open session is billed at the new rate.
	_, sess, err := m.Stop("window")
	require.NoError(t, err)
	assert.Equal(t, "10.00", sess.Charge.StringFixed(2))

	blank := ""
	info, err = m.UpdateTable("1", TableUpdate{Name: &blank})
	require.NoError(t, err)
	assert.Equal(t, "Window", info.Name, "blank name keeps the old one")

	bad := decimal.NewFromInt(-5)
	_, err = m.UpdateTable("1", TableUpdate{HourlyRate: &bad})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = m.UpdateTable("nope", TableUpdate{})
	assert.True(t, errors.Is(err, errs.ErrTableNotFound))
}

func TestManager_RemoveTable(t *testing.T) {
	m, _, events := newTestManager(t, nil)

	_, _, err := m.Start(context.Background(), "2", 0, 2)
	require.NoError(t, err)

	info, err := m.RemoveTable("Table 2")
	require.NoError(t, err)
	assert.Equal(t, "Table 2", info.Name)
	assert.Equal(t, 2, m.TableCount())
	assert.Equal(t, 0, m.OpenSessions())

	last := events.last()
	assert.Equal(t, notification.EventTableRemoved, last.Type)
	assert.Equal(t, 0, last.OpenAfter)

	status := m.Status()
	assert.Equal(t, "Table 3", status[1].Info.Name)
	assert.Equal(t, 2, status[1].Position)

	_, err = m.RemoveTable("Table 2")
	assert.True(t, errors.Is(err, errs.ErrTableNotFound))
}

func TestManager_TableStatus(t *testing.T) {
	m, clk, _ := newTestManager(t, nil)

	_, _, err := m.Start(context.Background(), "2", 1, 1)
	require.NoError(t, err)
	clk.Advance(90 * time.Second)

	st, err := m.TableStatus("table 2")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Position)
	assert.Equal(t, ledger.PhaseRunning, st.Phase)
	assert.Equal(t, int64(90), st.Elapsed)
	assert.Equal(t, 2, st.Party.Total())

	_, err = m.TableStatus("0")
	assert.True(t, errors.Is(err, errs.ErrTableNotFound))
}

func TestManager_Report(t *testing.T) {
	m, clk, _ := newTestManager(t, nil)
	ctx := context.Background()

	play := func(ref string, members, paying int, d time.Duration) session.Session {
		t.Helper()
		_, _, err := m.Start(ctx, ref, members, paying)
		require.NoError(t, err)
		clk.Advance(d)
		_, sess, err := m.Stop(ref)
		require.NoError(t, err)
		return sess
	}

	play("1", 0, 2, time.Hour)      // 5.00 each, 10.00 collected
	play("1", 0, 1, time.Hour)      // 5.00 single
	play("2", 2, 0, time.Hour)      // free
	play("3", 0, 4, 30*time.Minute) // 1.25 each, 5.00 collected

	_, _, err := m.Start(ctx, "3", 0, 2)
	require.NoError(t, err)

	rep := m.Report()
	require.Len(t, rep.Tables, 3)
	assert.Equal(t, 4, rep.Sessions)
	assert.Equal(t, int64(3*3600+1800), rep.BilledSeconds)
	assert.Equal(t, "20.00", rep.Collected.StringFixed(2))
	assert.Equal(t, 1, rep.OpenSessions)

	assert.Equal(t, 2, rep.Tables[0].Sessions)
	assert.Equal(t, "15.00", rep.Tables[0].Collected.StringFixed(2))
	assert.Equal(t, 1, rep.Tables[1].FreeSessions)
	assert.Equal(t, "0.00", rep.Tables[1].Collected.StringFixed(2))
	assert.Equal(t, "5.00", rep.ByKind[table.KindDarts].StringFixed(2))
	assert.Equal(t, "0.00", rep.ByKind[table.KindSnooker].StringFixed(2))
}

func TestManager_ConcurrentTables(t *testing.T) {
	m, clk, _ := newTestManager(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, ref := range []string{"1", "2", "3"} {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			_, _, _ = m.Start(ctx, ref, 0, 2)
			_ = m.Status()
		}(ref)
	}
	wg.Wait()
	assert.Equal(t, 3, m.OpenSessions())

	clk.Advance(time.Hour)
	for _, ref := range []string{"1", "2", "3"} {
		_, sess, err := m.Stop(ref)
		require.NoError(t, err)
		assert.Equal(t, "5.00", sess.Charge.StringFixed(2))
	}
}

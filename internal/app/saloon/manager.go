// Package saloon provides the hall manager: the set of tables, their
// sessions, and persistence.
package saloon

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/osa030/saloon/internal/app/admission"
	"github.com/osa030/saloon/internal/app/ledger"
	"github.com/osa030/saloon/internal/app/notification"
	"github.com/osa030/saloon/internal/app/pricing"
	"github.com/osa030/saloon/internal/app/registry"
	"github.com/osa030/saloon/internal/domain/errs"
	"github.com/osa030/saloon/internal/domain/session"
	"github.com/osa030/saloon/internal/domain/table"
	"github.com/osa030/saloon/internal/infra/clock"
	"github.com/osa030/saloon/internal/infra/config"
	"github.com/osa030/saloon/internal/infra/store"
)

// DefaultTableName is used when a table is added without a name.
const DefaultTableName = "Table"

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source shared by every table.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// Manager manages the tables of the hall.
type Manager struct {
	// mu serializes structural changes (load, add, remove, save).
	mu sync.Mutex

	// Configuration
	config *config.Config

	// Components
	clock        clock.Clock
	tables       *registry.TableRegistry
	policy       pricing.Policy
	admission    *admission.Chain
	notification *notification.Manager
	store        store.Store
}

// NewManager creates a hall manager over st.
// The store is owned by the caller.
func NewManager(cfg *config.Config, st store.Store, opts ...Option) (*Manager, error) {
	policy, err := pricing.New(cfg.Pricing.Policy, cfg.Pricing.Settings)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pricing policy")
	}
	chain, err := admission.NewChainFromConfig(cfg.Admission)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create admission chain")
	}

	m := &Manager{
		config:       cfg,
		clock:        clock.Real{},
		tables:       registry.NewTableRegistry(),
		policy:       policy,
		admission:    chain,
		notification: notification.NewManager(),
		store:        st,
	}
	for _, opt := range opts {
		opt(m)
	}

	zlog.Debug().Msgf("pricing policy: %s (%s)", policy.Name(), policy.Description())
	return m, nil
}

// Notifications returns the notification manager for subscribing sinks.
func (m *Manager) Notifications() *notification.Manager {
	return m.notification
}

// Policy returns the active pricing policy.
func (m *Manager) Policy() pricing.Policy {
	return m.policy
}

// Load replaces the tables with the stored ones. When nothing is stored, or
// the stored data cannot be read, the configured default tables are used.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		zlog.Info().Msg("no stored tables, using defaults")
		records, err = m.seedRecords()
	case err != nil:
		zlog.Warn().Err(err).Msg("failed to load stored tables, using defaults")
		records, err = m.seedRecords()
	}
	if err != nil {
		return err
	}

	resources := make([]*ledger.Resource, 0, len(records))
	for _, r := range records {
		resources = append(resources, m.newResource(r.Info, r.History))
	}
	m.tables.Reset(resources)
	zlog.Info().Msgf("loaded %d tables", len(resources))
	return nil
}

// Save writes every table and its history to the store.
// Open sessions are not saved.
func (m *Manager) Save(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.tables.All()
	records := make([]store.Record, 0, len(entries))
	open := 0
	for _, e := range entries {
		if e.Resource.HasSession() {
			open++
		}
		records = append(records, store.Record{Info: e.Resource.Info(), History: e.Resource.History()})
	}
	if err := m.store.Save(ctx, records); err != nil {
		return errors.Wrap(err, "failed to save tables")
	}
	if open > 0 {
		zlog.Warn().Msgf("saved %d tables; %d open sessions are not persisted", len(records), open)
	} else {
		zlog.Info().Msgf("saved %d tables", len(records))
	}
	return nil
}

func (m *Manager) seedRecords() ([]store.Record, error) {
	records := make([]store.Record, 0, len(m.config.Tables))
	for i, tc := range m.config.Tables {
		kind, err := table.ParseKind(tc.Kind)
		if err != nil {
			return nil, errors.Wrapf(err, "default table %d", i)
		}
		info, err := table.NewInfo(tc.Name, decimal.NewFromFloat(tc.HourlyRate), kind)
		if err != nil {
			return nil, errors.Wrapf(err, "default table %d", i)
		}
		records = append(records, store.Record{Info: info})
	}
	return records, nil
}

func (m *Manager) newResource(info table.Info, history []session.Session) *ledger.Resource {
	return ledger.New(info,
		ledger.WithClock(m.clock),
		ledger.WithPricer(m.policy),
		ledger.WithHistory(history),
	)
}

// AddTable adds a table at the end of the hall.
func (m *Manager) AddTable(name string, hourlyRate decimal.Decimal, kind table.Kind) (registry.Entry, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultTableName
	}
	info, err := table.NewInfo(name, hourlyRate, kind)
	if err != nil {
		return registry.Entry{}, err
	}

	m.mu.Lock()
	res := m.newResource(info, nil)
	id := m.tables.Add(res)
	m.mu.Unlock()

	zlog.Info().Msgf("table added: name=%s kind=%s rate=%s", info.Name, info.Kind, info.HourlyRate)
	m.broadcast(notification.EventTableAdded, id, info, nil)
	return registry.Entry{ID: id, Resource: res}, nil
}

// TableUpdate holds the fields to change on a table. Nil fields are kept.
type TableUpdate struct {
	Name       *string
	HourlyRate *decimal.Decimal
	Kind       *table.Kind
}

// UpdateTable changes a table's name, rate or kind. An open session keeps
// running and is billed at the rate in effect when it stops.
func (m *Manager) UpdateTable(ref string, upd TableUpdate) (table.Info, error) {
	entry, err := m.tables.Lookup(ref)
	if err != nil {
		return table.Info{}, err
	}

	info := entry.Resource.Info()
	if upd.Name != nil && strings.TrimSpace(*upd.Name) != "" {
		info.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.HourlyRate != nil {
		info.HourlyRate = *upd.HourlyRate
	}
	if upd.Kind != nil {
		info.Kind = *upd.Kind
	}
	if err := entry.Resource.SetInfo(info); err != nil {
		return table.Info{}, err
	}

	zlog.Info().Msgf("table updated: name=%s kind=%s rate=%s", info.Name, info.Kind, info.HourlyRate)
	m.broadcast(notification.EventTableUpdated, entry.ID, info, nil)
	return info, nil
}

// RemoveTable removes a table and its whole history.
// An open session on the table is discarded.
func (m *Manager) RemoveTable(ref string) (table.Info, error) {
	m.mu.Lock()
	entry, err := m.tables.Lookup(ref)
	if err == nil {
		err = m.tables.Remove(entry.ID)
	}
	m.mu.Unlock()
	if err != nil {
		return table.Info{}, err
	}

	info := entry.Resource.Info()
	if entry.Resource.HasSession() {
		zlog.Warn().Msgf("table removed with an open session: name=%s elapsed=%s",
			info.Name, session.FormatDuration(entry.Resource.ElapsedSeconds()))
	}
	zlog.Info().Msgf("table removed: name=%s sessions=%d", info.Name, len(entry.Resource.History()))
	m.broadcast(notification.EventTableRemoved, entry.ID, info, nil)
	return info, nil
}

// Start opens a session on a table for the given party.
// It reports false when the table already has an open session.
// A party rejected by admission yields an error marked errs.ErrValidation.
func (m *Manager) Start(ctx context.Context, ref string, members, paying int) (ledger.Snapshot, bool, error) {
	entry, err := m.tables.Lookup(ref)
	if err != nil {
		return ledger.Snapshot{}, false, err
	}
	party, err := session.NewParty(members, paying)
	if err != nil {
		return ledger.Snapshot{}, false, err
	}

	res := entry.Resource
	info := res.Info()
	if res.HasSession() {
		zlog.Debug().Msgf("start ignored: table=%s phase=%s", info.Name, res.State().Phase())
		return res.Snapshot(), false, nil
	}

	result := m.admission.Execute(ctx, admission.StartRequest{
		TableID: entry.ID,
		Table:   info,
		Members: party.Members(),
		Paying:  party.Paying(),
	})
	zlog.Info().Msgf("start request: table=%s members=%d paying=%d result=%t code=%s",
		info.Name, party.Members(), party.Paying(), result.Accepted, result.Code)
	if !result.Accepted {
		return ledger.Snapshot{}, false, errs.Validationf("start rejected on %s: %s", info.Name, result.Code)
	}

	if !res.Start(party) {
		zlog.Debug().Msgf("start ignored: table=%s already open", info.Name)
		return res.Snapshot(), false, nil
	}
	m.broadcast(notification.EventSessionStarted, entry.ID, info, nil)
	return res.Snapshot(), true, nil
}

// Pause pauses a running session. It reports false when nothing was running.
func (m *Manager) Pause(ref string) (ledger.Snapshot, bool, error) {
	return m.transition(ref, "pause", notification.EventSessionPaused, (*ledger.Resource).Pause)
}

// Resume resumes a paused session. It reports false when nothing was paused.
func (m *Manager) Resume(ref string) (ledger.Snapshot, bool, error) {
	return m.transition(ref, "resume", notification.EventSessionResumed, (*ledger.Resource).Resume)
}

func (m *Manager) transition(ref, op string, et notification.EventType, apply func(*ledger.Resource) bool) (ledger.Snapshot, bool, error) {
	entry, err := m.tables.Lookup(ref)
	if err != nil {
		return ledger.Snapshot{}, false, err
	}
	res := entry.Resource
	if !apply(res) {
		zlog.Debug().Msgf("%s ignored: table=%s phase=%s", op, res.Info().Name, res.State().Phase())
		return res.Snapshot(), false, nil
	}
	snap := res.Snapshot()
	m.broadcast(et, entry.ID, snap.Info, nil)
	return snap, true, nil
}

// Stop closes the open session on a table and returns the billed session.
// Stopping an idle table fails with errs.ErrInvalidState.
func (m *Manager) Stop(ref string) (table.Info, session.Session, error) {
	entry, err := m.tables.Lookup(ref)
	if err != nil {
		return table.Info{}, session.Session{}, err
	}
	sess, err := entry.Resource.Stop()
	if err != nil {
		return table.Info{}, session.Session{}, err
	}

	info := entry.Resource.Info()
	zlog.Info().Msgf("session stopped: table=%s duration=%s charge=%s collected=%s",
		info.Name, session.FormatDuration(sess.DurationSeconds),
		sess.Charge.StringFixed(2), sess.TotalCollected().StringFixed(2))
	m.broadcast(notification.EventSessionStopped, entry.ID, info, &sess)
	return info, sess, nil
}

// TableStatus is a table's live state with its position in the hall.
type TableStatus struct {
	ID       string
	Position int
	ledger.Snapshot
}

// Status returns the live state of every table, in hall order.
func (m *Manager) Status() []TableStatus {
	entries := m.tables.All()
	out := make([]TableStatus, 0, len(entries))
	for i, e := range entries {
		out = append(out, TableStatus{ID: e.ID, Position: i + 1, Snapshot: e.Resource.Snapshot()})
	}
	return out
}

// TableStatus returns the live state of one table.
func (m *Manager) TableStatus(ref string) (TableStatus, error) {
	entry, err := m.tables.Lookup(ref)
	if err != nil {
		return TableStatus{}, err
	}
	for _, st := range m.Status() {
		if st.ID == entry.ID {
			return st, nil
		}
	}
	return TableStatus{}, errs.ErrTableNotFound
}

// History returns a table's completed sessions, oldest first.
func (m *Manager) History(ref string) (table.Info, []session.Session, error) {
	entry, err := m.tables.Lookup(ref)
	if err != nil {
		return table.Info{}, nil, err
	}
	return entry.Resource.Info(), entry.Resource.History(), nil
}

// OpenSessions returns the number of tables with a running or paused session.
func (m *Manager) OpenSessions() int {
	n := 0
	for _, e := range m.tables.All() {
		if e.Resource.HasSession() {
			n++
		}
	}
	return n
}

// TableCount returns the number of tables.
func (m *Manager) TableCount() int {
	return m.tables.Count()
}

func (m *Manager) broadcast(et notification.EventType, id string, info table.Info, sess *session.Session) {
	party := session.DefaultParty()
	if res, err := m.tables.Get(id); err == nil {
		party = res.Party()
	}
	if sess != nil {
		if p, err := session.NewParty(sess.MemberPlayers, sess.PayingPlayers); err == nil {
			party = p
		}
	}
	m.notification.Broadcast(notification.Event{
		Type:      et,
		TableID:   id,
		Table:     info,
		Party:     party,
		Session:   sess,
		OpenAfter: m.OpenSessions(),
		At:        m.clock.Now(),
	})
}

// Close releases the manager's subscriptions.
func (m *Manager) Close() {
	m.notification.Close()
}

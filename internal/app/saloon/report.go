package saloon

import (
	"github.com/shopspring/decimal"

	"github.com/osa030/saloon/internal/domain/table"
)

// TableReport summarizes one table's completed sessions.
type TableReport struct {
	Name          string
	Kind          table.Kind
	Sessions      int
	BilledSeconds int64
	Collected     decimal.Decimal
	FreeSessions  int
}

// Report summarizes revenue across the hall.
type Report struct {
	Tables        []TableReport
	Sessions      int
	BilledSeconds int64
	Collected     decimal.Decimal
	ByKind        map[table.Kind]decimal.Decimal
	OpenSessions  int
}

// Report summarizes completed sessions per table and in total.
func (m *Manager) Report() Report {
	rep := Report{
		Collected: decimal.Zero,
		ByKind:    make(map[table.Kind]decimal.Decimal),
	}
	for _, e := range m.tables.All() {
		info := e.Resource.Info()
		tr := TableReport{Name: info.Name, Kind: info.Kind, Collected: decimal.Zero}
		for _, s := range e.Resource.History() {
			tr.Sessions++
			tr.BilledSeconds += s.DurationSeconds
			tr.Collected = tr.Collected.Add(s.TotalCollected())
			if s.Charge.IsZero() {
				tr.FreeSessions++
			}
		}
		rep.Tables = append(rep.Tables, tr)
		rep.Sessions += tr.Sessions
		rep.BilledSeconds += tr.BilledSeconds
		rep.Collected = rep.Collected.Add(tr.Collected)
		rep.ByKind[info.Kind] = rep.ByKind[info.Kind].Add(tr.Collected)
		if e.Resource.HasSession() {
			rep.OpenSessions++
		}
	}
	return rep
}

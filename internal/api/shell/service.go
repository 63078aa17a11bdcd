// Package shell provides the interactive command host for the hall.
package shell

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/osa030/saloon/internal/app/ledger"
	"github.com/osa030/saloon/internal/app/saloon"
	"github.com/osa030/saloon/internal/domain/errs"
	"github.com/osa030/saloon/internal/domain/session"
	"github.com/osa030/saloon/internal/domain/table"
	"github.com/osa030/saloon/internal/infra/config"
)

const timeLayout = "2006-01-02 15:04:05"

// Response is the outcome of one command.
type Response struct {
	Success bool
	Message string
}

func ok(format string, args ...any) Response {
	return Response{Success: true, Message: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...any) Response {
	return Response{Success: false, Message: fmt.Sprintf(format, args...)}
}

func failErr(err error) Response {
	return Response{Success: false, Message: err.Error()}
}

// Service implements the shell commands on top of the hall manager.
type Service struct {
	saloon   *saloon.Manager
	currency string
}

// NewService creates a new Service.
func NewService(m *saloon.Manager, cfg config.ShellConfig) *Service {
	return &Service{
		saloon:   m,
		currency: cfg.Currency,
	}
}

// Help lists the available commands.
func (s *Service) Help() Response {
	return ok(strings.Join([]string{
		"Commands:",
		"  list                                        list tables",
		"  add <kind> <rate> <name...>                 add a table (Billiard, Snooker, Darts)",
		"  edit <table> [name=..] [rate=..] [kind=..]  change a table",
		"  remove <table>                              remove a table and its history",
		"  start <table> [members] [paying]            open a session (default 0 members, 2 paying)",
		"  pause <table>                               pause a running session",
		"  resume <table>                              resume a paused session",
		"  stop <table>                                stop and bill a session",
		"  status [table]                              show live state",
		"  history <table>                             show completed sessions",
		"  report                                      revenue summary",
		"  save                                        save tables and history",
		"  quit                                        save and exit",
		"A table is a position (1, 2, ...) or a name; quote names with spaces.",
	}, "\n"))
}

// List lists the tables in hall order.
func (s *Service) List() Response {
	status := s.saloon.Status()
	if len(status) == 0 {
		return ok("No tables")
	}
	lines := make([]string, 0, len(status))
	for _, st := range status {
		lines = append(lines, fmt.Sprintf("%d. %s [%s] %s%s/h | %s | %d sessions",
			st.Position, st.Info.Name, st.Info.Kind, s.currency, st.Info.HourlyRate.StringFixed(2),
			st.Phase, st.Sessions))
	}
	return ok(strings.Join(lines, "\n"))
}

// AddTable handles "add <kind> <rate> <name...>".
func (s *Service) AddTable(args []string) Response {
	if len(args) < 2 {
		return fail("usage: add <kind> <rate> <name...>")
	}
	kind, err := table.ParseKind(args[0])
	if err != nil {
		return failErr(err)
	}
	rate, err := parseRate(args[1])
	if err != nil {
		return failErr(err)
	}
	entry, err := s.saloon.AddTable(strings.Join(args[2:], " "), rate, kind)
	if err != nil {
		return failErr(err)
	}
	info := entry.Resource.Info()
	return ok("Added %s [%s] at %s%s/h", info.Name, info.Kind, s.currency, info.HourlyRate.StringFixed(2))
}

// EditTable handles "edit <table> [name=..] [rate=..] [kind=..]".
func (s *Service) EditTable(args []string) Response {
	if len(args) < 2 {
		return fail("usage: edit <table> [name=..] [rate=..] [kind=..]")
	}

	var upd saloon.TableUpdate
	for _, arg := range args[1:] {
		key, value, found := strings.Cut(arg, "=")
		if !found {
			return fail("expected key=value, got %q", arg)
		}
		switch strings.ToLower(key) {
		case "name":
			v := value
			upd.Name = &v
		case "rate":
			rate, err := parseRate(value)
			if err != nil {
				return failErr(err)
			}
			upd.HourlyRate = &rate
		case "kind":
			kind, err := table.ParseKind(value)
			if err != nil {
				return failErr(err)
			}
			upd.Kind = &kind
		default:
			return fail("unknown field %q (name, rate, kind)", key)
		}
	}

	info, err := s.saloon.UpdateTable(args[0], upd)
	if err != nil {
		return failErr(err)
	}
	return ok("Updated %s [%s] at %s%s/h", info.Name, info.Kind, s.currency, info.HourlyRate.StringFixed(2))
}

// RemoveTable handles "remove <table>".
func (s *Service) RemoveTable(args []string) Response {
	ref, resp, found := tableRef(args)
	if !found {
		return resp
	}
	info, err := s.saloon.RemoveTable(ref)
	if err != nil {
		return failErr(err)
	}
	return ok("Removed %s and its history", info.Name)
}

// Start handles "start <table> [members] [paying]".
func (s *Service) Start(ctx context.Context, args []string) Response {
	if len(args) == 0 || len(args) > 3 {
		return fail("usage: start <table> [members] [paying]")
	}
	members, paying := session.DefaultMemberPlayers, session.DefaultPayingPlayers
	var err error
	if len(args) > 1 {
		if members, err = strconv.Atoi(args[1]); err != nil {
			return fail("invalid member count %q", args[1])
		}
	}
	if len(args) > 2 {
		if paying, err = strconv.Atoi(args[2]); err != nil {
			return fail("invalid paying count %q", args[2])
		}
	}

	snap, started, err := s.saloon.Start(ctx, args[0], members, paying)
	if err != nil {
		return failErr(err)
	}
	if !started {
		return fail("%s already has an open session (%s)", snap.Info.Name, snap.Phase)
	}
	return ok("Session started on %s: %s", snap.Info.Name, partyText(snap.Party))
}

// Pause handles "pause <table>".
func (s *Service) Pause(args []string) Response {
	ref, resp, found := tableRef(args)
	if !found {
		return resp
	}
	snap, paused, err := s.saloon.Pause(ref)
	if err != nil {
		return failErr(err)
	}
	if !paused {
		return fail("%s is not running", snap.Info.Name)
	}
	return ok("%s paused at %s", snap.Info.Name, session.FormatDuration(snap.Elapsed))
}

// Resume handles "resume <table>".
func (s *Service) Resume(args []string) Response {
	ref, resp, found := tableRef(args)
	if !found {
		return resp
	}
	snap, resumed, err := s.saloon.Resume(ref)
	if err != nil {
		return failErr(err)
	}
	if !resumed {
		return fail("%s is not paused", snap.Info.Name)
	}
	return ok("%s resumed at %s", snap.Info.Name, session.FormatDuration(snap.Elapsed))
}

// Stop handles "stop <table>".
func (s *Service) Stop(args []string) Response {
	ref, resp, found := tableRef(args)
	if !found {
		return resp
	}
	info, sess, err := s.saloon.Stop(ref)
	if err != nil {
		return failErr(err)
	}
	return ok("Session ended on %s\nDuration: %s\nPlayers: %s\nPrice: %s",
		info.Name, session.FormatDuration(sess.DurationSeconds),
		sess.PartySummary(), sess.PriceSummary(s.currency))
}

// Status handles "status [table]".
func (s *Service) Status(args []string) Response {
	var status []saloon.TableStatus
	if len(args) == 0 {
		status = s.saloon.Status()
	} else {
		st, err := s.saloon.TableStatus(strings.Join(args, " "))
		if err != nil {
			return failErr(err)
		}
		status = []saloon.TableStatus{st}
	}

	lines := make([]string, 0, len(status)+1)
	for _, st := range status {
		line := fmt.Sprintf("%d. %s [%s] %s", st.Position, st.Info.Name, st.Info.Kind, st.Phase)
		if st.Phase != ledger.PhaseIdle {
			line += fmt.Sprintf(" %s | %s", session.FormatDuration(st.Elapsed), partyText(st.Party))
		}
		lines = append(lines, line)
	}
	if len(args) == 0 {
		lines = append(lines, fmt.Sprintf("Open sessions: %d of %d tables", s.saloon.OpenSessions(), len(status)))
	}
	return ok(strings.Join(lines, "\n"))
}

// History handles "history <table>".
func (s *Service) History(args []string) Response {
	ref, resp, found := tableRef(args)
	if !found {
		return resp
	}
	info, history, err := s.saloon.History(ref)
	if err != nil {
		return failErr(err)
	}
	if len(history) == 0 {
		return ok("No sessions on %s yet", info.Name)
	}
	lines := []string{fmt.Sprintf("History of %s:", info.Name)}
	for _, h := range history {
		lines = append(lines, s.historyLine(h))
	}
	return ok(strings.Join(lines, "\n"))
}

// Report handles "report".
func (s *Service) Report() Response {
	rep := s.saloon.Report()
	lines := make([]string, 0, len(rep.Tables)+6)
	for _, t := range rep.Tables {
		lines = append(lines, fmt.Sprintf("%s [%s]: %d sessions, %s billed, %s%s collected",
			t.Name, t.Kind, t.Sessions, session.FormatDuration(t.BilledSeconds), s.currency, t.Collected.StringFixed(2)))
	}

	kinds := make([]table.Kind, 0, len(rep.ByKind))
	for k := range rep.ByKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		lines = append(lines, fmt.Sprintf("%s total: %s%s", k, s.currency, rep.ByKind[k].StringFixed(2)))
	}

	lines = append(lines, fmt.Sprintf("Total: %d sessions, %s billed, %s%s collected",
		rep.Sessions, session.FormatDuration(rep.BilledSeconds), s.currency, rep.Collected.StringFixed(2)))
	if rep.OpenSessions > 0 {
		lines = append(lines, fmt.Sprintf("Open sessions not yet billed: %d", rep.OpenSessions))
	}
	return ok(strings.Join(lines, "\n"))
}

// Save handles "save".
func (s *Service) Save(ctx context.Context) Response {
	if err := s.saloon.Save(ctx); err != nil {
		return failErr(err)
	}
	return ok("Saved %d tables", s.saloon.TableCount())
}

// Execute runs one command line. It reports true when the shell should exit.
func (s *Service) Execute(ctx context.Context, line string) (Response, bool) {
	args, err := splitArgs(line)
	if err != nil {
		return failErr(err), false
	}
	if len(args) == 0 {
		return Response{Success: true}, false
	}

	cmd, rest := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "help", "?":
		return s.Help(), false
	case "list", "ls":
		return s.List(), false
	case "add":
		return s.AddTable(rest), false
	case "edit":
		return s.EditTable(rest), false
	case "remove", "rm":
		return s.RemoveTable(rest), false
	case "start":
		return s.Start(ctx, rest), false
	case "pause":
		return s.Pause(rest), false
	case "resume":
		return s.Resume(rest), false
	case "stop":
		return s.Stop(rest), false
	case "status":
		return s.Status(rest), false
	case "history":
		return s.History(rest), false
	case "report":
		return s.Report(), false
	case "save":
		return s.Save(ctx), false
	case "quit", "exit":
		resp := s.Save(ctx)
		if !resp.Success {
			resp.Message += " (not quitting, history would be lost)"
		}
		return resp, resp.Success
	default:
		return fail("unknown command %q (type help)", cmd), false
	}
}

func (s *Service) historyLine(h session.Session) string {
	return fmt.Sprintf("%s → %s | %s | %s | %s",
		h.StartTime.Format(timeLayout), h.EndTime.Format(timeLayout),
		session.FormatDuration(h.DurationSeconds), compactParty(h), s.compactPrice(h))
}

func compactParty(h session.Session) string {
	switch {
	case h.MemberPlayers > 0 && h.PayingPlayers > 0:
		return fmt.Sprintf("%dP (%dM+%d$)", h.Players(), h.MemberPlayers, h.PayingPlayers)
	case h.MemberPlayers > 0:
		return fmt.Sprintf("%dP (all M)", h.Players())
	default:
		return fmt.Sprintf("%dP (all $)", h.Players())
	}
}

func (s *Service) compactPrice(h session.Session) string {
	switch {
	case h.Charge.IsZero():
		return "Free"
	case h.PayingPlayers == 1:
		return fmt.Sprintf("%s%s total", s.currency, h.Charge.StringFixed(2))
	default:
		return fmt.Sprintf("%s%s/player (%s%s total)",
			s.currency, h.Charge.StringFixed(2), s.currency, h.TotalCollected().StringFixed(2))
	}
}

func partyText(p session.Party) string {
	switch {
	case p.Members() > 0 && p.Paying() > 0:
		return fmt.Sprintf("%d players (%d members + %d paying)", p.Total(), p.Members(), p.Paying())
	case p.Members() > 0:
		return fmt.Sprintf("%d players (all members)", p.Total())
	default:
		return fmt.Sprintf("%d players (all paying)", p.Total())
	}
}

// maxRate is the highest hourly rate accepted when adding or editing a table.
var maxRate = decimal.NewFromInt(100)

func parseRate(s string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, errs.Validationf("invalid rate %q", s)
	}
	if rate.IsNegative() || rate.GreaterThan(maxRate) {
		return decimal.Decimal{}, errs.Validationf("rate must be between 0 and %s, got %s", maxRate, rate)
	}
	return rate, nil
}

// tableRef joins args into a table reference so unquoted names work.
func tableRef(args []string) (string, Response, bool) {
	if len(args) == 0 {
		return "", fail("a table position or name is required"), false
	}
	return strings.Join(args, " "), Response{}, true
}

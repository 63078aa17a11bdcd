package store

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"github.com/osa030/saloon/internal/domain/session"
	"github.com/osa030/saloon/internal/domain/table"
)

// Layouts accepted for stored instants. Zone-less values are local time.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

type recordJSON struct {
	Name       string        `json:"name"`
	HourlyRate json.Number   `json:"hourlyRate"`
	Kind       string        `json:"kind"`
	History    []sessionJSON `json:"history"`
}

type sessionJSON struct {
	StartTime       string      `json:"startTime"`
	EndTime         string      `json:"endTime"`
	DurationSeconds int64       `json:"durationSeconds"`
	Charge          json.Number `json:"charge"`
	MemberPlayers   int         `json:"memberPlayers"`
	PayingPlayers   int         `json:"payingPlayers"`
	HasAnyMember    bool        `json:"hasAnyMember"`
}

// storedRecord accepts both the current keys and the legacy snake_case ones.
type storedRecord struct {
	Name         string          `json:"name"`
	HourlyRate   json.Number     `json:"hourlyRate"`
	PricePerHour json.Number     `json:"price_per_hour"`
	Kind         string          `json:"kind"`
	TableType    string          `json:"table_type"`
	History      []storedSession `json:"history"`
}

type storedSession struct {
	StartTime           string      `json:"startTime"`
	Start               string      `json:"start"`
	EndTime             string      `json:"endTime"`
	End                 string      `json:"end"`
	DurationSeconds     *int64      `json:"durationSeconds"`
	Seconds             *int64      `json:"seconds"`
	Charge              json.Number `json:"charge"`
	Price               json.Number `json:"price"`
	MemberPlayers       *int        `json:"memberPlayers"`
	LegacyMemberPlayers *int        `json:"member_players"`
	PayingPlayers       *int        `json:"payingPlayers"`
	LegacyPayingPlayers *int        `json:"paying_players"`
	Member              bool        `json:"member"`
}

// Encode serializes records as an indented JSON array.
func Encode(records []Record) ([]byte, error) {
	out := make([]recordJSON, 0, len(records))
	for _, r := range records {
		rj := recordJSON{
			Name:       r.Info.Name,
			HourlyRate: json.Number(r.Info.HourlyRate.String()),
			Kind:       r.Info.Kind.String(),
			History:    make([]sessionJSON, 0, len(r.History)),
		}
		for _, s := range r.History {
			rj.History = append(rj.History, sessionJSON{
				StartTime:       formatTime(s.StartTime),
				EndTime:         formatTime(s.EndTime),
				DurationSeconds: s.DurationSeconds,
				Charge:          json.Number(s.Charge.StringFixed(2)),
				MemberPlayers:   s.MemberPlayers,
				PayingPlayers:   s.PayingPlayers,
				HasAnyMember:    s.HasAnyMember,
			})
		}
		out = append(out, rj)
	}
	return json.MarshalIndent(out, "", "  ")
}

// Decode parses a JSON array of records.
func Decode(data []byte) ([]Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty table data")
	}

	var stored []storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrap(err, "failed to parse table data")
	}

	records := make([]Record, 0, len(stored))
	for i, sr := range stored {
		rec, err := sr.record()
		if err != nil {
			return nil, errors.Wrapf(err, "table %d", i)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (sr storedRecord) record() (Record, error) {
	rate, err := parseDecimal(firstNumber(sr.HourlyRate, sr.PricePerHour), "hourly rate")
	if err != nil {
		return Record{}, err
	}
	kind, err := table.ParseKind(firstString(sr.Kind, sr.TableType))
	if err != nil {
		return Record{}, err
	}
	info, err := table.NewInfo(sr.Name, rate, kind)
	if err != nil {
		return Record{}, err
	}

	history := make([]session.Session, 0, len(sr.History))
	for j, ss := range sr.History {
		s, err := ss.session()
		if err != nil {
			return Record{}, errors.Wrapf(err, "session %d", j)
		}
		history = append(history, s)
	}
	return Record{Info: info, History: history}, nil
}

func (ss storedSession) session() (session.Session, error) {
	start, err := parseTime(firstString(ss.StartTime, ss.Start))
	if err != nil {
		return session.Session{}, errors.Wrap(err, "start time")
	}
	end, err := parseTime(firstString(ss.EndTime, ss.End))
	if err != nil {
		return session.Session{}, errors.Wrap(err, "end time")
	}

	var duration int64
	switch {
	case ss.DurationSeconds != nil:
		duration = *ss.DurationSeconds
	case ss.Seconds != nil:
		duration = *ss.Seconds
	default:
		duration = int64(end.Sub(start) / time.Second)
	}

	charge, err := parseDecimal(firstNumber(ss.Charge, ss.Price), "charge")
	if err != nil {
		return session.Session{}, err
	}

	// Records written before party sizes existed only carry the member flag.
	members, paying := 0, session.DefaultPayingPlayers
	if ss.Member {
		members, paying = 2, 0
	}
	if v := firstInt(ss.MemberPlayers, ss.LegacyMemberPlayers); v != nil {
		members = *v
	}
	if v := firstInt(ss.PayingPlayers, ss.LegacyPayingPlayers); v != nil {
		paying = *v
	}
	party, err := session.NewParty(members, paying)
	if err != nil {
		return session.Session{}, err
	}

	return session.Session{
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: duration,
		Charge:          charge,
		MemberPlayers:   party.Members(),
		PayingPlayers:   party.Paying(),
		HasAnyMember:    party.Members() > 0,
	}, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Newf("invalid timestamp %q", s)
}

func parseDecimal(n json.Number, field string) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Decimal{}, errors.Newf("missing %s", field)
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "invalid %s", field)
	}
	return d, nil
}

func firstString(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNumber(values ...json.Number) json.Number {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

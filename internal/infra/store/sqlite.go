package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/osa030/saloon/internal/domain/session"
	"github.com/osa030/saloon/internal/domain/table"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS saloon_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tables (
		position INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		hourly_rate TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		table_position INTEGER NOT NULL REFERENCES tables(position) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		duration_seconds INTEGER NOT NULL,
		charge TEXT NOT NULL,
		member_players INTEGER NOT NULL,
		paying_players INTEGER NOT NULL,
		PRIMARY KEY (table_position, seq)
	)`,
}

// SQLite keeps tables and sessions in a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database at path, creating the schema if needed.
// ":memory:" opens an in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating db directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "setting WAL mode")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "enabling foreign keys")
	}
	for i, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "migration %d", i)
		}
	}
	return &SQLite{db: db}, nil
}

// Load reads every table with its history, in stored order.
func (s *SQLite) Load(ctx context.Context) ([]Record, error) {
	var savedAt string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM saloon_meta WHERE key = 'saved_at'`).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading store metadata")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT position, name, kind, hourly_rate FROM tables ORDER BY position`)
	if err != nil {
		return nil, errors.Wrap(err, "querying tables")
	}
	var (
		records   []Record
		positions = map[int64]int{}
	)
	for rows.Next() {
		var (
			pos              int64
			name, kind, rate string
		)
		if err := rows.Scan(&pos, &name, &kind, &rate); err != nil {
			_ = rows.Close()
			return nil, errors.Wrap(err, "scanning table")
		}
		info, err := decodeInfo(name, kind, rate)
		if err != nil {
			_ = rows.Close()
			return nil, errors.Wrapf(err, "table %d", pos)
		}
		positions[pos] = len(records)
		records = append(records, Record{Info: info, History: []session.Session{}})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, errors.Wrap(err, "iterating tables")
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT table_position, start_time, end_time, duration_seconds, charge, member_players, paying_players
		FROM sessions ORDER BY table_position, seq`)
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pos, duration      int64
			start, end, charge string
			members, paying    int
		)
		if err := rows.Scan(&pos, &start, &end, &duration, &charge, &members, &paying); err != nil {
			return nil, errors.Wrap(err, "scanning session")
		}
		idx, ok := positions[pos]
		if !ok {
			return nil, errors.Newf("session references unknown table %d", pos)
		}
		sess, err := decodeSession(start, end, duration, charge, members, paying)
		if err != nil {
			return nil, errors.Wrapf(err, "session of table %d", pos)
		}
		records[idx].History = append(records[idx].History, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating sessions")
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Save replaces the stored snapshot in one transaction.
func (s *SQLite) Save(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return errors.Wrap(err, "clearing sessions")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tables`); err != nil {
		return errors.Wrap(err, "clearing tables")
	}

	for pos, r := range records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tables (position, name, kind, hourly_rate) VALUES (?, ?, ?, ?)`,
			pos, r.Info.Name, r.Info.Kind.String(), r.Info.HourlyRate.String(),
		); err != nil {
			return errors.Wrapf(err, "inserting table %q", r.Info.Name)
		}
		for seq, sess := range r.History {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO sessions (table_position, seq, start_time, end_time, duration_seconds, charge, member_players, paying_players)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				pos, seq,
				formatTime(sess.StartTime), formatTime(sess.EndTime),
				sess.DurationSeconds, sess.Charge.StringFixed(2),
				sess.MemberPlayers, sess.PayingPlayers,
			); err != nil {
				return errors.Wrapf(err, "inserting session %d of %q", seq, r.Info.Name)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO saloon_meta (key, value) VALUES ('saved_at', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return errors.Wrap(err, "updating store metadata")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing snapshot")
	}
	return nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func decodeInfo(name, kind, rate string) (table.Info, error) {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return table.Info{}, errors.Wrap(err, "invalid hourly rate")
	}
	k, err := table.ParseKind(kind)
	if err != nil {
		return table.Info{}, err
	}
	return table.NewInfo(name, r, k)
}

func decodeSession(start, end string, duration int64, charge string, members, paying int) (session.Session, error) {
	st, err := parseTime(start)
	if err != nil {
		return session.Session{}, err
	}
	et, err := parseTime(end)
	if err != nil {
		return session.Session{}, err
	}
	c, err := decimal.NewFromString(charge)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "invalid charge")
	}
	party, err := session.NewParty(members, paying)
	if err != nil {
		return session.Session{}, err
	}
	return session.Session{
		StartTime:       st,
		EndTime:         et,
		DurationSeconds: duration,
		Charge:          c,
		MemberPlayers:   party.Members(),
		PayingPlayers:   party.Paying(),
		HasAnyMember:    party.Members() > 0,
	}, nil
}

// Package store persists tables and their session history.
package store

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/saloon/internal/domain/session"
	"github.com/osa030/saloon/internal/domain/table"
	"github.com/osa030/saloon/internal/infra/config"
)

// ErrNotFound is returned by Load when nothing has been stored yet.
var ErrNotFound = errors.New("nothing stored")

// Record is the persisted form of one table.
// Open sessions are never persisted.
type Record struct {
	Info    table.Info
	History []session.Session
}

// Store loads and saves the full set of tables.
type Store interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "json":
		return NewJSONFile(cfg.Path), nil
	case "sqlite":
		return OpenSQLite(cfg.Path)
	default:
		return nil, errors.Newf("unsupported store driver: %s", cfg.Driver)
	}
}

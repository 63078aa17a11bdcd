// Package registry keeps the ordered set of tables in the hall.
package registry

import (
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/osa030/saloon/internal/app/ledger"
	"github.com/osa030/saloon/internal/domain/errs"
)

// Entry is a registered table.
type Entry struct {
	ID       string
	Resource *ledger.Resource
}

// TableRegistry manages tables with thread-safe access.
// Tables keep their insertion order.
type TableRegistry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*ledger.Resource
}

// NewTableRegistry creates an empty table registry.
func NewTableRegistry() *TableRegistry {
	return &TableRegistry{
		entries: make(map[string]*ledger.Resource),
	}
}

// Add registers a table and returns its ID.
func (r *TableRegistry) Add(res *ledger.Resource) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New().String()
	r.entries[id] = res
	r.order = append(r.order, id)
	return id
}

// Get retrieves a table by ID.
func (r *TableRegistry) Get(id string) (*ledger.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.entries[id]
	if !ok {
		return nil, errs.ErrTableNotFound
	}
	return res, nil
}

// Lookup resolves a table reference: a 1-based position, an ID, or a
// case-insensitive name. A number outside the positions is tried as a name.
func (r *TableRegistry) Lookup(ref string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref = strings.TrimSpace(ref)
	n, err := strconv.Atoi(ref)
	numeric := err == nil
	if numeric && n >= 1 && n <= len(r.order) {
		id := r.order[n-1]
		return Entry{ID: id, Resource: r.entries[id]}, nil
	}
	if res, ok := r.entries[ref]; ok {
		return Entry{ID: ref, Resource: res}, nil
	}
	for _, id := range r.order {
		if strings.EqualFold(r.entries[id].Info().Name, ref) {
			return Entry{ID: id, Resource: r.entries[id]}, nil
		}
	}
	if numeric {
		return Entry{}, errors.Wrapf(errs.ErrTableNotFound, "no table at position %d or named %q", n, ref)
	}
	return Entry{}, errors.Wrapf(errs.ErrTableNotFound, "no table named %q", ref)
}

// Remove deletes a table and with it the table's history.
func (r *TableRegistry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return errs.ErrTableNotFound
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// All returns all tables in insertion order.
func (r *TableRegistry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, Entry{ID: id, Resource: r.entries[id]})
	}
	return result
}

// Count returns the number of tables.
func (r *TableRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Reset replaces all tables.
func (r *TableRegistry) Reset(resources []*ledger.Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]*ledger.Resource, len(resources))
	r.order = make([]string, 0, len(resources))
	for _, res := range resources {
		id := uuid.New().String()
		r.entries[id] = res
		r.order = append(r.order, id)
	}
}

package registry

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/saloon/internal/app/ledger"
	"github.com/osa030/saloon/internal/domain/errs"
	"github.com/osa030/saloon/internal/domain/table"
)

func newResource(t *testing.T, name string) *ledger.Resource {
	t.Helper()
	info, err := table.NewInfo(name, decimal.NewFromInt(10), table.KindBilliard)
	require.NoError(t, err)
	return ledger.New(info)
}

func TestTableRegistry_AddAndGet(t *testing.T) {
	r := NewTableRegistry()
	res := newResource(t, "Table 1")

	id := r.Add(res)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, r.Count())

	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Same(t, res, got)

	_, err = r.Get("missing")
	assert.True(t, errors.Is(err, errs.ErrTableNotFound))
}

func TestTableRegistry_Lookup(t *testing.T) {
	r := NewTableRegistry()
	id1 := r.Add(newResource(t, "Table 1"))
	id2 := r.Add(newResource(t, "Corner Snooker"))
	id3 := r.Add(newResource(t, "7"))

	tests := []struct {
		name    string
		ref     string
		wantID  string
		wantErr bool
	}{
		{name: "by position", ref: "1", wantID: id1},
		{name: "by second position", ref: " 2 ", wantID: id2},
		{name: "by id", ref: id2, wantID: id2},
		{name: "by name ignoring case", ref: "corner snooker", wantID: id2},
		{name: "position before numeric name", ref: "3", wantID: id3},
		{name: "numeric name beyond positions", ref: "7", wantID: id3},
		{name: "position out of range", ref: "4", wantErr: true},
		{name: "position zero", ref: "0", wantErr: true},
		{name: "unknown name", ref: "Darts", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := r.Lookup(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errs.ErrTableNotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, e.ID)
		})
	}
}

func TestTableRegistry_RemoveKeepsOrder(t *testing.T) {
	r := NewTableRegistry()
	id1 := r.Add(newResource(t, "A"))
	id2 := r.Add(newResource(t, "B"))
	id3 := r.Add(newResource(t, "C"))

	require.NoError(t, r.Remove(id2))
	assert.True(t, errors.Is(r.Remove(id2), errs.ErrTableNotFound))

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, id1, all[0].ID)
	assert.Equal(t, id3, all[1].ID)

	e, err := r.Lookup("2")
	require.NoError(t, err)
	assert.Equal(t, "C", e.Resource.Info().Name)
}

func TestTableRegistry_Reset(t *testing.T) {
	r := NewTableRegistry()
	r.Add(newResource(t, "Old"))

	r.Reset([]*ledger.Resource{newResource(t, "X"), newResource(t, "Y")})
	assert.Equal(t, 2, r.Count())

	_, err := r.Lookup("Old")
	assert.Error(t, err)
	e, err := r.Lookup("y")
	require.NoError(t, err)
	assert.Equal(t, r.All()[1].ID, e.ID)
}

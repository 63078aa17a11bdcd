package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		name    string
		elapsed int64
		rate    string
		paying  int
		want    string
	}{
		{name: "all members pay nothing", elapsed: 3600, rate: "10", paying: 0, want: "0.00"},
		{name: "all members long session", elapsed: 36000, rate: "50", paying: 0, want: "0.00"},
		{name: "single payer gets half", elapsed: 3600, rate: "10", paying: 1, want: "5.00"},
		{name: "two payers split", elapsed: 3600, rate: "10", paying: 2, want: "5.00"},
		{name: "three payers split", elapsed: 3600, rate: "10", paying: 3, want: "3.33"},
		{name: "four payers split", elapsed: 7200, rate: "12", paying: 4, want: "6.00"},
		{name: "half hour for two", elapsed: 1800, rate: "10", paying: 2, want: "2.50"},
		{name: "zero seconds", elapsed: 0, rate: "10", paying: 2, want: "0.00"},
		{name: "free table", elapsed: 3600, rate: "0", paying: 2, want: "0.00"},
		{name: "one second", elapsed: 1, rate: "10", paying: 1, want: "0.00"},
		{name: "ninety minutes at 8.50", elapsed: 5400, rate: "8.50", paying: 2, want: "6.38"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Price(tt.elapsed, decimal.RequireFromString(tt.rate), tt.paying)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestPrice_RoundsHalfToEven(t *testing.T) {
	tests := []struct {
		name   string
		rate   string
		paying int
		want   string
	}{
		{name: "0.045 rounds down to even", rate: "0.09", paying: 2, want: "0.04"},
		{name: "0.055 rounds up to even", rate: "0.11", paying: 2, want: "0.06"},
		{name: "single payer 0.045", rate: "0.09", paying: 1, want: "0.04"},
		{name: "0.125 rounds down to even", rate: "0.25", paying: 2, want: "0.12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Price(3600, decimal.RequireFromString(tt.rate), tt.paying)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestPrice_AlwaysTwoDecimals(t *testing.T) {
	got := Price(3600, decimal.NewFromInt(10), 2)
	assert.Equal(t, int32(-2), got.Exponent())
	assert.Equal(t, "5.00", got.StringFixed(2))

	free := Price(3600, decimal.NewFromInt(10), 0)
	assert.Equal(t, "0.00", free.StringFixed(2))
}

func TestNewStandardPolicy(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
		want     string
	}{
		{name: "defaults", settings: nil, want: "5.00"},
		{name: "custom multiplier", settings: map[string]any{"single_player_multiplier": 0.8}, want: "8.00"},
		{name: "full price", settings: map[string]any{"single_player_multiplier": 1.0}, want: "10.00"},
		{name: "single payer free", settings: map[string]any{"single_player_multiplier": 0.0}, want: "0.00"},
		{name: "above one", settings: map[string]any{"single_player_multiplier": 1.5}, wantErr: true},
		{name: "wrong type", settings: map[string]any{"single_player_multiplier": "half"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewStandardPolicy(tt.settings)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			got := p.Price(3600, decimal.NewFromInt(10), 1)
			assert.Equal(t, tt.want, got.StringFixed(2))
			// Splitting is unaffected by the single player multiplier.
			assert.Equal(t, "5.00", p.Price(3600, decimal.NewFromInt(10), 2).StringFixed(2))
		})
	}
}

func TestNew(t *testing.T) {
	p, err := New("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy, p.Name())

	_, err = New("surge", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported pricing policy")

	assert.Contains(t, Names(), "standard")
}

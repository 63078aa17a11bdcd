package pricing

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var secondsPerHour = decimal.NewFromInt(3600)

// StandardConfig represents the configuration for StandardPolicy.
// A multiplier of 0 lets a lone payer play free.
type StandardConfig struct {
	SinglePlayerMultiplier *float64 `yaml:"single_player_multiplier" mapstructure:"single_player_multiplier" default:"0.5" validate:"gte=0,lte=1"`
}

// StandardPolicy bills members nothing, gives a lone payer a discount on the
// table cost and splits the cost evenly between two or more payers.
type StandardPolicy struct {
	single decimal.Decimal
}

// NewStandardPolicy creates a standard policy from config settings.
func NewStandardPolicy(settings map[string]any) (*StandardPolicy, error) {
	var config StandardConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	zlog.Debug().Msgf("standard pricing config: single_player_multiplier=%v", *config.SinglePlayerMultiplier)
	return &StandardPolicy{single: decimal.NewFromFloat(*config.SinglePlayerMultiplier)}, nil
}

func (p *StandardPolicy) Name() string {
	return "standard"
}

func (p *StandardPolicy) Description() string {
	return "Members free, single payer discounted, two or more payers split the cost"
}

// Price returns the charge. For one payer it is that player's total; for two
// or more it is the share of each paying player.
func (p *StandardPolicy) Price(elapsedSeconds int64, hourlyRate decimal.Decimal, payingPlayers int) decimal.Decimal {
	if payingPlayers <= 0 || elapsedSeconds <= 0 {
		return round(decimal.Zero)
	}
	total := decimal.NewFromInt(elapsedSeconds).Mul(hourlyRate).Div(secondsPerHour)
	if payingPlayers == 1 {
		return round(total.Mul(p.single))
	}
	return round(total.Div(decimal.NewFromInt(int64(payingPlayers))))
}

var standard = &StandardPolicy{single: decimal.RequireFromString("0.5")}

// Price prices a session with the default standard policy.
func Price(elapsedSeconds int64, hourlyRate decimal.Decimal, payingPlayers int) decimal.Decimal {
	return standard.Price(elapsedSeconds, hourlyRate, payingPlayers)
}

func init() {
	Register("standard", func(settings map[string]any) (Policy, error) {
		return NewStandardPolicy(settings)
	})
}

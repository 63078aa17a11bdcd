package admission

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/saloon/internal/domain/table"
)

// DartsPartyConfig represents the configuration for DartsPartyFilter.
type DartsPartyConfig struct {
	MaxPlayers *int `yaml:"max_players" mapstructure:"max_players" default:"4" validate:"gte=1"`
}

// DartsPartyFilter caps the number of players on a darts board.
type DartsPartyFilter struct {
	config *DartsPartyConfig
}

func (f *DartsPartyFilter) Name() string {
	return "darts_party_filter"
}

func (f *DartsPartyFilter) Description() string {
	return "Caps the number of players sharing a darts board"
}

func (f *DartsPartyFilter) ReturnCodes() []string {
	return []string{"party_too_large"}
}

func (f *DartsPartyFilter) ValidateConfig(settings map[string]any) error {
	var config DartsPartyConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	f.config = &config
	return nil
}

func (f *DartsPartyFilter) AppliesTo(kind table.Kind) bool {
	return kind == table.KindDarts
}

func (f *DartsPartyFilter) Check(ctx context.Context, req StartRequest) Result {
	if f.config == nil {
		return Accept()
	}
	if req.Players() > *f.config.MaxPlayers {
		return Reject("party_too_large")
	}
	return Accept()
}

func init() {
	Register("darts_party_filter", func() Filter {
		return &DartsPartyFilter{}
	})
}

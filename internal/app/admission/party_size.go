package admission

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/saloon/internal/domain/table"
)

// PartySizeConfig represents the configuration for PartySizeFilter.
// Fields are pointers so an explicit 0 is kept rather than defaulted.
type PartySizeConfig struct {
	MinPlayers *int `yaml:"min_players" mapstructure:"min_players" default:"1" validate:"gte=1"`
	MaxMembers *int `yaml:"max_members" mapstructure:"max_members" default:"8" validate:"gte=0"`
	MaxPaying  *int `yaml:"max_paying" mapstructure:"max_paying" default:"8" validate:"gte=0"`
}

// PartySizeFilter checks the number of players against the allowed range.
type PartySizeFilter struct {
	config *PartySizeConfig
}

// NewPartySizeFilter creates a new party size filter.
func NewPartySizeFilter() *PartySizeFilter {
	return &PartySizeFilter{}
}

func (f *PartySizeFilter) Name() string {
	return "party_size_filter"
}

func (f *PartySizeFilter) Description() string {
	return "Checks that a session has at least one player and no more than the allowed members and payers"
}

func (f *PartySizeFilter) ReturnCodes() []string {
	return []string{"party_too_small", "party_too_large"}
}

func (f *PartySizeFilter) ValidateConfig(settings map[string]any) error {
	var config PartySizeConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &config,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	if *config.MaxMembers+*config.MaxPaying < *config.MinPlayers {
		return errors.New("max_members plus max_paying cannot be less than min_players")
	}
	f.config = &config
	zlog.Debug().Msgf("party size filter config: min_players=%d max_members=%d max_paying=%d",
		*config.MinPlayers, *config.MaxMembers, *config.MaxPaying)
	return nil
}

func (f *PartySizeFilter) AppliesTo(kind table.Kind) bool {
	return true
}

func (f *PartySizeFilter) Check(ctx context.Context, req StartRequest) Result {
	if f.config == nil {
		return Accept()
	}
	if req.Players() < *f.config.MinPlayers {
		return Reject("party_too_small")
	}
	if req.Members > *f.config.MaxMembers || req.Paying > *f.config.MaxPaying {
		return Reject("party_too_large")
	}
	return Accept()
}

func init() {
	Register("party_size_filter", func() Filter {
		return &PartySizeFilter{}
	})
}

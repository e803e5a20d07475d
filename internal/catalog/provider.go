package catalog

import (
	"errors"
	"log/slog"

	"github.com/leapstack-labs/fwd/pkg/provider"
)

// ProviderName is the runtime type the catalog registers under.
const ProviderName = "catalog"

// Params configures the catalog provider.
type Params struct {
	// Path is the catalog YAML file.
	Path string `mapstructure:"path"`

	// Name overrides the catalog name used in logs.
	Name string `mapstructure:"name"`
}

func init() {
	provider.Register(ProviderName, newProvider)
}

func newProvider(params map[string]any, logger *slog.Logger) (provider.Runtime, error) {
	var p Params
	if err := provider.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Path == "" {
		return nil, errors.New("catalog path not specified")
	}

	cat, err := Load(p.Path)
	if err != nil {
		return nil, err
	}
	if p.Name != "" {
		cat.Name = p.Name
	}
	return New(cat, WithLogger(logger))
}

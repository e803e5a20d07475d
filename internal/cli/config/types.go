// Package config provides configuration management for the fwd CLI.
//
// Configuration is layered: defaults, then fwd.yaml (or fwd.yml), then
// FWD_ environment variables, then explicitly set command-line flags.
package config

import (
	"maps"

	"github.com/leapstack-labs/fwd/internal/catalog"
	"github.com/leapstack-labs/fwd/pkg/provider"
)

// Config holds all CLI configuration options.
type Config struct {
	// Root is the name of the reserved root package scripts see as a global.
	Root string `koanf:"root"`

	// Catalog is the catalog file served by the catalog runtime.
	Catalog string `koanf:"catalog"`

	// ScriptDir is where load() looks for sibling script modules. Empty
	// means the directory of the script being run.
	ScriptDir string `koanf:"script_dir"`

	Runtime      provider.Config `koanf:"runtime"`
	Verbose      bool            `koanf:"verbose"`
	OutputFormat string          `koanf:"output"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultRoot        = "jroot"
	DefaultCatalog     = "catalog.yaml"
	DefaultRuntimeType = catalog.ProviderName
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// ProviderConfig returns the runtime configuration handed to the provider
// registry. The catalog runtime gets the configured catalog path unless its
// params name one already.
func (c *Config) ProviderConfig() provider.Config {
	params := make(map[string]any, len(c.Runtime.Params)+1)
	maps.Copy(params, c.Runtime.Params)
	if c.Runtime.Type == catalog.ProviderName {
		if _, ok := params["path"]; !ok && c.Catalog != "" {
			params["path"] = c.Catalog
		}
	}
	return provider.Config{Type: c.Runtime.Type, Params: params}
}

// Package provider maintains the registry of foreign runtime providers.
//
// Providers register a factory under a type name in their init() function.
// Import a provider package with a blank identifier to make it available:
//
//	import _ "github.com/leapstack-labs/fwd/internal/catalog"
package provider

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/fwd/pkg/spi"
)

// Runtime is a startable foreign runtime.
type Runtime interface {
	spi.Runtime
	spi.Lifecycle

	// Start starts the runtime and fires the start hooks.
	Start() error

	// Started reports whether Start has been called.
	Started() bool
}

// Config selects and parameterizes a provider.
type Config struct {
	Type   string         `koanf:"type"`
	Params map[string]any `koanf:"params"`
}

// Factory builds a runtime from provider-specific params.
// A nil logger means the provider should discard logs.
type Factory func(params map[string]any, logger *slog.Logger) (Runtime, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a provider factory to the registry.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a provider factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New creates a runtime for cfg.
func New(cfg Config, logger *slog.Logger) (Runtime, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("runtime type not specified")
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownProviderError{
			Type:      cfg.Type,
			Available: List(),
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	rt, err := factory(cfg.Params, logger)
	if err != nil {
		return nil, fmt.Errorf("runtime %s: %w", cfg.Type, err)
	}
	return rt, nil
}

// List returns all registered provider names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a provider type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// DecodeParams decodes provider params into out, a pointer to a struct with
// mapstructure tags. Unknown keys are an error.
func DecodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("invalid runtime params: %w", err)
	}
	return nil
}

// UnknownProviderError is returned when an unknown runtime type is requested.
type UnknownProviderError struct {
	Type      string
	Available []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown runtime type %q\nAvailable runtimes: %v\nHint: Check runtime.type in fwd.yaml", e.Type, e.Available)
}

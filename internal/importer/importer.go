// Package importer implements a module-resolution protocol modeled on
// finder/loader pairs, and the finder that serves forward references for a
// reserved root package.
package importer

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/fwd/pkg/spi"
)

// ErrModuleNotFound is returned when no finder claims a module name.
var ErrModuleNotFound = errors.New("module not found")

// ModuleNotFoundError names the module no finder claimed.
type ModuleNotFoundError struct {
	Name string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("no module named %q", e.Name)
}

func (e *ModuleNotFoundError) Is(target error) bool {
	return target == ErrModuleNotFound
}

// ModuleSpec describes a module a finder can load.
type ModuleSpec struct {
	Name      string
	Loader    Loader
	IsPackage bool
	Origin    string
}

// Finder locates modules by fully-qualified name.
type Finder interface {
	FindSpec(fullname string) (*ModuleSpec, bool)
}

// Loader turns a spec into a module. Create builds the module object and Exec
// runs its initialization.
type Loader interface {
	Create(spec *ModuleSpec) (spi.Value, error)
	Exec(module spi.Value) error
}

// attrHolder is implemented by modules that expose attributes.
type attrHolder interface {
	Attr(name string) (spi.Value, error)
}

// binder is implemented by modules that accept sub-modules as attributes.
type binder interface {
	Bind(name string, v spi.Value) error
}

// MetaPath walks its finders in order and caches every imported module.
type MetaPath struct {
	logger *slog.Logger

	mu      sync.Mutex
	finders []Finder
	modules map[string]spi.Value
}

// Option configures a MetaPath.
type Option func(*MetaPath)

// WithLogger sets the logger for import tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(m *MetaPath) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMetaPath creates a MetaPath consulting finders in order.
func NewMetaPath(finders []Finder, opts ...Option) *MetaPath {
	m := &MetaPath{
		logger:  slog.New(slog.DiscardHandler),
		finders: append([]Finder(nil), finders...),
		modules: make(map[string]spi.Value),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Prepend puts f ahead of the existing finders.
func (m *MetaPath) Prepend(f Finder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finders = append([]Finder{f}, m.finders...)
}

// Import returns the module called name, importing its parent packages
// first. Each sub-module is bound onto its parent under its base name.
func (m *MetaPath) Import(name string) (spi.Value, error) {
	if name == "" {
		return nil, &ModuleNotFoundError{Name: name}
	}
	if mod, ok := m.Lookup(name); ok {
		return mod, nil
	}

	var parent spi.Value
	base := name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		p, err := m.Import(name[:i])
		if err != nil {
			return nil, err
		}
		parent, base = p, name[i+1:]
	}

	spec, ok := m.findSpec(name)
	if !ok {
		return nil, &ModuleNotFoundError{Name: name}
	}

	mod, err := spec.Loader.Create(spec)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", name, err)
	}

	m.mu.Lock()
	if existing, ok := m.modules[name]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.modules[name] = mod
	m.mu.Unlock()

	if err := spec.Loader.Exec(mod); err != nil {
		m.mu.Lock()
		delete(m.modules, name)
		m.mu.Unlock()
		return nil, fmt.Errorf("import %s: %w", name, err)
	}

	if b, ok := parent.(binder); ok {
		if err := b.Bind(base, mod); err != nil {
			m.logger.Debug("could not bind sub-module", "module", name, "error", err)
		}
	}
	m.logger.Debug("module imported", "module", name, "origin", spec.Origin)
	return mod, nil
}

// From imports module name and returns the requested attributes of it. An
// attribute the module lacks is imported as a sub-module instead.
func (m *MetaPath) From(name string, attrs ...string) ([]spi.Value, error) {
	mod, err := m.Import(name)
	if err != nil {
		return nil, err
	}

	out := make([]spi.Value, 0, len(attrs))
	for _, attr := range attrs {
		if h, ok := mod.(attrHolder); ok {
			if v, err := h.Attr(attr); err == nil {
				out = append(out, v)
				continue
			}
		}
		sub, err := m.Import(name + "." + attr)
		if err != nil {
			return nil, fmt.Errorf("cannot import name %q from %q: %w", attr, name, err)
		}
		out = append(out, sub)
	}
	return out, nil
}

// Lookup returns a cached module.
func (m *MetaPath) Lookup(name string) (spi.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.modules[name]
	return mod, ok
}

// Modules lists the cached module names, sorted.
func (m *MetaPath) Modules() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.modules))
	for name := range m.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *MetaPath) findSpec(name string) (*ModuleSpec, bool) {
	m.mu.Lock()
	finders := append([]Finder(nil), m.finders...)
	m.mu.Unlock()

	for _, f := range finders {
		if spec, ok := f.FindSpec(name); ok {
			return spec, true
		}
	}
	return nil, false
}

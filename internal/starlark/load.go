package starlark

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/leapstack-labs/fwd/internal/importer"
	"github.com/leapstack-labs/fwd/pkg/forward"
	"github.com/leapstack-labs/fwd/pkg/spi"
	"github.com/leapstack-labs/fwd/pkg/symbol"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// loadRequestsKey holds, per thread, the names each load statement of the
// executing file asks for. Forward modules have no fixed member list, so
// the loader needs to know the names up front.
const loadRequestsKey = "fwd.load.requests"

// ErrLoadCycle is returned when script modules load each other.
var ErrLoadCycle = errors.New("cycle in load graph")

func loadRequests(f *syntax.File) map[string][]string {
	reqs := make(map[string][]string)
	for _, stmt := range f.Stmts {
		load, ok := stmt.(*syntax.LoadStmt)
		if !ok {
			continue
		}
		module, _ := load.Module.Value.(string)
		for _, from := range load.From {
			reqs[module] = append(reqs[module], from.Name)
		}
	}
	return reqs
}

// load serves load() statements. Modules under the root package yield
// forward references for the requested names; other modules are sibling
// script files.
func (ctx *ExecutionContext) load(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	if ctx.rf.Owns(module) {
		reqs, _ := thread.Local(loadRequestsKey).(map[string][]string)
		names := reqs[module]
		if rt := ctx.Runtime(); rt != nil {
			return ctx.loadStarted(rt, module, names)
		}
		values, err := ctx.Imports.From(module, names...)
		if err != nil {
			return nil, err
		}
		out := make(starlark.StringDict, len(names))
		for i, name := range names {
			sv, err := ctx.wrap(values[i])
			if err != nil {
				return nil, err
			}
			out[name] = sv
		}
		return out, nil
	}

	mod, err := ctx.Imports.Import(module)
	if err != nil {
		return nil, err
	}
	sm, ok := mod.(*scriptModule)
	if !ok {
		return nil, fmt.Errorf("module %q cannot be loaded by scripts", module)
	}
	return sm.exports()
}

// loadStarted serves root modules once the runtime is running. References
// created now would never resolve, so names are looked up directly.
func (ctx *ExecutionContext) loadStarted(rt spi.Runtime, module string, names []string) (starlark.StringDict, error) {
	sym, err := symbol.Parse(strings.TrimPrefix(strings.TrimPrefix(module, ctx.Root), "."))
	if err != nil {
		return nil, err
	}
	if !sym.IsRoot() {
		if _, ok := forward.Lookup(rt, sym); !ok {
			return nil, &importer.ModuleNotFoundError{Name: module}
		}
	}
	out := make(starlark.StringDict, len(names))
	for _, name := range names {
		v, ok := forward.Lookup(rt, sym.Child(name))
		if !ok {
			return nil, fmt.Errorf("cannot import name %q from %q", name, module)
		}
		sv, err := ctx.wrap(v)
		if err != nil {
			return nil, err
		}
		out[name] = sv
	}
	return out, nil
}

// lookup resolves sym against a started runtime. Misses report nil so
// Starlark raises its usual missing-attribute error.
func (ctx *ExecutionContext) lookup(rt spi.Runtime, sym symbol.Symbol) (starlark.Value, error) {
	v, ok := forward.Lookup(rt, sym)
	if !ok {
		return nil, nil
	}
	return ctx.wrap(v)
}

// scriptModule is a .star file, or a directory of them, imported through
// load().
type scriptModule struct {
	name    string
	path    string
	pkg     bool
	mu      sync.Mutex
	loading bool
	globals starlark.StringDict
}

func (m *scriptModule) Kind() spi.Kind { return spi.KindNamespace }

func (m *scriptModule) String() string {
	return fmt.Sprintf("<module %s from %s>", m.name, m.path)
}

func (m *scriptModule) exports() (starlark.StringDict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loading {
		return nil, fmt.Errorf("%w: %s", ErrLoadCycle, m.name)
	}
	if m.globals == nil {
		return starlark.StringDict{}, nil
	}
	return m.globals, nil
}

// fileFinder finds script modules below dir. Dotted module names map to
// nested paths: "lib.strings" is lib/strings.star, and a directory is a
// package whose members are its .star files.
type fileFinder struct {
	ctx *ExecutionContext
	dir string
}

var (
	_ importer.Finder = (*fileFinder)(nil)
	_ importer.Loader = (*fileFinder)(nil)
)

func (f *fileFinder) FindSpec(fullname string) (*importer.ModuleSpec, bool) {
	if strings.ContainsAny(fullname, `/\`) {
		return nil, false
	}
	base := filepath.Join(f.dir, filepath.FromSlash(strings.ReplaceAll(fullname, ".", "/")))

	if info, err := os.Stat(base + ".star"); err == nil && !info.IsDir() {
		return &importer.ModuleSpec{Name: fullname, Loader: f, Origin: base + ".star"}, true
	}
	if info, err := os.Stat(base); err == nil && info.IsDir() {
		return &importer.ModuleSpec{Name: fullname, Loader: f, IsPackage: true, Origin: base}, true
	}
	return nil, false
}

func (f *fileFinder) Create(spec *importer.ModuleSpec) (spi.Value, error) {
	return &scriptModule{name: spec.Name, path: spec.Origin, pkg: spec.IsPackage}, nil
}

func (f *fileFinder) Exec(module spi.Value) error {
	m := module.(*scriptModule)
	if m.pkg {
		return nil
	}

	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()

	globals, err := f.ctx.ExecFile(m.path, nil)

	m.mu.Lock()
	m.loading = false
	m.globals = globals
	m.mu.Unlock()
	return err
}

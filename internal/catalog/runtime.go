package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/leapstack-labs/fwd/pkg/spi"
	"github.com/leapstack-labs/fwd/pkg/symbol"
)

// RootClass is the implicit superclass of every class and array class when
// the catalog declares it.
const RootClass = "java.lang.Object"

// Runtime is a simulated managed runtime built from a Catalog.
type Runtime struct {
	name     string
	logger   *slog.Logger
	packages map[string]*Package
	classes  map[string]*Class
	root     *Class
	nextID   atomic.Uint64

	mu      sync.Mutex
	arrays  map[string]*Class
	hooks   []spi.StartHook
	started bool
	session string
}

var (
	_ spi.Runtime      = (*Runtime)(nil)
	_ spi.Lifecycle    = (*Runtime)(nil)
	_ spi.Type         = (*Class)(nil)
	_ spi.ArrayFactory = (*Class)(nil)
	_ spi.ArrayValue   = (*Array)(nil)
	_ spi.Native       = Primitive{}
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime logger.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// Open loads the catalog at path and builds a runtime from it.
func Open(path string, opts ...Option) (*Runtime, error) {
	cat, err := Load(path)
	if err != nil {
		return nil, err
	}
	return New(cat, opts...)
}

// New builds a runtime from cat. The runtime is not started.
func New(cat *Catalog, opts ...Option) (*Runtime, error) {
	if err := cat.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{
		name:     cat.Name,
		logger:   slog.New(slog.DiscardHandler),
		packages: make(map[string]*Package),
		classes:  make(map[string]*Class),
		arrays:   make(map[string]*Class),
	}
	for _, opt := range opts {
		opt(rt)
	}

	for _, p := range primitiveNames {
		rt.classes[p] = &Class{rt: rt, name: p, prim: true}
	}
	for _, cs := range cat.Classes {
		rt.classes[cs.Name] = &Class{
			rt:       rt,
			name:     cs.Name,
			iface:    cs.Interface,
			abstract: cs.Abstract,
			enum:     len(cs.Enum) > 0,
			boxes:    cs.Boxes,
			fields:   make(map[string]spi.Value),
		}
		rt.addPackages(symbol.Symbol(cs.Name).Prefix(len(symbol.Symbol(cs.Name).Segments()) - 1))
	}
	for _, p := range cat.Packages {
		rt.addPackages(symbol.Symbol(p))
	}
	rt.root = rt.classes[RootClass]

	for _, cs := range cat.Classes {
		c := rt.classes[cs.Name]
		switch {
		case cs.Super != "":
			c.super = rt.classes[cs.Super]
		case !cs.Interface && c != rt.root:
			c.super = rt.root
		}
		for _, iface := range cs.Interfaces {
			c.interfaces = append(c.interfaces, rt.classes[iface])
		}
	}

	for _, cs := range cat.Classes {
		c := rt.classes[cs.Name]
		for _, constant := range cs.Enum {
			c.fields[constant] = rt.newObject(c, constant)
		}
		names := make([]string, 0, len(cs.Fields))
		for name := range cs.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v, err := rt.fieldValue(cs.Fields[name])
			if err != nil {
				return nil, &DefinitionError{Class: cs.Name, Field: name, Msg: err.Error()}
			}
			c.fields[name] = v
		}
	}
	return rt, nil
}

// addPackages registers p and every dotted prefix of it.
func (rt *Runtime) addPackages(p symbol.Symbol) {
	for i := range p.Segments() {
		path := string(p.Prefix(i + 1))
		if _, ok := rt.packages[path]; !ok {
			rt.packages[path] = &Package{path: path}
		}
	}
}

func (rt *Runtime) fieldValue(f FieldSpec) (spi.Value, error) {
	sym := symbol.Symbol(f.Type)
	elem := rt.classes[string(sym.Elem())]

	if dims := sym.Dims(); dims > 0 {
		values, _ := f.Value.([]any)
		length := f.Length
		if values != nil {
			length = len(values)
		}
		arr, err := newArray(rt.arrayClass(elem, dims), []int{length})
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			if err := arr.Set(i, v); err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
		}
		return arr, nil
	}

	switch {
	case elem.prim:
		return NewPrimitive(elem.name, f.Value)
	case f.Value == nil:
		return rt.newObject(elem, nil), nil
	case elem.boxes != "":
		return elem.Cast(f.Value)
	default:
		return rt.newObject(elem, f.Value), nil
	}
}

func (rt *Runtime) newObject(c *Class, value any) *Object {
	return &Object{class: c, value: value, id: rt.nextID.Add(1)}
}

// arrayClass returns the array class of elem with dims dimensions, creating
// intermediate array classes on first use.
func (rt *Runtime) arrayClass(elem *Class, dims int) *Class {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	cur := elem
	for i := 0; i < dims; i++ {
		name := string(symbol.Symbol(elem.name).ArrayOf(i + 1))
		next, ok := rt.arrays[name]
		if !ok {
			next = &Class{rt: rt, name: name, elem: cur, super: rt.root}
			rt.arrays[name] = next
		}
		cur = next
	}
	return cur
}

// Name returns the catalog name.
func (rt *Runtime) Name() string { return rt.name }

// OnStart registers a hook to run when the runtime starts. Hooks registered
// after start run immediately.
func (rt *Runtime) OnStart(hook spi.StartHook) {
	rt.mu.Lock()
	if !rt.started {
		rt.hooks = append(rt.hooks, hook)
		rt.mu.Unlock()
		return
	}
	rt.mu.Unlock()

	if err := hook(rt); err != nil {
		rt.logger.Error("late start hook failed", "error", err)
	}
}

// Start starts the runtime and fires the start hooks in registration order.
// The runtime counts as started even when a hook fails.
func (rt *Runtime) Start() error {
	rt.mu.Lock()
	if rt.started {
		rt.mu.Unlock()
		return ErrAlreadyStarted
	}
	rt.started = true
	rt.session = uuid.NewString()
	hooks := rt.hooks
	rt.hooks = nil
	rt.mu.Unlock()

	rt.logger.Info("runtime started",
		"catalog", rt.name,
		"session", rt.session,
		"packages", len(rt.packages),
		"classes", len(rt.Classes()),
		"hooks", len(hooks))

	for i, hook := range hooks {
		if err := hook(rt); err != nil {
			return fmt.Errorf("start hook %d: %w", i, err)
		}
	}
	return nil
}

// Started reports whether Start has been called.
func (rt *Runtime) Started() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.started
}

// Session returns the id assigned at start, or "" before start.
func (rt *Runtime) Session() string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.session
}

// IsNamespace reports whether path is a package.
func (rt *Runtime) IsNamespace(path string) bool {
	_, ok := rt.packages[path]
	return ok
}

// Namespace returns the package at path.
func (rt *Runtime) Namespace(path string) (spi.Value, bool) {
	p, ok := rt.packages[path]
	if !ok {
		return nil, false
	}
	return p, true
}

// FindType looks up a class by name. Names ending in bracket tokens denote
// array classes.
func (rt *Runtime) FindType(name string) (spi.Value, bool) {
	sym := symbol.Symbol(name)
	c, ok := rt.classes[string(sym.Elem())]
	if !ok {
		return nil, false
	}
	if dims := sym.Dims(); dims > 0 {
		return rt.arrayClass(c, dims), true
	}
	return c, true
}

// Attr reads a member: sub-packages and classes of a package, static fields
// of a class or of an object's class, and the length of an array.
func (rt *Runtime) Attr(v spi.Value, name string) (spi.Value, bool) {
	switch x := spi.Unwrap(v).(type) {
	case *Package:
		path := x.path + "." + name
		if p, ok := rt.packages[path]; ok {
			return p, true
		}
		if c, ok := rt.classes[path]; ok {
			return c, true
		}
	case *Class:
		return x.Field(name)
	case *Object:
		return x.class.Field(name)
	case *Array:
		if name == "length" {
			return Primitive{Type: "int", V: int64(x.Len())}, true
		}
	}
	return nil, false
}

// Packages returns all packages sorted by path.
func (rt *Runtime) Packages() []*Package {
	out := make([]*Package, 0, len(rt.packages))
	for _, p := range rt.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// Classes returns the declared classes sorted by name. Primitive and array
// classes are not included.
func (rt *Runtime) Classes() []*Class {
	out := make([]*Class, 0, len(rt.classes))
	for _, c := range rt.classes {
		if !c.prim {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// ClassesIn returns the classes declared directly in package path.
func (rt *Runtime) ClassesIn(path string) []*Class {
	var out []*Class
	for _, c := range rt.Classes() {
		if i := strings.LastIndexByte(c.name, '.'); i >= 0 && c.name[:i] == path {
			out = append(out, c)
		}
	}
	return out
}

package forward

import (
	"strings"
	"sync"
	"weak"

	"github.com/leapstack-labs/fwd/pkg/spi"
	"github.com/leapstack-labs/fwd/pkg/symbol"
)

// State tags the behavior a Ref currently exhibits.
type State int

// A Ref starts Unresolved and moves to exactly one of the resolved states.
const (
	Unresolved State = iota
	Namespace
	Type
	Generic
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Namespace:
		return "namespace"
	case Type:
		return "type"
	case Generic:
		return "object"
	default:
		return "unknown"
	}
}

// reservedNames are host introspection names. Looking them up must fail so
// that module metadata probing never synthesizes bogus symbols.
var reservedNames = map[string]struct{}{
	"__spec__":    {},
	"__name__":    {},
	"__loader__":  {},
	"__package__": {},
	"__path__":    {},
}

// IsReserved reports whether name is a reserved introspection name.
func IsReserved(name string) bool {
	_, ok := reservedNames[name]
	return ok
}

// Slice is a subscript key denoting one array dimension.
type Slice struct{}

// Ref is a forward reference to a foreign entity. It is created unresolved
// and morphs in place into a namespace, type or object binding when the
// runtime starts; every holder of the same *Ref observes the change.
type Ref struct {
	reg *Registry
	sym symbol.Symbol

	mu       sync.RWMutex
	state    State
	instance spi.Value
	rt       spi.Runtime
	children map[string]weak.Pointer[Ref]
}

func newRef(reg *Registry, sym symbol.Symbol) *Ref {
	return &Ref{
		reg:      reg,
		sym:      sym,
		children: make(map[string]weak.Pointer[Ref]),
	}
}

// Symbol returns the symbol this reference was declared with.
func (r *Ref) Symbol() symbol.Symbol {
	return r.sym
}

// State returns the current behavior tag.
func (r *Ref) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Resolved reports whether the reference has been bound.
func (r *Ref) Resolved() bool {
	return r.State() != Unresolved
}

// Instance returns the bound foreign value.
func (r *Ref) Instance() (spi.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instance, r.state != Unresolved
}

// Unwrap implements the placeholder protocol used by spi.Unwrap.
func (r *Ref) Unwrap() (spi.Value, bool) {
	return r.Instance()
}

// Kind reports the kind of the bound value, or spi.KindForward while unresolved.
func (r *Ref) Kind() spi.Kind {
	if v, ok := r.Instance(); ok {
		return v.Kind()
	}
	return spi.KindForward
}

func (r *Ref) String() string {
	if v, ok := r.Instance(); ok {
		return v.String()
	}
	return displaySymbol(r.sym)
}

func (r *Ref) snapshot() (State, spi.Value, spi.Runtime) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state, r.instance, r.rt
}

// morph binds the reference. It is write-once: a bound reference never
// changes again.
func (r *Ref) morph(state State, instance spi.Value, rt spi.Runtime) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Unresolved {
		return false
	}
	r.state = state
	r.instance = instance
	r.rt = rt
	return true
}

// Child returns the reference for name below this one, creating it through
// the registry. It is purely structural and never consults the runtime.
func (r *Ref) Child(name string) (*Ref, error) {
	if IsReserved(name) {
		return nil, &AccessError{Symbol: r.sym, Op: "attribute", Name: name, Err: ErrNotFound}
	}
	if name == "" {
		return nil, &AccessError{Symbol: r.sym, Op: "attribute", Err: ErrInvalidAccess}
	}
	// Brackets only ever come as whole array tokens.
	if symbol.HasBracket(name) && !symbol.IsArrayToken(name) {
		return nil, &AccessError{Symbol: r.sym, Op: "attribute", Name: name, Err: ErrInvalidAccess}
	}

	r.mu.RLock()
	wp, ok := r.children[name]
	r.mu.RUnlock()
	if ok {
		if child := wp.Value(); child != nil {
			return child, nil
		}
	}

	child := r.reg.GetOrCreate(r.sym.Child(name))

	r.mu.Lock()
	r.children[name] = weak.Make(child)
	r.mu.Unlock()
	return child, nil
}

// Bind attaches an already-created child reference under name. The import
// machinery uses it to hang sub-modules off their parent package. Binding
// anything else needs a running runtime.
func (r *Ref) Bind(name string, v spi.Value) error {
	if IsReserved(name) || name == "" {
		return &AccessError{Symbol: r.sym, Op: "bind", Name: name, Err: ErrInvalidAccess}
	}
	child, ok := v.(*Ref)
	if !ok {
		return &NotReadyError{Symbol: r.sym, Op: "setting attribute " + name}
	}

	r.mu.Lock()
	r.children[name] = weak.Make(child)
	r.mu.Unlock()
	return nil
}

// Attr accesses name. Unresolved references build a child reference;
// resolved references delegate to the bound value.
func (r *Ref) Attr(name string) (spi.Value, error) {
	state, inst, rt := r.snapshot()
	switch state {
	case Unresolved:
		child, err := r.Child(name)
		if err != nil {
			return nil, err
		}
		return child, nil
	case Namespace:
		return r.namespaceAttr(inst, rt, name)
	default:
		return r.memberAttr(inst, rt, name)
	}
}

// Subscript applies an index expression. Each Slice key adds one array
// dimension. Unresolved references only accept slices.
func (r *Ref) Subscript(keys ...any) (spi.Value, error) {
	state, inst, _ := r.snapshot()
	switch state {
	case Unresolved:
		dims, ok := sliceDims(keys)
		if !ok {
			return nil, &AccessError{Symbol: r.sym, Op: "subscript", Err: errNoArrayWithoutRuntime}
		}
		child, err := r.Child(strings.Repeat(symbol.Bracket, dims))
		if err != nil {
			return nil, err
		}
		return child, nil
	case Type:
		return r.typeSubscript(inst, keys)
	default:
		return nil, &AccessError{Symbol: r.sym, Op: "subscript", Err: ErrNotSupported}
	}
}

// Call constructs an instance of the bound type.
func (r *Ref) Call(args ...any) (spi.Value, error) {
	state, inst, _ := r.snapshot()
	switch state {
	case Unresolved:
		return nil, &NotReadyError{Symbol: r.sym, Op: "call"}
	case Type:
		return inst.(spi.Type).New(unwrapArgs(args)...)
	default:
		return nil, &AccessError{Symbol: r.sym, Op: "call", Err: ErrNotSupported}
	}
}

// Cast converts v to the bound type.
func (r *Ref) Cast(v any) (spi.Value, error) {
	state, inst, _ := r.snapshot()
	switch state {
	case Unresolved:
		return nil, &NotReadyError{Symbol: r.sym, Op: "cast"}
	case Type:
		return inst.(spi.Type).Cast(unwrapArg(v))
	default:
		return nil, &AccessError{Symbol: r.sym, Op: "cast", Err: ErrNotSupported}
	}
}

// IsInstance reports whether v is an instance of the bound type.
func (r *Ref) IsInstance(v spi.Value) (bool, error) {
	state, inst, _ := r.snapshot()
	switch state {
	case Unresolved:
		return false, &NotReadyError{Symbol: r.sym, Op: "instance check"}
	case Type:
		return inst.(spi.Type).IsInstance(spi.Unwrap(v)), nil
	default:
		return false, &AccessError{Symbol: r.sym, Op: "instance check", Err: ErrNotSupported}
	}
}

// IsSubclass reports whether t is the bound type or derives from it.
func (r *Ref) IsSubclass(t spi.Value) (bool, error) {
	state, inst, _ := r.snapshot()
	switch state {
	case Unresolved:
		return false, &NotReadyError{Symbol: r.sym, Op: "subclass check"}
	case Type:
		return inst.(spi.Type).IsSubclass(spi.Unwrap(t)), nil
	default:
		return false, &AccessError{Symbol: r.sym, Op: "subclass check", Err: ErrNotSupported}
	}
}

// Equal compares r with other. Unresolved references are equal only to
// themselves. Resolved references evaluate other == instance, so the other
// operand's own equality takes precedence.
func (r *Ref) Equal(other spi.Value) bool {
	state, inst, _ := r.snapshot()
	if o, ok := other.(*Ref); ok && o == r {
		return true
	}
	if state == Unresolved {
		return false
	}
	if o, ok := other.(*Ref); ok {
		return o.Equal(inst)
	}
	return spi.Equal(other, inst)
}

// NotEqual is the negation of Equal.
func (r *Ref) NotEqual(other spi.Value) bool {
	return !r.Equal(other)
}

func sliceDims(keys []any) (int, bool) {
	if len(keys) == 0 {
		return 0, false
	}
	for _, k := range keys {
		if _, ok := k.(Slice); !ok {
			return 0, false
		}
	}
	return len(keys), true
}

func unwrapArg(a any) any {
	if v, ok := a.(spi.Value); ok {
		return spi.Unwrap(v)
	}
	return a
}

func unwrapArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = unwrapArg(a)
	}
	return out
}

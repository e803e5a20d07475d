package starlark

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/fwd/pkg/forward"
	"github.com/leapstack-labs/fwd/pkg/spi"
	"github.com/leapstack-labs/fwd/pkg/symbol"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Foreign exposes a forward reference or a foreign value to scripts.
//
// A single Go type carries every foreign value so that Starlark equality,
// which only consults CompareSameType for operands of the same Go type, can
// compare a reference with the value it is bound to.
type Foreign struct {
	v   spi.Value
	ctx *ExecutionContext
}

var (
	_ starlark.HasAttrs    = (*Foreign)(nil)
	_ starlark.Callable    = (*Foreign)(nil)
	_ starlark.Sliceable   = (*Foreign)(nil)
	_ starlark.HasSetIndex = (*Foreign)(nil)
	_ starlark.Mapping     = (*Foreign)(nil)
	_ starlark.Comparable  = (*Foreign)(nil)
)

// Value returns the wrapped value.
func (f *Foreign) Value() spi.Value { return f.v }

// Ref returns the wrapped forward reference, if any.
func (f *Foreign) Ref() (*forward.Ref, bool) {
	r, ok := f.v.(*forward.Ref)
	return r, ok
}

func (f *Foreign) String() string { return f.v.String() }

// Type reports "forward" for unresolved references and the kind of the
// bound value otherwise.
func (f *Foreign) Type() string {
	return f.v.Kind().String()
}

func (f *Foreign) Freeze() {}
func (f *Foreign) Truth() starlark.Bool { return starlark.True }

// Hash keys a reference on its symbol, which stays fixed when the reference
// is bound, so dicts built before start still find it afterwards.
func (f *Foreign) Hash() (uint32, error) {
	if r, ok := f.Ref(); ok {
		return starlark.String(r.Symbol()).Hash()
	}
	return starlark.String(f.v.String()).Hash()
}

// Name is the base name of a reference or type, used in call errors.
func (f *Foreign) Name() string {
	if r, ok := f.Ref(); ok {
		return r.Symbol().Base()
	}
	if t, ok := f.v.(spi.Type); ok {
		return t.Name()
	}
	return f.Type()
}

// Attr returns nil for missing members so that Starlark reports its usual
// "has no .x field or method" error.
func (f *Foreign) Attr(name string) (starlark.Value, error) {
	if r, ok := f.Ref(); ok {
		if r.Symbol().IsRoot() && !r.Resolved() {
			if rt := f.ctx.Runtime(); rt != nil {
				return f.ctx.lookup(rt, symbol.Root.Child(name))
			}
		}
		v, err := r.Attr(name)
		if errors.Is(err, forward.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return f.ctx.wrap(v)
	}

	if a, ok := f.v.(spi.ArrayValue); ok && name == "clone" {
		return starlark.NewBuiltin("clone", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			return f.ctx.wrap(a.Clone())
		}), nil
	}

	rt := f.ctx.Runtime()
	if rt == nil {
		return nil, nil
	}
	v, ok := rt.Attr(f.v, name)
	if !ok {
		return nil, nil
	}
	return f.ctx.wrap(v)
}

func (f *Foreign) AttrNames() []string { return nil }

func (f *Foreign) CallInternal(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", f.Name())
	}
	goArgs, err := fromStarlarkArgs(args)
	if err != nil {
		return nil, err
	}

	var v spi.Value
	switch x := f.v.(type) {
	case *forward.Ref:
		v, err = x.Call(goArgs...)
	case spi.Type:
		v, err = x.New(goArgs...)
	default:
		return nil, fmt.Errorf("%s value is not callable", f.Type())
	}
	if err != nil {
		return nil, err
	}
	return f.ctx.wrap(v)
}

// Len is the array length, or 0 for everything else so that x[:] reaches
// Slice without a bounds error.
func (f *Foreign) Len() int {
	if a, ok := f.v.(spi.ArrayValue); ok {
		return a.Len()
	}
	return 0
}

func (f *Foreign) Index(i int) starlark.Value {
	a, ok := f.v.(spi.ArrayValue)
	if !ok {
		return starlark.None
	}
	v, err := a.Get(i)
	if err != nil {
		return errValue{err}
	}
	sv, err := f.ctx.wrap(v)
	if err != nil {
		return errValue{err}
	}
	return sv
}

// Slice adds an array dimension: T[:] is the array class of T. Slicing an
// array copies the selected elements into a list.
func (f *Foreign) Slice(start, end, step int) starlark.Value {
	if a, ok := f.v.(spi.ArrayValue); ok {
		all := make([]starlark.Value, 0, a.Len())
		for _, v := range a.All() {
			sv, err := f.ctx.wrap(v)
			if err != nil {
				return errValue{err}
			}
			all = append(all, sv)
		}
		var elems []starlark.Value
		for i := start; (step > 0 && i < end) || (step < 0 && i > end); i += step {
			if i >= 0 && i < len(all) {
				elems = append(elems, all[i])
			}
		}
		return starlark.NewList(elems)
	}

	v, err := f.subscript(forward.Slice{})
	if err != nil {
		return errValue{err}
	}
	return v
}

// Get handles integer subscripts: array elements, and array allocation on
// types (T[3], T[(2, 3)]).
func (f *Foreign) Get(k starlark.Value) (starlark.Value, bool, error) {
	keys, err := subscriptKeys(k)
	if err != nil {
		return nil, false, err
	}

	if a, ok := f.v.(spi.ArrayValue); ok {
		if len(keys) != 1 {
			return nil, false, fmt.Errorf("array index must be a single int")
		}
		v, err := a.Get(keys[0].(int))
		if err != nil {
			return nil, false, err
		}
		sv, err := f.ctx.wrap(v)
		return sv, err == nil, err
	}

	v, err := f.subscript(keys...)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (f *Foreign) SetIndex(i int, v starlark.Value) error {
	a, ok := f.v.(spi.ArrayValue)
	if !ok {
		return fmt.Errorf("%s value does not support item assignment", f.Type())
	}
	gv, err := ToGo(v)
	if err != nil {
		return err
	}
	return a.Set(i, gv)
}

func (f *Foreign) subscript(keys ...any) (starlark.Value, error) {
	var (
		v   spi.Value
		err error
	)
	switch x := f.v.(type) {
	case *forward.Ref:
		v, err = x.Subscript(keys...)
	case spi.Type:
		v, err = forward.SubscriptType(x, keys)
	default:
		return nil, fmt.Errorf("%s value is not subscriptable", f.Type())
	}
	if err != nil {
		return nil, err
	}
	return f.ctx.wrap(v)
}

// subscriptKeys accepts an int or a tuple of ints.
func subscriptKeys(k starlark.Value) ([]any, error) {
	items := []starlark.Value{k}
	if tup, ok := k.(starlark.Tuple); ok {
		items = tup
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("empty subscript")
	}
	keys := make([]any, len(items))
	for i, item := range items {
		n, err := starlark.AsInt32(item)
		if err != nil {
			return nil, fmt.Errorf("subscript must be an int or a tuple of ints, got %s", item.Type())
		}
		keys[i] = n
	}
	return keys, nil
}

// CompareSameType supports == and != only.
func (f *Foreign) CompareSameType(op syntax.Token, y starlark.Value, _ int) (bool, error) {
	other := y.(*Foreign)
	switch op {
	case syntax.EQL:
		return foreignEqual(f.v, other.v), nil
	case syntax.NEQ:
		return !foreignEqual(f.v, other.v), nil
	default:
		return false, fmt.Errorf("%s %s %s not supported", f.Type(), op, other.Type())
	}
}

func foreignEqual(a, b spi.Value) bool {
	if r, ok := a.(*forward.Ref); ok {
		return r.Equal(b)
	}
	if r, ok := b.(*forward.Ref); ok {
		return r.Equal(a)
	}
	return spi.Equal(a, b)
}

// errValue carries an error out of operations whose Starlark signature has
// no error result. Any further use of it reports the error.
type errValue struct {
	err error
}

var (
	_ starlark.HasAttrs = errValue{}
	_ starlark.Callable = errValue{}
)

func (e errValue) String() string { return fmt.Sprintf("<error: %v>", e.err) }
func (e errValue) Type() string { return "error" }
func (e errValue) Freeze() {}
func (e errValue) Truth() starlark.Bool { return starlark.False }
func (e errValue) Hash() (uint32, error) { return 0, e.err }
func (e errValue) Name() string { return "error" }
func (e errValue) AttrNames() []string { return nil }

func (e errValue) Attr(string) (starlark.Value, error) { return nil, e.err }

func (e errValue) CallInternal(*starlark.Thread, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return nil, e.err
}

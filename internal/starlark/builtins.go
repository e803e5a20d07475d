package starlark

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/fwd/pkg/forward"
	"github.com/leapstack-labs/fwd/pkg/spi"
	"go.starlark.net/starlark"
)

// typeLike is the part of a type shared by forward references and bound
// foreign types.
type typeLike interface {
	Cast(v any) (spi.Value, error)
	IsInstance(v spi.Value) (bool, error)
	IsSubclass(t spi.Value) (bool, error)
}

type boundType struct {
	t spi.Type
}

func (b boundType) Cast(v any) (spi.Value, error)       { return b.t.Cast(v) }
func (b boundType) IsInstance(v spi.Value) (bool, error) { return b.t.IsInstance(spi.Unwrap(v)), nil }
func (b boundType) IsSubclass(t spi.Value) (bool, error) { return b.t.IsSubclass(spi.Unwrap(t)), nil }

func asType(fn string, v starlark.Value) (typeLike, error) {
	fv, ok := asValue(v)
	if !ok {
		return nil, fmt.Errorf("%s: expected a foreign type, got %s", fn, v.Type())
	}
	switch t := fv.(type) {
	case *forward.Ref:
		return t, nil
	case spi.Type:
		return boundType{t}, nil
	}
	return nil, fmt.Errorf("%s: %s is not a type", fn, fv)
}

// Predeclared returns the builtins scripts can use alongside the root
// package.
func Predeclared(ctx *ExecutionContext) starlark.StringDict {
	return starlark.StringDict{
		"cast":       starlark.NewBuiltin("cast", ctx.builtinCast),
		"isinstance": starlark.NewBuiltin("isinstance", builtinIsInstance),
		"issubclass": starlark.NewBuiltin("issubclass", builtinIsSubclass),
		"resolved":   starlark.NewBuiltin("resolved", builtinResolved),
		"symbol":     starlark.NewBuiltin("symbol", ctx.builtinSymbol),
		"declare":    starlark.NewBuiltin("declare", ctx.builtinDeclare),
		"pending":    starlark.NewBuiltin("pending", ctx.builtinPending),
		"started":    starlark.NewBuiltin("started", ctx.builtinStarted),
	}
}

// cast(T, v) converts v to T.
func (ctx *ExecutionContext) builtinCast(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var tv, v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &tv, &v); err != nil {
		return nil, err
	}
	t, err := asType(b.Name(), tv)
	if err != nil {
		return nil, err
	}
	gv, err := ToGo(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	out, err := t.Cast(gv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return ctx.wrap(out)
}

// isinstance(v, T) reports whether v is an instance of T. Native Starlark
// values are never instances of foreign types.
func builtinIsInstance(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v, tv starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &v, &tv); err != nil {
		return nil, err
	}
	t, err := asType(b.Name(), tv)
	if err != nil {
		return nil, err
	}
	fv, ok := asValue(v)
	if !ok {
		return starlark.False, nil
	}
	res, err := t.IsInstance(fv)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(res), nil
}

// issubclass(S, T) reports whether S is T or derives from it.
func builtinIsSubclass(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var sv, tv starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &sv, &tv); err != nil {
		return nil, err
	}
	t, err := asType(b.Name(), tv)
	if err != nil {
		return nil, err
	}
	s, ok := asValue(sv)
	if !ok {
		return nil, fmt.Errorf("%s: expected a foreign type, got %s", b.Name(), sv.Type())
	}
	res, err := t.IsSubclass(s)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(res), nil
}

// resolved(x) is False only for unresolved forward references.
func builtinResolved(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	if f, ok := v.(*Foreign); ok {
		if r, ok := f.Ref(); ok {
			return starlark.Bool(r.Resolved()), nil
		}
	}
	return starlark.True, nil
}

// symbol(x) returns the dotted path a forward reference was declared with,
// including the root package.
func (ctx *ExecutionContext) builtinSymbol(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	f, ok := v.(*Foreign)
	if !ok {
		return nil, fmt.Errorf("%s: %s is not a forward reference", b.Name(), v.Type())
	}
	r, ok := f.Ref()
	if !ok {
		return nil, fmt.Errorf("%s: %s is not a forward reference", b.Name(), f.Type())
	}
	return starlark.String(ctx.qualify(r)), nil
}

// declare(path) returns the reference for a dotted path below the root.
// The root prefix is optional.
func (ctx *ExecutionContext) builtinDeclare(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &path); err != nil {
		return nil, err
	}
	ref, err := ctx.Declare(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return ctx.wrap(ref)
}

// pending() lists the symbols still waiting for the runtime.
func (ctx *ExecutionContext) builtinPending(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	var out []starlark.Value
	for _, name := range ctx.Pending() {
		out = append(out, starlark.String(name))
	}
	return starlark.NewList(out), nil
}

// started() reports whether the runtime has started.
func (ctx *ExecutionContext) builtinStarted(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.Bool(ctx.Runtime() != nil), nil
}

// Declare returns the reference for path, which may carry the root prefix.
func (ctx *ExecutionContext) Declare(path string) (*forward.Ref, error) {
	if path == ctx.Root {
		return ctx.Registry.Root(), nil
	}
	return ctx.Registry.Declare(strings.TrimPrefix(path, ctx.Root+"."))
}

// Pending lists the qualified symbols of unresolved tracked references,
// excluding the root.
func (ctx *ExecutionContext) Pending() []string {
	var out []string
	for _, r := range ctx.Registry.Pending() {
		if r.Symbol().IsRoot() || r.Resolved() {
			continue
		}
		out = append(out, ctx.qualify(r))
	}
	return out
}

func (ctx *ExecutionContext) qualify(r *forward.Ref) string {
	if r.Symbol().IsRoot() {
		return ctx.Root
	}
	return ctx.Root + "." + r.Symbol().String()
}

package forward

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/fwd/pkg/spi"
	"github.com/leapstack-labs/fwd/pkg/symbol"
)

var errNoArrayWithoutRuntime = fmt.Errorf("%w: cannot create array without a running runtime", ErrInvalidAccess)

// stateFor classifies a looked-up value into the binding it morphs into.
func stateFor(sym symbol.Symbol, v spi.Value) (State, error) {
	switch k := v.Kind(); k {
	case spi.KindNamespace:
		return Namespace, nil
	case spi.KindType:
		if _, ok := v.(spi.Type); !ok {
			return Unresolved, &UnsupportedDeclarationError{Symbol: sym, Kind: k}
		}
		return Type, nil
	case spi.KindArray, spi.KindPrimitive, spi.KindForward:
		return Unresolved, &UnsupportedDeclarationError{Symbol: sym, Kind: k}
	default:
		return Generic, nil
	}
}

// namespaceAttr looks name up below a bound namespace: a deeper namespace,
// then a type, then a plain member of the namespace value.
func (r *Ref) namespaceAttr(ns spi.Value, rt spi.Runtime, name string) (spi.Value, error) {
	if IsReserved(name) || name == "" {
		return nil, &AccessError{Symbol: r.sym, Op: "attribute", Name: name, Err: ErrNotFound}
	}
	path := string(r.sym.Child(name))
	if rt.IsNamespace(path) {
		if v, ok := rt.Namespace(path); ok {
			return v, nil
		}
	}
	if v, ok := rt.FindType(path); ok {
		return v, nil
	}
	if v, ok := rt.Attr(ns, name); ok {
		return v, nil
	}
	return nil, &AccessError{Symbol: r.sym, Op: "attribute", Name: name, Err: ErrNotFound}
}

func (r *Ref) memberAttr(inst spi.Value, rt spi.Runtime, name string) (spi.Value, error) {
	if v, ok := rt.Attr(inst, name); ok {
		return v, nil
	}
	return nil, &AccessError{Symbol: r.sym, Op: "attribute", Name: name, Err: ErrNotFound}
}

// typeSubscript handles subscripts on a bound type.
func (r *Ref) typeSubscript(inst spi.Value, keys []any) (spi.Value, error) {
	v, err := SubscriptType(inst.(spi.Type), keys)
	if errors.Is(err, ErrInvalidAccess) || errors.Is(err, ErrNotSupported) {
		return nil, &AccessError{Symbol: r.sym, Op: "subscript", Err: err}
	}
	return v, err
}

// SubscriptType applies a subscript to a type: T[:] and T[:, :] are array
// classes, T[n] and T[n, m] allocate arrays. Keys are Slice values or ints.
func SubscriptType(t spi.Type, keys []any) (spi.Value, error) {
	if dims, ok := sliceDims(keys); ok {
		return t.ArrayType(dims)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: empty subscript", ErrInvalidAccess)
	}

	lengths := make([]int, 0, len(keys))
	for _, k := range keys {
		n, ok := k.(int)
		if !ok {
			return nil, fmt.Errorf("%w: subscript must be slices or ints, got %T", ErrInvalidAccess, k)
		}
		lengths = append(lengths, n)
	}

	f, ok := t.(spi.ArrayFactory)
	if !ok {
		return nil, fmt.Errorf("%w: cannot allocate arrays of %s", ErrNotSupported, t.Name())
	}
	return f.NewArray(lengths...)
}

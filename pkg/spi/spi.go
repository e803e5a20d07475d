// Package spi provides the Service Provider Interface between the forward
// declaration core and a foreign managed runtime.
//
// The core never talks to a runtime directly. It only sees the narrow surface
// below: a way to classify values, the lookup operations the resolver needs,
// and a lifecycle hook that tells it when the runtime has started.
package spi

import (
	"iter"
	"reflect"
)

// Kind classifies a foreign value for resolution.
type Kind int

// Kind constants. KindForward is reported by placeholders that have not been
// bound to a foreign value yet.
const (
	KindObject Kind = iota
	KindNamespace
	KindType
	KindArray
	KindPrimitive
	KindForward
)

// String returns the kind name for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindNamespace:
		return "namespace"
	case KindType:
		return "type"
	case KindArray:
		return "array"
	case KindPrimitive:
		return "primitive"
	case KindForward:
		return "forward"
	default:
		return "unknown"
	}
}

// Value is any value living in (or standing in for) the foreign runtime.
type Value interface {
	Kind() Kind
	String() string
}

// Type is a foreign class or type. Array classes are types too.
type Type interface {
	Value

	// Name returns the fully-qualified type name, e.g. "java.lang.String[]".
	Name() string

	// New constructs an instance, forwarding args to the foreign constructor.
	// Args may be Go natives or Values.
	New(args ...any) (Value, error)

	// Cast converts v to this type, failing if the runtime forbids it.
	Cast(v any) (Value, error)

	// ArrayType returns the array class with dims extra dimensions.
	ArrayType(dims int) (Type, error)

	// IsInstance reports whether v is an instance of this type.
	IsInstance(v Value) bool

	// IsSubclass reports whether t is this type or derives from it.
	IsSubclass(t Value) bool
}

// ArrayFactory is implemented by types that can allocate array instances of
// themselves with fixed lengths (one length per dimension).
type ArrayFactory interface {
	NewArray(lengths ...int) (Value, error)
}

// Equaler lets a foreign value define its own equality.
type Equaler interface {
	Equal(other Value) bool
}

// ArrayValue is an array instance. It is the boundary to the array wrapper
// collaborator: element access and mutation, length and cloning.
type ArrayValue interface {
	Value
	Len() int
	Get(i int) (Value, error)
	Set(i int, v any) error
	// Clone returns a shallow copy with its own element storage.
	Clone() ArrayValue
	// All iterates over index and element pairs in order.
	All() iter.Seq2[int, Value]
}

// Native is implemented by unboxed primitive values. Native returns a bool,
// int64, float64 or string.
type Native interface {
	Native() any
}

// Runtime is the lookup surface the resolver uses once the runtime is running.
// Misses are reported through ok=false and are never errors.
type Runtime interface {
	// IsNamespace reports whether the dotted path denotes a package.
	IsNamespace(path string) bool

	// Namespace returns the package value for a dotted path.
	Namespace(path string) (Value, bool)

	// FindType looks up a type by fully-qualified name.
	FindType(name string) (Value, bool)

	// Attr returns the member name of v.
	Attr(v Value, name string) (Value, bool)
}

// StartHook runs once the runtime has fully started.
type StartHook func(rt Runtime) error

// Lifecycle notifies listeners about runtime start. Implementations must fire
// each hook exactly once, after the runtime is initialized and before any
// other post-start user code runs.
type Lifecycle interface {
	OnStart(hook StartHook)
}

// Unwrap returns the value a placeholder is bound to. Values that do not wrap
// anything are returned unchanged.
func Unwrap(v Value) Value {
	for {
		w, ok := v.(interface{ Unwrap() (Value, bool) })
		if !ok {
			return v
		}
		inner, bound := w.Unwrap()
		if !bound {
			return v
		}
		v = inner
	}
}

// Equal evaluates a == b. Placeholders are unwrapped and a's own equality
// takes precedence; otherwise values of the same comparable type compare
// with ==.
func Equal(a, b Value) bool {
	a, b = Unwrap(a), Unwrap(b)
	if e, ok := a.(Equaler); ok {
		return e.Equal(b)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

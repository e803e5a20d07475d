package catalog

import (
	"fmt"
	"iter"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/fwd/pkg/spi"
)

// Package is a namespace of the runtime.
type Package struct {
	path string
}

func (p *Package) Kind() spi.Kind { return spi.KindNamespace }
func (p *Package) String() string { return "package " + p.path }

// Path returns the dotted package path.
func (p *Package) Path() string { return p.path }

// Class is a runtime type. Array classes and the primitive classes are
// classes too.
type Class struct {
	rt         *Runtime
	name       string
	super      *Class
	interfaces []*Class
	iface      bool
	abstract   bool
	enum       bool
	boxes      string
	prim       bool
	elem       *Class
	fields     map[string]spi.Value
}

func (c *Class) Kind() spi.Kind { return spi.KindType }

func (c *Class) String() string {
	switch {
	case c.prim:
		return c.name
	case c.iface:
		return "interface " + c.name
	default:
		return "class " + c.name
	}
}

// Name returns the fully-qualified class name.
func (c *Class) Name() string { return c.name }

// Super returns the superclass, or nil for root and primitive classes.
func (c *Class) Super() *Class { return c.super }

// Elem returns the component class of an array class.
func (c *Class) Elem() *Class { return c.elem }

// IsArray reports whether c is an array class.
func (c *Class) IsArray() bool { return c.elem != nil }

// IsInterface reports whether c was declared as an interface.
func (c *Class) IsInterface() bool { return c.iface }

// IsPrimitive reports whether c is one of the primitive classes.
func (c *Class) IsPrimitive() bool { return c.prim }

// IsAbstract reports whether c is declared abstract.
func (c *Class) IsAbstract() bool { return c.abstract }

// IsEnum reports whether c declares enum constants.
func (c *Class) IsEnum() bool { return c.enum }

// Interfaces returns the interfaces c implements directly.
func (c *Class) Interfaces() []*Class { return c.interfaces }

// Fields returns the names of the static fields declared on c, sorted.
func (c *Class) Fields() []string {
	names := make([]string, 0, len(c.fields))
	for name := range c.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Field returns a static field, searching superclasses too.
func (c *Class) Field(name string) (spi.Value, bool) {
	for cur := c; cur != nil; cur = cur.super {
		if v, ok := cur.fields[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// New constructs an instance. Boxing classes take exactly one argument that
// is converted to the boxed type.
func (c *Class) New(args ...any) (spi.Value, error) {
	switch {
	case c.prim:
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects 1 argument, got %d", c.name, len(args))
		}
		return NewPrimitive(c.name, nativeOf(args[0]))
	case c.IsArray():
		return nil, fmt.Errorf("%w: %s is an array class, allocate it with a length", ErrNotInstantiable, c.name)
	case c.iface, c.abstract, c.enum:
		return nil, fmt.Errorf("%w: %s", ErrNotInstantiable, c.name)
	case c.boxes != "":
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects 1 argument, got %d", c.name, len(args))
		}
		v, err := c.box(nativeOf(args[0]))
		if err != nil {
			return nil, err
		}
		return c.rt.newObject(c, v), nil
	}

	switch len(args) {
	case 0:
		return c.rt.newObject(c, nil), nil
	case 1:
		return c.rt.newObject(c, args[0]), nil
	default:
		return c.rt.newObject(c, append([]any(nil), args...)), nil
	}
}

func (c *Class) box(v any) (any, error) {
	if c.boxes == "string" {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: cannot box %T as %s", ErrClassCast, v, c.name)
		}
		return s, nil
	}
	p, err := NewPrimitive(c.boxes, v)
	if err != nil {
		return nil, err
	}
	return p.V, nil
}

// Cast converts v to c. Instances of c pass through unchanged, Go values
// matching a boxing class are boxed, and null casts to null.
func (c *Class) Cast(v any) (spi.Value, error) {
	if v == nil {
		return nil, nil
	}
	if val, ok := v.(spi.Value); ok {
		val = spi.Unwrap(val)
		if c.IsInstance(val) {
			return val, nil
		}
		p, isPrim := val.(Primitive)
		switch {
		case isPrim && c.prim:
			return NewPrimitive(c.name, p.V)
		case isPrim && c.boxes != "" && c.boxes == p.Type:
			return c.rt.newObject(c, p.V), nil
		}
		return nil, fmt.Errorf("%w: %s cannot be cast to %s", ErrClassCast, val, c.name)
	}
	switch {
	case c.prim:
		return NewPrimitive(c.name, v)
	case c.boxes != "":
		b, err := c.box(v)
		if err != nil {
			return nil, err
		}
		return c.rt.newObject(c, b), nil
	}
	return nil, fmt.Errorf("%w: %T cannot be cast to %s", ErrClassCast, v, c.name)
}

// ArrayType returns the array class with dims extra dimensions.
func (c *Class) ArrayType(dims int) (spi.Type, error) {
	if dims < 1 {
		return nil, fmt.Errorf("array dimensions must be positive, got %d", dims)
	}
	return c.rt.arrayClass(c, dims), nil
}

// NewArray allocates an array of c with one length per dimension.
func (c *Class) NewArray(lengths ...int) (spi.Value, error) {
	if len(lengths) == 0 {
		return nil, fmt.Errorf("array of %s needs at least one length", c.name)
	}
	return newArray(c.rt.arrayClass(c, len(lengths)), lengths)
}

// IsInstance reports whether v is an instance of c.
func (c *Class) IsInstance(v spi.Value) bool {
	switch x := spi.Unwrap(v).(type) {
	case *Object:
		return x.class.derivesFrom(c)
	case *Array:
		return x.class.derivesFrom(c)
	case Primitive:
		return c.prim && c.name == x.Type
	}
	return false
}

// IsSubclass reports whether t is c or derives from it.
func (c *Class) IsSubclass(t spi.Value) bool {
	other, ok := spi.Unwrap(t).(*Class)
	return ok && other.derivesFrom(c)
}

func (c *Class) derivesFrom(t *Class) bool {
	if c == t {
		return true
	}
	if c.prim || t.prim {
		return false
	}
	if c.IsArray() && t.IsArray() {
		if c.elem.prim || t.elem.prim {
			return c.elem == t.elem
		}
		return c.elem.derivesFrom(t.elem)
	}
	if c.super != nil && c.super.derivesFrom(t) {
		return true
	}
	for _, iface := range c.interfaces {
		if iface.derivesFrom(t) {
			return true
		}
	}
	return false
}

// Object is an instance of a non-array class.
type Object struct {
	class *Class
	value any
	id    uint64
}

func (o *Object) Kind() spi.Kind { return spi.KindObject }

// Class returns the runtime class of o.
func (o *Object) Class() *Class { return o.class }

// Value returns the payload the object was constructed with.
func (o *Object) Value() any { return o.value }

func (o *Object) String() string {
	switch {
	case o.class.enum || o.class.boxes != "":
		return formatNative(o.value)
	case o.value == nil:
		return fmt.Sprintf("%s@%x", o.class.name, o.id)
	default:
		return fmt.Sprintf("%s(%s)", o.class.name, formatNative(o.value))
	}
}

// Equal compares by class and payload. Objects without a payload are only
// equal to themselves; boxed objects also equal the matching primitive.
func (o *Object) Equal(other spi.Value) bool {
	switch x := spi.Unwrap(other).(type) {
	case *Object:
		if x == o {
			return true
		}
		if o.value == nil || x.class != o.class {
			return false
		}
		return reflect.DeepEqual(o.value, x.value)
	case Primitive:
		return o.class.boxes == x.Type && o.value == x.V
	}
	return false
}

// Array is an array instance. Multi-dimensional arrays hold nested arrays.
type Array struct {
	class *Class

	mu    sync.RWMutex
	elems []spi.Value
}

func newArray(class *Class, lengths []int) (*Array, error) {
	n := lengths[0]
	if n < 0 {
		return nil, fmt.Errorf("%w: negative array length %d", ErrIndexOutOfRange, n)
	}
	a := &Array{class: class, elems: make([]spi.Value, n)}
	for i := range a.elems {
		switch {
		case len(lengths) > 1:
			sub, err := newArray(class.elem, lengths[1:])
			if err != nil {
				return nil, err
			}
			a.elems[i] = sub
		case class.elem.prim:
			a.elems[i] = zeroPrimitive(class.elem.name)
		}
	}
	return a, nil
}

func (a *Array) Kind() spi.Kind { return spi.KindArray }

// Class returns the array class.
func (a *Array) Class() *Class { return a.class }

func (a *Array) String() string {
	base, dims := a.class, 0
	for base.elem != nil {
		base = base.elem
		dims++
	}
	return fmt.Sprintf("%s[%d]%s", base.name, a.Len(), strings.Repeat("[]", dims-1))
}

// Len returns the number of elements.
func (a *Array) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.elems)
}

// Get returns element i. Null elements are returned as nil.
func (a *Array) Get(i int) (spi.Value, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if i < 0 || i >= len(a.elems) {
		return nil, fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, i, len(a.elems))
	}
	return a.elems[i], nil
}

// Set stores v at index i after converting it to the component type.
func (a *Array) Set(i int, v any) error {
	val, err := a.convert(v)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.elems) {
		return fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, i, len(a.elems))
	}
	a.elems[i] = val
	return nil
}

func (a *Array) convert(v any) (spi.Value, error) {
	elem := a.class.elem
	if elem.prim {
		return NewPrimitive(elem.name, nativeOf(v))
	}
	if v == nil {
		return nil, nil
	}
	return elem.Cast(v)
}

// Clone returns a shallow copy.
func (a *Array) Clone() spi.ArrayValue {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return &Array{class: a.class, elems: append([]spi.Value(nil), a.elems...)}
}

// All iterates over index and element pairs.
func (a *Array) All() iter.Seq2[int, spi.Value] {
	return func(yield func(int, spi.Value) bool) {
		for i := 0; i < a.Len(); i++ {
			v, err := a.Get(i)
			if err != nil || !yield(i, v) {
				return
			}
		}
	}
}

var primitiveNames = []string{"boolean", "byte", "char", "short", "int", "long", "float", "double"}

func isPrimitive(name string) bool {
	for _, p := range primitiveNames {
		if p == name {
			return true
		}
	}
	return false
}

// Primitive is an unboxed value. V holds a bool, an int64, a float64 or a
// rune depending on Type.
type Primitive struct {
	Type string
	V    any
}

func (p Primitive) Kind() spi.Kind { return spi.KindPrimitive }
func (p Primitive) String() string { return formatNative(p.V) }

// Native returns the Go value, with chars as one-rune strings.
func (p Primitive) Native() any {
	if r, ok := p.V.(rune); ok {
		return string(r)
	}
	return p.V
}

func (p Primitive) Equal(other spi.Value) bool {
	switch x := spi.Unwrap(other).(type) {
	case Primitive:
		return p.Type == x.Type && p.V == x.V
	case *Object:
		return x.Equal(p)
	}
	return false
}

func zeroPrimitive(typ string) Primitive {
	switch typ {
	case "boolean":
		return Primitive{Type: typ, V: false}
	case "char":
		return Primitive{Type: typ, V: rune(0)}
	case "float", "double":
		return Primitive{Type: typ, V: float64(0)}
	default:
		return Primitive{Type: typ, V: int64(0)}
	}
}

var integerBounds = map[string][2]int64{
	"byte":  {math.MinInt8, math.MaxInt8},
	"short": {math.MinInt16, math.MaxInt16},
	"int":   {math.MinInt32, math.MaxInt32},
	"long":  {math.MinInt64, math.MaxInt64},
}

// NewPrimitive converts a Go value to the named primitive type. Integers
// widen to floating point, but not the other way round.
func NewPrimitive(typ string, v any) (Primitive, error) {
	if p, ok := v.(Primitive); ok {
		v = p.V
	}
	switch typ {
	case "boolean":
		if b, ok := v.(bool); ok {
			return Primitive{Type: typ, V: b}, nil
		}
	case "char":
		switch x := v.(type) {
		case rune:
			return Primitive{Type: typ, V: x}, nil
		case string:
			if r := []rune(x); len(r) == 1 {
				return Primitive{Type: typ, V: r[0]}, nil
			}
		}
	case "float", "double":
		if f, ok := toFloat(v); ok {
			if typ == "float" {
				f = float64(float32(f))
			}
			return Primitive{Type: typ, V: f}, nil
		}
	case "byte", "short", "int", "long":
		n, ok := toInt(v)
		if !ok {
			break
		}
		bounds := integerBounds[typ]
		if n < bounds[0] || n > bounds[1] {
			return Primitive{}, fmt.Errorf("%w: %d overflows %s", ErrClassCast, n, typ)
		}
		return Primitive{Type: typ, V: n}, nil
	default:
		return Primitive{}, fmt.Errorf("unknown primitive type %q", typ)
	}
	return Primitive{}, fmt.Errorf("%w: cannot convert %T to %s", ErrClassCast, v, typ)
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	n, ok := toInt(v)
	return float64(n), ok
}

// nativeOf unwraps primitives so conversion helpers see Go values.
func nativeOf(v any) any {
	switch x := v.(type) {
	case Primitive:
		return x.V
	case spi.Value:
		if p, ok := spi.Unwrap(x).(Primitive); ok {
			return p.V
		}
	}
	return v
}

func formatNative(v any) string {
	switch x := v.(type) {
	case rune:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatNative(e)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(x)
	}
}

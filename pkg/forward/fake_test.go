package forward

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/fwd/pkg/spi"
)

// fakeRuntime is a tiny in-memory foreign runtime for resolver tests.
type fakeRuntime struct {
	namespaces map[string]*fakeNamespace
	types      map[string]*fakeType
	hooks      []spi.StartHook
}

type fakeNamespace struct{ path string }

func (n *fakeNamespace) Kind() spi.Kind { return spi.KindNamespace }
func (n *fakeNamespace) String() string { return "package " + n.path }

type fakeType struct {
	name    string
	super   *fakeType
	elem    *fakeType
	statics map[string]spi.Value
	calls   [][]any
}

func (t *fakeType) Kind() spi.Kind { return spi.KindType }
func (t *fakeType) String() string { return "class " + t.name }
func (t *fakeType) Name() string   { return t.name }

func (t *fakeType) New(args ...any) (spi.Value, error) {
	t.calls = append(t.calls, args)
	var payload any
	if len(args) > 0 {
		payload = args[0]
	}
	return &fakeObject{typ: t, payload: payload}, nil
}

func (t *fakeType) Cast(v any) (spi.Value, error) {
	if o, ok := v.(spi.Value); ok && t.IsInstance(o) {
		return o, nil
	}
	return nil, fmt.Errorf("cannot cast %v to %s", v, t.name)
}

func (t *fakeType) ArrayType(dims int) (spi.Type, error) {
	at := t
	for i := 0; i < dims; i++ {
		at = &fakeType{name: at.name + "[]", elem: at}
	}
	return at, nil
}

func (t *fakeType) NewArray(lengths ...int) (spi.Value, error) {
	return &fakeArray{elem: t, length: lengths[0]}, nil
}

func (t *fakeType) IsInstance(v spi.Value) bool {
	o, ok := v.(*fakeObject)
	return ok && t.IsSubclass(o.typ)
}

func (t *fakeType) IsSubclass(v spi.Value) bool {
	other, ok := v.(*fakeType)
	for ok && other != nil {
		if other == t {
			return true
		}
		other = other.super
	}
	return false
}

type fakeObject struct {
	typ     *fakeType
	payload any
}

func (o *fakeObject) Kind() spi.Kind { return spi.KindObject }
func (o *fakeObject) String() string { return fmt.Sprintf("%s(%v)", o.typ.name, o.payload) }

func (o *fakeObject) Equal(other spi.Value) bool {
	p, ok := other.(*fakeObject)
	return ok && p.typ == o.typ && p.payload == o.payload
}

type fakeArray struct {
	elem   *fakeType
	length int
}

func (a *fakeArray) Kind() spi.Kind { return spi.KindArray }
func (a *fakeArray) String() string { return fmt.Sprintf("%s[%d]", a.elem.name, a.length) }

type fakePrimitive int

func (p fakePrimitive) Kind() spi.Kind { return spi.KindPrimitive }
func (p fakePrimitive) String() string { return fmt.Sprint(int(p)) }

// newFakeRuntime builds a small java-like universe:
//
//	java, java.lang, java.util
//	java.lang.Object, java.lang.String, java.lang.Integer
//	String.CASE_INSENSITIVE_ORDER (object), Integer.MAX_VALUE (primitive),
//	Integer.CACHE (array)
func newFakeRuntime() *fakeRuntime {
	rt := &fakeRuntime{
		namespaces: map[string]*fakeNamespace{},
		types:      map[string]*fakeType{},
	}
	for _, p := range []string{"java", "java.lang", "java.util"} {
		rt.namespaces[p] = &fakeNamespace{path: p}
	}
	object := &fakeType{name: "java.lang.Object"}
	comparator := &fakeType{name: "java.util.Comparator", super: object}
	str := &fakeType{name: "java.lang.String", super: object, statics: map[string]spi.Value{}}
	integer := &fakeType{name: "java.lang.Integer", super: object, statics: map[string]spi.Value{}}
	str.statics["CASE_INSENSITIVE_ORDER"] = &fakeObject{typ: comparator, payload: "ci"}
	integer.statics["MAX_VALUE"] = fakePrimitive(2147483647)
	integer.statics["CACHE"] = &fakeArray{elem: integer, length: 256}
	for _, t := range []*fakeType{object, comparator, str, integer} {
		rt.types[t.name] = t
	}
	return rt
}

func (rt *fakeRuntime) IsNamespace(path string) bool {
	_, ok := rt.namespaces[path]
	return ok
}

func (rt *fakeRuntime) Namespace(path string) (spi.Value, bool) {
	ns, ok := rt.namespaces[path]
	if !ok {
		return nil, false
	}
	return ns, true
}

func (rt *fakeRuntime) FindType(name string) (spi.Value, bool) {
	elem := strings.TrimRight(name, "[]")
	t, ok := rt.types[elem]
	if !ok {
		return nil, false
	}
	if dims := (len(name) - len(elem)) / 2; dims > 0 {
		at, _ := t.ArrayType(dims)
		return at, true
	}
	return t, true
}

func (rt *fakeRuntime) Attr(v spi.Value, name string) (spi.Value, bool) {
	switch x := v.(type) {
	case *fakeType:
		m, ok := x.statics[name]
		return m, ok
	case *fakeNamespace:
		return nil, false
	}
	return nil, false
}

func (rt *fakeRuntime) OnStart(hook spi.StartHook) {
	rt.hooks = append(rt.hooks, hook)
}

func (rt *fakeRuntime) start() error {
	for _, h := range rt.hooks {
		if err := h(rt); err != nil {
			return err
		}
	}
	return nil
}

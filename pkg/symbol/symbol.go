// Package symbol implements the path strings that name candidate foreign
// entities before the foreign runtime exists.
//
// A symbol is a dotted path ("java.lang.String") optionally followed by one
// bracket token per array dimension ("java.lang.String[][]"). The empty
// symbol is the anonymous root.
package symbol

import (
	"fmt"
	"strings"
)

// Bracket is the reserved token for one array dimension. It never appears as
// a literal identifier segment.
const Bracket = "[]"

// Symbol is an immutable path identifying a candidate foreign entity.
type Symbol string

// Root is the anonymous root symbol.
const Root Symbol = ""

// IsRoot reports whether s is the anonymous root.
func (s Symbol) IsRoot() bool {
	return s == Root
}

// Child returns the symbol reached by accessing name on s.
// Names starting with a bracket escalate the array dimension instead of
// adding a dotted segment.
func (s Symbol) Child(name string) Symbol {
	switch {
	case s.IsRoot():
		return Symbol(name)
	case strings.HasPrefix(name, "["):
		return s + Symbol(name)
	default:
		return s + "." + Symbol(name)
	}
}

// ArrayOf returns s with dims array dimensions appended.
func (s Symbol) ArrayOf(dims int) Symbol {
	if dims <= 0 {
		return s
	}
	return s + Symbol(strings.Repeat(Bracket, dims))
}

// Dims returns the number of trailing array dimensions.
func (s Symbol) Dims() int {
	n := 0
	str := string(s)
	for strings.HasSuffix(str, Bracket) {
		str = strings.TrimSuffix(str, Bracket)
		n++
	}
	return n
}

// Elem returns s with all trailing array dimensions removed.
func (s Symbol) Elem() Symbol {
	str := string(s)
	for strings.HasSuffix(str, Bracket) {
		str = strings.TrimSuffix(str, Bracket)
	}
	return Symbol(str)
}

// Segments splits s on dots. Bracket tokens stay attached to their segment.
func (s Symbol) Segments() []string {
	if s.IsRoot() {
		return nil
	}
	return strings.Split(string(s), ".")
}

// Prefix returns the symbol made of the first n segments.
func (s Symbol) Prefix(n int) Symbol {
	segs := s.Segments()
	if n >= len(segs) {
		return s
	}
	return Symbol(strings.Join(segs[:n], "."))
}

// Base returns the last dotted segment.
func (s Symbol) Base() string {
	segs := s.Segments()
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

func (s Symbol) String() string {
	return string(s)
}

// Parse validates a dotted path and returns it as a symbol.
// The empty string parses to Root.
func Parse(path string) (Symbol, error) {
	if path == "" {
		return Root, nil
	}
	for i, seg := range strings.Split(path, ".") {
		name := strings.TrimRight(seg, "[]")
		if name == "" {
			return Root, fmt.Errorf("invalid symbol %q: empty segment %d", path, i)
		}
		if HasBracket(name) {
			return Root, fmt.Errorf("invalid symbol %q: bracket token inside segment %q", path, seg)
		}
		if rest := seg[len(name):]; rest != "" && !IsArrayToken(rest) {
			return Root, fmt.Errorf("invalid symbol %q: malformed array suffix in %q", path, seg)
		}
	}
	return Symbol(path), nil
}

// IsArrayToken reports whether name is one or more whole bracket tokens.
func IsArrayToken(name string) bool {
	return name != "" && strings.Count(name, Bracket)*len(Bracket) == len(name)
}

// HasBracket reports whether name contains a bracket character.
func HasBracket(name string) bool {
	return strings.ContainsAny(name, "[]")
}

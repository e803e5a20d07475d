// Package catalog implements a simulated managed runtime whose packages,
// classes and static values are declared in a YAML catalog.
//
// The runtime implements spi.Runtime and spi.Lifecycle, so forward
// references declared before Start are resolved against the catalog once it
// starts.
package catalog

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/fwd/pkg/symbol"
	"gopkg.in/yaml.v3"
)

// Catalog is the declarative description of a runtime universe.
type Catalog struct {
	// Name labels the catalog in diagnostics.
	Name string `yaml:"name"`

	// Packages lists namespaces explicitly. Every dotted prefix of a class
	// name is a package too, so this is only needed for empty packages.
	Packages []string `yaml:"packages"`

	Classes []ClassSpec `yaml:"classes"`
}

// ClassSpec declares one class.
type ClassSpec struct {
	Name       string   `yaml:"name"`
	Super      string   `yaml:"super,omitempty"`
	Interfaces []string `yaml:"interfaces,omitempty"`
	Interface  bool     `yaml:"interface,omitempty"`
	Abstract   bool     `yaml:"abstract,omitempty"`

	// Boxes names the primitive or "string" type this class wraps. Casting a
	// matching Go value to the class boxes it.
	Boxes string `yaml:"boxes,omitempty"`

	// Enum declares enum constants, exposed as static fields holding
	// instances of the class itself.
	Enum []string `yaml:"enum,omitempty"`

	Fields map[string]FieldSpec `yaml:"fields,omitempty"`
}

// FieldSpec declares a static field.
//
// Type is a primitive name (int, double, ...), a class name, or an array
// class name ending in "[]". Array fields are allocated with Length
// elements.
type FieldSpec struct {
	Type   string `yaml:"type"`
	Value  any    `yaml:"value,omitempty"`
	Length int    `yaml:"length,omitempty"`
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes a catalog document. Unknown keys are rejected.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cat Catalog
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks names and references without building a runtime.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Classes))
	for _, cs := range c.Classes {
		if !validName(cs.Name) {
			return &DefinitionError{Class: cs.Name, Msg: "invalid class name"}
		}
		if seen[cs.Name] {
			return &DefinitionError{Class: cs.Name, Msg: "declared twice"}
		}
		seen[cs.Name] = true
	}
	for _, p := range c.Packages {
		if !validName(p) {
			return fmt.Errorf("%w: invalid package name %q", ErrInvalidCatalog, p)
		}
	}
	for _, cs := range c.Classes {
		if cs.Super != "" && !seen[cs.Super] {
			return &DefinitionError{Class: cs.Name, Msg: fmt.Sprintf("unknown superclass %s", cs.Super)}
		}
		for _, iface := range cs.Interfaces {
			if !seen[iface] {
				return &DefinitionError{Class: cs.Name, Msg: fmt.Sprintf("unknown interface %s", iface)}
			}
		}
		for name, f := range cs.Fields {
			elem := string(symbol.Symbol(f.Type).Elem())
			switch {
			case f.Type == "":
				return &DefinitionError{Class: cs.Name, Field: name, Msg: "missing type"}
			case isPrimitive(elem), seen[elem]:
			default:
				return &DefinitionError{Class: cs.Name, Field: name, Msg: fmt.Sprintf("unknown type %s", f.Type)}
			}
		}
	}
	return nil
}

// validName reports whether s is a dotted identifier path.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, seg := range strings.Split(s, ".") {
		if seg == "" || strings.ContainsAny(seg, "[] \t") {
			return false
		}
	}
	return true
}

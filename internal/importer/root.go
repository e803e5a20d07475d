package importer

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/fwd/pkg/forward"
	"github.com/leapstack-labs/fwd/pkg/spi"
	"github.com/leapstack-labs/fwd/pkg/symbol"
)

// RootFinder serves the reserved root package and everything below it as
// forward references. It is both the finder and the loader.
type RootFinder struct {
	root string
	reg  *forward.Registry
}

// NewRootFinder creates a finder for root backed by reg. The root must be a
// single identifier.
func NewRootFinder(root string, reg *forward.Registry) (*RootFinder, error) {
	if root == "" || strings.ContainsAny(root, ".[] \t") {
		return nil, fmt.Errorf("invalid root package name %q", root)
	}
	return &RootFinder{root: root, reg: reg}, nil
}

// Root returns the reserved root package name.
func (f *RootFinder) Root() string { return f.root }

// Owns reports whether fullname is the root or below it.
func (f *RootFinder) Owns(fullname string) bool {
	return fullname == f.root || strings.HasPrefix(fullname, f.root+".")
}

// FindSpec claims the root and every name below it, except names that
// pass through a reserved introspection name.
func (f *RootFinder) FindSpec(fullname string) (*ModuleSpec, bool) {
	if !f.Owns(fullname) {
		return nil, false
	}
	for _, seg := range strings.Split(fullname, ".")[1:] {
		if forward.IsReserved(seg) {
			return nil, false
		}
	}
	return &ModuleSpec{Name: fullname, Loader: f, IsPackage: true, Origin: "forward"}, true
}

// Create returns the reference for the name with the root prefix removed.
// The root itself maps to the anonymous root reference.
func (f *RootFinder) Create(spec *ModuleSpec) (spi.Value, error) {
	suffix := strings.TrimPrefix(strings.TrimPrefix(spec.Name, f.root), ".")
	sym, err := symbol.Parse(suffix)
	if err != nil {
		return nil, err
	}
	return f.reg.GetOrCreate(sym), nil
}

// Exec does nothing. Forward modules need no initialization.
func (f *RootFinder) Exec(spi.Value) error {
	return nil
}

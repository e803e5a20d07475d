package forward

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"weak"

	"github.com/leapstack-labs/fwd/pkg/symbol"
)

// Registry maps symbols to the single live Ref for each symbol.
//
// Entries are held weakly: once nothing else references a Ref its entry is
// dropped, and a later lookup of the same symbol builds a fresh Ref. Identity
// is only guaranteed while some holder keeps a Ref alive.
type Registry struct {
	mu      sync.Mutex
	entries map[symbol.Symbol]weak.Pointer[Ref]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[symbol.Symbol]weak.Pointer[Ref]),
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// GetOrCreate returns the live Ref for sym, constructing and registering a
// new unresolved one if none exists.
func (r *Registry) GetOrCreate(sym symbol.Symbol) *Ref {
	r.mu.Lock()
	defer r.mu.Unlock()

	if wp, ok := r.entries[sym]; ok {
		if ref := wp.Value(); ref != nil {
			return ref
		}
	}

	ref := newRef(r, sym)
	r.entries[sym] = weak.Make(ref)
	runtime.AddCleanup(ref, r.evict, sym)
	return ref
}

// Root returns the anonymous root reference.
func (r *Registry) Root() *Ref {
	return r.GetOrCreate(symbol.Root)
}

// Declare walks path from the root, one Child access per segment, and returns
// the reference for the full path.
func (r *Registry) Declare(path string) (*Ref, error) {
	sym, err := symbol.Parse(path)
	if err != nil {
		return nil, err
	}

	ref := r.Root()
	for _, seg := range sym.Segments() {
		part := symbol.Symbol(seg)
		if ref, err = ref.Child(string(part.Elem())); err != nil {
			return nil, fmt.Errorf("declare %s: %w", path, err)
		}
		for i := 0; i < part.Dims(); i++ {
			if ref, err = ref.Child(symbol.Bracket); err != nil {
				return nil, fmt.Errorf("declare %s: %w", path, err)
			}
		}
	}
	return ref, nil
}

// Lookup returns the live Ref for sym without creating one.
func (r *Registry) Lookup(sym symbol.Symbol) (*Ref, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wp, ok := r.entries[sym]
	if !ok {
		return nil, false
	}
	ref := wp.Value()
	return ref, ref != nil
}

// Pending returns every live tracked reference, ordered by symbol so that
// parents come before their children.
func (r *Registry) Pending() []*Ref {
	r.mu.Lock()
	defer r.mu.Unlock()

	refs := make([]*Ref, 0, len(r.entries))
	for _, wp := range r.entries {
		if ref := wp.Value(); ref != nil {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].sym < refs[j].sym
	})
	return refs
}

// Len returns the number of live tracked references.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, wp := range r.entries {
		if wp.Value() != nil {
			n++
		}
	}
	return n
}

// Clear drops all tracking entries. References that were already handed out
// keep working and keep their resolved state.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[symbol.Symbol]weak.Pointer[Ref])
}

// evict runs after a Ref has been collected. A newer Ref may have been
// registered under the same symbol in the meantime, so only dead entries go.
func (r *Registry) evict(sym symbol.Symbol) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if wp, ok := r.entries[sym]; ok && wp.Value() == nil {
		delete(r.entries, sym)
	}
}

package forward

import (
	"log/slog"
	"sync"

	"github.com/leapstack-labs/fwd/pkg/spi"
	"github.com/leapstack-labs/fwd/pkg/symbol"
)

// Resolver binds every pending reference of a registry once the foreign
// runtime has started.
type Resolver struct {
	reg    *Registry
	logger *slog.Logger

	mu   sync.Mutex
	last *Report
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used to report resolution passes.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a resolver for reg.
func NewResolver(reg *Registry, opts ...Option) *Resolver {
	r := &Resolver{
		reg:    reg,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Binding records one reference bound during a pass.
type Binding struct {
	Symbol symbol.Symbol
	State  State
	Kind   spi.Kind
	Value  string
}

// Report summarizes a resolution pass.
type Report struct {
	Resolved []Binding

	// Unresolved lists symbols the runtime knows nothing about. Their
	// references stay inert for the rest of the process.
	Unresolved []symbol.Symbol
}

// Install registers the resolver as a start hook of lc.
func (r *Resolver) Install(lc spi.Lifecycle) {
	lc.OnStart(func(rt spi.Runtime) error {
		_, err := r.ResolveAll(rt)
		return err
	})
}

// LastReport returns the report of the most recent successful pass that
// found references pending.
func (r *Resolver) LastReport() *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

type pendingBinding struct {
	ref   *Ref
	state State
	value spi.Value
}

// ResolveAll looks up and binds every pending reference, then clears the
// registry. Lookups and classification happen for all references before any
// of them is bound: if one is rejected the pass aborts with nothing bound and
// the registry left as it was. A second call finds nothing pending.
func (r *Resolver) ResolveAll(rt spi.Runtime) (*Report, error) {
	pending := r.reg.Pending()
	report := &Report{}
	plan := make([]pendingBinding, 0, len(pending))

	for _, ref := range pending {
		if ref.Resolved() {
			continue
		}
		v, ok := Lookup(rt, ref.Symbol())
		if !ok {
			if !ref.Symbol().IsRoot() {
				report.Unresolved = append(report.Unresolved, ref.Symbol())
			}
			continue
		}
		state, err := stateFor(ref.Symbol(), v)
		if err != nil {
			r.logger.Error("forward resolution aborted", "symbol", ref.Symbol().String(), "error", err)
			return nil, err
		}
		plan = append(plan, pendingBinding{ref: ref, state: state, value: v})
	}

	for _, p := range plan {
		if !p.ref.morph(p.state, p.value, rt) {
			continue
		}
		report.Resolved = append(report.Resolved, Binding{
			Symbol: p.ref.Symbol(),
			State:  p.state,
			Kind:   p.value.Kind(),
			Value:  p.value.String(),
		})
	}
	r.reg.Clear()

	for _, sym := range report.Unresolved {
		r.logger.Debug("forward symbol unresolved", "symbol", sym.String())
	}
	r.logger.Info("forward references resolved",
		"pending", len(pending),
		"resolved", len(report.Resolved),
		"unresolved", len(report.Unresolved))

	// A pass with nothing pending changes nothing, the last report included.
	r.mu.Lock()
	if len(pending) > 0 || r.last == nil {
		r.last = report
	}
	r.mu.Unlock()
	return report, nil
}

// Lookup finds the foreign value named by sym. Leading segments that denote
// namespaces are skipped; the first one that does not is looked up as a type
// and the remaining segments are read as members of it.
func Lookup(rt spi.Runtime, sym symbol.Symbol) (spi.Value, bool) {
	if sym.IsRoot() {
		return nil, false
	}
	if rt.IsNamespace(string(sym)) {
		return rt.Namespace(string(sym))
	}

	segs := sym.Segments()
	for i := range segs {
		prefix := string(sym.Prefix(i + 1))
		if rt.IsNamespace(prefix) {
			continue
		}
		obj, ok := rt.FindType(prefix)
		if !ok {
			return nil, false
		}
		for _, member := range segs[i+1:] {
			if obj, ok = rt.Attr(obj, member); !ok {
				return nil, false
			}
		}
		return obj, true
	}
	return nil, false
}

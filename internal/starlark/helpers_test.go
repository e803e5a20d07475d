package starlark

import (
	"testing"

	"github.com/leapstack-labs/fwd/internal/catalog"
	"github.com/leapstack-labs/fwd/pkg/forward"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

const testCatalog = `
name: script-test
classes:
  - name: java.lang.Object
  - name: java.lang.Comparable
    interface: true
  - name: java.lang.Number
    abstract: true
  - name: java.lang.String
    interfaces: [java.lang.Comparable]
    boxes: string
  - name: java.lang.Integer
    super: java.lang.Number
    interfaces: [java.lang.Comparable]
    boxes: int
    fields:
      MAX_VALUE: {type: int, value: 2147483647}
  - name: java.util.ArrayList
  - name: java.util.concurrent.TimeUnit
    enum: [SECONDS, MINUTES]
`

type session struct {
	ctx      *ExecutionContext
	rt       *catalog.Runtime
	reg      *forward.Registry
	resolver *forward.Resolver
}

func newSession(t *testing.T, opts ...ContextOption) *session {
	t.Helper()

	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	rt, err := catalog.New(cat)
	require.NoError(t, err)

	reg := forward.NewRegistry()
	ctx, err := NewContext("jroot", reg, opts...)
	require.NoError(t, err)

	resolver := forward.NewResolver(reg)
	resolver.Install(rt)
	ctx.Install(rt)

	return &session{ctx: ctx, rt: rt, reg: reg, resolver: resolver}
}

func (s *session) start(t *testing.T) {
	t.Helper()
	require.NoError(t, s.rt.Start())
}

func (s *session) exec(t *testing.T, src string) starlark.StringDict {
	t.Helper()
	globals, err := s.ctx.ExecFile("test.star", src)
	require.NoError(t, err)
	return globals
}

func (s *session) eval(t *testing.T, expr string, locals starlark.StringDict) string {
	t.Helper()
	v, err := s.ctx.EvalExprWithLocals(expr, "test", 0, locals)
	require.NoError(t, err, expr)
	if str, ok := v.(starlark.String); ok {
		return string(str)
	}
	return v.String()
}

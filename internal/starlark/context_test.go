package starlark

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/leapstack-labs/fwd/internal/testutil"
	"github.com/leapstack-labs/fwd/pkg/forward"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestNewContext(t *testing.T) {
	s := newSession(t)
	globals := s.ctx.Globals()

	expected := []string{"jroot", "cast", "isinstance", "issubclass", "resolved", "symbol", "declare", "pending", "started"}
	for _, key := range expected {
		_, ok := globals[key]
		assert.True(t, ok, "global %q not found", key)
	}

	assert.Equal(t, "forward", s.eval(t, "type(jroot)", nil))
	assert.Equal(t, "<root>", s.eval(t, "str(jroot)", nil))
	assert.Equal(t, []string{"jroot"}, s.ctx.Imports.Modules())
}

func TestNewContext_Errors(t *testing.T) {
	reg := forward.NewRegistry()

	_, err := NewContext("a.b", reg)
	assert.Error(t, err, "dotted root")

	_, err = NewContext("cast", reg)
	assert.ErrorContains(t, err, "conflicts with builtin")

	_, err = NewContext("jroot", reg, WithGlobals(starlark.StringDict{"declare": starlark.None}))
	assert.ErrorContains(t, err, "conflicts with builtin")

	ctx, err := NewContext("jroot", reg, WithGlobals(starlark.StringDict{"answer": starlark.MakeInt(42)}))
	require.NoError(t, err)
	got, err := ctx.EvalExprString("answer + 1", "test", 1)
	require.NoError(t, err)
	assert.Equal(t, "43", got)
}

const forwardScript = `
String = jroot.java.lang.String
Strings = jroot.java.lang.String[:]
Grid = Strings[:]
Integer = jroot.java.lang.Integer
Number = jroot.java.lang.Number
Seconds = jroot.java.util.concurrent.TimeUnit.SECONDS
Missing = jroot.java.lang.Nope

def main():
    return str(String("from main"))
`

func TestExecFile_BeforeStart(t *testing.T) {
	s := newSession(t)
	globals := s.exec(t, forwardScript)

	tests := []struct {
		expr string
		want string
	}{
		{"type(String)", "forward"},
		{"str(String)", "java.lang.String"},
		{"str(Strings)", "java.lang.String[]"},
		{"str(Grid)", "java.lang.String[][]"},
		{"String == jroot.java.lang.String", "True"},
		{"Strings == jroot.java.lang.String[:]", "True"},
		{"String != Integer", "True"},
		{"resolved(String)", "False"},
		{"symbol(Seconds)", "jroot.java.util.concurrent.TimeUnit.SECONDS"},
		{"started()", "False"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, s.eval(t, tt.expr, globals))
		})
	}
}

func TestExecFile_RuntimeOperationsNeedStart(t *testing.T) {
	s := newSession(t)
	globals := s.exec(t, forwardScript)

	for _, expr := range []string{
		`String("x")`,
		`cast(String, "x")`,
		`isinstance(Seconds, String)`,
		`issubclass(Integer, Number)`,
		`String[3]`,
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := s.ctx.EvalExprWithLocals(expr, "test", 0, globals)
			require.Error(t, err)
			var evalErr *EvalError
			require.ErrorAs(t, err, &evalErr)
			assert.Equal(t, expr, evalErr.Expr)
		})
	}

	_, err := s.ctx.EvalExprWithLocals(`String("x")`, "test", 0, globals)
	assert.ErrorIs(t, err, forward.ErrRuntimeNotReady)

	_, err = s.ctx.Call(globals, "main")
	assert.ErrorIs(t, err, forward.ErrRuntimeNotReady)

	_, err = s.ctx.EvalExprWithLocals(`jroot.java.__spec__`, "test", 0, globals)
	assert.Error(t, err, "reserved names are not attributes")
}

func TestExecFile_AfterStart(t *testing.T) {
	s := newSession(t)
	globals := s.exec(t, forwardScript)
	s.start(t)

	tests := []struct {
		expr string
		want string
	}{
		{"type(String)", "type"},
		{"str(String)", "class java.lang.String"},
		{"str(Strings)", "class java.lang.String[]"},
		{"str(Grid)", "class java.lang.String[][]"},
		{"type(Seconds)", "object"},
		{"str(Seconds)", "SECONDS"},
		{"resolved(String)", "True"},
		{"resolved(Missing)", "False"},
		{"type(Missing)", "forward"},
		{`str(String("hi"))`, "hi"},
		{`str(cast(String, "abc"))`, "abc"},
		{`isinstance(String("x"), String)`, "True"},
		{`isinstance(Seconds, String)`, "False"},
		{`isinstance("native", String)`, "False"},
		{"issubclass(Integer, Number)", "True"},
		{"issubclass(String, Number)", "False"},
		{"Integer.MAX_VALUE + 1", "2147483648"},
		{"String == jroot.java.lang.String", "True"},
		{"Seconds == jroot.java.util.concurrent.TimeUnit.SECONDS", "True"},
		{"Strings == String[:]", "True"},
		{"len(String[3])", "3"},
		{"str(String[3])", "java.lang.String[3]"},
		{"started()", "True"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, s.eval(t, tt.expr, globals))
		})
	}

	v, err := s.ctx.Call(globals, "main")
	require.NoError(t, err)
	assert.Equal(t, `"from main"`, v.String())

	_, err = s.ctx.EvalExprWithLocals("Missing()", "test", 0, globals)
	assert.ErrorIs(t, err, forward.ErrRuntimeNotReady, "unresolved references stay inert")

	runtime.KeepAlive(globals)
}

func TestExecFile_ArrayElements(t *testing.T) {
	s := newSession(t)
	globals := s.exec(t, forwardScript)
	s.start(t)

	env, err := s.ctx.ExecChunk(`
names = String[2]
names[0] = "a"
names[1] = String("b")
first = names[0]
both = [str(x) for x in names[:]]
`, globals)
	require.NoError(t, err)

	assert.Equal(t, "a", s.eval(t, "str(first)", env))
	assert.Equal(t, `["a", "b"]`, s.eval(t, "str(both)", env))
	assert.Equal(t, "2", s.eval(t, "names.length", env))

	_, err = s.ctx.EvalExprWithLocals("names[5]", "test", 0, env)
	assert.Error(t, err, "out of range")

	_, err = s.ctx.ExecChunk("names[0] = 1", env)
	assert.Error(t, err, "int cannot be stored in a String[]")
}

func TestExecFile_Errors(t *testing.T) {
	s := newSession(t)

	_, err := s.ctx.ExecFile("bad.star", "def (")
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "bad.star", evalErr.File)

	_, err = s.ctx.ExecFile("undefined.star", "x = undefined_name")
	assert.ErrorContains(t, err, "undefined")

	_, err = s.ctx.ExecFile("fail.star", `fail("boom")`)
	require.ErrorAs(t, err, &evalErr)
	assert.Contains(t, evalErr.Message, "boom")
	assert.NotEmpty(t, evalErr.Backtrace)
}

func TestExecFile_Print(t *testing.T) {
	var out bytes.Buffer
	s := newSession(t, WithOutput(&out), WithLogger(testutil.NewTestLogger(t)))

	s.exec(t, `print("kind:", type(jroot.java))`)
	assert.Equal(t, "kind: forward\n", out.String())
}

func TestCall_Errors(t *testing.T) {
	s := newSession(t)
	globals := s.exec(t, "value = 1\ndef echo(x):\n    return x\n")

	_, err := s.ctx.Call(globals, "nope")
	assert.ErrorContains(t, err, "no function")

	_, err = s.ctx.Call(globals, "value")
	assert.ErrorContains(t, err, "not a function")

	v, err := s.ctx.Call(globals, "echo", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, v.String())

	_, err = s.ctx.Call(globals, "echo", struct{}{})
	assert.Error(t, err, "unsupported argument type")
}

func TestEvalExprString(t *testing.T) {
	s := newSession(t)

	tests := []struct {
		name    string
		expr    string
		want    string
		wantErr bool
	}{
		{name: "string", expr: `"hello"`, want: "hello"},
		{name: "none", expr: `None`, want: ""},
		{name: "int", expr: `1 + 2`, want: "3"},
		{name: "forward", expr: `jroot.a.b`, want: "a.b"},
		{name: "undefined", expr: `nope`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ctx.EvalExprString(tt.expr, "test", 3)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "test:3:")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecChunk(t *testing.T) {
	s := newSession(t)

	env, err := s.ctx.ExecChunk("x = 1", nil)
	require.NoError(t, err)
	env, err = s.ctx.ExecChunk("y = x + 1", env)
	require.NoError(t, err)
	assert.Equal(t, "2", s.eval(t, "y", env))
	assert.Equal(t, []string{"x", "y"}, SortedNames(env))

	kept, err := s.ctx.ExecChunk("z = undefined", env)
	require.Error(t, err)
	assert.Equal(t, env, kept, "failed chunks leave the environment alone")
}

func TestEvalError_Error(t *testing.T) {
	tests := []struct {
		err  *EvalError
		want string
	}{
		{&EvalError{File: "f", Line: 2, Expr: "x", Message: "m"}, `f:2: error evaluating "x": m`},
		{&EvalError{File: "f", Expr: "x", Message: "m"}, `f: error evaluating "x": m`},
		{&EvalError{File: "f", Message: "m"}, "f: m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestInteract(t *testing.T) {
	s := newSession(t)

	v, env, err := s.ctx.Interact("x = 40", nil)
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, []string{"x"}, SortedNames(env))

	v, env, err = s.ctx.Interact("x + 2", env)
	require.NoError(t, err)
	assert.Equal(t, "42", v.String())
	assert.Equal(t, []string{"x"}, SortedNames(env))

	v, _, err = s.ctx.Interact("jroot.java.lang", env)
	require.NoError(t, err)
	assert.Equal(t, "forward", v.Type())

	_, kept, err := s.ctx.Interact("y = nope", env)
	require.Error(t, err)
	assert.Equal(t, env, kept)
}

func TestReferenceDictKeySurvivesStart(t *testing.T) {
	s := newSession(t)
	globals := s.exec(t, `
S = jroot.java.lang.String
d = {S: "hit"}
`)
	d := globals["d"].(*starlark.Dict)
	before, err := globals["S"].Hash()
	require.NoError(t, err)

	s.start(t)

	after, err := globals["S"].Hash()
	require.NoError(t, err)
	assert.Equal(t, before, after, "binding a reference must not change its hash")

	v, found, err := d.Get(globals["S"])
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, starlark.String("hit"), v)
	assert.Equal(t, "hit", s.eval(t, "d[S]", globals))
}

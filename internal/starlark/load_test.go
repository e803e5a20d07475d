package starlark

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScripts(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return dir
}

func TestLoad_RootModuleBeforeStart(t *testing.T) {
	s := newSession(t)
	globals := s.exec(t, `
load("jroot.java.lang", "String", Int = "Integer")
load("jroot", "java")
same = String == jroot.java.lang.String
`)

	assert.Equal(t, "True", s.eval(t, "same", globals))
	assert.Equal(t, "forward", s.eval(t, "type(Int)", globals))
	assert.Equal(t, "java", s.eval(t, "str(java)", globals))
	assert.Contains(t, s.ctx.Imports.Modules(), "jroot.java.lang")

	s.start(t)
	assert.Equal(t, "type", s.eval(t, "type(String)", globals))
	assert.Equal(t, "class java.lang.Integer", s.eval(t, "str(Int)", globals))
	assert.Equal(t, "namespace", s.eval(t, "type(java)", globals))
}

func TestLoad_RootModuleAfterStart(t *testing.T) {
	s := newSession(t)
	s.start(t)

	globals := s.exec(t, `load("jroot.java.util", "ArrayList")`)
	assert.Equal(t, "type", s.eval(t, "type(ArrayList)", globals))
	assert.Equal(t, "class java.util.ArrayList", s.eval(t, "str(jroot.java.util.ArrayList)", nil))

	_, err := s.ctx.ExecFile("missing.star", `load("jroot.java.util", "HashMap")`)
	assert.ErrorContains(t, err, "HashMap")

	_, err = s.ctx.ExecFile("missing.star", `load("jroot.nope", "X")`)
	assert.ErrorContains(t, err, "jroot.nope")
}

func TestLoad_ReservedModule(t *testing.T) {
	s := newSession(t)
	_, err := s.ctx.ExecFile("reserved.star", `load("jroot.java.__spec__", "X")`)
	assert.Error(t, err)
	assert.NotContains(t, s.ctx.Imports.Modules(), "jroot.java.__spec__")
}

func TestLoad_ScriptModules(t *testing.T) {
	dir := writeScripts(t, map[string]string{
		"helpers.star": `
String = jroot.java.lang.String

def greet(name):
    return "hello " + name
`,
		"lib/text.star": `
def shout(s):
    return s.upper()
`,
	})
	s := newSession(t, WithScriptDir(dir))

	globals := s.exec(t, `
load("helpers", "greet", "String")
load("lib.text", "shout")
msg = shout(greet("fwd"))
same = String == jroot.java.lang.String
`)
	assert.Equal(t, "HELLO FWD", s.eval(t, "msg", globals))
	assert.Equal(t, "True", s.eval(t, "same", globals))
	assert.Equal(t, []string{"helpers", "jroot", "lib", "lib.text"}, s.ctx.Imports.Modules())

	// Loading again reuses the module.
	again := s.exec(t, `load("helpers", "String")`)
	assert.Equal(t, "True", s.eval(t, "String == jroot.java.lang.String", again))
}

func TestLoad_ScriptModuleErrors(t *testing.T) {
	dir := writeScripts(t, map[string]string{
		"a.star":      `load("b", "y")` + "\nx = 1\n",
		"b.star":      `load("a", "x")` + "\ny = 2\n",
		"broken.star": `fail("broken module")`,
	})
	s := newSession(t, WithScriptDir(dir))

	_, err := s.ctx.ExecFile("main.star", `load("a", "x")`)
	assert.ErrorContains(t, err, "cycle in load graph")

	_, err = s.ctx.ExecFile("main.star", `load("nowhere", "x")`)
	assert.ErrorContains(t, err, "no module named")

	_, err = s.ctx.ExecFile("main.star", `load("broken", "x")`)
	assert.ErrorContains(t, err, "broken module")
	assert.NotContains(t, s.ctx.Imports.Modules(), "broken", "failed modules are not cached")
}

func TestLoad_WithoutScriptDir(t *testing.T) {
	s := newSession(t)
	_, err := s.ctx.ExecFile("main.star", `load("helpers", "greet")`)
	assert.ErrorContains(t, err, "no module named")
}

func TestLoad_RootHookShadowsScriptFiles(t *testing.T) {
	dir := writeScripts(t, map[string]string{
		"jroot.star": "x = 1\n",
	})
	s := newSession(t, WithScriptDir(dir))

	assert.Equal(t, "forward", s.ctx.Globals()["jroot"].Type(), "the root package comes from the loader hook")
	globals := s.exec(t, `load("jroot.java.lang", "String")`)
	assert.Equal(t, "forward", globals["String"].Type())
}

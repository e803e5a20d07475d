package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/fwd/internal/cli/config"
	"github.com/leapstack-labs/fwd/internal/cli/output"
	"github.com/leapstack-labs/fwd/internal/cli/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainScript = `
String = jroot.java.lang.String
Integer = jroot.java.lang.Integer
Missing = jroot.java.lang.Nope

def main():
    return str(String("hi")) + " " + str(Integer.MAX_VALUE)
`

// loadProject creates a project with scripts and loads its configuration.
func loadProject(t *testing.T, scripts map[string]string) string {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	dir := testutil.SetupTestProject(t, scripts)
	_, err := config.LoadConfig(filepath.Join(dir, "fwd.yaml"), nil)
	require.NoError(t, err)
	return dir
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewRunCommand(), "run <script>", []string{"watch", "json", "no-start"}},
		{NewResolveCommand(), "resolve <symbol>...", []string{"eval", "jobs", "format"}},
		{NewCatalogCommand(), "catalog", []string{"package", "format"}},
		{NewReplCommand(), "repl", []string{"history"}},
	}
	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, tt.cmd.Example, "Example should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestRunCommand(t *testing.T) {
	dir := loadProject(t, map[string]string{"main.star": mainScript})

	out, errOut, err := execute(t, NewRunCommand(), filepath.Join(dir, "main.star"))
	require.NoError(t, err)

	assert.Contains(t, out, "**Resolved")
	assert.Contains(t, out, "hi 2147483647")
	assert.Contains(t, errOut, "unresolved: jroot.java.lang.Nope")
}

func TestRunCommand_JSON(t *testing.T) {
	dir := loadProject(t, map[string]string{"main.star": mainScript})

	out, _, err := execute(t, NewRunCommand(), filepath.Join(dir, "main.star"), "--json")
	require.NoError(t, err)

	var ev output.RunEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &ev))
	assert.Equal(t, "complete", ev.Event)
	assert.Equal(t, "hi 2147483647", ev.Result)
	assert.Equal(t, []string{"jroot.java.lang.Nope"}, ev.Pending)
}

func TestRunCommand_NoStart(t *testing.T) {
	dir := loadProject(t, map[string]string{"main.star": mainScript})

	out, _, err := execute(t, NewRunCommand(), filepath.Join(dir, "main.star"), "--no-start")
	require.NoError(t, err)

	assert.Contains(t, out, "Pending references")
	assert.Contains(t, out, "jroot.java.lang.String")
	assert.Contains(t, out, "jroot.java.lang.Nope")
	assert.NotContains(t, out, "hi 2147483647", "main does not run without a runtime")
}

func TestRunCommand_LoadsSiblingScripts(t *testing.T) {
	dir := loadProject(t, map[string]string{
		"lib/names.star": "Unit = jroot.java.util.concurrent.TimeUnit\n",
		"main.star": `
load("lib/names", "Unit")

def main():
    return str(Unit.SECONDS)
`,
	})

	_, _, err := execute(t, NewRunCommand(), filepath.Join(dir, "main.star"))
	assert.Error(t, err, "module names are dotted, not paths")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.star"), []byte(`
load("lib.names", "Unit")

def main():
    return str(Unit.SECONDS)
`), 0o644))
	out, _, err := execute(t, NewRunCommand(), filepath.Join(dir, "main.star"))
	require.NoError(t, err)
	assert.Contains(t, out, "SECONDS")
}

func TestRunCommand_Errors(t *testing.T) {
	dir := loadProject(t, map[string]string{
		"abort.star":  "Max = jroot.java.lang.Integer.MAX_VALUE\n",
		"broken.star": "def (\n",
		"fails.star":  "def main():\n    fail(\"boom\")\n",
	})

	tests := []struct {
		script  string
		wantErr string
	}{
		{"abort.star", "runtime start failed"},
		{"broken.star", "broken.star"},
		{"fails.star", "boom"},
		{"missing.star", "missing.star"},
	}
	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			_, _, err := execute(t, NewRunCommand(), filepath.Join(dir, tt.script))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	out, _, err := execute(t, NewRunCommand(), filepath.Join(dir, "fails.star"), "--json")
	require.Error(t, err)
	assert.Contains(t, out, `"event":"error"`)
}

func TestResolveCommand(t *testing.T) {
	loadProject(t, nil)

	out, _, err := execute(t, NewResolveCommand(),
		"java.lang.String", "jroot.java.util.concurrent.TimeUnit.SECONDS", "java.lang.Nope",
		"--format", "json",
		"-e", "jroot.java.lang.Integer.MAX_VALUE + 1",
		"-e", "nope",
	)
	require.NoError(t, err)

	var res output.ResolveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res.Session)

	states := make(map[string]string)
	for _, b := range res.Resolved {
		states[b.Symbol] = b.State
	}
	assert.Equal(t, "type", states["jroot.java.lang.String"])
	assert.Equal(t, "object", states["jroot.java.util.concurrent.TimeUnit.SECONDS"])
	assert.Contains(t, res.Unresolved, "jroot.java.lang.Nope")
	assert.NotContains(t, res.Unresolved, "jroot", "the root never resolves and is not reported")

	require.Len(t, res.Values, 2)
	assert.Equal(t, "2147483648", res.Values[0].Value)
	assert.Equal(t, "int", res.Values[0].Type)
	assert.NotEmpty(t, res.Values[1].Error)
}

func TestResolveCommand_Markdown(t *testing.T) {
	loadProject(t, nil)

	out, _, err := execute(t, NewResolveCommand(), "java.lang.String", "java.lang.Nope")
	require.NoError(t, err)

	assert.Contains(t, out, "# Resolved")
	assert.Contains(t, out, "| jroot.java.lang.String | type |")
	assert.Contains(t, out, "## Unresolved (1)")
	assert.Contains(t, out, "- jroot.java.lang.Nope")
}

func TestResolveCommand_InvalidSymbol(t *testing.T) {
	loadProject(t, nil)

	_, _, err := execute(t, NewResolveCommand(), "java..lang")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid symbol")

	_, _, err = execute(t, NewResolveCommand(), "java.__spec__")
	assert.Error(t, err)
}

func TestCatalogCommand(t *testing.T) {
	loadProject(t, nil)

	out, _, err := execute(t, NewCatalogCommand(), "--format", "json")
	require.NoError(t, err)

	var cat output.CatalogOutput
	require.NoError(t, json.Unmarshal([]byte(out), &cat))
	assert.Equal(t, "cli-test", cat.Name)
	assert.Equal(t, 5, cat.Summary.Classes)

	kinds := make(map[string]output.ClassInfo)
	for _, p := range cat.Packages {
		for _, c := range p.Classes {
			kinds[c.Name] = c
		}
	}
	assert.Equal(t, "abstract class", kinds["java.lang.Number"].Kind)
	assert.Equal(t, "enum", kinds["java.util.concurrent.TimeUnit"].Kind)
	assert.Equal(t, "java.lang.Number", kinds["java.lang.Integer"].Super)
	assert.Contains(t, kinds["java.lang.Integer"].Fields, "MAX_VALUE")
}

func TestCatalogCommand_Filter(t *testing.T) {
	loadProject(t, nil)

	out, _, err := execute(t, NewCatalogCommand(), "--package", "java.util")
	require.NoError(t, err)
	assert.Contains(t, out, "## java.util.concurrent")
	assert.Contains(t, out, "| TimeUnit | enum |")
	assert.NotContains(t, out, "## java.lang")

	_, _, err = execute(t, NewCatalogCommand(), "--package", "org")
	assert.Error(t, err)
}

func TestCatalogCommand_Text(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	loadProject(t, nil)

	out, _, err := execute(t, NewCatalogCommand(), "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Catalog cli-test")
	assert.Contains(t, out, "enum TimeUnit")
	assert.Contains(t, out, "Total: ")
}

func TestWatchScripts(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trigger := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- watchScripts(ctx, []string{dir}, trigger, slog.New(slog.DiscardHandler))
	}()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "main.star"), []byte("x = 1\n"), 0o644)
		select {
		case <-trigger:
			return true
		case <-time.After(200 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestFormatResult(t *testing.T) {
	assert.Equal(t, "", formatResult(nil))
}

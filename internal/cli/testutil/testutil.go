// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/leapstack-labs/fwd/internal/cli/output"
)

// Catalog is a small catalog used by CLI tests.
const Catalog = `name: cli-test
classes:
  - name: java.lang.Object
  - name: java.lang.Number
    abstract: true
  - name: java.lang.String
    boxes: string
  - name: java.lang.Integer
    super: java.lang.Number
    boxes: int
    fields:
      MAX_VALUE: {type: int, value: 2147483647}
  - name: java.util.concurrent.TimeUnit
    enum: [SECONDS, MINUTES]
`

// SetupTestProject creates a temporary project with a fwd.yaml, the test
// catalog, and the given script files. It returns the project directory.
func SetupTestProject(t *testing.T, scripts map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"fwd.yaml":     "root: jroot\ncatalog: catalog.yaml\n",
		"catalog.yaml": Catalog,
	}
	for name, src := range scripts {
		files[name] = src
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}
	return dir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the combined stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// HasANSI reports whether s contains ANSI escape codes.
func HasANSI(s string) bool {
	return ansiPattern.MatchString(s)
}

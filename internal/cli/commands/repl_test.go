package commands

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/fwd/internal/cli/output"
	logtest "github.com/leapstack-labs/fwd/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	return logtest.NewTestLogger(t)
}

type replHarness struct {
	repl   *repl
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newREPLHarness(t *testing.T, scripts map[string]string) (*replHarness, string) {
	t.Helper()
	dir := loadProject(t, scripts)

	var out, errOut bytes.Buffer
	c := &CommandContext{
		Cfg:      getConfig(),
		Logger:   testLogger(t),
		Renderer: output.NewRendererWithTTY(&out, &errOut, false, output.ModeMarkdown),
	}
	sess, err := c.NewSession(dir)
	require.NoError(t, err)
	return &replHarness{repl: newREPL(sess), out: &out, errOut: &errOut}, dir
}

func (h *replHarness) feed(lines ...string) bool {
	h.out.Reset()
	h.errOut.Reset()
	quit := false
	for _, line := range lines {
		quit = h.repl.Feed(line)
	}
	return quit
}

func TestREPL_ForwardThenStart(t *testing.T) {
	h, _ := newREPLHarness(t, nil)

	h.feed("String = jroot.java.lang.String")
	assert.Empty(t, h.errOut.String())

	h.feed("type(String)")
	assert.Equal(t, "\"forward\"\n", h.out.String())

	h.feed(".pending")
	assert.Contains(t, h.out.String(), "jroot.java.lang.String")

	h.feed(".report")
	assert.Contains(t, h.errOut.String(), "runtime not started")

	h.feed(".start")
	assert.Contains(t, h.out.String(), "Runtime started")

	h.feed("str(String(\"hello\"))")
	assert.Equal(t, "\"hello\"\n", h.out.String())

	h.feed(".pending")
	assert.Contains(t, h.out.String(), "no pending references")

	h.feed(".report")
	assert.Contains(t, h.out.String(), "jroot.java.lang.String")

	h.feed(".start")
	assert.Contains(t, h.errOut.String(), "already started")
}

func TestREPL_Blocks(t *testing.T) {
	h, _ := newREPLHarness(t, nil)

	h.feed("def twice(x):", "    return x * 2")
	assert.Empty(t, h.out.String(), "block stays open until a blank line")

	h.feed("")
	h.feed("twice(21)")
	assert.Equal(t, "42\n", h.out.String())

	h.feed("None")
	assert.Empty(t, h.out.String())
}

func TestREPL_DotCommands(t *testing.T) {
	h, dir := newREPLHarness(t, map[string]string{
		"defs.star": "Unit = jroot.java.util.concurrent.TimeUnit\nanswer = 42\n",
	})

	h.feed(".load " + filepath.Join(dir, "defs.star"))
	assert.Contains(t, h.out.String(), "loaded 2 names")

	h.feed(".names")
	assert.Contains(t, h.out.String(), "Unit = forward")
	assert.Contains(t, h.out.String(), "answer = int")

	h.feed(".load")
	assert.Contains(t, h.errOut.String(), "Usage: .load")

	h.feed(".load " + filepath.Join(dir, "nope.star"))
	assert.Contains(t, h.errOut.String(), "Error:")

	h.feed(".bogus")
	assert.Contains(t, h.errOut.String(), "Unknown command: .bogus")

	h.feed(".help")
	assert.Contains(t, h.out.String(), ".pending")

	h.feed("x = undefined")
	assert.Contains(t, h.errOut.String(), "undefined")

	assert.True(t, h.feed(".quit"))
	assert.True(t, h.feed(".exit"))
}

package cli

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/fwd/internal/cli/config"
	"github.com/leapstack-labs/fwd/internal/cli/output"
	"github.com/leapstack-labs/fwd/internal/cli/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "fwd", cmd.Use)

	for _, flag := range []string{"config", "root", "catalog", "runtime", "script-dir", "verbose", "output"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"version", "run", "resolve", "catalog", "repl", "completion"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestPersistentPreRun_StoresContext(t *testing.T) {
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	dir := testutil.SetupTestProject(t, nil)

	var (
		got      *config.Config
		renderer *output.Renderer
		logger   *slog.Logger
	)
	root := NewRootCmd()
	root.AddCommand(&cobra.Command{
		Use: "probe",
		RunE: func(cmd *cobra.Command, _ []string) error {
			got = GetConfig(cmd.Context())
			renderer = GetRenderer(cmd.Context())
			logger = config.GetLogger(cmd.Context())
			return nil
		},
	})

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"--config", filepath.Join(dir, "fwd.yaml"), "-v", "-o", "json", "--root", "jvm", "probe"})
	require.NoError(t, root.Execute())

	require.NotNil(t, got)
	assert.Equal(t, "jvm", got.Root)
	assert.True(t, got.Verbose)
	assert.Equal(t, output.ModeJSON, renderer.EffectiveMode())
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.Contains(t, errOut.String(), "Using config file")
}

func TestPersistentPreRun_InvalidConfig(t *testing.T) {
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	dir := testutil.SetupTestProject(t, nil)

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(dir, "fwd.yaml"), "--runtime", "jvm", "catalog"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestContextDefaults(t *testing.T) {
	ctx := context.Background()

	cfg := GetConfig(ctx)
	assert.Equal(t, config.DefaultRoot, cfg.Root)
	assert.Equal(t, config.DefaultRuntimeType, cfg.Runtime.Type)
	assert.NotNil(t, GetRenderer(ctx))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()

	quiet := newLogger(&buf, false)
	assert.False(t, quiet.Enabled(ctx, slog.LevelInfo))
	assert.True(t, quiet.Enabled(ctx, slog.LevelWarn))

	loud := newLogger(&buf, true)
	assert.True(t, loud.Enabled(ctx, slog.LevelDebug))
}

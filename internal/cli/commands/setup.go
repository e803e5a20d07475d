package commands

import (
	"fmt"
	"log/slog"

	_ "github.com/leapstack-labs/fwd/internal/catalog" // register the catalog runtime
	"github.com/leapstack-labs/fwd/internal/cli/config"
	"github.com/leapstack-labs/fwd/internal/cli/output"
	starctx "github.com/leapstack-labs/fwd/internal/starlark"
	"github.com/leapstack-labs/fwd/pkg/forward"
	"github.com/leapstack-labs/fwd/pkg/provider"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Session wires one forward-declaration lifecycle: a fresh registry, a
// resolver hooked to the runtime's start, and a script context whose root
// package is served from the registry.
type Session struct {
	*CommandContext

	Registry *forward.Registry
	Resolver *forward.Resolver
	Runtime  provider.Runtime
	Script   *starctx.ExecutionContext
}

// NewSession creates a session. scriptDir is where load() finds sibling
// script modules; empty disables them.
func (c *CommandContext) NewSession(scriptDir string) (*Session, error) {
	rt, err := provider.New(c.Cfg.ProviderConfig(), c.Logger)
	if err != nil {
		return nil, err
	}

	reg := forward.NewRegistry()
	resolver := forward.NewResolver(reg, forward.WithLogger(c.Logger))

	opts := []starctx.ContextOption{
		starctx.WithLogger(c.Logger),
		starctx.WithOutput(c.Renderer.Writer()),
	}
	if scriptDir != "" {
		opts = append(opts, starctx.WithScriptDir(scriptDir))
	}
	script, err := starctx.NewContext(c.Cfg.Root, reg, opts...)
	if err != nil {
		return nil, err
	}

	// The resolver goes first so references are bound before scripts
	// observe the runtime.
	resolver.Install(rt)
	script.Install(rt)

	return &Session{
		CommandContext: c,
		Registry:       reg,
		Resolver:       resolver,
		Runtime:        rt,
		Script:         script,
	}, nil
}

// Start starts the runtime and returns the resolution report.
func (s *Session) Start() (*forward.Report, error) {
	if err := s.Runtime.Start(); err != nil {
		return nil, fmt.Errorf("runtime start failed: %w", err)
	}
	report := s.Resolver.LastReport()
	if report == nil {
		report = &forward.Report{}
	}
	return report, nil
}

// sessionID returns the runtime session id when the runtime has one.
func (s *Session) sessionID() string {
	if sr, ok := s.Runtime.(interface{ Session() string }); ok {
		return sr.Session()
	}
	return ""
}

// reportOutput converts a report to its JSON form, qualifying symbols with
// the root package.
func (s *Session) reportOutput(report *forward.Report) output.ResolveOutput {
	out := output.ResolveOutput{
		Session:    s.sessionID(),
		Resolved:   make([]output.BindingInfo, 0, len(report.Resolved)),
		Unresolved: make([]string, 0, len(report.Unresolved)),
	}
	for _, b := range report.Resolved {
		out.Resolved = append(out.Resolved, output.BindingInfo{
			Symbol: s.qualify(b.Symbol.String()),
			State:  b.State.String(),
			Kind:   b.Kind.String(),
			Value:  b.Value,
		})
	}
	for _, sym := range report.Unresolved {
		out.Unresolved = append(out.Unresolved, s.qualify(sym.String()))
	}
	return out
}

func (s *Session) qualify(sym string) string {
	if sym == "" {
		return s.Cfg.Root
	}
	return s.Cfg.Root + "." + sym
}

// getConfig returns the current configuration, or the defaults when none
// was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		Root:         config.DefaultRoot,
		Catalog:      config.DefaultCatalog,
		Runtime:      provider.Config{Type: config.DefaultRuntimeType},
		OutputFormat: config.DefaultOutput,
	}
}

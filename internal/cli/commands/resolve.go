package commands

import (
	"fmt"
	"runtime"

	"github.com/leapstack-labs/fwd/internal/cli/output"
	starctx "github.com/leapstack-labs/fwd/internal/starlark"
	"github.com/leapstack-labs/fwd/pkg/forward"
	"github.com/spf13/cobra"
)

// ResolveOptions holds options for the resolve command.
type ResolveOptions struct {
	Eval   []string // Expressions evaluated after start
	Jobs   int      // Concurrent evaluations
	Format string   // Output format override
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand() *cobra.Command {
	opts := &ResolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve <symbol>...",
		Short: "Declare forward references and resolve them",
		Long: `Declare a forward reference for each dotted symbol, start the runtime,
and report what every reference became.

Symbols may carry the root package prefix. Expressions given with --eval are
evaluated concurrently against the started runtime.`,
		Example: `  # Resolve a class and a package
  fwd resolve java.lang.String jroot.java.util

  # Evaluate expressions afterwards
  fwd resolve java.lang.Integer -e 'jroot.java.lang.Integer.MAX_VALUE'

  # Output as JSON
  fwd resolve java.lang.String --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, args, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Eval, "eval", "e", nil, "Expression to evaluate after start (repeatable)")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 4, "Maximum concurrent evaluations")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, json, markdown")

	return cmd
}

func runResolve(cmd *cobra.Command, symbols []string, opts *ResolveOptions) error {
	c := NewCommandContext(cmd)
	if opts.Format != "" {
		c.Renderer = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	sess, err := c.NewSession("")
	if err != nil {
		return err
	}

	// The registry only tracks references somebody holds.
	refs := make([]*forward.Ref, 0, len(symbols))
	for _, s := range symbols {
		ref, err := sess.Script.Declare(s)
		if err != nil {
			return fmt.Errorf("invalid symbol %q: %w", s, err)
		}
		refs = append(refs, ref)
	}

	report, err := sess.Start()
	if err != nil {
		return err
	}
	runtime.KeepAlive(refs)

	res := sess.reportOutput(report)
	if len(opts.Eval) > 0 {
		res.Values = evaluate(cmd, sess, opts)
	}
	return renderResolve(c.Renderer, res)
}

func evaluate(cmd *cobra.Command, sess *Session, opts *ResolveOptions) []output.EvalInfo {
	tasks := make([]starctx.EvalTask, len(opts.Eval))
	for i, expr := range opts.Eval {
		tasks[i] = starctx.EvalTask{Name: fmt.Sprintf("eval[%d]", i), Expr: expr}
	}

	exec := starctx.NewParallelExecutor(sess.Script, opts.Jobs)
	results := exec.Execute(cmd.Context(), tasks)

	out := make([]output.EvalInfo, len(results))
	for i, res := range results {
		out[i].Expr = tasks[i].Expr
		if res.Error != nil {
			out[i].Error = res.Error.Error()
			continue
		}
		out[i].Value = formatResult(res.Value)
		out[i].Type = res.Value.Type()
	}
	return out
}

func renderResolve(r *output.Renderer, res output.ResolveOutput) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(res)
	}

	r.Header(1, fmt.Sprintf("Resolved (%d)", len(res.Resolved)))
	if res.Session != "" {
		r.Muted("session " + res.Session)
	}
	if len(res.Resolved) > 0 {
		rows := make([][]string, len(res.Resolved))
		for i, b := range res.Resolved {
			rows[i] = []string{b.Symbol, b.State, b.Kind, b.Value}
		}
		r.Table([]string{"Symbol", "State", "Kind", "Value"}, rows)
	}

	if len(res.Unresolved) > 0 {
		r.Header(2, fmt.Sprintf("Unresolved (%d)", len(res.Unresolved)))
		for _, sym := range res.Unresolved {
			if r.EffectiveMode() == output.ModeText {
				r.Println("  " + r.Styles().Pending.Render(sym))
			} else {
				r.Println("- " + sym)
			}
		}
	}

	if len(res.Values) > 0 {
		r.Header(2, "Values")
		rows := make([][]string, len(res.Values))
		for i, v := range res.Values {
			value := v.Value
			if v.Error != "" {
				value = "error: " + v.Error
			}
			rows[i] = []string{v.Expr, v.Type, value}
		}
		r.Table([]string{"Expression", "Type", "Value"}, rows)
	}
	return nil
}

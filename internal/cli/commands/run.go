package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/fwd/internal/cli/output"
	"github.com/spf13/cobra"
	"go.starlark.net/starlark"
	"golang.org/x/sync/errgroup"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Watch      bool
	JSONOutput bool
	NoStart    bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a script against the foreign runtime",
		Long: `Execute a Starlark script, start the runtime, then call main().

The script runs before the runtime starts: references through the root
package are recorded as forward references. Starting the runtime resolves
them, and main() (if the script defines one) runs against the live runtime.`,
		Example: `  # Run a script
  fwd run examples/hello.star

  # Only record forward references, without starting the runtime
  fwd run examples/hello.star --no-start

  # Re-run whenever a script changes
  fwd run examples/hello.star --watch

  # JSON lines for tooling
  fwd run examples/hello.star --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewCommandContext(cmd)
			if opts.Watch {
				return watchScript(cmd.Context(), c, args[0], opts)
			}
			return runScript(c, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run when scripts change")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Output as JSON lines")
	cmd.Flags().BoolVar(&opts.NoStart, "no-start", false, "List pending references instead of starting the runtime")

	return cmd
}

func runScript(c *CommandContext, path string, opts *RunOptions) error {
	err := executeScript(c, path, opts)
	if err != nil && opts.JSONOutput {
		_ = emitEvent(c.Renderer, output.RunEvent{Event: "error", Script: path, Error: err.Error()})
	}
	return err
}

func executeScript(c *CommandContext, path string, opts *RunOptions) error {
	scriptDir := c.Cfg.ScriptDir
	if scriptDir == "" {
		scriptDir = filepath.Dir(path)
	}
	sess, err := c.NewSession(scriptDir)
	if err != nil {
		return err
	}

	c.Logger.Debug("executing script", "script", path)
	globals, err := sess.Script.ExecFile(path, nil)
	if err != nil {
		return err
	}

	r := c.Renderer
	if opts.NoStart {
		pending := sess.Script.Pending()
		if opts.JSONOutput {
			return emitEvent(r, output.RunEvent{Event: "pending", Script: path, Pending: pending})
		}
		r.Header(2, fmt.Sprintf("Pending references (%d)", len(pending)))
		for _, sym := range pending {
			r.Println("  " + r.Styles().Symbol.Render(sym))
		}
		return nil
	}

	report, err := sess.Start()
	if err != nil {
		return err
	}
	res := sess.reportOutput(report)

	var result string
	if _, ok := globals["main"]; ok {
		v, err := sess.Script.Call(globals, "main")
		if err != nil {
			return err
		}
		result = formatResult(v)
	}

	if opts.JSONOutput {
		return emitEvent(r, output.RunEvent{Event: "complete", Script: path, Result: result, Pending: res.Unresolved})
	}
	r.Success(fmt.Sprintf("Resolved %d forward references", len(res.Resolved)))
	for _, sym := range res.Unresolved {
		r.Warning("unresolved: " + sym)
	}
	if result != "" {
		r.Println(result)
	}
	return nil
}

func emitEvent(r *output.Renderer, ev output.RunEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	r.Println(string(data))
	return nil
}

// formatResult renders the value main() returned. None prints nothing and
// strings print unquoted.
func formatResult(v starlark.Value) string {
	switch v := v.(type) {
	case nil, starlark.NoneType:
		return ""
	case starlark.String:
		return string(v)
	}
	return v.String()
}

func watchScript(ctx context.Context, c *CommandContext, path string, opts *RunOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	rerun := func() {
		if err := runScript(c, path, opts); err != nil {
			c.Renderer.Warning(err.Error())
		}
	}
	rerun()

	dirs := []string{filepath.Dir(path)}
	if c.Cfg.ScriptDir != "" && c.Cfg.ScriptDir != dirs[0] {
		dirs = append(dirs, c.Cfg.ScriptDir)
	}

	trigger := make(chan struct{}, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watchScripts(gctx, dirs, trigger, c.Logger)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-trigger:
				if !opts.JSONOutput {
					c.Renderer.Muted("change detected, re-running " + path)
				}
				rerun()
			}
		}
	})
	return g.Wait()
}

// watchScripts signals trigger after .star files below dirs change. Bursts
// of events are coalesced.
func watchScripts(ctx context.Context, dirs []string, trigger chan<- struct{}, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range dirs {
		if err := watchDirRecursive(watcher, dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".star" {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				logger.Debug("script changed", "file", name)
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.Warn("watcher overflow, events dropped")
				continue
			}
			logger.Error("watcher error", "error", err)
		}
	}
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

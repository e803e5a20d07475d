package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/fwd/internal/cli/output"
	starctx "github.com/leapstack-labs/fwd/internal/starlark"
	"github.com/spf13/cobra"
	"go.starlark.net/starlark"
)

const (
	replPrompt     = "fwd> "
	replContPrompt = "...> "
)

// ReplOptions holds options for the repl command.
type ReplOptions struct {
	History string
}

// NewReplCommand creates the repl command.
func NewReplCommand() *cobra.Command {
	opts := &ReplOptions{}
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive Starlark session",
		Long: `Start an interactive session with the root package predeclared.

References made before .start are forward references; .start starts the
runtime and resolves them in place.`,
		Example: `  fwd repl

  fwd> String = jroot.java.lang.String
  fwd> .pending
  fwd> .start
  fwd> String("hello")`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.History, "history", "", "History file (default: user cache dir)")

	return cmd
}

func runREPL(cmd *cobra.Command, opts *ReplOptions) error {
	c := NewCommandContext(cmd)
	sess, err := c.NewSession(c.Cfg.ScriptDir)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile(opts.History),
		AutoComplete:    newREPLCompleter(sess),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	repl := newREPL(sess)
	r := c.Renderer
	r.Printf("fwd REPL (root package: %s, runtime: %s)\n", c.Cfg.Root, c.Cfg.Runtime.Type)
	r.Println("Type .help for commands, .quit to exit")
	r.Println()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			repl.buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if repl.Feed(line) {
			break
		}
		if repl.buf.Len() > 0 {
			rl.SetPrompt(replContPrompt)
		} else {
			rl.SetPrompt(replPrompt)
		}
	}
	return nil
}

func historyFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "fwd")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "repl_history")
}

// repl holds the state of an interactive session between lines.
type repl struct {
	sess *Session
	env  starlark.StringDict
	buf  strings.Builder
}

func newREPL(sess *Session) *repl {
	return &repl{sess: sess, env: starlark.StringDict{}}
}

// Feed handles one input line and reports whether the session should end.
// A line ending in ':' opens a block that runs once a blank line closes it.
func (s *repl) Feed(line string) bool {
	if s.buf.Len() > 0 {
		if strings.TrimSpace(line) != "" {
			s.buf.WriteString(line)
			s.buf.WriteByte('\n')
			return false
		}
		input := s.buf.String()
		s.buf.Reset()
		s.run(input)
		return false
	}

	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return false
	case strings.HasPrefix(trimmed, "."):
		return s.dotCommand(trimmed)
	case strings.HasSuffix(trimmed, ":"):
		s.buf.WriteString(line)
		s.buf.WriteByte('\n')
		return false
	}
	s.run(line)
	return false
}

func (s *repl) run(input string) {
	v, env, err := s.sess.Script.Interact(input, s.env)
	s.env = env
	if err != nil {
		s.errorf("%v", err)
		return
	}
	if v != nil && v != starlark.None {
		s.sess.Renderer.Println(v.String())
	}
}

func (s *repl) dotCommand(line string) bool {
	parts := strings.Fields(line)
	r := s.sess.Renderer

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(r.Writer())

	case ".start":
		if s.sess.Runtime.Started() {
			s.errorf("runtime already started")
			return false
		}
		report, err := s.sess.Start()
		if err != nil {
			s.errorf("%v", err)
			return false
		}
		res := s.sess.reportOutput(report)
		r.Success(fmt.Sprintf("Runtime started: %d resolved, %d unresolved", len(res.Resolved), len(res.Unresolved)))
		for _, sym := range res.Unresolved {
			r.Warning("unresolved: " + sym)
		}

	case ".pending":
		pending := s.sess.Script.Pending()
		if len(pending) == 0 {
			r.Muted("no pending references")
			return false
		}
		for _, sym := range pending {
			r.Println(sym)
		}

	case ".report":
		report := s.sess.Resolver.LastReport()
		if report == nil {
			s.errorf("runtime not started (use .start)")
			return false
		}
		_ = renderResolve(r, s.sess.reportOutput(report))

	case ".names":
		for _, name := range starctx.SortedNames(s.env) {
			r.Printf("%s = %s\n", name, s.env[name].Type())
		}

	case ".load":
		if len(parts) < 2 {
			s.errorf("Usage: .load <script>")
			return false
		}
		globals, err := s.sess.Script.ExecFile(parts[1], nil)
		if err != nil {
			s.errorf("%v", err)
			return false
		}
		env := make(starlark.StringDict, len(s.env)+len(globals))
		for k, v := range s.env {
			env[k] = v
		}
		for k, v := range globals {
			env[k] = v
		}
		s.env = env
		r.Muted(fmt.Sprintf("loaded %d names from %s", len(globals), parts[1]))

	case ".clear":
		r.Printf("\033[H\033[2J")

	default:
		s.errorf("Unknown command: %s (type .help for commands)", parts[0])
	}
	return false
}

func (s *repl) errorf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.sess.Renderer.ErrWriter(), "Error: "+format+"\n", a...)
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .start          Start the runtime and resolve forward references
  .pending        List references waiting for the runtime
  .report         Show the resolution report
  .names          List the names defined in this session
  .load <script>  Run a script and import its names
  .clear          Clear the screen
  .quit / .exit   Exit the REPL

Tips:
  - A line ending in ':' starts a block; finish it with an empty line
  - Use arrow keys to navigate history
  - Tab completion works for commands and builtins
`
	_, _ = fmt.Fprintln(w, help)
}

// newREPLCompleter completes dot-commands and predeclared names.
func newREPLCompleter(sess *Session) *readline.PrefixCompleter {
	names := make([]string, 0, len(sess.Script.Globals()))
	for name := range sess.Script.Globals() {
		names = append(names, name)
	}
	sort.Strings(names)

	var items []readline.PrefixCompleterInterface
	for _, name := range names {
		items = append(items, readline.PcItem(name))
	}
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".start"),
		readline.PcItem(".pending"),
		readline.PcItem(".report"),
		readline.PcItem(".names"),
		readline.PcItem(".load"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}

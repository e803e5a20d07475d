package starlark

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/fwd/internal/importer"
	"github.com/leapstack-labs/fwd/pkg/forward"
	"github.com/leapstack-labs/fwd/pkg/spi"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// fileOptions enables the language features scripts commonly need. Names
// bound by load() are module globals, so callers see them after ExecFile.
var fileOptions = &syntax.FileOptions{
	Set:               true,
	While:             true,
	TopLevelControl:   true,
	GlobalReassign:    true,
	Recursion:         true,
	LoadBindsGlobally: true,
}

// ExecutionContext runs scripts against a forward-reference registry. The
// root package is predeclared under its reserved name, and load statements
// naming it are served by the import machinery.
type ExecutionContext struct {
	// Root is the reserved root package name, e.g. "jroot".
	Root string

	// Registry holds the references scripts create.
	Registry *forward.Registry

	// Imports resolves load() module names.
	Imports *importer.MetaPath

	logger *slog.Logger
	out    io.Writer
	dir    string
	extra  starlark.StringDict
	rf     *importer.RootFinder

	mu      sync.RWMutex
	rt      spi.Runtime
	globals starlark.StringDict
}

// ContextOption is a functional option for configuring ExecutionContext.
type ContextOption func(*ExecutionContext)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(ctx *ExecutionContext) {
		if logger != nil {
			ctx.logger = logger
		}
	}
}

// WithOutput sends script print() output to w. Output is discarded by
// default.
func WithOutput(w io.Writer) ContextOption {
	return func(ctx *ExecutionContext) {
		ctx.out = w
	}
}

// WithScriptDir enables loading sibling .star modules from dir.
func WithScriptDir(dir string) ContextOption {
	return func(ctx *ExecutionContext) {
		ctx.dir = dir
	}
}

// WithGlobals adds extra predeclared globals.
func WithGlobals(globals starlark.StringDict) ContextOption {
	return func(ctx *ExecutionContext) {
		ctx.extra = globals
	}
}

// NewContext creates an execution context serving root from reg.
func NewContext(root string, reg *forward.Registry, opts ...ContextOption) (*ExecutionContext, error) {
	ctx := &ExecutionContext{
		Root:     root,
		Registry: reg,
		logger:   slog.New(slog.DiscardHandler),
		out:      io.Discard,
	}
	for _, opt := range opts {
		opt(ctx)
	}

	rf, err := importer.NewRootFinder(root, reg)
	if err != nil {
		return nil, err
	}
	ctx.rf = rf

	var finders []importer.Finder
	if ctx.dir != "" {
		finders = append(finders, &fileFinder{ctx: ctx, dir: ctx.dir})
	}
	ctx.Imports = importer.NewMetaPath(finders, importer.WithLogger(ctx.logger))
	// The root hook takes precedence over script files of the same name.
	ctx.Imports.Prepend(rf)

	if err := ctx.buildGlobals(); err != nil {
		return nil, err
	}
	return ctx, nil
}

// buildGlobals constructs the predeclared dict: the root reference, the
// builtins and any extra globals.
func (ctx *ExecutionContext) buildGlobals() error {
	rootMod, err := ctx.Imports.Import(ctx.Root)
	if err != nil {
		return err
	}
	rootVal, err := ctx.wrap(rootMod)
	if err != nil {
		return err
	}

	globals := Predeclared(ctx)
	if _, ok := globals[ctx.Root]; ok {
		return fmt.Errorf("root package %q conflicts with builtin", ctx.Root)
	}
	globals[ctx.Root] = rootVal

	for name, v := range ctx.extra {
		if _, ok := globals[name]; ok {
			return fmt.Errorf("global %q conflicts with builtin", name)
		}
		globals[name] = v
	}

	ctx.mu.Lock()
	ctx.globals = globals
	ctx.mu.Unlock()
	return nil
}

// Globals returns the predeclared globals.
func (ctx *ExecutionContext) Globals() starlark.StringDict {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.globals
}

// Install registers a start hook that records the runtime, so that values
// scripts obtain after start can look up their members.
func (ctx *ExecutionContext) Install(lc spi.Lifecycle) {
	lc.OnStart(func(rt spi.Runtime) error {
		ctx.mu.Lock()
		ctx.rt = rt
		ctx.mu.Unlock()
		ctx.logger.Debug("script context attached to runtime")
		return nil
	})
}

// Runtime returns the started runtime, or nil before start.
func (ctx *ExecutionContext) Runtime() spi.Runtime {
	if ctx == nil {
		return nil
	}
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.rt
}

// ExecFile executes a script and returns its globals.
func (ctx *ExecutionContext) ExecFile(filename string, src any) (starlark.StringDict, error) {
	f, err := fileOptions.Parse(filename, src, 0)
	if err != nil {
		return nil, &EvalError{File: filename, Message: err.Error()}
	}

	prog, err := starlark.FileProgram(f, ctx.Globals().Has)
	if err != nil {
		return nil, &EvalError{File: filename, Message: err.Error()}
	}

	thread := ctx.newThread(filename)
	thread.SetLocal(loadRequestsKey, loadRequests(f))

	globals, err := prog.Init(thread, ctx.Globals())
	if err != nil {
		return nil, evalError(filename, "", err)
	}
	globals.Freeze()
	return globals, nil
}

// Call invokes the function called name among globals.
func (ctx *ExecutionContext) Call(globals starlark.StringDict, name string, args ...any) (starlark.Value, error) {
	fn, ok := globals[name]
	if !ok {
		return nil, fmt.Errorf("no function %q defined", name)
	}
	if _, ok := fn.(starlark.Callable); !ok {
		return nil, fmt.Errorf("%q is a %s, not a function", name, fn.Type())
	}

	sargs := make(starlark.Tuple, len(args))
	for i, a := range args {
		sv, err := GoToStarlark(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		sargs[i] = sv
	}

	thread := ctx.newThread(name)
	v, err := starlark.Call(thread, fn, sargs, nil)
	if err != nil {
		return nil, evalError(name, "", err)
	}
	return v, nil
}

// EvalExpr evaluates a single Starlark expression and returns the result.
func (ctx *ExecutionContext) EvalExpr(expr string, filename string, line int) (starlark.Value, error) {
	return ctx.EvalExprWithLocals(expr, filename, line, nil)
}

// EvalExprWithLocals evaluates a Starlark expression with additional local variables.
// Locals take precedence over the predeclared globals.
func (ctx *ExecutionContext) EvalExprWithLocals(expr string, filename string, line int, locals starlark.StringDict) (starlark.Value, error) {
	thread := ctx.newThread(filename)

	result, err := starlark.EvalOptions(fileOptions, thread, filename, expr, ctx.env(locals))
	if err != nil {
		e := evalError(filename, expr, err)
		e.Line = line
		return nil, e
	}
	return result, nil
}

// EvalExprString evaluates a Starlark expression and returns the string result.
func (ctx *ExecutionContext) EvalExprString(expr string, filename string, line int) (string, error) {
	result, err := ctx.EvalExpr(expr, filename, line)
	if err != nil {
		return "", err
	}

	switch v := result.(type) {
	case starlark.String:
		return string(v), nil
	case starlark.NoneType:
		return "", nil
	default:
		return result.String(), nil
	}
}

// ExecChunk runs statements with locals as the module environment and
// returns the environment extended with the chunk's assignments. It serves
// interactive sessions, where each line is a separate chunk.
func (ctx *ExecutionContext) ExecChunk(chunk string, locals starlark.StringDict) (starlark.StringDict, error) {
	f, err := fileOptions.Parse("<repl>", chunk, 0)
	if err != nil {
		return locals, &EvalError{File: "<repl>", Expr: chunk, Message: err.Error()}
	}

	env := ctx.env(locals)
	prog, err := starlark.FileProgram(f, env.Has)
	if err != nil {
		return locals, &EvalError{File: "<repl>", Expr: chunk, Message: err.Error()}
	}

	thread := ctx.newThread("<repl>")
	thread.SetLocal(loadRequestsKey, loadRequests(f))
	defined, err := prog.Init(thread, env)
	if err != nil {
		return locals, evalError("<repl>", chunk, err)
	}

	out := make(starlark.StringDict, len(locals)+len(defined))
	for k, v := range locals {
		out[k] = v
	}
	for k, v := range defined {
		out[k] = v
	}
	return out, nil
}

// Interact runs one interactive input. An expression is evaluated and its
// value returned; anything else runs as a chunk and value is nil.
func (ctx *ExecutionContext) Interact(input string, locals starlark.StringDict) (starlark.Value, starlark.StringDict, error) {
	if _, err := fileOptions.ParseExpr("<repl>", input, 0); err == nil {
		v, err := ctx.EvalExprWithLocals(input, "<repl>", 0, locals)
		return v, locals, err
	}
	env, err := ctx.ExecChunk(input, locals)
	return nil, env, err
}

func (ctx *ExecutionContext) env(locals starlark.StringDict) starlark.StringDict {
	globals := ctx.Globals()
	if len(locals) == 0 {
		return globals
	}
	combined := make(starlark.StringDict, len(globals)+len(locals))
	for k, v := range globals {
		combined[k] = v
	}
	for k, v := range locals {
		combined[k] = v
	}
	return combined
}

// newThread creates a Starlark thread whose print() goes to the context
// output and whose load() goes through the import machinery.
func (ctx *ExecutionContext) newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(ctx.out, msg)
		},
		Load: ctx.load,
	}
}

// EvalError represents an error during Starlark evaluation.
type EvalError struct {
	File      string
	Line      int
	Expr      string
	Message   string
	Backtrace string
	Err       error
}

func (e *EvalError) Error() string {
	switch {
	case e.Expr != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: error evaluating %q: %s", e.File, e.Line, e.Expr, e.Message)
	case e.Expr != "":
		return fmt.Sprintf("%s: error evaluating %q: %s", e.File, e.Expr, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
}

func (e *EvalError) Unwrap() error { return e.Err }

// evalError keeps the underlying Go error reachable through errors.Is so
// callers can match forward.ErrRuntimeNotReady and friends.
func evalError(file, expr string, err error) *EvalError {
	e := &EvalError{File: file, Expr: expr, Message: err.Error(), Err: err}
	if se, ok := err.(*starlark.EvalError); ok {
		e.Message = se.Msg
		e.Backtrace = se.Backtrace()
		if cause := se.Unwrap(); cause != nil {
			e.Err = cause
		}
	}
	return e
}

// SortedNames lists the names defined in globals, sorted.
func SortedNames(globals starlark.StringDict) []string {
	names := make([]string, 0, len(globals))
	for name := range globals {
		if !strings.HasPrefix(name, "_") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

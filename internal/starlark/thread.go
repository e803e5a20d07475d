package starlark

import (
	"context"
	"sync"

	"go.starlark.net/starlark"
	"golang.org/x/sync/errgroup"
)

// ThreadPool manages a pool of Starlark threads for parallel evaluation.
type ThreadPool struct {
	ctx     *ExecutionContext
	mu      sync.Mutex
	threads []*starlark.Thread
	maxSize int
}

// NewThreadPool creates a new thread pool with the specified maximum size.
func NewThreadPool(ctx *ExecutionContext, maxSize int) *ThreadPool {
	if maxSize <= 0 {
		maxSize = 10 // default pool size
	}
	return &ThreadPool{
		ctx:     ctx,
		threads: make([]*starlark.Thread, 0, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves a thread from the pool or creates a new one.
// The thread name is used for error reporting.
func (p *ThreadPool) Get(name string) *starlark.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) > 0 {
		thread := p.threads[len(p.threads)-1]
		p.threads = p.threads[:len(p.threads)-1]
		thread.Name = name
		return thread
	}
	return p.ctx.newThread(name)
}

// Put returns a thread to the pool for reuse.
// If the pool is full, the thread is discarded.
func (p *ThreadPool) Put(thread *starlark.Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) < p.maxSize {
		thread.Name = ""
		p.threads = append(p.threads, thread)
	}
}

// Size returns the current number of threads in the pool.
func (p *ThreadPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.threads)
}

// ParallelExecutor evaluates independent expressions concurrently against
// the predeclared globals of a context.
type ParallelExecutor struct {
	ctx   *ExecutionContext
	pool  *ThreadPool
	limit int
}

// NewParallelExecutor creates a parallel executor running at most
// maxConcurrency evaluations at once.
func NewParallelExecutor(ctx *ExecutionContext, maxConcurrency int) *ParallelExecutor {
	pool := NewThreadPool(ctx, maxConcurrency)
	return &ParallelExecutor{ctx: ctx, pool: pool, limit: pool.maxSize}
}

// Execute runs the tasks and collects one result per task, in task order.
// Evaluation errors are reported per result. Cancelling c stops tasks that
// have not started yet.
func (e *ParallelExecutor) Execute(c context.Context, tasks []EvalTask) []EvalResult {
	results := make([]EvalResult, len(tasks))
	g, gctx := errgroup.WithContext(c)
	g.SetLimit(e.limit)

	for i, task := range tasks {
		g.Go(func() error {
			results[i].Name = task.Name
			if err := gctx.Err(); err != nil {
				results[i].Error = err
				return nil
			}

			thread := e.pool.Get(task.Name)
			defer e.pool.Put(thread)

			v, err := starlark.EvalOptions(fileOptions, thread, task.Name, task.Expr, e.ctx.Globals())
			if err != nil {
				results[i].Error = evalError(task.Name, task.Expr, err)
				return nil
			}
			results[i].Value = v
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// EvalTask represents a single evaluation task.
type EvalTask struct {
	Name string // Identifier for this task (used for error reporting)
	Expr string // Starlark expression to evaluate
}

// EvalResult represents the result of an evaluation task.
type EvalResult struct {
	Name  string
	Value starlark.Value
	Error error
}

package avindex

import "context"

// ProgressSink receives progress from a running task and reports whether
// the host asked for cancellation.
//
// A host executor typically renders the sink as a dialog or progress bar.
// Calls come from the goroutine running the task.
type ProgressSink interface {
	// SetTitle sets the title of the operation.
	SetTitle(title string)

	// SetMessage sets a one-line status message.
	SetMessage(msg string)

	// SetIndeterminate switches to an activity indicator until the next
	// SetProgress call.
	SetIndeterminate()

	// SetProgress reports done out of total. Zero total means unknown.
	SetProgress(done, total int64)

	// IsCancelled reports whether the host asked the task to stop.
	IsCancelled() bool
}

// Task is a unit of work handed to an Executor.
type Task func(ctx context.Context, sink ProgressSink) error

// Executor runs long tasks on behalf of Open.
//
// Run must not return before task has returned, and must return the task's
// error. It may run task on another goroutine.
type Executor interface {
	Run(ctx context.Context, title string, task Task) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, title string, task Task) error

// Run calls f.
func (f ExecutorFunc) Run(ctx context.Context, title string, task Task) error {
	return f(ctx, title, task)
}

// InlineExecutor returns an Executor that runs tasks on the calling
// goroutine. Progress is discarded; cancellation follows ctx.
func InlineExecutor() Executor {
	return ExecutorFunc(func(ctx context.Context, _ string, task Task) error {
		return task(ctx, ctxSink{ctx: ctx})
	})
}

type ctxSink struct {
	ctx context.Context
}

func (ctxSink) SetTitle(string)          {}
func (ctxSink) SetMessage(string)        {}
func (ctxSink) SetIndeterminate()        {}
func (ctxSink) SetProgress(int64, int64) {}

func (s ctxSink) IsCancelled() bool {
	return s.ctx.Err() != nil
}

package agent

import (
	"context"
)

// Agent processes one text task and returns text.
type Agent interface {
	Run(ctx context.Context, input string, opts ...RunOption) (string, error)
}

type RunOptions struct {
	// SkipToolServers runs the turn without opening any tool server.
	SkipToolServers bool
	ContextID       string
	TaskID          string
}

type RunOption func(*RunOptions)

func WithoutToolServers() RunOption {
	return func(o *RunOptions) {
		o.SkipToolServers = true
	}
}

func WithTask(taskID, contextID string) RunOption {
	return func(o *RunOptions) {
		o.TaskID = taskID
		o.ContextID = contextID
	}
}

func NewRunOptions(opts ...RunOption) RunOptions {
	var o RunOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Func adapts a plain function to Agent.
type Func func(ctx context.Context, input string, opts RunOptions) (string, error)

func (f Func) Run(ctx context.Context, input string, opts ...RunOption) (string, error) {
	return f(ctx, input, NewRunOptions(opts...))
}

// Echo returns its input unchanged.
var Echo Agent = Func(func(_ context.Context, input string, _ RunOptions) (string, error) {
	return input, nil
})

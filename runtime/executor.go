package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/habiliai/agentmesh/agent"
	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/mylog"
)

type RequestContext struct {
	Message entity.Message
	// Task is the stored task the message refers to, nil for a new task.
	Task *entity.Task
}

// Executor drives one agent turn through the task lifecycle.
type Executor struct {
	agent         agent.Agent
	statusMessage string
	artifactName  string
	fallback      bool
	logger        *mylog.Logger
}

func NewExecutor(a agent.Agent, statusMessage, artifactName string, fallback bool, logger *mylog.Logger) *Executor {
	if artifactName == "" {
		artifactName = entity.DefaultArtifactName
	}
	if logger == nil {
		logger = mylog.Discard()
	}
	return &Executor{
		agent:         a,
		statusMessage: statusMessage,
		artifactName:  artifactName,
		fallback:      fallback,
		logger:        logger,
	}
}

func (e *Executor) Execute(ctx context.Context, req RequestContext, queue *EventQueue) error {
	input, _ := req.Message.Text()

	task := req.Task
	if task == nil {
		task = entity.NewSubmittedTask(req.Message)
	} else {
		if task.Status.State.IsTerminal() {
			return errors.Wrapf(errors.ErrInvalidParams, "task %s is already %s", task.ID, task.Status.State)
		}
		msg := req.Message
		msg.TaskID = task.ID
		msg.ContextID = task.ContextID
		task.History = append(task.History, msg)
	}
	if err := queue.Enqueue(ctx, TaskEvent{Task: task}); err != nil {
		return err
	}

	// Once published, the task must reach a terminal state even if the
	// caller goes away during the turn.
	lifecycle := context.WithoutCancel(ctx)
	updater := NewTaskUpdater(queue, task)
	if err := updater.StartWork(lifecycle, e.statusMessage); err != nil {
		return err
	}

	logger := e.logger.With("task_id", task.ID, "context_id", task.ContextID)
	output, err := e.run(ctx, input, agent.WithTask(task.ID, task.ContextID))
	if err != nil && e.fallback && errors.Is(err, errors.ErrToolServerForbidden) {
		logger.Warn("tool servers are forbidden, retrying without them", mylog.Err(err))
		output, err = e.run(ctx, input, agent.WithTask(task.ID, task.ContextID), agent.WithoutToolServers())
	}
	if err == nil {
		err = updater.AddArtifact(lifecycle, entity.NewTextArtifact(e.artifactName, output))
	}
	if err != nil {
		logger.Error("agent turn failed", mylog.Err(err))
		return updater.Fail(lifecycle, err, fmt.Sprintf("%+v", err))
	}
	logger.Debug("agent turn completed", slog.Int("output_len", len(output)))

	return updater.Complete(lifecycle)
}

// Cancel is not supported: a turn runs to completion once started.
func (e *Executor) Cancel(_ context.Context, taskID string) error {
	return errors.Wrapf(errors.ErrTaskNotCancelable, "task %s", taskID)
}

func (e *Executor) run(ctx context.Context, input string, opts ...agent.RunOption) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(errors.ErrInternal, "agent panicked: %v", r)
		}
	}()

	output, err = e.agent.Run(ctx, input, opts...)
	return
}

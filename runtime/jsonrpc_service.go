package runtime

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/mylog"
	"github.com/habiliai/agentmesh/internal/sliceutils"
	"github.com/habiliai/agentmesh/jsonrpc"
)

type (
	A2AService struct {
		executor *Executor
		store    TaskStore
		metrics  *Metrics
		logger   *mylog.Logger
	}

	MessageSendConfiguration struct {
		AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`
		HistoryLength       *int     `json:"historyLength,omitempty"`
		Blocking            *bool    `json:"blocking,omitempty"`
	}

	MessageSendParams struct {
		Message       entity.Message            `json:"message"`
		Configuration *MessageSendConfiguration `json:"configuration,omitempty"`
		Metadata      map[string]any            `json:"metadata,omitempty"`
	}

	TaskQueryParams struct {
		ID            string         `json:"id"`
		HistoryLength *int           `json:"historyLength,omitempty"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}

	TaskIDParams struct {
		ID       string         `json:"id"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}
)

const (
	serviceName = "A2A"

	MethodSendMessage = "message/send"
	MethodGetTask     = "tasks/get"
	MethodCancelTask  = "tasks/cancel"
)

func (s *A2AService) SendMessage(r *http.Request, args *MessageSendParams, reply *entity.SendMessageResult) error {
	task, err := s.sendMessage(r.Context(), args)
	if err != nil {
		return err
	}

	reply.Task = trimHistory(task, historyLength(args.Configuration))
	return nil
}

func (s *A2AService) GetTask(r *http.Request, args *TaskQueryParams, reply *entity.Task) error {
	if args.ID == "" {
		return errors.Wrapf(errors.ErrInvalidParams, "task id is required")
	}

	task, err := s.store.Get(r.Context(), args.ID)
	if err != nil {
		return err
	}

	*reply = *trimHistory(task, args.HistoryLength)
	return nil
}

func (s *A2AService) CancelTask(r *http.Request, args *TaskIDParams, _ *entity.Task) error {
	if _, err := s.store.Get(r.Context(), args.ID); err != nil {
		return err
	}
	return s.executor.Cancel(r.Context(), args.ID)
}

func (s *A2AService) sendMessage(ctx context.Context, args *MessageSendParams) (*entity.Task, error) {
	msg := args.Message
	if len(msg.Parts) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "message has no parts")
	}
	if msg.Role == "" {
		msg.Role = entity.RoleUser
	}
	if msg.Kind == "" {
		msg.Kind = entity.KindMessage
	}

	var current *entity.Task
	if msg.TaskID != "" {
		task, err := s.store.Get(ctx, msg.TaskID)
		if err != nil {
			return nil, err
		}
		if task.Status.State.IsTerminal() {
			return nil, errors.Wrapf(errors.ErrInvalidParams, "task %s is already %s", task.ID, task.Status.State)
		}
		current = task
	}

	start := time.Now()
	queue := NewEventQueue(16)
	done := make(chan *entity.Task, 1)
	go func() {
		done <- s.aggregate(ctx, queue)
	}()

	execErr := s.executor.Execute(ctx, RequestContext{Message: msg, Task: current}, queue)
	queue.Close()
	task := <-done

	if task == nil {
		s.metrics.observe(string(entity.TaskStateUnknown), time.Since(start))
		if execErr == nil {
			execErr = errors.Wrapf(errors.ErrInternal, "no task was produced")
		}
		return nil, execErr
	}
	s.metrics.observe(string(task.Status.State), time.Since(start))
	if execErr != nil {
		s.logger.Warn("task ended with error", slog.String("task_id", task.ID), mylog.Err(execErr))
		if !task.Status.State.IsTerminal() {
			return nil, execErr
		}
	}

	return task, nil
}

// aggregate folds queued events into the task and persists every snapshot.
func (s *A2AService) aggregate(ctx context.Context, queue *EventQueue) *entity.Task {
	ctx = context.WithoutCancel(ctx)

	var task *entity.Task
	for ev := range queue.Events() {
		task = Apply(task, ev)
		if err := s.store.Save(ctx, task); err != nil {
			s.logger.Error("failed to save task", slog.String("task_id", task.ID), mylog.Err(err))
		}
	}
	return task
}

func historyLength(conf *MessageSendConfiguration) *int {
	if conf == nil {
		return nil
	}
	return conf.HistoryLength
}

func trimHistory(task *entity.Task, n *int) *entity.Task {
	if n != nil {
		task.History = sliceutils.Last(task.History, *n)
	}
	return task
}

func newA2AHandler(svc *A2AService, logger *mylog.Logger) (http.Handler, error) {
	return jsonrpc.NewHandler(
		logger,
		jsonrpc.WithService(svc, serviceName),
		jsonrpc.WithMethodAlias(MethodSendMessage, serviceName+".SendMessage"),
		jsonrpc.WithMethodAlias(MethodGetTask, serviceName+".GetTask"),
		jsonrpc.WithMethodAlias(MethodCancelTask, serviceName+".CancelTask"),
	)
}

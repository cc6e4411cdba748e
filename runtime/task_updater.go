package runtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
)

// TaskUpdater publishes the transitions of one task. Once a final status is
// published every further update fails with errors.ErrTaskFinalized.
type TaskUpdater struct {
	queue     *EventQueue
	taskID    string
	contextID string

	mu    sync.Mutex
	state entity.TaskState
	final bool
}

func NewTaskUpdater(queue *EventQueue, task *entity.Task) *TaskUpdater {
	return &TaskUpdater{
		queue:     queue,
		taskID:    task.ID,
		contextID: task.ContextID,
		state:     task.Status.State,
	}
}

func (u *TaskUpdater) State() entity.TaskState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// NewAgentMessage builds a status message tagged with the state it was emitted in.
func (u *TaskUpdater) NewAgentMessage(state entity.TaskState, text string) *entity.Message {
	return &entity.Message{
		Kind:      entity.KindMessage,
		MessageID: uuid.NewString(),
		Role:      entity.RoleAgent,
		Parts:     []entity.Part{entity.TextPart(text)},
		TaskID:    u.taskID,
		ContextID: u.contextID,
		Metadata:  map[string]any{"state": string(state)},
	}
}

func (u *TaskUpdater) UpdateStatus(ctx context.Context, state entity.TaskState, message *entity.Message, final bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.final {
		return errors.Wrapf(errors.ErrTaskFinalized, "task %s is %s", u.taskID, u.state)
	}
	if final && !state.IsTerminal() {
		return errors.Errorf("state %s cannot be final", state)
	}

	if err := u.queue.Enqueue(ctx, StatusUpdateEvent{
		ID:        u.taskID,
		ContextID: u.contextID,
		Status: entity.TaskStatus{
			State:     state,
			Message:   message,
			Timestamp: entity.Now(),
		},
		Final: final,
	}); err != nil {
		return err
	}
	u.state = state
	u.final = final

	return nil
}

func (u *TaskUpdater) StartWork(ctx context.Context, statusMessage string) error {
	return u.UpdateStatus(ctx, entity.TaskStateWorking, u.NewAgentMessage(entity.TaskStateWorking, statusMessage), false)
}

func (u *TaskUpdater) AddArtifact(ctx context.Context, artifact entity.Artifact) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.final {
		return errors.Wrapf(errors.ErrTaskFinalized, "task %s is %s", u.taskID, u.state)
	}

	return u.queue.Enqueue(ctx, ArtifactUpdateEvent{
		ID:        u.taskID,
		ContextID: u.contextID,
		Artifact:  artifact,
	})
}

func (u *TaskUpdater) Complete(ctx context.Context) error {
	return u.UpdateStatus(ctx, entity.TaskStateCompleted, nil, true)
}

// Fail marks the task failed with an "Error: ..." status message. The
// message metadata carries the stack trace when err recorded one.
func (u *TaskUpdater) Fail(ctx context.Context, cause error, trace string) error {
	msg := u.NewAgentMessage(entity.TaskStateFailed, "Error: "+cause.Error())
	if trace != "" {
		msg.Metadata["trace"] = trace
	}
	return u.UpdateStatus(ctx, entity.TaskStateFailed, msg, true)
}

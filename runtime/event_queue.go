package runtime

import (
	"context"
	"slices"
	"sync"

	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
)

type (
	// Event is something that happened to a task during execution.
	Event interface {
		TaskID() string
	}

	// TaskEvent publishes the task itself, before any work starts.
	TaskEvent struct {
		Task *entity.Task
	}

	StatusUpdateEvent struct {
		ID        string
		ContextID string
		Status    entity.TaskStatus
		Final     bool
	}

	ArtifactUpdateEvent struct {
		ID        string
		ContextID string
		Artifact  entity.Artifact
	}
)

func (e TaskEvent) TaskID() string           { return e.Task.ID }
func (e StatusUpdateEvent) TaskID() string   { return e.ID }
func (e ArtifactUpdateEvent) TaskID() string { return e.ID }

// EventQueue carries events from an executor to whoever observes the task.
type EventQueue struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

func NewEventQueue(size int) *EventQueue {
	return &EventQueue{ch: make(chan Event, size)}
}

func (q *EventQueue) Enqueue(ctx context.Context, ev Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return errors.Errorf("event queue is closed")
	}

	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}

func (q *EventQueue) Events() <-chan Event {
	return q.ch
}

// Close stops accepting events. Events already queued are still delivered.
func (q *EventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Apply folds ev into task and returns the updated task.
func Apply(task *entity.Task, ev Event) *entity.Task {
	switch e := ev.(type) {
	case TaskEvent:
		t := *e.Task
		t.History = slices.Clone(t.History)
		t.Artifacts = slices.Clone(t.Artifacts)
		return &t
	case StatusUpdateEvent:
		if task == nil {
			task = &entity.Task{Kind: entity.KindTask, ID: e.ID, ContextID: e.ContextID}
		}
		task.Status = e.Status
		if e.Status.Message != nil {
			task.History = append(task.History, *e.Status.Message)
		}
	case ArtifactUpdateEvent:
		if task == nil {
			task = &entity.Task{Kind: entity.KindTask, ID: e.ID, ContextID: e.ContextID}
		}
		task.Artifacts = append(task.Artifacts, e.Artifact)
	}

	return task
}

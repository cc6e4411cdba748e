package runtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
)

type TaskStore interface {
	Save(ctx context.Context, task *entity.Task) error
	Get(ctx context.Context, taskID string) (*entity.Task, error)
}

type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string][]byte
}

var (
	_ TaskStore = (*MemoryTaskStore)(nil)
)

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: map[string][]byte{}}
}

// Save keeps an encoded snapshot so callers never share task memory with the store.
func (s *MemoryTaskStore) Save(_ context.Context, task *entity.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return errors.Wrapf(err, "failed to encode task %s", task.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = data

	return nil
}

func (s *MemoryTaskStore) Get(_ context.Context, taskID string) (*entity.Task, error) {
	s.mu.RLock()
	data, ok := s.tasks[taskID]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "task %s", taskID)
	}

	var task entity.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, errors.Wrapf(err, "failed to decode task %s", taskID)
	}

	return &task, nil
}

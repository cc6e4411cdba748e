package runtime

import (
	"context"

	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/db"
	"gorm.io/gorm"
)

// GormTaskStore keeps the tasks of one agent in a shared database.
type GormTaskStore struct {
	db        *gorm.DB
	agentName string
}

var (
	_ TaskStore = (*GormTaskStore)(nil)
)

func NewGormTaskStore(db *gorm.DB, agentName string) *GormTaskStore {
	return &GormTaskStore{db: db, agentName: agentName}
}

func (s *GormTaskStore) Save(ctx context.Context, task *entity.Task) error {
	_, tx := db.OpenSession(ctx, s.db)
	return entity.NewTaskRecord(s.agentName, *task).Save(tx)
}

func (s *GormTaskStore) Get(ctx context.Context, taskID string) (*entity.Task, error) {
	_, tx := db.OpenSession(ctx, s.db)

	var record entity.TaskRecord
	if err := tx.First(&record, "id = ? AND agent_name = ?", taskID, s.agentName).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(errors.ErrNotFound, "task %s", taskID)
		}
		return nil, errors.Wrapf(err, "failed to find task %s", taskID)
	}

	task := record.Task.Data()
	return &task, nil
}

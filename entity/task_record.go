package entity

import (
	"time"

	"github.com/habiliai/agentmesh/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskRecord persists a task snapshot for one agent.
type TaskRecord struct {
	ID        string `gorm:"primaryKey"`
	AgentName string `gorm:"index"`
	ContextID string `gorm:"index"`
	State     TaskState
	Task      datatypes.JSONType[Task]
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewTaskRecord(agentName string, task Task) *TaskRecord {
	return &TaskRecord{
		ID:        task.ID,
		AgentName: agentName,
		ContextID: task.ContextID,
		State:     task.Status.State,
		Task:      datatypes.NewJSONType(task),
	}
}

func (r *TaskRecord) Save(db *gorm.DB) error {
	return errors.Wrapf(
		db.Clauses(clause.OnConflict{UpdateAll: true}).Create(r).Error,
		"failed to save task %s", r.ID,
	)
}

package db

import (
	"context"

	"github.com/habiliai/agentmesh/entity"
	"github.com/habiliai/agentmesh/errors"
	"gorm.io/gorm"
)

func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	_, tx := OpenSession(ctx, db)
	return errors.WithStack(tx.AutoMigrate(
		&entity.TaskRecord{},
	))
}

func DropAll(ctx context.Context, db *gorm.DB) error {
	_, tx := OpenSession(ctx, db)
	return errors.WithStack(tx.Migrator().DropTable(
		&entity.TaskRecord{},
	))
}

package db

import (
	"log/slog"
	"strings"

	"github.com/habiliai/agentmesh/config"
	"github.com/habiliai/agentmesh/errors"
	"github.com/jcooky/go-din"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB opens a sqlite database. Writes are serialized on one connection
// because every agent server of the process shares the file.
func OpenDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "database dsn is required")
	}
	if !strings.Contains(dsn, "_busy_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_busy_timeout=5000"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrapf(err, "failed to get db")
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Wrapf(err, "failed to close db")
	}

	return nil
}

func init() {
	din.RegisterT(func(c *din.Container) (*gorm.DB, error) {
		logger := din.MustGetT[*slog.Logger](c)
		cfg := din.MustGetT[*config.MeshConfig](c)

		logger.Info("initialize task database", "dsn", cfg.TaskStoreDSN)
		db, err := OpenDB(cfg.TaskStoreDSN)
		if err != nil {
			return nil, err
		}

		if c.Env == din.EnvTest {
			if err := DropAll(c, db); err != nil {
				return nil, errors.Wrapf(err, "failed to drop database")
			}
		}
		if err := AutoMigrate(c, db); err != nil {
			return nil, errors.Wrapf(err, "failed to migrate database")
		}

		go func() {
			<-c.Done()
			if err := CloseDB(db); err != nil {
				logger.Warn("failed to close database", "err", err)
			}
			logger.Info("database closed")
		}()

		return db, nil
	})
}

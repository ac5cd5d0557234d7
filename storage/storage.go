// Package storage selects the backend the persisted session and theme live in.
package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/storage/database"
	"github.com/trezcool/masomo-console/storage/filestore"
	"github.com/trezcool/masomo-console/storage/inmem"
	"github.com/trezcool/masomo-console/storage/redisstore"
)

// Engines
const (
	EngineMemory   = "memory"
	EngineFile     = "file"
	EngineRedis    = "redis"
	EnginePostgres = "postgres"
)

func nopClose() error { return nil }

// Open returns the backend named by conf.Storage.Engine, and a func releasing it.
func Open(ctx context.Context, conf *core.Config) (core.Storage, func() error, error) {
	sc := conf.Storage
	switch sc.Engine {
	case EngineMemory:
		return inmem.New(), nopClose, nil
	case EngineFile, "":
		return filestore.New(sc.Dir, sc.Profile), nopClose, nil
	case EngineRedis:
		s, err := redisstore.Open(ctx, sc.Redis, sc.Profile)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening redis storage")
		}
		return s, s.Close, nil
	case EnginePostgres:
		db, err := database.Open(ctx, sc.Database.URL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening postgres storage")
		}
		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		s := database.NewStore(db, sc.Profile)
		return s, s.Close, nil
	default:
		return nil, nil, core.NewArgumentError("unknown storage engine: " + sc.Engine)
	}
}

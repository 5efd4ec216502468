package storage

import (
	"context"
	"fmt"

	"github.com/thequtt/qutt-client/pkg/config"
	"github.com/thequtt/qutt-client/pkg/db"
	"github.com/thequtt/qutt-client/pkg/enums"
	"github.com/thequtt/qutt-client/pkg/logger"
	"github.com/thequtt/qutt-client/pkg/redis"
)

const redisScope = "client"

// Handle is an opened store together with whatever owns its connection.
type Handle struct {
	Store
	closeFn func() error
}

// Close releases the backend connection.
func (h *Handle) Close() error {
	if h == nil || h.closeFn == nil {
		return nil
	}
	return h.closeFn()
}

// Open builds the store selected by cfg.Storage, sealing it when an
// encryption key is configured.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Handle, error) {
	driver, err := cfg.Storage.DriverKind()
	if err != nil {
		return nil, err
	}

	var (
		store   Store
		closeFn func() error
	)
	switch driver {
	case enums.StorageDriverMemory:
		store = NewMemoryStore()
	case enums.StorageDriverSQLite:
		client, err := db.Open(ctx, cfg.Storage.SQLitePath, logg)
		if err != nil {
			return nil, err
		}
		sqlStore, err := NewSQLStore(ctx, client)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		store, closeFn = sqlStore, client.Close
	case enums.StorageDriverRedis:
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, err
		}
		redisStore, err := NewRedisStore(client, redisScope)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		store, closeFn = redisStore, client.Close
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	key, err := cfg.Storage.Key()
	if err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return nil, err
	}
	if key != nil {
		sealed, err := NewSealedStore(store, key)
		if err != nil {
			if closeFn != nil {
				_ = closeFn()
			}
			return nil, err
		}
		store = sealed
	}

	if logg != nil {
		logg.Debug(logg.WithField(ctx, "driver", driver.String()), "storage opened")
	}
	return &Handle{Store: store, closeFn: closeFn}, nil
}

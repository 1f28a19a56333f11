package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pairchat/internal/config"
	"pairchat/internal/db"
)

// Open conecta el backend configurado en cfg.StoreBackend y devuelve el Store
// junto con su funcion de cierre.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return Store{}, nil, err
		}
		if err := db.Ping(ctx, pool); err != nil {
			pool.Close()
			return Store{}, nil, fmt.Errorf("ping database: %w", err)
		}
		if cfg.DatabaseBootstrap {
			if err := db.EnsureSchema(ctx, pool); err != nil {
				pool.Close()
				return Store{}, nil, fmt.Errorf("ensure schema: %w", err)
			}
		}
		return NewPgStore(pool), pool.Close, nil

	case config.StoreBackendBadger:
		bdb, err := db.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return Store{}, nil, err
		}
		return NewBadgerStore(bdb), func() {
			if err := bdb.Close(); err != nil {
				logger.Warn("badger close", zap.Error(err))
			}
		}, nil

	case config.StoreBackendFirestore:
		client, err := db.NewFirestoreClient(ctx, cfg)
		if err != nil {
			return Store{}, nil, err
		}
		return NewFirestoreStore(client), func() {
			if err := client.Close(); err != nil {
				logger.Warn("firestore close", zap.Error(err))
			}
		}, nil
	}
	return Store{}, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

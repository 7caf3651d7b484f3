package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wolfwhale/lms-core/internal/api/handler"
	"github.com/wolfwhale/lms-core/internal/core/ports"
	"github.com/wolfwhale/lms-core/internal/core/service"
	"github.com/wolfwhale/lms-core/internal/infrastructure/db/memory"
	"github.com/wolfwhale/lms-core/internal/infrastructure/db/mongo"
	"github.com/wolfwhale/lms-core/internal/infrastructure/db/postgres"
	"github.com/wolfwhale/lms-core/internal/infrastructure/db/redis"
	"github.com/wolfwhale/lms-core/internal/pkg/config"
)

// stores bundles the repositories of the configured STORE_DRIVER.
type stores struct {
	users   ports.UserRepository
	schools ports.SchoolRepository
	events  ports.BillingEventRepository
	pingers []handler.Pinger
	closers []func(context.Context) error
}

func (s *stores) Close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i](ctx)
	}
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN})
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("postgres handle: %w", err)
		}
		log.Info().Msg("connected to postgres")
		return &stores{
			users:   postgres.NewUserRepository(db),
			schools: postgres.NewSchoolRepository(db),
			events:  postgres.NewBillingEventRepository(db),
			pingers: []handler.Pinger{postgres.NewPinger(db)},
			closers: []func(context.Context) error{func(context.Context) error { return sqlDB.Close() }},
		}, nil

	case config.DriverMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")
		return &stores{
			users:   mongo.NewUserRepository(db),
			schools: mongo.NewSchoolRepository(db),
			events:  mongo.NewBillingEventRepository(db),
			pingers: []handler.Pinger{mongo.NewPinger(db)},
			closers: []func(context.Context) error{client.Disconnect},
		}, nil

	case config.DriverMemory:
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return &stores{
			users:   memory.NewUserRepository(),
			schools: memory.NewSchoolRepository(),
			events:  memory.NewBillingEventRepository(),
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// openDedup returns the Redis dedup store, or a process-local one when Redis
// is not configured or unreachable.
func openDedup(ctx context.Context, cfg *config.Config, s *stores, log zerolog.Logger) service.DedupChecker {
	client, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	switch {
	case errors.Is(err, redis.ErrDisabled):
		log.Info().Msg("redis not configured, using in-process webhook dedup")
		return memory.NewDedupChecker(0)
	case err != nil:
		log.Warn().Err(err).Msg("redis unavailable, using in-process webhook dedup")
		return memory.NewDedupChecker(0)
	}

	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	s.pingers = append(s.pingers, redis.NewPinger(client))
	s.closers = append(s.closers, func(context.Context) error { return client.Close() })
	return redis.NewDedupChecker(client)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/config"
	"github.com/noah-isme/backend-kasir/internal/lock"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/store"
)

// Dependencies holds the infrastructure shared by the api, the worker and
// the tools. Redis and Postgres are optional; fields stay nil when unused.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Store  store.Store
	Locker lock.Locker

	TaskClient *asynq.Client

	closers []func()
}

// Options tunes how infrastructure is opened.
type Options struct {
	ApplicationName string
	RedisMetrics    bool
	Seed            bool
}

// New opens every configured connection and the ledger store.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	d := &Dependencies{Config: cfg, Logger: logger}

	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL, opts.RedisMetrics, logger)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Redis = rdb
		d.closers = append(d.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		})
	}

	if cfg.StoreDriver == store.DriverPostgres {
		pool, err := openPool(ctx, cfg.DatabaseURL, opts.ApplicationName)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.DB = pool
		d.closers = append(d.closers, pool.Close)
	}

	st, err := store.New(ctx, store.Options{
		Driver:        cfg.StoreDriver,
		FilePath:      cfg.StoreFile,
		Pool:          d.DB,
		DatabaseURL:   cfg.DatabaseURL,
		AutoMigrate:   cfg.AutoMigrate,
		Redis:         d.Redis,
		RedisPrefix:   cfg.RedisPrefix,
		MongoURL:      cfg.MongoURL,
		MongoDatabase: cfg.MongoDatabase,
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	d.Store = st
	d.closers = append(d.closers, func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("close store")
		}
	})

	if opts.Seed {
		n, err := store.Seed(ctx, st, model.SeedProducts())
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
		if n > 0 {
			logger.Info().Int("products", n).Msg("catalog seeded")
		}
	}

	if d.Redis != nil {
		d.Locker = lock.Redis{R: d.Redis, Prefix: cfg.RedisPrefix, RetryBackoff: cfg.LockRetryBackoff}
		if conn, ok := d.RedisConnOpt(); ok {
			client := asynq.NewClient(conn)
			d.TaskClient = client
			d.closers = append(d.closers, func() {
				if err := client.Close(); err != nil {
					logger.Error().Err(err).Msg("close task client")
				}
			})
		}
	} else {
		d.Locker = lock.NewLocal()
	}
	return d, nil
}

// RedisConnOpt returns the asynq connection settings for the configured redis.
func (d *Dependencies) RedisConnOpt() (asynq.RedisConnOpt, bool) {
	if d == nil || strings.TrimSpace(d.Config.RedisURL) == "" {
		return nil, false
	}
	opt, err := asynq.ParseRedisURI(d.Config.RedisURL)
	if err != nil {
		d.Logger.Error().Err(err).Msg("parse redis url for task queue")
		return nil, false
	}
	return opt, true
}

// Ping checks the store and redis.
func (d *Dependencies) Ping(ctx context.Context) error {
	var errs []error
	if d.Store != nil {
		errs = append(errs, d.Store.Ping(ctx))
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Ping(ctx).Err())
	}
	return errors.Join(errs...)
}

// Close releases connections in reverse order of opening.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func openRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func openPool(ctx context.Context, url, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if appName == "" {
		appName = "kasir-api"
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Driver names accepted by New.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
)

// Options selects and configures a driver. Connections for postgres and
// redis are owned by the caller.
type Options struct {
	Driver        string
	FilePath      string
	Pool          *pgxpool.Pool
	DatabaseURL   string
	AutoMigrate   bool
	Redis         *redis.Client
	RedisPrefix   string
	MongoURL      string
	MongoDatabase string
}

// New constructs a Store by driver name.
func New(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverMemory, "mem":
		return NewMemory(), nil
	case DriverFile:
		return NewFile(opts.FilePath)
	case DriverPostgres, "postgresql", "pg":
		if opts.Pool == nil {
			return nil, fmt.Errorf("postgres store requires a connection pool")
		}
		if opts.AutoMigrate && opts.DatabaseURL != "" {
			if err := Migrate(opts.DatabaseURL); err != nil {
				return nil, err
			}
		}
		return NewPostgres(opts.Pool), nil
	case DriverRedis:
		if opts.Redis == nil {
			return nil, fmt.Errorf("redis store requires a redis client")
		}
		return NewRedis(opts.Redis, opts.RedisPrefix), nil
	case DriverMongo, "mongodb":
		if opts.MongoURL == "" {
			return nil, fmt.Errorf("mongo store requires MONGO_URL")
		}
		db := opts.MongoDatabase
		if db == "" {
			db = "kasir"
		}
		return NewMongo(ctx, opts.MongoURL, db)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", opts.Driver)
	}
}

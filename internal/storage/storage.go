// Package storage opens the persistence backend selected by configuration
// and exposes it through the validation store contracts.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/email-validator/internal/config"
	"github.com/ignite/email-validator/internal/pkg/logger"
	"github.com/ignite/email-validator/internal/repository/postgres"
	"github.com/ignite/email-validator/internal/service/validation"
	"github.com/ignite/email-validator/internal/storage/csvfile"
	"github.com/ignite/email-validator/internal/storage/dynamo"
	"github.com/ignite/email-validator/internal/storage/redisstore"
)

// Storage types accepted in storage.type.
const (
	TypeLocal    = "local"
	TypeRedis    = "redis"
	TypeAWS      = "aws"
	TypePostgres = "postgres"
)

// ErrUnknownType is returned for an unsupported storage.type.
var ErrUnknownType = errors.New("unknown storage type")

// Storage bundles the opened stores and the connections behind them.
type Storage struct {
	KnownValid validation.KnownValidStore
	Results    validation.ResultLog

	// Archive is set when an S3 bucket is configured.
	Archive *dynamo.Archive
	// Redis is set when a Redis URL is configured, regardless of type.
	Redis *redis.Client

	db *sql.DB
}

// New opens the backend named by cfg.Storage.Type.
func New(ctx context.Context, cfg *config.Config) (*Storage, error) {
	s := &Storage{}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		s.Redis = redis.NewClient(opts)
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
	}

	if err := s.openBackend(ctx, cfg); err != nil {
		s.Close()
		return nil, err
	}

	logger.Info("storage initialized",
		"type", cfg.Storage.Type,
		"redis", s.Redis != nil,
		"report_archive", s.Archive != nil,
	)
	return s, nil
}

func (s *Storage) openBackend(ctx context.Context, cfg *config.Config) error {
	sc := cfg.Storage
	awsOpts := dynamo.ClientOptions{
		Region:          sc.AWSRegion,
		Profile:         sc.GetAWSProfile(),
		Endpoint:        sc.DynamoDBEndpoint,
		AccessKeyID:     sc.AWSAccessKeyID,
		SecretAccessKey: sc.AWSSecretAccessKey,
	}

	switch sc.Type {
	case TypeLocal:
		s.KnownValid = csvfile.NewKnownValid(sc.KnownValidPath)
		s.Results = csvfile.NewResultLog(sc.ResultsPath)

	case TypeRedis:
		if s.Redis == nil {
			return fmt.Errorf("storage type %q requires redis.url", sc.Type)
		}
		store := redisstore.New(s.Redis)
		s.KnownValid = store
		s.Results = store

	case TypeAWS:
		ddb, s3c, err := dynamo.NewClients(ctx, awsOpts)
		if err != nil {
			return fmt.Errorf("initializing AWS storage: %w", err)
		}
		store := dynamo.NewStore(ddb, sc.DynamoDBTable)
		s.KnownValid = store
		s.Results = store
		if sc.S3Bucket != "" {
			s.Archive = dynamo.NewArchive(s3c, sc.S3Bucket)
		}
		return nil

	case TypePostgres:
		if sc.DatabaseURL == "" {
			return fmt.Errorf("storage type %q requires DATABASE_URL", sc.Type)
		}
		db, err := sql.Open("postgres", sc.DatabaseURL)
		if err != nil {
			return fmt.Errorf("opening postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		s.db = db
		s.KnownValid = postgres.NewKnownValidRepo(db)
		s.Results = postgres.NewResultLogRepo(db)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, sc.Type)
	}

	// Reports can be archived to S3 with any primary backend.
	if sc.S3Bucket != "" {
		_, s3c, err := dynamo.NewClients(ctx, awsOpts)
		if err != nil {
			return fmt.Errorf("initializing report archive: %w", err)
		}
		s.Archive = dynamo.NewArchive(s3c, sc.S3Bucket)
	}
	return nil
}

// PingDatabase checks the Postgres connection. It is a no-op for other
// backends.
func (s *Storage) PingDatabase(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// Close releases every connection opened by New.
func (s *Storage) Close() error {
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	return errors.Join(errs...)
}

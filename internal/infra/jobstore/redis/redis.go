package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conveyorhq/conveyor/internal/core/domain"
	"github.com/conveyorhq/conveyor/internal/infra/jobstore"
	"github.com/conveyorhq/conveyor/internal/metrics"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Store persists job records in Redis so status reads survive restarts
// and can be served by other process instances. The engine is the only
// writer for a given job, so read-merge-write needs no transaction.
type Store struct {
	rdb *redis.Client
}

// New creates a Redis-backed job store and verifies the connection.
func New(cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{rdb: rdb}, nil
}

func jobKey(id string) string {
	return fmt.Sprintf("conveyor:job:%s", id)
}

func (s *Store) Put(ctx context.Context, id string, rec *domain.JobRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.rdb.Set(ctx, jobKey(id), data, ttl).Err(); err != nil {
		metrics.JobStoreErrors.WithLabelValues("redis", "put").Inc()
		return fmt.Errorf("set job %s: %w", id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.JobRecord, error) {
	val, err := s.rdb.Get(ctx, jobKey(id)).Result()
	if err == redis.Nil {
		return nil, jobstore.ErrNotFound
	}
	if err != nil {
		metrics.JobStoreErrors.WithLabelValues("redis", "get").Inc()
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	var rec domain.JobRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &rec, nil
}

func (s *Store) Update(ctx context.Context, id string, patch jobstore.Patch) (*domain.JobRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(rec)

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	// SET XX refuses to recreate a key deleted between the read and
	// the write, which is how a cancelled job stays cancelled.
	ok, err := s.rdb.SetXX(ctx, jobKey(id), data, redis.KeepTTL).Result()
	if err != nil {
		metrics.JobStoreErrors.WithLabelValues("redis", "update").Inc()
		return nil, fmt.Errorf("update job %s: %w", id, err)
	}
	if !ok {
		return nil, jobstore.ErrNotFound
	}
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Del(ctx, jobKey(id)).Result()
	if err != nil {
		metrics.JobStoreErrors.WithLabelValues("redis", "delete").Inc()
		return false, fmt.Errorf("delete job %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping checks backend reachability, for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// PurgeAll deletes every job record. Admin tooling only.
func (s *Store) PurgeAll(ctx context.Context) (int, error) {
	deleted := 0
	iter := s.rdb.Scan(ctx, 0, jobKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		n, err := s.rdb.Del(ctx, iter.Val()).Result()
		if err != nil {
			return deleted, fmt.Errorf("del %s: %w", iter.Val(), err)
		}
		deleted += int(n)
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan jobs: %w", err)
	}
	return deleted, nil
}

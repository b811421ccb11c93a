package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/reelforge/api/internal/model"
)

const maxUpdateAttempts = 8

// releaseLock deletes the lock only if it still carries our token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisJobStore keeps each job as one JSON document plus a per-user history index.
type RedisJobStore struct {
	redis     *redis.Client
	retention time.Duration
	now       func() time.Time
}

// NewRedisJobStore creates a store. A zero retention keeps jobs forever.
func NewRedisJobStore(redisClient *redis.Client, retention time.Duration) *RedisJobStore {
	return &RedisJobStore{
		redis:     redisClient,
		retention: retention,
		now:       time.Now,
	}
}

func jobKey(id string) string          { return fmt.Sprintf("video:job:%s", id) }
func userJobsKey(userID string) string { return fmt.Sprintf("video:user:%s:jobs", userID) }
func lockKey(id string) string         { return fmt.Sprintf("video:job:%s:lock", id) }

func (s *RedisJobStore) Create(ctx context.Context, job *model.VideoJob) error {
	now := s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	job.Revision = 1

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	created, err := s.redis.SetNX(ctx, jobKey(job.ID), data, s.retention).Result()
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	if !created {
		return ErrJobExists
	}

	if err := s.redis.ZAdd(ctx, userJobsKey(job.UserID), redis.Z{
		Score:  float64(job.CreatedAt.UnixMilli()),
		Member: job.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index job: %w", err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*model.VideoJob, error) {
	data, err := s.redis.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	var job model.VideoJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Update applies fn to the current record inside WATCH/MULTI and retries when a
// concurrent writer got in first.
func (s *RedisJobStore) Update(ctx context.Context, id string, fn MutateFunc) (*model.VideoJob, error) {
	key := jobKey(id)

	var result *model.VideoJob
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrJobNotFound
			}
			return err
		}

		var job model.VideoJob
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}

		changed, err := fn(&job)
		if err != nil {
			return err
		}
		if !changed {
			result = &job
			return nil
		}

		job.Revision++
		job.UpdatedAt = s.now()
		payload, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		if err == nil {
			result = &job
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.redis.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	log.Printf("[JobStore] giving up on job %s after %d conflicting writes", id, maxUpdateAttempts)
	return nil, ErrConflict
}

func (s *RedisJobStore) ListByUser(ctx context.Context, userID string, limit int) ([]*model.VideoJob, error) {
	if limit <= 0 {
		limit = 20
	}

	ids, err := s.redis.ZRevRange(ctx, userJobsKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(ids) == 0 {
		return []*model.VideoJob{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(id)
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}

	jobs := make([]*model.VideoJob, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// expired under a finite retention
			continue
		}
		var job model.VideoJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			log.Printf("[JobStore] skipping unreadable job %s: %v", ids[i], err)
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

func (s *RedisJobStore) AcquireAdvanceLock(ctx context.Context, id string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	key := lockKey(id)

	ok, err := s.redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire advance lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// detached from the request so a canceled poll still frees the lock
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseLock.Run(releaseCtx, s.redis, []string{key}, token).Err(); err != nil {
			log.Printf("[JobStore] failed to release lock for job %s: %v", id, err)
		}
	}
	return release, true, nil
}

package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seanblong/reposearch/pkg/models"
)

const (
	redisQueueKey  = "reposearch:index:queue"
	leaseKeyPrefix = "reposearch:index:lease:"
	leaseTTL       = 30 * time.Minute
)

// RedisQueue is the production JobQueue: LPUSH/BRPOP for the work queue,
// SET NX EX for the per-repoId lease that enforces at-most-one-active-job
// per repo, grounded on the go-redis/v9 usage pattern in
// ferg-cod3s-conexus/internal/security/ratelimit/ratelimit.go (the only
// Redis-backed example in the pack).
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a RedisQueue against the given connection.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Push(ctx context.Context, job models.Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, redisQueueKey, b).Err()
}

func (q *RedisQueue) Pop(ctx context.Context) (models.Job, bool, error) {
	res, err := q.client.BRPop(ctx, 5*time.Second, redisQueueKey).Result()
	if err == redis.Nil {
		return models.Job{}, false, nil
	}
	if err != nil {
		return models.Job{}, false, err
	}
	var job models.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return models.Job{}, false, err
	}
	return job, true, nil
}

func (q *RedisQueue) TryLease(ctx context.Context, repoID, jobID string) (bool, error) {
	ok, err := q.client.SetNX(ctx, leaseKeyPrefix+repoID, jobID, leaseTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (q *RedisQueue) ReleaseLease(ctx context.Context, repoID string) error {
	return q.client.Del(ctx, leaseKeyPrefix+repoID).Err()
}

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaywave/bsp-gateway/internal/webhook"
)

const redisQueueKey = "dispatch:jobs"

// RedisQueue is an LPUSH/BRPOP-backed FIFO, reusing the same Redis client
// the rest of the gateway uses for caching and rate-limit counters rather
// than standing up a separate broker dependency.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job webhook.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("dispatch: marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, redisQueueKey, body).Err(); err != nil {
		return fmt.Errorf("dispatch: enqueue job: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job. A nil, nil return means
// the timeout elapsed with nothing to pull.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*webhook.Job, error) {
	res, err := q.client.BRPop(ctx, timeout, redisQueueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dispatch: dequeue job: %w", err)
	}
	var job webhook.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("dispatch: unmarshal job: %w", err)
	}
	return &job, nil
}

// MemQueue is an in-process channel-backed queue for tests and single-node
// smoke runs, mirroring the interface swap already used for internal/cache.
type MemQueue struct {
	ch chan webhook.Job
}

func NewMemQueue(buffer int) *MemQueue {
	return &MemQueue{ch: make(chan webhook.Job, buffer)}
}

func (q *MemQueue) Enqueue(ctx context.Context, job webhook.Job) error {
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemQueue) Dequeue(ctx context.Context, timeout time.Duration) (*webhook.Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case job := <-q.ch:
		return &job, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

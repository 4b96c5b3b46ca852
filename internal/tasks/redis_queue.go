package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrResultNotFound = errors.New("task result not found")

// MalformedJobError is returned by Dequeue when the popped payload is not a job.
// The payload has already left the queue.
type MalformedJobError struct {
	Raw string
	Err error
}

func (e *MalformedJobError) Error() string { return "malformed job: " + e.Err.Error() }
func (e *MalformedJobError) Unwrap() error { return e.Err }

const (
	defaultPollTimeout = time.Second

	// DefaultQueue is shared by the processes that enqueue and the worker.
	DefaultQueue = "default"
)

// RedisQueue is a FIFO list of jobs plus a result backend with expiry.
type RedisQueue struct {
	client      *redis.Client
	namespace   string
	name        string
	resultTTL   time.Duration
	pollTimeout time.Duration
}

func NewRedisQueue(client *redis.Client, name string, resultTTL time.Duration) *RedisQueue {
	return &RedisQueue{
		client:      client,
		namespace:   "tasks",
		name:        name,
		resultTTL:   resultTTL,
		pollTimeout: defaultPollTimeout,
	}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (q *RedisQueue) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", q.namespace, operation, key)
}

func (q *RedisQueue) listKey() string { return q.GenerateKey("queue", q.name) }

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	if err := q.client.LPush(ctx, q.listKey(), raw).Err(); err != nil {
		return fmt.Errorf("redis.LPush: %w", err)
	}
	return nil
}

// Dequeue blocks up to the poll timeout and returns (nil, nil) when nothing arrived.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	res, err := q.client.BRPop(ctx, q.pollTimeout, q.listKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis.BRPop: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, &MalformedJobError{Raw: res[1], Err: err}
	}
	if job.ID == "" || job.Task == "" {
		return nil, &MalformedJobError{Raw: res[1], Err: errors.New("missing id or task")}
	}
	return &job, nil
}

func (q *RedisQueue) StoreResult(ctx context.Context, r Result) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	if err := q.client.Set(ctx, q.GenerateKey("result", r.JobID), raw, q.resultTTL).Err(); err != nil {
		return fmt.Errorf("redis.Set: %w", err)
	}
	return nil
}

func (q *RedisQueue) Result(ctx context.Context, jobID string) (*Result, error) {
	raw, err := q.client.Get(ctx, q.GenerateKey("result", jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis.Get: %w", err)
	}

	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("json.Unmarshal result: %w", err)
	}
	return &r, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.listKey()).Result()
}

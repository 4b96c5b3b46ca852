// Package tasks runs named background jobs from a queue with bounded concurrency.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeMC777/ordenes-pipeline/internal/metrics"
)

var ErrUnknownTask = errors.New("unknown task")

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Job is the serialized descriptor placed on the queue.
type Job struct {
	ID         string          `json:"id"`
	Task       string          `json:"task"`
	Args       json.RawMessage `json:"args"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Result is stored per job once it has run.
type Result struct {
	JobID      string          `json:"job_id"`
	Task       string          `json:"task"`
	Status     string          `json:"status"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

type handlerFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Registry maps task names to handlers. It is filled once at startup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]handlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]handlerFunc{}}
}

func (r *Registry) register(name string, h handlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.handlers[name]; dup {
		panic(fmt.Sprintf("tasks: handler for %q registered twice", name))
	}
	r.handlers[name] = h
}

func (r *Registry) lookup(name string) (handlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	return out
}

// Task is a typed handle on a named job: A is the argument type, R the result type.
type Task[A, R any] struct {
	Name string
}

func Define[A, R any](name string) Task[A, R] {
	return Task[A, R]{Name: name}
}

// Enqueue serializes args and hands the job to q without waiting for it to run.
func (t Task[A, R]) Enqueue(ctx context.Context, q Enqueuer, args A) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("json.Marshal %s args: %w", t.Name, err)
	}

	job := Job{
		ID:         uuid.NewString(),
		Task:       t.Name,
		Args:       raw,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", t.Name, err)
	}
	metrics.TasksEnqueued.WithLabelValues(t.Name).Inc()
	return job.ID, nil
}

// Handle registers fn as the implementation of t.
func (t Task[A, R]) Handle(r *Registry, fn func(ctx context.Context, args A) (R, error)) {
	r.register(t.Name, func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args A
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("json.Unmarshal %s args: %w", t.Name, err)
		}
		out, err := fn(ctx, args)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	})
}

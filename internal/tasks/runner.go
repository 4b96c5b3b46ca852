package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeMC777/ordenes-pipeline/internal/metrics"
)

// Queue is what the runner consumes from.
type Queue interface {
	Dequeue(ctx context.Context) (*Job, error)
	StoreResult(ctx context.Context, r Result) error
}

type Options struct {
	// Concurrency is the number of worker slots executing tasks in parallel.
	Concurrency int
	// MaxTasksPerWorker retires a worker after that many tasks; a fresh one takes its slot.
	MaxTasksPerWorker int
	// RetryDelay is the pause after a failed dequeue. A malformed payload is not a failed
	// dequeue and is recorded without pausing.
	RetryDelay time.Duration
}

type Runner struct {
	queue    Queue
	registry *Registry
	opts     Options
	log      *slog.Logger
}

func NewRunner(queue Queue, registry *Registry, opts Options, log *slog.Logger) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxTasksPerWorker <= 0 {
		opts.MaxTasksPerWorker = 1000
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		queue:    queue,
		registry: registry,
		opts:     opts,
		log:      log.With("component", "task-runner"),
	}
}

// Run blocks until ctx is cancelled and every in-flight task has finished.
func (r *Runner) Run(ctx context.Context) error {
	r.log.InfoContext(ctx, "task runner started",
		"concurrency", r.opts.Concurrency, "max_tasks_per_worker", r.opts.MaxTasksPerWorker, "tasks", r.registry.Names())

	var g errgroup.Group
	for slot := 1; slot <= r.opts.Concurrency; slot++ {
		g.Go(func() error {
			r.supervise(ctx, slot)
			return nil
		})
	}
	err := g.Wait()

	r.log.Info("task runner stopped")
	return err
}

// supervise keeps one worker alive in slot, replacing it each time it retires.
func (r *Runner) supervise(ctx context.Context, slot int) {
	for generation := 1; ; generation++ {
		done := make(chan int)
		go func() { done <- r.work(ctx, slot, generation) }()
		executed := <-done

		if ctx.Err() != nil {
			return
		}
		metrics.WorkerRecycles.Inc()
		r.log.Info("worker recycled", "slot", slot, "generation", generation, "executed", executed)
	}
}

// work executes up to MaxTasksPerWorker tasks and returns how many it ran.
func (r *Runner) work(ctx context.Context, slot, generation int) int {
	log := r.log.With("slot", slot, "generation", generation)

	executed := 0
	for executed < r.opts.MaxTasksPerWorker {
		if ctx.Err() != nil {
			return executed
		}

		job, err := r.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return executed
			}
			var malformed *MalformedJobError
			if errors.As(err, &malformed) {
				r.reject(ctx, log, malformed)
				continue
			}
			log.Error("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return executed
			case <-time.After(r.opts.RetryDelay):
			}
			continue
		}
		if job == nil {
			continue
		}

		r.execute(context.WithoutCancel(ctx), log, job)
		executed++
	}
	return executed
}

func (r *Runner) execute(ctx context.Context, log *slog.Logger, job *Job) {
	log = log.With("job_id", job.ID, "task", job.Task)
	result := Result{JobID: job.ID, Task: job.Task, StartedAt: time.Now().UTC()}

	out, err := r.call(ctx, job)
	result.FinishedAt = time.Now().UTC()
	if err != nil {
		result.Status = StatusFailure
		result.Error = err.Error()
		log.ErrorContext(ctx, "task failed", "error", err)
	} else {
		result.Status = StatusSuccess
		result.Output = out
		log.InfoContext(ctx, "task succeeded", "duration", result.FinishedAt.Sub(result.StartedAt))
	}

	metrics.TasksProcessed.WithLabelValues(job.Task, result.Status).Inc()
	metrics.TaskDuration.WithLabelValues(job.Task).Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())

	r.store(ctx, log, result)
}

// reject records a failure result for a payload that never decoded into a job. It keeps
// whatever id and task name can still be read, so the result is findable by job id.
func (r *Runner) reject(ctx context.Context, log *slog.Logger, bad *MalformedJobError) {
	id, task := salvage(bad.Raw)
	if id == "" {
		id = uuid.NewString()
	}
	if task == "" {
		task = "malformed"
	}

	now := time.Now().UTC()
	result := Result{
		JobID:      id,
		Task:       task,
		Status:     StatusFailure,
		Error:      bad.Error(),
		StartedAt:  now,
		FinishedAt: now,
	}
	log = log.With("job_id", result.JobID, "task", result.Task)
	log.ErrorContext(ctx, "malformed job dropped", "error", bad.Err, "payload", truncate(bad.Raw, 256))

	metrics.TasksProcessed.WithLabelValues(result.Task, result.Status).Inc()
	r.store(context.WithoutCancel(ctx), log, result)
}

func (r *Runner) store(ctx context.Context, log *slog.Logger, result Result) {
	storeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.queue.StoreResult(storeCtx, result); err != nil {
		log.ErrorContext(ctx, "store result failed", "error", err)
	}
}

// salvage reads the top-level id and task of a job payload up to the first syntax error.
func salvage(raw string) (id, task string) {
	dec := json.NewDecoder(strings.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return "", ""
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return id, task
		}
		switch tok {
		case "id", "task":
			val, err := dec.Token()
			if err != nil {
				return id, task
			}
			v, ok := val.(string)
			if !ok {
				return id, task
			}
			if tok == "id" {
				id = v
			} else {
				task = v
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return id, task
			}
		}
	}
	return id, task
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (r *Runner) call(ctx context.Context, job *Job) (out []byte, err error) {
	h, ok := r.registry.lookup(job.Task)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, job.Task)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panic: %v", rec)
		}
	}()
	return h(ctx, job.Args)
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MikeMC777/ordenes-pipeline/internal/config"
	"github.com/MikeMC777/ordenes-pipeline/internal/database"
	"github.com/MikeMC777/ordenes-pipeline/internal/grpcx"
	"github.com/MikeMC777/ordenes-pipeline/internal/logging"
	"github.com/MikeMC777/ordenes-pipeline/internal/order"
	"github.com/MikeMC777/ordenes-pipeline/internal/ordertasks"
	"github.com/MikeMC777/ordenes-pipeline/internal/tasks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var concurrency, maxPerWorker int

	cmd := &cobra.Command{
		Use:          "task-worker",
		Short:        "Execute payment verification and confirmation email tasks",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("concurrency") {
				cfg.TaskConcurrency = concurrency
			}
			if cmd.Flags().Changed("max-tasks-per-worker") {
				cfg.TaskMaxPerWorker = maxPerWorker
			}

			log := logging.Init("task-worker", cfg.LogLevel)
			cfg.Log(log)
			if err := run(cmd.Context(), cfg, log); err != nil {
				log.Error("task-worker stopped", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel worker slots (overrides TASK_CONCURRENCY)")
	cmd.Flags().IntVar(&maxPerWorker, "max-tasks-per-worker", 1000, "tasks a worker runs before it is replaced (overrides TASK_MAX_PER_WORKER)")
	return cmd
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	pool, err := database.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb, err := tasks.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	registry := tasks.NewRegistry()
	ordertasks.NewHandlers(order.NewPGStore(pool), ordertasks.Delays{
		Verify: cfg.TaskVerifyDelay,
		Email:  cfg.TaskEmailDelay,
	}, log).Register(registry)

	runner := tasks.NewRunner(tasks.NewRedisQueue(rdb, tasks.DefaultQueue, cfg.TaskResultTTL), registry, tasks.Options{
		Concurrency:       cfg.TaskConcurrency,
		MaxTasksPerWorker: cfg.TaskMaxPerWorker,
	}, log)

	health := grpcx.NewServer(log)
	health.SetServing("", true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return health.ListenAndServe(gctx, cfg.HealthAddr) })
	g.Go(func() error {
		defer health.SetServing("", false)
		return runner.Run(gctx)
	})
	return g.Wait()
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MikeMC777/ordenes-pipeline/internal/config"
	"github.com/MikeMC777/ordenes-pipeline/internal/events"
	"github.com/MikeMC777/ordenes-pipeline/internal/grpcx"
	"github.com/MikeMC777/ordenes-pipeline/internal/logging"
	"github.com/MikeMC777/ordenes-pipeline/internal/messaging"
	"github.com/MikeMC777/ordenes-pipeline/internal/tasks"
)

const (
	modeAll   = "all"
	modeSetup = "setup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var queue string

	cmd := &cobra.Command{
		Use:          "event-consumer",
		Short:        "Consume order events and enqueue the background tasks they trigger",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			queues, err := resolveQueues(queue)
			if err != nil {
				return err
			}

			cfg := config.Load()
			log := logging.Init("event-consumer", cfg.LogLevel)
			cfg.Log(log)
			if err := run(cmd.Context(), cfg, log, queues); err != nil {
				log.Error("event-consumer stopped", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&queue, "queue", modeAll,
		"queue to consume: "+strings.Join(append(events.Queues(), modeAll, modeSetup), "|"))
	return cmd
}

// resolveQueues returns nil for setup, which only declares the topology.
func resolveQueues(queue string) ([]string, error) {
	switch queue {
	case modeSetup:
		return nil, nil
	case modeAll:
		return events.Queues(), nil
	}
	for _, q := range events.Queues() {
		if q == queue {
			return []string{q}, nil
		}
	}
	return nil, fmt.Errorf("unknown queue %q", queue)
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger, queues []string) error {
	broker := messaging.NewClient(cfg.RabbitMQURL, log)
	defer func() {
		if err := broker.Close(); err != nil {
			log.Warn("broker close", "error", err)
		}
	}()

	rdb, err := tasks.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	consumer := events.NewConsumer(broker, tasks.NewRedisQueue(rdb, tasks.DefaultQueue, cfg.TaskResultTTL),
		cfg.ConfirmationEmailFallback, log)

	if queues == nil {
		return consumer.Setup(ctx)
	}

	health := grpcx.NewServer(log)
	health.SetServing("", true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return health.ListenAndServe(gctx, cfg.HealthAddr) })
	g.Go(func() error {
		defer health.SetServing("", false)
		return consumer.Run(gctx, queues...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("event-consumer stopped")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/MikeMC777/ordenes-pipeline/docs"
	"github.com/MikeMC777/ordenes-pipeline/internal/config"
	"github.com/MikeMC777/ordenes-pipeline/internal/database"
	"github.com/MikeMC777/ordenes-pipeline/internal/events"
	"github.com/MikeMC777/ordenes-pipeline/internal/httpx"
	"github.com/MikeMC777/ordenes-pipeline/internal/logging"
	"github.com/MikeMC777/ordenes-pipeline/internal/messaging"
	"github.com/MikeMC777/ordenes-pipeline/internal/metrics"
	"github.com/MikeMC777/ordenes-pipeline/internal/order"
	"github.com/MikeMC777/ordenes-pipeline/internal/payment"
)

// @title       Order Service API
// @version     1.0
// @description Orders, payments and payment verification.
// @BasePath    /
func main() {
	cfg := config.Load()
	log := logging.Init("order-service", cfg.LogLevel)
	cfg.Log(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("order-service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	pool, err := database.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}

	producer := events.NewProducer(messaging.NewClient(cfg.RabbitMQURL, log), log)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Warn("producer close", "error", err)
		}
	}()

	store := order.NewPGStore(pool)
	orders := order.NewService(store, producer,
		order.WithLogger(log),
		order.WithPublishTimeout(cfg.PublishTimeout),
	)
	payments := payment.NewService(store, payment.NewRandomGateway(cfg.PaymentSuccessRate), producer, cfg.PublishTimeout, log)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.OrderSvcAddr,
		Handler:           newRouter(orders, payments, pool.Ping, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("order-service listening", "addr", cfg.OrderSvcAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http.ListenAndServe: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func newRouter(orders *order.Service, payments *payment.Service, ping func(context.Context) error, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(log), httpx.Metrics())

	r.GET("/healthz", func(c *gin.Context) {
		if err := ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.POST("/orders", createOrderHandler(orders, log))
	r.GET("/orders", listOrdersHandler(orders, log))
	r.GET("/orders/:id", getOrderHandler(orders, log))
	r.PUT("/orders/:id/status", updateStatusHandler(orders, log))

	r.POST("/payments/process", processPaymentHandler(payments, log))
	r.GET("/payments/verify/:order_id", verifyPaymentHandler(payments, log))
	return r
}

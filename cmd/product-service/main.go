package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ordenes-pipeline/internal/config"
	"github.com/MikeMC777/ordenes-pipeline/internal/database"
	"github.com/MikeMC777/ordenes-pipeline/internal/httpx"
	"github.com/MikeMC777/ordenes-pipeline/internal/logging"
	"github.com/MikeMC777/ordenes-pipeline/internal/metrics"
	"github.com/MikeMC777/ordenes-pipeline/internal/order"
	"github.com/MikeMC777/ordenes-pipeline/internal/product"
)

// catalog is what the handlers need from product.PGRepo.
type catalog interface {
	Create(ctx context.Context, p *product.Product) error
	GetByID(ctx context.Context, id int64) (*product.Product, error)
	UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) error
}

func main() {
	cfg := config.Load()
	log := logging.Init("product-service", cfg.LogLevel)
	cfg.Log(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("product-service stopped", "error", err)
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

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.ProductSvcAddr,
		Handler:           newRouter(product.NewPGRepo(pool), log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("product-service listening", "addr", cfg.ProductSvcAddr)
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
	return srv.Shutdown(shutdownCtx)
}

func newRouter(repo catalog, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(log), httpx.Metrics())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.POST("/products", createProductHandler(repo, log))
	r.GET("/products/:id", getProductHandler(repo, log))
	r.PUT("/products/:id/price", updatePriceHandler(repo, log))
	return r
}

func parsePrice(raw string) (decimal.Decimal, bool) {
	p, err := decimal.NewFromString(raw)
	if err != nil || !p.IsPositive() {
		return decimal.Decimal{}, false
	}
	return p, true
}

func productID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, order.HTTPError{Error: "invalid id"})
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, log *slog.Logger, err error) {
	if errors.Is(err, product.ErrNotFound) {
		c.JSON(http.StatusNotFound, order.HTTPError{Error: product.ErrNotFound.Error()})
		return
	}
	log.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, order.HTTPError{Error: "internal error"})
}

// createProductHandler godoc
// @Summary  Add a catalog product
// @Tags     products
// @Accept   json
// @Produce  json
// @Param    request body product.CreateProductRequest true "Product"
// @Success  201 {object} product.Product
// @Failure  400 {object} order.HTTPError
// @Router   /products [post]
func createProductHandler(repo catalog, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req product.CreateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
			c.JSON(http.StatusBadRequest, order.HTTPError{Error: "invalid body"})
			return
		}
		price, ok := parsePrice(req.Price)
		if !ok {
			c.JSON(http.StatusBadRequest, order.HTTPError{Error: "price must be a positive decimal"})
			return
		}

		p := &product.Product{Name: req.Name, Description: req.Description, Price: price}
		if err := repo.Create(c.Request.Context(), p); err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func getProductHandler(repo catalog, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := productID(c)
		if !ok {
			return
		}
		p, err := repo.GetByID(c.Request.Context(), id)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// updatePriceHandler changes the live price. Orders already placed keep theirs.
func updatePriceHandler(repo catalog, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := productID(c)
		if !ok {
			return
		}
		var req product.UpdatePriceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, order.HTTPError{Error: "invalid body"})
			return
		}
		price, ok := parsePrice(req.Price)
		if !ok {
			c.JSON(http.StatusBadRequest, order.HTTPError{Error: "price must be a positive decimal"})
			return
		}

		if err := repo.UpdatePrice(c.Request.Context(), id, price); err != nil {
			writeError(c, log, err)
			return
		}
		p, err := repo.GetByID(c.Request.Context(), id)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

package main

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/ordenes-pipeline/internal/order"
	"github.com/MikeMC777/ordenes-pipeline/internal/payment"
)

const headerUserID = "X-User-ID"

func userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.GetHeader(headerUserID), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, order.HTTPError{Error: "missing or invalid " + headerUserID + " header"})
		return 0, false
	}
	return id, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, order.HTTPError{Error: "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, order.HTTPError{Error: "invalid " + name})
		return 0, false
	}
	return v, true
}

// writeError maps domain errors to status codes. Anything unrecognized is a 500 with a
// generic body.
func writeError(c *gin.Context, log *slog.Logger, err error) {
	var (
		verr *order.ValidationError
		cerr *order.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, order.HTTPError{Error: verr.Error()})
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, order.HTTPError{Error: cerr.Error()})
	case errors.Is(err, order.ErrNotFound):
		c.JSON(http.StatusNotFound, order.HTTPError{Error: order.ErrNotFound.Error()})
	default:
		log.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, order.HTTPError{Error: "internal error"})
	}
}

// createOrderHandler godoc
// @Summary  Create an order
// @Tags     orders
// @Accept   json
// @Produce  json
// @Param    X-User-ID header int true "Caller user id"
// @Param    request body order.CreateOrderRequest true "Order lines"
// @Success  201 {object} order.Order
// @Failure  400 {object} order.HTTPError
// @Failure  500 {object} order.HTTPError
// @Router   /orders [post]
func createOrderHandler(svc *order.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			return
		}
		var req order.CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, order.HTTPError{Error: "invalid body"})
			return
		}

		o, err := svc.CreateOrder(c.Request.Context(), uid, req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, o)
	}
}

// listOrdersHandler godoc
// @Summary  List the caller's orders
// @Tags     orders
// @Produce  json
// @Param    X-User-ID header int true "Caller user id"
// @Param    skip  query int false "Rows to skip" default(0)
// @Param    limit query int false "Page size"    default(100)
// @Success  200 {array} order.Order
// @Router   /orders [get]
func listOrdersHandler(svc *order.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			return
		}
		skip, ok := queryInt(c, "skip", 0)
		if !ok {
			return
		}
		limit, ok := queryInt(c, "limit", 100)
		if !ok {
			return
		}

		orders, err := svc.GetUserOrders(c.Request.Context(), uid, skip, limit)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

// getOrderHandler godoc
// @Summary  Get one of the caller's orders
// @Tags     orders
// @Produce  json
// @Param    X-User-ID header int true "Caller user id"
// @Param    id path int true "Order id"
// @Success  200 {object} order.Order
// @Failure  404 {object} order.HTTPError
// @Router   /orders/{id} [get]
func getOrderHandler(svc *order.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		o, err := svc.GetOrderByID(c.Request.Context(), id, uid)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// updateStatusHandler godoc
// @Summary  Overwrite an order status
// @Tags     orders
// @Accept   json
// @Produce  json
// @Param    id path int true "Order id"
// @Param    request body order.UpdateStatusRequest true "New status"
// @Success  200 {object} order.Order
// @Failure  400 {object} order.HTTPError
// @Failure  404 {object} order.HTTPError
// @Router   /orders/{id}/status [put]
func updateStatusHandler(svc *order.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req order.UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, order.HTTPError{Error: "invalid body"})
			return
		}

		o, err := svc.UpdateOrderStatus(c.Request.Context(), id, req.Status)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// processPaymentHandler godoc
// @Summary  Charge a pending order
// @Tags     payments
// @Accept   json
// @Produce  json
// @Param    request body payment.ProcessPaymentRequest true "Payment"
// @Success  200 {object} payment.Result
// @Failure  400 {object} order.HTTPError
// @Failure  404 {object} order.HTTPError
// @Failure  409 {object} order.HTTPError
// @Router   /payments/process [post]
func processPaymentHandler(svc *payment.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.ProcessPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.OrderID <= 0 {
			c.JSON(http.StatusBadRequest, order.HTTPError{Error: "invalid body"})
			return
		}

		res, err := svc.ProcessPayment(c.Request.Context(), req.OrderID, req.PaymentMethod)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// verifyPaymentHandler godoc
// @Summary  Report the recorded payment outcome
// @Tags     payments
// @Produce  json
// @Param    order_id path int true "Order id"
// @Success  200 {object} payment.Verification
// @Failure  404 {object} order.HTTPError
// @Router   /payments/verify/{order_id} [get]
func verifyPaymentHandler(svc *payment.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "order_id")
		if !ok {
			return
		}

		v, err := svc.VerifyPaymentStatus(c.Request.Context(), id)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

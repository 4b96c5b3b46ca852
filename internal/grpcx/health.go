// Package grpcx hosts the gRPC health endpoint of the background processes.
package grpcx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"github.com/MikeMC777/ordenes-pipeline/internal/logging"
)

const RequestIDKey = "x-request-id"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    *slog.Logger
}

func NewServer(log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "grpc")

	s := &Server{
		grpc:   grpc.NewServer(grpc.UnaryInterceptor(RequestIDInterceptor(log))),
		health: health.NewServer(),
		log:    log,
	}
	grpc_health_v1.RegisterHealthServer(s.grpc, s.health)
	return s
}

// SetServing flips the reported status of service ("" is the whole process).
func (s *Server) SetServing(service string, serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// Serve blocks until ctx is cancelled, then reports NOT_SERVING and drains in-flight calls.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- s.grpc.Serve(lis) }()

	s.log.InfoContext(ctx, "health server listening", "addr", lis.Addr().String())

	select {
	case err := <-errc:
		return fmt.Errorf("grpc.Serve: %w", err)
	case <-ctx.Done():
	}

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := <-errc; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc.Serve: %w", err)
	}
	return nil
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("net.Listen %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// RequestIDInterceptor copies x-request-id from the incoming metadata into the context,
// minting one when the caller sent none.
func RequestIDInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(RequestIDKey); len(ids) > 0 {
				rid = ids[0]
			}
		}
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx = logging.WithRequestID(ctx, rid)

		start := time.Now()
		resp, err := handler(ctx, req)
		log.DebugContext(ctx, "grpc call", "method", info.FullMethod, "duration", time.Since(start), "error", err)
		return resp, err
	}
}

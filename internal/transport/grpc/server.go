// Package grpcx поднимает служебный gRPC-порт релея: grpc.health.v1.Health.
package grpcx

import (
	"context"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName: имя сервиса в Health.Check.
const ServiceName = "chatrelay.v1.Relay"

const defaultStopTimeout = 10 * time.Second

type Server struct {
	grpc   *grpc.Server
	health *health.Server

	stopTimeout time.Duration
}

// NewServer: stopTimeout ограничивает GracefulStop, после него соединения рвутся.
func NewServer(stopTimeout time.Duration) *Server {
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}

	gs := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{grpc: gs, health: hs, stopTimeout: stopTimeout}
}

// Serve блокирует до остановки; при отмене ctx статус становится NOT_SERVING
// и сервер останавливается мягко.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("grpc listen", "addr", lis.Addr().String())
		errCh <- s.grpc.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Run(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Stop переводит все сервисы в NOT_SERVING и делает GracefulStop.
// Открытые стримы (Health.Watch) сами не завершаются, поэтому по истечении
// stopTimeout сервер останавливается жёстко.
func (s *Server) Stop() {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		slog.Warn("grpc graceful stop timed out, forcing", "timeout", s.stopTimeout)
		s.grpc.Stop()
		<-done
	}
}

// SetServing: ручное переключение статуса (например, при потере хранилища).
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Service names reported through the health service. The empty name is the
// overall server status.
const (
	ServiceOverall = ""
	ServicePersona = "scribepod.Persona"
	ServiceSTT     = "scribepod.STT"
)

// Server exposes the standard gRPC health service and server reflection.
type Server struct {
	addr   string
	srv    *grpc.Server
	health *health.Server
}

// NewServer creates a gRPC server that starts in NOT_SERVING state.
func NewServer(addr string, opts ...grpc.ServerOption) *Server {
	srv := grpc.NewServer(opts...)
	hs := health.NewServer()

	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	for _, name := range []string{ServiceOverall, ServicePersona, ServiceSTT} {
		hs.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}

	return &Server{addr: addr, srv: srv, health: hs}
}

// SetServing updates the status of a service.
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// SetReady marks every service as serving or not.
func (s *Server) SetReady(ready bool) {
	for _, name := range []string{ServiceOverall, ServicePersona, ServiceSTT} {
		s.SetServing(name, ready)
	}
}

// Run listens on the configured address and serves until Stop.
func (s *Server) Run() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	slog.Info("gRPC server listening", "addr", lis.Addr().String())

	if err := s.srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight RPCs, forcing a stop once ctx is done.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.srv.Stop()
		<-done
	}
}

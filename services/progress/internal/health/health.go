// Package health exposes the gRPC health protocol for the progress service
// and keeps it in step with the storage backend.
package health

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Service is the name reported alongside the overall "" status.
const Service = "journey.progress"

type Server struct {
	GRPC   *grpc.Server
	health *grpchealth.Server
	log    *zap.Logger
}

func New(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gs := grpc.NewServer()
	hs := grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)
	reflection.Register(gs)
	return &Server{GRPC: gs, health: hs, log: log}
}

// SetServing flips both the overall and the service status.
func (s *Server) SetServing(ok bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ok {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(Service, st)
}

// Watch runs check every interval until ctx is done and reports the result
// through the health status.
func (s *Server) Watch(ctx context.Context, interval time.Duration, check func(context.Context) error) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	probe := func() {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := check(cctx)
		if err != nil {
			s.log.Warn("readiness check failed", zap.Error(err))
		}
		s.SetServing(err == nil)
	}
	probe()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			probe()
		}
	}
}

// Serve listens on addr until ctx is done, then stops gracefully with a
// hard stop after 10s.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		stopped := make(chan struct{})
		go func() {
			s.GRPC.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(10 * time.Second):
			s.GRPC.Stop()
		}
	}()
	s.log.Info("grpc server starting", zap.String("addr", lis.Addr().String()))
	return s.GRPC.Serve(lis)
}

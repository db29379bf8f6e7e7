package httpapi

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/oscarmarin21/Admin/internal/obs"
)

// HealthServer answers grpc.health.v1 checks from the same readiness probe
// the HTTP /readyz endpoint uses. The empty service name and serviceName are
// both known.
type HealthServer struct {
	healthpb.UnimplementedHealthServer

	readiness Checker
	log       *zap.Logger
}

// NewHealthServer creates the gRPC health service.
func NewHealthServer(readiness Checker, log *zap.Logger) *HealthServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &HealthServer{readiness: readiness, log: log}
}

// Check reports SERVING when every dependency answers, NOT_SERVING otherwise.
func (s *HealthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != serviceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if err := s.readiness.Check(ctx); err != nil {
		obs.SetReady(false)
		s.log.Warn("grpc readiness check failed", zap.Error(err))
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	obs.SetReady(true)
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

// NewGRPCServer builds a server with the health service registered.
func NewGRPCServer(readiness Checker, log *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, NewHealthServer(readiness, log))
	return srv
}

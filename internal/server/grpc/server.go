// Package grpc exposes the gRPC surface: the standard health service, which
// reports store availability, and a token introspection service guarded by
// a bearer-token interceptor.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/workflow/internal/logging"
	"github.com/dmitrijs2005/workflow/internal/server/auth"
	"github.com/dmitrijs2005/workflow/internal/server/metrics"
	"github.com/dmitrijs2005/workflow/internal/server/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// StoreHealthService is the health-check service name tracking the database.
const StoreHealthService = "workflow.store"

type GRPCServer struct {
	address string
	logger  logging.Logger
	codec   *auth.Codec
	store   *store.Handle
	metrics *metrics.Metrics
	health  *health.Server
}

func NewGRPCServer(a string, l logging.Logger, h *store.Handle, codec *auth.Codec, m *metrics.Metrics) *GRPCServer {
	s := &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		codec:   codec,
		store:   h,
		metrics: m,
		health:  health.NewServer(),
	}

	storeStatus := healthpb.HealthCheckResponse_NOT_SERVING
	if h.Available() {
		storeStatus = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(StoreHealthService, storeStatus)
	return s
}

// Register attaches the health and token services to srv.
func (s *GRPCServer) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s.health)
	srv.RegisterService(&TokenServiceDesc, s)
}

// NewServer builds a *grpc.Server with the auth interceptor and all
// services registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	srv := grpc.NewServer(opts...)
	s.Register(srv)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

package grpcapi

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Server hosts the command and health services as a lifecycle service.
type Server struct {
	addr   string
	logger *zap.Logger
	grpc   *grpc.Server
	health *health.Server

	mu      sync.Mutex
	lis     net.Listener
	stopped bool
}

// NewServer creates a Server for svc listening on addr.
//
// Precondition: svc and logger must be non-nil.
func NewServer(addr string, svc CommandServer, logger *zap.Logger) *Server {
	if svc == nil || logger == nil {
		panic("grpcapi.NewServer: service and logger must not be nil")
	}
	s := &Server{
		addr:   addr,
		logger: logger,
		health: health.NewServer(),
	}
	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(s.logCalls))
	s.grpc.RegisterService(&CommandServiceDesc, svc)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		s.logger.Warn("grpc call failed", append(fields, zap.Stringer("code", status.Code(err)), zap.Error(err))...)
	} else {
		s.logger.Debug("grpc call", fields...)
	}
	return resp, err
}

// Listen binds the address. Start calls it when it has not been called.
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, grpc.ErrServerStopped
	}
	if s.lis == nil {
		lis, err := net.Listen("tcp", s.addr)
		if err != nil {
			return nil, err
		}
		s.lis = lis
	}
	return s.lis.Addr(), nil
}

// Start serves until Stop.
func (s *Server) Start() error {
	addr, err := s.Listen()
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	if err != nil {
		return err
	}
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("grpc: listening", zap.String("addr", addr.String()))
	s.mu.Lock()
	lis := s.lis
	s.mu.Unlock()
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks the service not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

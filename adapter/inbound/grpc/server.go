package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ajkula/logwatcher/domain/port/inbound"
	"github.com/ajkula/logwatcher/domain/port/outbound"
)

// WatchServiceName is the health service reporting whether files are being tailed
const WatchServiceName = "logwatcher.Watch"

// Server exposes the standard gRPC health protocol. The overall service is
// SERVING while the process runs; WatchServiceName is SERVING only while at
// least one file is watched.
type Server struct {
	watchService inbound.WatchService
	logger       outbound.Logger
	health       *health.Server
	grpcServer   *grpc.Server
	listener     net.Listener
	interval     time.Duration
	rootCtx      context.Context
	stopOnce     sync.Once
	done         chan struct{}
}

func NewServer(watchService inbound.WatchService, logger outbound.Logger, rootCtx context.Context) *Server {
	return &Server{
		watchService: watchService,
		logger:       logger,
		health:       health.NewServer(),
		interval:     2 * time.Second,
		rootCtx:      rootCtx,
		done:         make(chan struct{}),
	}
}

// Start listens on address and serves until Stop
func (s *Server) Start(address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = lis

	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.Refresh()

	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			s.logger.Error("gRPC server failed", "error", err)
		}
	}()
	go s.watchLoop()

	s.logger.Info("gRPC health server started", "address", lis.Addr().String())
	return nil
}

// Addr returns the bound address, useful when started on port 0
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Refresh recomputes the watch service status
func (s *Server) Refresh() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if len(s.watchService.ListWatched()) > 0 {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(WatchServiceName, status)
}

func (s *Server) watchLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Refresh()
		case <-s.rootCtx.Done():
			return
		case <-s.done:
			return
		}
	}
}

// Stop marks every service NOT_SERVING and shuts the server down
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.logger.Info("Stopping gRPC server...")

		s.health.Shutdown()
		if s.grpcServer == nil {
			return
		}

		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
			s.logger.Info("gRPC server stopped gracefully")
		case <-time.After(10 * time.Second):
			s.logger.Warn("gRPC server stop timed out, forcing shutdown")
			s.grpcServer.Stop()
		}
	})
}

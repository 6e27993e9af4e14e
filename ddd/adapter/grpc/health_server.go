package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"video-assembly-service/pkg/logger"
)

// HealthServer gRPC 健康检查服务，worker 池运行时报告 SERVING
type HealthServer struct {
	service string
	server  *grpc.Server
	health  *health.Server
	lis     net.Listener
}

// NewHealthServer 监听 addr；端口为 0 时由系统分配
func NewHealthServer(addr, serviceName string) (*HealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen grpc %s: %w", addr, err)
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	s := &HealthServer{service: serviceName, server: srv, health: hs, lis: lis}
	s.SetServing(false)
	return s, nil
}

// Addr 实际监听地址
func (s *HealthServer) Addr() string {
	return s.lis.Addr().String()
}

// SetServing 同时更新整体状态与本服务状态
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.service, status)
}

// Serve 阻塞直到 Stop
func (s *HealthServer) Serve() error {
	logger.Infof("gRPC server started address=%s service=%s", s.Addr(), s.service)
	if err := s.server.Serve(s.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop 优雅停止，ctx 到期后强制关闭
func (s *HealthServer) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
		<-done
	}
}

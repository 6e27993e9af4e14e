package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"video-assembly-service/pkg/config"
	"video-assembly-service/pkg/logger"
)

const dialTimeout = 5 * time.Second

// Instance 注册到 etcd 的实例信息
type Instance struct {
	ServiceName string            `json:"service_name"`
	ServiceID   string            `json:"service_id"`
	HTTPAddr    string            `json:"http_addr"`
	GRPCAddr    string            `json:"grpc_addr,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
}

// ServiceRegistry registers the service instance into etcd under a lease.
type ServiceRegistry struct {
	client   *clientv3.Client
	instance Instance
	ttl      int64
	leaseID  clientv3.LeaseID
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServiceRegistry creates a new ServiceRegistry instance.
func NewServiceRegistry(cfg config.ServiceRegistryConfig, instance Instance) (*ServiceRegistry, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	if instance.ServiceName == "" {
		instance.ServiceName = cfg.ServiceName
	}
	if instance.ServiceID == "" {
		instance.ServiceID = cfg.ServiceID
	}
	if instance.StartedAt.IsZero() {
		instance.StartedAt = time.Now()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ServiceRegistry{
		client:   client,
		instance: instance,
		ttl:      leaseSeconds(cfg.TTL),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// InstanceKey /services/<name>/<id>
func InstanceKey(serviceName, serviceID string) string {
	return fmt.Sprintf("/services/%s/%s", serviceName, serviceID)
}

// Register registers service instance.
func (r *ServiceRegistry) Register() error {
	value, err := json.Marshal(r.instance)
	if err != nil {
		return fmt.Errorf("marshal instance: %w", err)
	}

	leaseResp, err := r.client.Grant(r.ctx, r.ttl)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	r.leaseID = leaseResp.ID

	key := InstanceKey(r.instance.ServiceName, r.instance.ServiceID)
	if _, err := r.client.Put(r.ctx, key, string(value), clientv3.WithLease(r.leaseID)); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	ch, err := r.client.KeepAlive(r.ctx, r.leaseID)
	if err != nil {
		return fmt.Errorf("failed to keep alive lease: %w", err)
	}
	r.wg.Add(1)
	go r.drainKeepAlive(ch)

	logger.Infof("service registered key=%s http_addr=%s ttl=%ds", key, r.instance.HTTPAddr, r.ttl)
	return nil
}

func (r *ServiceRegistry) drainKeepAlive(ch <-chan *clientv3.LeaseKeepAliveResponse) {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case ka, ok := <-ch:
			if !ok || ka == nil {
				logger.Warnf("etcd keep alive channel closed service_id=%s", r.instance.ServiceID)
				return
			}
		}
	}
}

// Deregister removes service registration.
func (r *ServiceRegistry) Deregister() error {
	r.cancel()
	r.wg.Wait()
	if r.leaseID != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		if _, err := r.client.Revoke(ctx, r.leaseID); err != nil {
			logger.Warnf("failed to revoke etcd lease: %v", err)
		}
		cancel()
	}
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close etcd client: %w", err)
	}
	logger.Infof("service deregistered service_id=%s", r.instance.ServiceID)
	return nil
}

func leaseSeconds(ttl time.Duration) int64 {
	s := int64(ttl.Seconds())
	if s < 5 {
		return 5
	}
	return s
}

package etcd

import (
	"PharmaChat/backend/go/internal/config"
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// ServiceDiscovery registers and looks up service instances in etcd.
type ServiceDiscovery struct {
	cli *clientv3.Client // etcd client
}

// NewServiceDiscovery creates a new ServiceDiscovery.
func NewServiceDiscovery(cfg config.EtcdConfig) (*ServiceDiscovery, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd: %w", err)
	}
	return &ServiceDiscovery{cli: cli}, nil
}

func serviceKey(serviceName, addr string) string {
	return "/" + serviceName + "/" + addr
}

// Register puts the instance under a lease and keeps it alive until the
// returned stop function is called or ctx is cancelled.
func (s *ServiceDiscovery) Register(ctx context.Context, serviceName, addr string, ttl int64) (func(), error) {
	leaseResp, err := s.cli.Grant(ctx, ttl)
	if err != nil {
		return nil, fmt.Errorf("grant lease: %w", err)
	}
	if _, err = s.cli.Put(ctx, serviceKey(serviceName, addr), addr, clientv3.WithLease(leaseResp.ID)); err != nil {
		return nil, fmt.Errorf("put service key: %w", err)
	}

	keepCtx, cancel := context.WithCancel(ctx)
	keepAliveCh, err := s.cli.KeepAlive(keepCtx, leaseResp.ID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("keep alive: %w", err)
	}

	go func() {
		for range keepAliveCh {
		}
		logrus.WithField("service", serviceName).Warn("etcd lease keep-alive stopped")
	}()

	stop := func() {
		cancel()
		revokeCtx, done := context.WithTimeout(context.Background(), 3*time.Second)
		defer done()
		if _, err := s.cli.Revoke(revokeCtx, leaseResp.ID); err != nil {
			logrus.WithError(err).Warn("revoke etcd lease")
		}
	}
	return stop, nil
}

// Discover returns the addresses registered under serviceName.
func (s *ServiceDiscovery) Discover(ctx context.Context, serviceName string) ([]string, error) {
	resp, err := s.cli.Get(ctx, "/"+serviceName+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	addrs := make([]string, 0, len(resp.Kvs))
	for _, ev := range resp.Kvs {
		addrs = append(addrs, string(ev.Value))
	}
	return addrs, nil
}

// Close closes the etcd client.
func (s *ServiceDiscovery) Close() error {
	return s.cli.Close()
}

package xsnapshot

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// KV 是 EtcdStore 使用的 etcd 操作，与 clientv3.KV 的同名方法一致。
type KV interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
}

var _ KV = (*clientv3.Client)(nil)

// EtcdStore 以 etcd 键保存快照。
type EtcdStore struct {
	*resilientStore
}

var _ Store = (*EtcdStore)(nil)

type etcdBackend struct {
	kv KV
}

// NewEtcdStore 创建 etcd 快照存储。kv 通常是 *clientv3.Client，生命周期由调用方管理。
func NewEtcdStore(kv KV, opts ...Option) (*EtcdStore, error) {
	if kv == nil {
		return nil, ErrNilClient
	}
	return &EtcdStore{resilientStore: newResilientStore("etcd", &etcdBackend{kv: kv}, applyOptions(opts))}, nil
}

func (b *etcdBackend) get(ctx context.Context, key string) ([]byte, error) {
	resp, err := b.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrNotFound
	}
	return resp.Kvs[0].Value, nil
}

func (b *etcdBackend) put(ctx context.Context, key string, data []byte) error {
	_, err := b.kv.Put(ctx, key, string(data))
	return err
}

func (b *etcdBackend) del(ctx context.Context, key string) error {
	_, err := b.kv.Delete(ctx, key)
	return err
}

// etcd 连接保活参数
const (
	keepAliveTime    = 10 * time.Second
	keepAliveTimeout = 3 * time.Second
)

// NewEtcdClient 创建 etcd 客户端。dialTimeout 为 0 时使用 5s。
//
// 设计决策: 保活只通过 grpc DialOptions 设置，以便同时控制 PermitWithoutStream。
func NewEtcdClient(endpoints []string, dialTimeout time.Duration) (*clientv3.Client, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%w: no etcd endpoints", ErrNilClient)
	}
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
		DialOptions: []grpc.DialOption{
			grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:                keepAliveTime,
				Timeout:             keepAliveTimeout,
				PermitWithoutStream: true,
			}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("xsnapshot: create etcd client: %w", err)
	}
	return c, nil
}

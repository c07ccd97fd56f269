package xsnapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/mock/gomock"
)

func TestNewEtcdStoreNil(t *testing.T) {
	_, err := NewEtcdStore(nil)
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestNewEtcdClientNoEndpoints(t *testing.T) {
	_, err := NewEtcdClient(nil, 0)
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestEtcdStoreSaveLoad(t *testing.T) {
	ctrl := gomock.NewController(t)
	kv := NewMockKV(ctrl)
	ctx := context.Background()

	var stored string
	kv.EXPECT().Put(gomock.Any(), "/xlockable/pool", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
			stored = val
			return &clientv3.PutResponse{}, nil
		})
	kv.EXPECT().Get(gomock.Any(), "/xlockable/pool").
		DoAndReturn(func(context.Context, string, ...clientv3.OpOption) (*clientv3.GetResponse, error) {
			return &clientv3.GetResponse{Kvs: []*mvccpb.KeyValue{{Key: []byte("/xlockable/pool"), Value: []byte(stored)}}}, nil
		})

	s, err := NewEtcdStore(kv)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "/xlockable/pool", sampleState()))

	got, err := s.Load(ctx, "/xlockable/pool")
	require.NoError(t, err)
	assert.Equal(t, sampleState(), got)
}

func TestEtcdStoreNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	kv := NewMockKV(ctrl)
	kv.EXPECT().Get(gomock.Any(), "k").Return(&clientv3.GetResponse{}, nil).Times(1)

	s, err := NewEtcdStore(kv)
	require.NoError(t, err)
	_, err = s.Load(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEtcdStoreRetriesThenFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	kv := NewMockKV(ctrl)
	boom := errors.New("etcdserver: request timed out")
	kv.EXPECT().Delete(gomock.Any(), "k").Return(nil, boom).Times(2)

	s, err := NewEtcdStore(kv, WithRetry(2, 0))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Delete(context.Background(), "k"), boom)
}

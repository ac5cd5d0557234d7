package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/tests"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestStore(t *testing.T) {
	_, rdb := newTestRedis(t)
	testutil.RunStorageTests(t, New(rdb, "masomo:console:", 0))
}

func TestStore_PrefixAndTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := New(rdb, "masomo:console:default:", time.Hour)
	ctx := context.Background()

	assert.NoError(t, s.Put(ctx, "auth-storage", []byte(`{"version":0}`)))
	assert.True(t, mr.Exists("masomo:console:default:auth-storage"))
	assert.Equal(t, time.Hour, mr.TTL("masomo:console:default:auth-storage"))

	mr.FastForward(2 * time.Hour)
	_, err := s.Get(ctx, "auth-storage")
	assert.Equal(t, core.ErrKeyNotFound, err)
}

func TestOpen(t *testing.T) {
	mr, _ := newTestRedis(t)
	ctx := context.Background()

	s, err := Open(ctx, core.RedisConfig{Addr: mr.Addr(), Prefix: "p:"}, "school-a")
	if assert.NoError(t, err) {
		defer s.Close()
		assert.NoError(t, s.Put(ctx, "k", []byte(`1`)))
		assert.True(t, mr.Exists("p:school-a:k"))
	}
}

func TestStore_Down(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() failed: %v", err)
	}
	addr := mr.Addr()
	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	_, err = New(rdb, "", 0).Get(context.Background(), "auth-storage")
	assert.Error(t, err)
	assert.NotEqual(t, core.ErrKeyNotFound, err)

	_, err = Open(context.Background(), core.RedisConfig{Addr: addr}, "")
	assert.Error(t, err)
}

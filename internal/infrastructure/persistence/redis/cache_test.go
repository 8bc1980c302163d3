package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewCache(NewClientFromRedis(rdb))
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "missing")
	assert.ErrorIs(t, err, goredis.Nil)

	require.NoError(t, cache.Set(ctx, "k", map[string]string{"answer": "高血压"}, time.Minute))

	data, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"高血压"}`, string(data))
}

func TestCache_GetOrLoadSafeMergesConcurrentLoads(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()

	var loads int32
	loader := func() (interface{}, time.Duration, error) {
		atomic.AddInt32(&loads, 1)
		time.Sleep(50 * time.Millisecond)
		return map[string]string{"answer": "高血压常见症状包括头晕"}, time.Minute, nil
	}

	const concurrency = 8
	results := make([][]byte, concurrency)
	errs := make([]error, concurrency)
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.GetOrLoadSafe(ctx, "qa:answer:test", loader)
		}(i)
	}
	wg.Wait()

	for i := 0; i < concurrency; i++ {
		require.NoError(t, errs[i])
	}

	// 同键并发未命中只触发一次加载，所有请求拿到同一结果
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	for i := 1; i < concurrency; i++ {
		assert.Equal(t, results[0], results[i])
	}
}

func TestCache_GetOrLoadSafePersistsWithTTL(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()

	var loads int32
	loader := func() (interface{}, time.Duration, error) {
		atomic.AddInt32(&loads, 1)
		return map[string]string{"answer": "规则路径答案"}, 10 * time.Minute, nil
	}

	first, err := cache.GetOrLoadSafe(ctx, "qa:answer:rule", loader)
	require.NoError(t, err)
	assert.True(t, mr.Exists("qa:answer:rule"))
	assert.Greater(t, mr.TTL("qa:answer:rule"), time.Duration(0))

	// 第二次直接命中缓存，不再加载
	second, err := cache.GetOrLoadSafe(ctx, "qa:answer:rule", loader)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestCache_GetOrLoadSafeSkipsPersistWithoutTTL(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()

	var loads int32
	loader := func() (interface{}, time.Duration, error) {
		atomic.AddInt32(&loads, 1)
		return map[string]string{"answer": "生成路径答案"}, 0, nil
	}

	_, err := cache.GetOrLoadSafe(ctx, "qa:answer:rag", loader)
	require.NoError(t, err)
	// ttl 不为正：结果不落缓存，下一次重新加载
	assert.False(t, mr.Exists("qa:answer:rag"))

	_, err = cache.GetOrLoadSafe(ctx, "qa:answer:rag", loader)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&loads))
}

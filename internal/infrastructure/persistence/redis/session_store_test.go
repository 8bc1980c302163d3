package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"med-kg-qa-api/internal/domain/entity"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *SessionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewSessionStore(NewClientFromRedis(rdb)).(*SessionStore)
}

func TestSessionStore_LoadMissingReturnsNil(t *testing.T) {
	_, store := newTestStore(t)

	session, err := store.Load(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSessionStore_SaveAndLoadRoundTrip(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	session := entity.NewChatSession("s1")
	session.Append(entity.RoleUser, "高血压有什么症状？", 10)
	session.Append(entity.RoleAssistant, "常见症状包括头晕、头痛。", 10)

	require.NoError(t, store.Save(ctx, session, time.Hour))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "s1", loaded.ID)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, entity.RoleUser, loaded.Messages[0].Role)
	assert.Equal(t, "高血压有什么症状？", loaded.Messages[0].Content)
}

func TestSessionStore_SaveSetsTTL(t *testing.T) {
	mr, store := newTestStore(t)

	session := entity.NewChatSession("s2")
	require.NoError(t, store.Save(context.Background(), session, time.Hour))

	ttl := mr.TTL(sessionKeyPrefix + "s2")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestSessionStore_TurnLockMutualExclusion(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	acquired, err := store.AcquireTurnLock(ctx, "s3", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// 同一会话的第二次抢占被拒绝
	again, err := store.AcquireTurnLock(ctx, "s3", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	// 不同会话互不影响
	other, err := store.AcquireTurnLock(ctx, "s4", time.Minute)
	require.NoError(t, err)
	assert.True(t, other)

	// 释放后可重新抢占
	require.NoError(t, store.ReleaseTurnLock(ctx, "s3"))
	reacquired, err := store.AcquireTurnLock(ctx, "s3", time.Minute)
	require.NoError(t, err)
	assert.True(t, reacquired)
}

func TestSessionStore_TurnLockExpires(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	acquired, err := store.AcquireTurnLock(ctx, "s5", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	// TTL 到期后锁自动释放，持有方崩溃不会永久卡死会话
	mr.FastForward(2 * time.Second)

	again, err := store.AcquireTurnLock(ctx, "s5", time.Second)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestSessionStore_Delete(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	session := entity.NewChatSession("s6")
	require.NoError(t, store.Save(ctx, session, time.Hour))
	require.NoError(t, store.Delete(ctx, "s6"))

	loaded, err := store.Load(ctx, "s6")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

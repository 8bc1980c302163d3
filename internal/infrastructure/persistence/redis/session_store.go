package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"med-kg-qa-api/internal/domain/entity"
	"med-kg-qa-api/internal/domain/repository"
)

const (
	sessionKeyPrefix  = "agent:session:"
	turnLockKeyPrefix = "agent:lock:"
)

// SessionStore 基于 Redis 的会话存储
// 会话以 JSON 整体读写，轮次锁用 SETNX 实现，TTL 防止崩溃后死锁
type SessionStore struct {
	client *Client
}

// NewSessionStore 创建会话存储
func NewSessionStore(client *Client) repository.SessionStore {
	return &SessionStore{client: client}
}

// Load 加载会话，不存在时返回 (nil, nil)
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*entity.ChatSession, error) {
	ctx, span := tracer.Start(ctx, "session.Load",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	raw, err := s.client.rdb.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var session entity.ChatSession
	if err := json.Unmarshal(raw, &session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &session, nil
}

// Save 写回会话并刷新 TTL
func (s *SessionStore) Save(ctx context.Context, session *entity.ChatSession, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "session.Save",
		trace.WithAttributes(attribute.String("session.id", session.ID)))
	defer span.End()

	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", session.ID, err)
	}

	if err := s.client.rdb.Set(ctx, sessionKeyPrefix+session.ID, raw, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	return nil
}

// Delete 删除会话
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	ctx, span := tracer.Start(ctx, "session.Delete",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	return s.client.rdb.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

// AcquireTurnLock 抢占会话轮次锁，已被占用时返回 false
func (s *SessionStore) AcquireTurnLock(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "session.AcquireTurnLock",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	acquired, err := s.client.rdb.SetNX(ctx, turnLockKeyPrefix+sessionID, "1", ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to acquire turn lock for %s: %w", sessionID, err)
	}
	span.SetAttributes(attribute.Bool("session.lock_acquired", acquired))
	return acquired, nil
}

// ReleaseTurnLock 释放会话轮次锁
func (s *SessionStore) ReleaseTurnLock(ctx context.Context, sessionID string) error {
	ctx, span := tracer.Start(ctx, "session.ReleaseTurnLock",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	return s.client.rdb.Del(ctx, turnLockKeyPrefix+sessionID).Err()
}

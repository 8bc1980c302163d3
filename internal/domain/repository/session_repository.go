package repository

import (
	"context"
	"time"

	"med-kg-qa-api/internal/domain/entity"
)

// SessionStore 智能体会话存储接口
type SessionStore interface {
	// Load 读取会话，不存在时返回 (nil, nil)
	Load(ctx context.Context, sessionID string) (*entity.ChatSession, error)

	// Save 写入会话并刷新过期时间
	Save(ctx context.Context, session *entity.ChatSession, ttl time.Duration) error

	// Delete 删除会话
	Delete(ctx context.Context, sessionID string) error

	// AcquireTurnLock 获取会话轮次锁；已被占用时返回 false
	AcquireTurnLock(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)

	// ReleaseTurnLock 释放会话轮次锁
	ReleaseTurnLock(ctx context.Context, sessionID string) error
}

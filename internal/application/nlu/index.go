// Package nlu 提供实体识别与意图分类能力
package nlu

import (
	"context"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"med-kg-qa-api/internal/domain/entity"
	"med-kg-qa-api/internal/domain/repository"
	"med-kg-qa-api/pkg/errors"
	"med-kg-qa-api/pkg/logger"
	"med-kg-qa-api/pkg/metrics"
)

// indexSnapshot 不可变的索引快照
// 刷新时整体构建并原子替换，读路径无锁
type indexSnapshot struct {
	names   map[string]entity.EntityType
	byType  map[entity.EntityType][]string
	maxRune int // 最长实体名的 rune 数，限定扫描窗口
	builtAt time.Time
}

// EntityIndex 内存实体名索引
type EntityIndex struct {
	store    repository.GraphStore
	labels   []entity.EntityType
	snapshot atomic.Pointer[indexSnapshot]
}

// NewEntityIndex 创建实体索引，初始为空快照
func NewEntityIndex(store repository.GraphStore, labels []entity.EntityType) *EntityIndex {
	idx := &EntityIndex{
		store:  store,
		labels: labels,
	}
	idx.snapshot.Store(&indexSnapshot{
		names:  map[string]entity.EntityType{},
		byType: map[entity.EntityType][]string{},
	})
	return idx
}

// Refresh 从图数据库全量拉取实体名并原子替换快照
// 拉取失败时保留旧快照，返回 EntityIndexStale 错误
func (idx *EntityIndex) Refresh(ctx context.Context) error {
	next := &indexSnapshot{
		names:   make(map[string]entity.EntityType),
		byType:  make(map[entity.EntityType][]string, len(idx.labels)),
		builtAt: time.Now(),
	}

	for _, label := range idx.labels {
		names, err := idx.store.ListEntityNames(ctx, label)
		if err != nil {
			logger.Warn(ctx, "entity index refresh failed, keeping previous snapshot",
				"label", string(label), "error", err.Error())
			return errors.Wrap(err, errors.CodeEntityIndexStale, "entity index refresh failed")
		}
		for _, name := range names {
			if name == "" {
				continue
			}
			// 先到先得：同名实体保留第一个标签
			if _, ok := next.names[name]; ok {
				continue
			}
			next.names[name] = label
			next.byType[label] = append(next.byType[label], name)
			if n := utf8.RuneCountInString(name); n > next.maxRune {
				next.maxRune = n
			}
		}
	}

	idx.snapshot.Store(next)

	for label, names := range next.byType {
		metrics.EntityIndexSize.WithLabelValues(string(label)).Set(float64(len(names)))
	}
	logger.Info(ctx, "entity index refreshed",
		"total", len(next.names), "max_name_runes", next.maxRune)
	return nil
}

// Contains 判断名称是否在当前快照中
func (idx *EntityIndex) Contains(name string) bool {
	_, ok := idx.snapshot.Load().names[name]
	return ok
}

// TypeOf 返回名称对应的实体类型
func (idx *EntityIndex) TypeOf(name string) (entity.EntityType, bool) {
	t, ok := idx.snapshot.Load().names[name]
	return t, ok
}

// NamesByType 返回指定类型的全部实体名
func (idx *EntityIndex) NamesByType(t entity.EntityType) []string {
	return idx.snapshot.Load().byType[t]
}

// Size 返回当前快照中的实体总数
func (idx *EntityIndex) Size() int {
	return len(idx.snapshot.Load().names)
}

// MaxNameRunes 返回当前快照中最长实体名的 rune 数
func (idx *EntityIndex) MaxNameRunes() int {
	return idx.snapshot.Load().maxRune
}

// BuiltAt 返回当前快照的构建时间
func (idx *EntityIndex) BuiltAt() time.Time {
	return idx.snapshot.Load().builtAt
}

// StartRefresher 启动后台定时刷新，ctx 取消时退出
func (idx *EntityIndex) StartRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := idx.Refresh(ctx); err != nil {
					metrics.EntityIndexRefreshTotal.WithLabelValues("ticker", "error").Inc()
					continue
				}
				metrics.EntityIndexRefreshTotal.WithLabelValues("ticker", "success").Inc()
			}
		}
	}()
}

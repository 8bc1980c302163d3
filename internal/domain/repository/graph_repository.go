// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"med-kg-qa-api/internal/domain/entity"
)

// GraphStore 知识图谱访问接口
type GraphStore interface {
	// ListEntityNames 全量拉取指定标签的实体名称
	ListEntityNames(ctx context.Context, label entity.EntityType) ([]string, error)

	// Neighbors 查询实体沿指定关系的一跳邻居
	Neighbors(ctx context.Context, name string, sourceLabel entity.EntityType, relation string, targetLabel entity.EntityType) ([]entity.GraphNeighbor, error)

	// ReverseNeighbors 反向查询：目标指向 name 的一跳邻居
	ReverseNeighbors(ctx context.Context, name string, targetLabel entity.EntityType, relation string, sourceLabel entity.EntityType) ([]entity.GraphNeighbor, error)

	// MultiHopNeighbors 沿任意关系游走至多 maxHops 跳，按跳数升序返回邻居
	MultiHopNeighbors(ctx context.Context, name string, label entity.EntityType, maxHops, limit int) ([]entity.GraphNeighbor, error)

	// EntityDescription 读取实体的描述属性，缺失时返回空串
	EntityDescription(ctx context.Context, name string, label entity.EntityType) (string, error)

	// Ping 健康检查
	Ping(ctx context.Context) error
}

package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"med-kg-qa-api/internal/domain/entity"
	"med-kg-qa-api/internal/domain/repository"
)

// GraphStore 基于 Neo4j 的知识图谱访问实现
// 标签与关系类型均来自代码内枚举，拼接进 Cypher 是安全的；
// 用户输入只通过参数传递
type GraphStore struct {
	client *Client
}

// NewGraphStore 创建图谱存储
func NewGraphStore(client *Client) repository.GraphStore {
	return &GraphStore{client: client}
}

// ListEntityNames 全量拉取指定标签的实体名称，供实体索引刷新使用
func (s *GraphStore) ListEntityNames(ctx context.Context, label entity.EntityType) ([]string, error) {
	ctx, span := tracer.Start(ctx, "neo4j.ListEntityNames")
	defer span.End()

	query := fmt.Sprintf(`MATCH (n:%s) WHERE n.name IS NOT NULL RETURN n.name AS name`, label)

	records, err := s.read(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s names: %w", label, err)
	}

	names := make([]string, 0, len(records))
	for _, record := range records {
		if name, ok := stringValue(record, "name"); ok && name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// Neighbors 正向一跳：(a:source {name})-[:REL]->(b:target)
func (s *GraphStore) Neighbors(ctx context.Context, name string, sourceLabel entity.EntityType, relation string, targetLabel entity.EntityType) ([]entity.GraphNeighbor, error) {
	ctx, span := tracer.Start(ctx, "neo4j.Neighbors")
	defer span.End()

	query := fmt.Sprintf(
		`MATCH (a:%s {name: $name})-[:%s]->(b:%s) RETURN b.name AS name ORDER BY name`,
		sourceLabel, relation, targetLabel,
	)
	return s.queryNeighbors(ctx, query, name, targetLabel, relation)
}

// ReverseNeighbors 反向一跳：(a:source)-[:REL]->(b:target {name})，返回 a
func (s *GraphStore) ReverseNeighbors(ctx context.Context, name string, targetLabel entity.EntityType, relation string, sourceLabel entity.EntityType) ([]entity.GraphNeighbor, error) {
	ctx, span := tracer.Start(ctx, "neo4j.ReverseNeighbors")
	defer span.End()

	query := fmt.Sprintf(
		`MATCH (a:%s)-[:%s]->(b:%s {name: $name}) RETURN a.name AS name ORDER BY name`,
		sourceLabel, relation, targetLabel,
	)
	return s.queryNeighbors(ctx, query, name, sourceLabel, relation)
}

// MultiHopNeighbors 沿任意关系游走至多 maxHops 跳
// 路径按跳数升序收集，同名节点只保留最近的一条；跳数上限封顶 3，防止全图遍历
func (s *GraphStore) MultiHopNeighbors(ctx context.Context, name string, label entity.EntityType, maxHops, limit int) ([]entity.GraphNeighbor, error) {
	ctx, span := tracer.Start(ctx, "neo4j.MultiHopNeighbors")
	defer span.End()

	if maxHops < 1 {
		maxHops = 1
	}
	if maxHops > 3 {
		maxHops = 3
	}
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(
		`MATCH path = (a:%s {name: $name})-[*1..%d]-(b)
WHERE b.name IS NOT NULL AND b <> a
WITH b, length(path) AS hops, [rel IN relationships(path) | type(rel)] AS rels
ORDER BY hops, b.name
LIMIT $limit
RETURN b.name AS name, head(labels(b)) AS label, hops, head(rels) AS relation`,
		label, maxHops,
	)

	records, err := s.read(ctx, query, map[string]any{"name": name, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("multi-hop neighbors of %q: %w", name, err)
	}

	seen := make(map[string]struct{}, len(records))
	neighbors := make([]entity.GraphNeighbor, 0, len(records))
	for _, record := range records {
		neighborName, ok := stringValue(record, "name")
		if !ok || neighborName == "" {
			continue
		}
		if _, dup := seen[neighborName]; dup {
			continue
		}
		seen[neighborName] = struct{}{}

		neighborLabel, _ := stringValue(record, "label")
		relation, _ := stringValue(record, "relation")
		neighbors = append(neighbors, entity.GraphNeighbor{
			Name:     neighborName,
			Type:     entity.EntityType(neighborLabel),
			Relation: relation,
			Hops:     intValue(record, "hops"),
		})
	}
	return neighbors, nil
}

// EntityDescription 读取实体的 description 属性，节点或属性缺失时返回空串
func (s *GraphStore) EntityDescription(ctx context.Context, name string, label entity.EntityType) (string, error) {
	ctx, span := tracer.Start(ctx, "neo4j.EntityDescription")
	defer span.End()

	query := fmt.Sprintf(`MATCH (n:%s {name: $name}) RETURN n.description AS description LIMIT 1`, label)

	records, err := s.read(ctx, query, map[string]any{"name": name})
	if err != nil {
		return "", fmt.Errorf("description of %s %q: %w", label, name, err)
	}
	if len(records) == 0 {
		return "", nil
	}
	desc, _ := stringValue(records[0], "description")
	return desc, nil
}

// Ping 健康检查
func (s *GraphStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *GraphStore) queryNeighbors(ctx context.Context, query, name string, neighborType entity.EntityType, relation string) ([]entity.GraphNeighbor, error) {
	records, err := s.read(ctx, query, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("neighbors of %q via %s: %w", name, relation, err)
	}

	neighbors := make([]entity.GraphNeighbor, 0, len(records))
	for _, record := range records {
		neighborName, ok := stringValue(record, "name")
		if !ok || neighborName == "" {
			continue
		}
		neighbors = append(neighbors, entity.GraphNeighbor{
			Name:     neighborName,
			Type:     neighborType,
			Relation: relation,
		})
	}
	return neighbors, nil
}

// read 在只读会话中执行查询并收集全部结果
func (s *GraphStore) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	if timeout := s.client.QueryTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	session := s.client.Driver().NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.client.Database(),
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, _ := result.([]*neo4j.Record)
	return records, nil
}

func intValue(record *neo4j.Record, key string) int {
	raw, ok := record.Get(key)
	if !ok || raw == nil {
		return 0
	}
	val, _ := raw.(int64)
	return int(val)
}

func stringValue(record *neo4j.Record, key string) (string, bool) {
	raw, ok := record.Get(key)
	if !ok || raw == nil {
		return "", false
	}
	val, ok := raw.(string)
	return val, ok
}

// Package retrieval 提供图谱与向量两路检索能力
package retrieval

import (
	"context"
	"time"

	"med-kg-qa-api/internal/domain/entity"
	"med-kg-qa-api/internal/domain/repository"
	"med-kg-qa-api/pkg/errors"
	"med-kg-qa-api/pkg/metrics"
)

// 图谱关系类型
const (
	RelHasSymptom   = "HAS_SYMPTOM"
	RelTreatedBy    = "TREATED_BY"
	RelUsesMedicine = "USES_MEDICINE"
	RelBelongsTo    = "BELONGS_TO"
	RelTreats       = "TREATS"
)

// GraphRetriever 按意图执行结构化图谱查询
type GraphRetriever struct {
	store   repository.GraphStore
	maxHops int
}

// NewGraphRetriever 创建图谱检索器
// maxHops 约束 NeighborhoodOf 的游走深度；意图明确的查询始终走单跳关系
func NewGraphRetriever(store repository.GraphStore, maxHops int) *GraphRetriever {
	if maxHops <= 0 {
		maxHops = 3
	}
	return &GraphRetriever{store: store, maxHops: maxHops}
}

// SymptomsOf 查询疾病的症状：disease -HAS_SYMPTOM-> symptom
func (g *GraphRetriever) SymptomsOf(ctx context.Context, disease string) (*entity.RetrievalResult, error) {
	return g.forward(ctx, "symptoms_of", disease,
		entity.EntityTypeDisease, RelHasSymptom, entity.EntityTypeSymptom)
}

// TreatmentOf 查询疾病的治疗方式与用药
// disease -TREATED_BY-> treatment 与 drug -TREATS-> disease 两路合并
func (g *GraphRetriever) TreatmentOf(ctx context.Context, disease string) (*entity.RetrievalResult, error) {
	start := time.Now()

	treatments, err := g.store.Neighbors(ctx, disease,
		entity.EntityTypeDisease, RelTreatedBy, entity.EntityTypeTreatment)
	if err != nil {
		return nil, g.unavailable("treatment_of", start, err)
	}
	drugs, err := g.store.ReverseNeighbors(ctx, disease,
		entity.EntityTypeDisease, RelTreats, entity.EntityTypeDrug)
	if err != nil {
		return nil, g.unavailable("treatment_of", start, err)
	}

	result := &entity.RetrievalResult{Source: entity.SourceGraph, Confidence: 1.0}
	for _, n := range treatments {
		result.Items = append(result.Items, entity.RetrievalItem{
			Label:   string(entity.EntityTypeTreatment),
			Payload: n.Name,
			Score:   1.0,
		})
	}
	for _, n := range drugs {
		result.Items = append(result.Items, entity.RetrievalItem{
			Label:   string(entity.EntityTypeDrug),
			Payload: n.Name,
			Score:   1.0,
		})
	}
	g.observe("treatment_of", start, nil)
	return result, nil
}

// DepartmentOf 查询疾病的就诊科室：disease -BELONGS_TO-> department
func (g *GraphRetriever) DepartmentOf(ctx context.Context, disease string) (*entity.RetrievalResult, error) {
	return g.forward(ctx, "department_of", disease,
		entity.EntityTypeDisease, RelBelongsTo, entity.EntityTypeDepartment)
}

// DiseasesFromSymptom 症状反查疾病：disease -HAS_SYMPTOM-> symptom 的反向一跳
func (g *GraphRetriever) DiseasesFromSymptom(ctx context.Context, symptom string) (*entity.RetrievalResult, error) {
	start := time.Now()

	diseases, err := g.store.ReverseNeighbors(ctx, symptom,
		entity.EntityTypeSymptom, RelHasSymptom, entity.EntityTypeDisease)
	if err != nil {
		return nil, g.unavailable("diseases_from_symptom", start, err)
	}

	result := &entity.RetrievalResult{Source: entity.SourceGraph, Confidence: 1.0}
	for _, n := range diseases {
		result.Items = append(result.Items, entity.RetrievalItem{
			Label:   string(entity.EntityTypeDisease),
			Payload: n.Name,
			Score:   1.0,
		})
	}
	g.observe("diseases_from_symptom", start, nil)
	return result, nil
}

// DrugInfo 查询药物信息：drug -TREATS-> disease 加上药物自身描述
func (g *GraphRetriever) DrugInfo(ctx context.Context, drug string) (*entity.RetrievalResult, error) {
	start := time.Now()

	desc, err := g.store.EntityDescription(ctx, drug, entity.EntityTypeDrug)
	if err != nil {
		return nil, g.unavailable("drug_info", start, err)
	}
	treats, err := g.store.Neighbors(ctx, drug,
		entity.EntityTypeDrug, RelTreats, entity.EntityTypeDisease)
	if err != nil {
		return nil, g.unavailable("drug_info", start, err)
	}

	result := &entity.RetrievalResult{Source: entity.SourceGraph, Confidence: 1.0}
	if desc != "" {
		result.Items = append(result.Items, entity.RetrievalItem{
			Label:   "description",
			Payload: desc,
			Score:   1.0,
		})
	}
	for _, n := range treats {
		result.Items = append(result.Items, entity.RetrievalItem{
			Label:   string(entity.EntityTypeDisease),
			Payload: n.Name,
			Score:   1.0,
		})
	}
	g.observe("drug_info", start, nil)
	return result, nil
}

// multiHopLimit 多跳游走返回的邻居上限
const multiHopLimit = 50

// NeighborhoodOf 检索实体在配置跳数内的邻域，相关性随跳数衰减
// 用于意图未命中时的尽力而为图谱召回，结果参与混合排序
func (g *GraphRetriever) NeighborhoodOf(ctx context.Context, name string, label entity.EntityType) (*entity.RetrievalResult, error) {
	start := time.Now()

	neighbors, err := g.store.MultiHopNeighbors(ctx, name, label, g.maxHops, multiHopLimit)
	if err != nil {
		return nil, g.unavailable("neighborhood_of", start, err)
	}

	result := &entity.RetrievalResult{Source: entity.SourceGraph}
	for _, n := range neighbors {
		result.Items = append(result.Items, entity.RetrievalItem{
			Label:   string(n.Type),
			Payload: n.Name,
			Score:   hopScore(n.Hops),
		})
	}
	if len(result.Items) > 0 {
		result.Confidence = float64(result.Items[0].Score)
	}
	g.observe("neighborhood_of", start, nil)
	return result, nil
}

// hopScore 跳数越多相关性越低：1/(1+0.3*hops)
func hopScore(hops int) float32 {
	if hops < 1 {
		hops = 1
	}
	return float32(1.0 / (1.0 + 0.3*float64(hops)))
}

// CauseOf 查询疾病的病因描述属性
func (g *GraphRetriever) CauseOf(ctx context.Context, disease string) (*entity.RetrievalResult, error) {
	start := time.Now()

	desc, err := g.store.EntityDescription(ctx, disease, entity.EntityTypeDisease)
	if err != nil {
		return nil, g.unavailable("cause_of", start, err)
	}

	result := &entity.RetrievalResult{Source: entity.SourceGraph, Confidence: 1.0}
	if desc != "" {
		result.Items = append(result.Items, entity.RetrievalItem{
			Label:   "cause",
			Payload: desc,
			Score:   1.0,
		})
	}
	g.observe("cause_of", start, nil)
	return result, nil
}

// forward 通用正向一跳查询
// 空遍历（实体存在但无对应关系）返回零条目的成功结果，区别于实体未识别
func (g *GraphRetriever) forward(ctx context.Context, op, name string,
	from entity.EntityType, rel string, to entity.EntityType) (*entity.RetrievalResult, error) {
	start := time.Now()

	neighbors, err := g.store.Neighbors(ctx, name, from, rel, to)
	if err != nil {
		return nil, g.unavailable(op, start, err)
	}

	result := &entity.RetrievalResult{Source: entity.SourceGraph, Confidence: 1.0}
	for _, n := range neighbors {
		result.Items = append(result.Items, entity.RetrievalItem{
			Label:   string(to),
			Payload: n.Name,
			Score:   1.0,
		})
	}
	g.observe(op, start, nil)
	return result, nil
}

func (g *GraphRetriever) unavailable(op string, start time.Time, err error) error {
	g.observe(op, start, err)
	return errors.Wrap(err, errors.CodeRetrievalUnavailable, ErrRetrievalUnavailable.Error())
}

func (g *GraphRetriever) observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.GraphQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.GraphQueryTotal.WithLabelValues(op, status).Inc()
}

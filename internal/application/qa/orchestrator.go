// Package qa 实现问答编排：规则优先、混合检索生成、固定兜底三层路径
package qa

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"med-kg-qa-api/internal/application/nlu"
	"med-kg-qa-api/internal/application/retrieval"
	"med-kg-qa-api/internal/domain/entity"
	"med-kg-qa-api/pkg/logger"
	"med-kg-qa-api/pkg/metrics"
	"med-kg-qa-api/pkg/tracer"
)

// Config 编排参数
type Config struct {
	TopK            int
	MaxContextChars int
}

// Orchestrator 问答编排器
type Orchestrator struct {
	parser    *nlu.QueryParser
	graph     *retrieval.GraphRetriever
	vector    *retrieval.VectorRetriever
	chatModel model.BaseChatModel
	cfg       Config
}

// NewOrchestrator 创建问答编排器
func NewOrchestrator(parser *nlu.QueryParser, graph *retrieval.GraphRetriever,
	vector *retrieval.VectorRetriever, chatModel model.BaseChatModel, cfg Config) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = 4000
	}
	return &Orchestrator{
		parser:    parser,
		graph:     graph,
		vector:    vector,
		chatModel: chatModel,
		cfg:       cfg,
	}
}

// AnswerQuestion 回答一个问题
// 图谱优先：结构化命中直接返回，不调用 LLM；
// 未命中时走混合检索生成；生成不可用时返回固定兜底文案。
// 任何降级都不会向调用方抛出未分类的错误。
func (o *Orchestrator) AnswerQuestion(ctx context.Context, question string) (*entity.Answer, error) {
	ctx, span := tracer.Start(ctx, "qa.AnswerQuestion")
	defer span.End()
	start := time.Now()

	parsed := o.parser.Parse(question)
	logger.Info(ctx, "question parsed",
		"intent", string(parsed.Intent), "entities", len(parsed.Mentions))

	// 1. 规则路径：意图明确且识别到实体时直接查图谱
	if parsed.Intent != entity.IntentUnknown && len(parsed.Mentions) > 0 {
		result, name, err := o.dispatch(ctx, parsed)
		if err != nil {
			// 图谱不可达：降级到混合路径的向量单路
			logger.Warn(ctx, "graph retrieval unavailable, degrading", "error", err.Error())
		} else if !result.Empty() {
			answer := &entity.Answer{
				Text:       formatRuleAnswer(parsed.Intent, name, result),
				Path:       entity.AnswerPathRule,
				Intent:     parsed.Intent,
				Confidence: result.Confidence,
				Entities:   parsed.Mentions,
				Sources:    result.Items,
			}
			o.observe(entity.AnswerPathRule, parsed.Intent, start)
			return answer, nil
		}
	}

	// 2. 混合路径：图谱尽力而为 + 向量检索并发执行
	items := o.hybridRetrieve(ctx, parsed)

	// 3. LLM 生成
	text, err := o.generate(ctx, question, items)
	if err != nil {
		logger.Warn(ctx, "generation unavailable, returning fallback", "error", err.Error())
		answer := &entity.Answer{
			Text:     fallbackAnswer(question),
			Path:     entity.AnswerPathFallback,
			Intent:   parsed.Intent,
			Entities: parsed.Mentions,
		}
		o.observe(entity.AnswerPathFallback, parsed.Intent, start)
		return answer, nil
	}

	answer := &entity.Answer{
		Text:       text,
		Path:       entity.AnswerPathRAG,
		Intent:     parsed.Intent,
		Confidence: blendedConfidence(items),
		Entities:   parsed.Mentions,
		Sources:    items,
	}
	o.observe(entity.AnswerPathRAG, parsed.Intent, start)
	return answer, nil
}

// dispatch 按 (意图, 实体类型) 分发到具体的图谱查询
func (o *Orchestrator) dispatch(ctx context.Context, parsed *entity.ParsedQuery) (*entity.RetrievalResult, string, error) {
	switch parsed.Intent {
	case entity.IntentSymptom:
		if m, ok := parsed.PrimaryEntity(entity.EntityTypeDisease); ok {
			r, err := o.graph.SymptomsOf(ctx, m.Name)
			return r, m.Name, err
		}
	case entity.IntentTreatment:
		if m, ok := parsed.PrimaryEntity(entity.EntityTypeDisease); ok {
			r, err := o.graph.TreatmentOf(ctx, m.Name)
			return r, m.Name, err
		}
	case entity.IntentDepartment:
		if m, ok := parsed.PrimaryEntity(entity.EntityTypeDisease); ok {
			r, err := o.graph.DepartmentOf(ctx, m.Name)
			return r, m.Name, err
		}
	case entity.IntentCause:
		// 症状实体优先反查疾病，疾病实体查病因描述
		if symptoms := parsed.EntitiesOfType(entity.EntityTypeSymptom); len(symptoms) > 0 {
			r, err := o.graph.DiseasesFromSymptom(ctx, symptoms[0].Name)
			return r, symptoms[0].Name, err
		}
		if m, ok := parsed.PrimaryEntity(entity.EntityTypeDisease); ok {
			r, err := o.graph.CauseOf(ctx, m.Name)
			return r, m.Name, err
		}
	case entity.IntentDrugInfo:
		if m, ok := parsed.PrimaryEntity(entity.EntityTypeDrug); ok {
			r, err := o.graph.DrugInfo(ctx, m.Name)
			return r, m.Name, err
		}
	}
	return &entity.RetrievalResult{Source: entity.SourceGraph, Confidence: 1.0}, "", nil
}

// hybridRetrieve 并发执行图谱尽力检索与向量检索，按分数降序合并
// 任一路失败都只收窄结果，不中断流程
func (o *Orchestrator) hybridRetrieve(ctx context.Context, parsed *entity.ParsedQuery) []entity.RetrievalItem {
	var (
		graphItems  []entity.RetrievalItem
		vectorItems []entity.RetrievalItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(parsed.Mentions) == 0 {
			return nil
		}
		result, err := o.bestEffortGraph(gctx, parsed.Mentions[0])
		if err != nil {
			logger.Warn(gctx, "best-effort graph retrieval failed", "error", err.Error())
			return nil
		}
		graphItems = result.Items
		return nil
	})
	g.Go(func() error {
		result := o.vector.Search(gctx, parsed.Raw, o.cfg.TopK)
		vectorItems = result.Items
		return nil
	})
	_ = g.Wait()

	// 图谱结果在前（确定性更高），向量结果已按分数降序
	return append(graphItems, vectorItems...)
}

// bestEffortGraph 意图未知时检索实体的多跳邻域，分数随跳数衰减
func (o *Orchestrator) bestEffortGraph(ctx context.Context, m entity.EntityMention) (*entity.RetrievalResult, error) {
	return o.graph.NeighborhoodOf(ctx, m.Name, m.Type)
}

// generate 调用 LLM 基于合并上下文生成回答
func (o *Orchestrator) generate(ctx context.Context, question string, items []entity.RetrievalItem) (string, error) {
	if o.chatModel == nil {
		return "", retrieval.ErrVectorDisabled
	}

	msgs := []*schema.Message{
		schema.SystemMessage(ragSystemPrompt),
		schema.UserMessage(buildRAGPrompt(question, items, o.cfg.MaxContextChars)),
	}
	// 调用指标与追踪由全局 Eino callbacks 统一记录
	resp, err := o.chatModel.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// blendedConfidence 混合排序结果的置信度取最高命中分，始终小于 1.0
func blendedConfidence(items []entity.RetrievalItem) float64 {
	var best float64
	for _, item := range items {
		if s := float64(item.Score); s > best {
			best = s
		}
	}
	if best >= 1.0 {
		best = 0.99
	}
	return best
}

func (o *Orchestrator) observe(path entity.AnswerPath, intent entity.Intent, start time.Time) {
	metrics.QAAnswersTotal.WithLabelValues(string(path), string(intent), "success").Inc()
	metrics.QAAnswerDuration.WithLabelValues(string(path)).Observe(time.Since(start).Seconds())
}

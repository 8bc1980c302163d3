package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"med-kg-qa-api/internal/application/nlu"
	appretrieval "med-kg-qa-api/internal/application/retrieval"
	"med-kg-qa-api/internal/domain/entity"
	"med-kg-qa-api/pkg/metrics"
)

const (
	toolNameGraphQuery   = "graph_query"
	toolNameEntitySearch = "entity_search"
	toolNameDocSearch    = "doc_search"
)

// toolError 把工具内部错误编码为 JSON 返回给模型，让模型下一轮自行修正
// 而不是中断整个回合
func toolError(name, msg string) string {
	metrics.AgentToolCallsTotal.WithLabelValues(name, "error").Inc()
	b, _ := json.Marshal(map[string]any{"error": msg})
	return string(b)
}

func toolOK(name string, payload any) string {
	metrics.AgentToolCallsTotal.WithLabelValues(name, "success").Inc()
	b, _ := json.Marshal(payload)
	return string(b)
}

// graphQueryTool 按问题类型查询知识图谱
type graphQueryTool struct {
	graph *appretrieval.GraphRetriever
}

func newGraphQueryTool(graph *appretrieval.GraphRetriever) *graphQueryTool {
	return &graphQueryTool{graph: graph}
}

func (t *graphQueryTool) GetType() string { return toolNameGraphQuery }

func (t *graphQueryTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: toolNameGraphQuery,
		Desc: "查询医疗知识图谱。按问题类型返回实体的一跳关系：疾病的症状、治疗药物、就诊科室，症状反查疾病，或药物信息。",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"entity": {
				Type:     schema.String,
				Desc:     "实体名称，如疾病名、症状名或药物名",
				Required: true,
			},
			"question_type": {
				Type:     schema.String,
				Desc:     "查询类型",
				Required: true,
				Enum:     []string{"symptom", "treatment", "department", "cause", "drug_info"},
			},
		}),
	}, nil
}

func (t *graphQueryTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Entity       string `json:"entity"`
		QuestionType string `json:"question_type"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return toolError(toolNameGraphQuery, fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	name := strings.TrimSpace(args.Entity)
	if name == "" {
		return toolError(toolNameGraphQuery, "entity is required"), nil
	}

	var (
		result *entity.RetrievalResult
		err    error
	)
	switch args.QuestionType {
	case "symptom":
		result, err = t.graph.SymptomsOf(ctx, name)
	case "treatment":
		result, err = t.graph.TreatmentOf(ctx, name)
	case "department":
		result, err = t.graph.DepartmentOf(ctx, name)
	case "cause":
		result, err = t.graph.DiseasesFromSymptom(ctx, name)
	case "drug_info":
		result, err = t.graph.DrugInfo(ctx, name)
	default:
		return toolError(toolNameGraphQuery, fmt.Sprintf("unknown question_type: %s", args.QuestionType)), nil
	}
	if err != nil {
		return toolError(toolNameGraphQuery, "知识图谱暂时不可用"), nil
	}
	if result.Empty() {
		return toolOK(toolNameGraphQuery, map[string]any{
			"entity": name,
			"found":  false,
			"note":   "未找到相关的图谱记录",
		}), nil
	}

	type item struct {
		Label   string `json:"label"`
		Payload string `json:"payload"`
	}
	items := make([]item, 0, len(result.Items))
	for _, it := range result.Items {
		items = append(items, item{Label: it.Label, Payload: it.Payload})
	}
	return toolOK(toolNameGraphQuery, map[string]any{
		"entity": name,
		"found":  true,
		"items":  items,
	}), nil
}

// entitySearchTool 在实体索引中按子串查找实体
type entitySearchTool struct {
	index *nlu.EntityIndex
}

func newEntitySearchTool(index *nlu.EntityIndex) *entitySearchTool {
	return &entitySearchTool{index: index}
}

func (t *entitySearchTool) GetType() string { return toolNameEntitySearch }

func (t *entitySearchTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: toolNameEntitySearch,
		Desc: "在已收录的医疗实体名录（疾病/症状/药物）中查找名称包含给定关键词的实体，用于确认图谱中实际存在的实体名。",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"keyword": {
				Type:     schema.String,
				Desc:     "名称关键词",
				Required: true,
			},
			"limit": {
				Type: schema.Integer,
				Desc: "可选：返回条数上限，默认 10",
			},
		}),
	}, nil
}

func (t *entitySearchTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Keyword string `json:"keyword"`
		Limit   int    `json:"limit,omitempty"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return toolError(toolNameEntitySearch, fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	keyword := strings.TrimSpace(args.Keyword)
	if keyword == "" {
		return toolError(toolNameEntitySearch, "keyword is required"), nil
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	type hit struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	var hits []hit
	for _, typ := range []entity.EntityType{
		entity.EntityTypeDisease, entity.EntityTypeSymptom, entity.EntityTypeDrug,
	} {
		for _, name := range t.index.NamesByType(typ) {
			if len(hits) >= limit {
				break
			}
			if strings.Contains(name, keyword) {
				hits = append(hits, hit{Name: name, Type: string(typ)})
			}
		}
	}
	return toolOK(toolNameEntitySearch, map[string]any{
		"keyword": keyword,
		"hits":    hits,
	}), nil
}

// docSearchTool 文献向量检索
type docSearchTool struct {
	vector *appretrieval.VectorRetriever
	topK   int
}

func newDocSearchTool(vector *appretrieval.VectorRetriever, topK int) *docSearchTool {
	if topK <= 0 {
		topK = 5
	}
	return &docSearchTool{vector: vector, topK: topK}
}

func (t *docSearchTool) GetType() string { return toolNameDocSearch }

func (t *docSearchTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: toolNameDocSearch,
		Desc: "对医学文献知识库做语义检索，返回与查询最相关的文献片段。适合图谱之外的开放性问题。",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "检索查询语句",
				Required: true,
			},
			"top_k": {
				Type: schema.Integer,
				Desc: "可选：返回片段数，默认 5",
			},
		}),
	}, nil
}

func (t *docSearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k,omitempty"`
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return toolError(toolNameDocSearch, fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return toolError(toolNameDocSearch, "query is required"), nil
	}
	topK := args.TopK
	if topK <= 0 {
		topK = t.topK
	}
	if topK > 20 {
		topK = 20
	}

	result := t.vector.Search(ctx, query, topK)
	if result.Empty() {
		return toolOK(toolNameDocSearch, map[string]any{
			"query": query,
			"found": false,
			"note":  "文献检索暂时不可用或无结果",
		}), nil
	}

	type hit struct {
		Title   string  `json:"title,omitempty"`
		Snippet string  `json:"snippet"`
		Score   float32 `json:"score"`
	}
	hits := make([]hit, 0, len(result.Items))
	for _, it := range result.Items {
		hits = append(hits, hit{Title: it.Label, Snippet: it.Payload, Score: it.Score})
	}
	return toolOK(toolNameDocSearch, map[string]any{
		"query": query,
		"found": true,
		"hits":  hits,
	}), nil
}

package entity

// Intent 问句意图
type Intent string

const (
	IntentSymptom    Intent = "symptom"    // 症状查询: 某疾病有哪些症状
	IntentTreatment  Intent = "treatment"  // 治疗查询: 某疾病如何治疗/用什么药
	IntentDepartment Intent = "department" // 科室查询: 某疾病挂哪个科室
	IntentCause      Intent = "cause"      // 病因查询: 某症状可能是什么病/某疾病的成因
	IntentDrugInfo   Intent = "drug_info"  // 药物查询: 某药物的信息
	IntentUnknown    Intent = "unknown"
)

// EntityMention 问句中命中的实体及其位置（按 rune 计）
type EntityMention struct {
	Name  string     `json:"name"`
	Type  EntityType `json:"type"`
	Start int        `json:"start"`
	End   int        `json:"end"`
}

// ParsedQuery 问句解析结果
type ParsedQuery struct {
	Raw      string          `json:"raw"`
	Intent   Intent          `json:"intent"`
	Mentions []EntityMention `json:"mentions"`
}

// PrimaryEntity 返回第一个指定类型的命中实体，没有则返回第一个实体
func (q *ParsedQuery) PrimaryEntity(preferred EntityType) (EntityMention, bool) {
	for _, m := range q.Mentions {
		if m.Type == preferred {
			return m, true
		}
	}
	if len(q.Mentions) > 0 {
		return q.Mentions[0], true
	}
	return EntityMention{}, false
}

// EntitiesOfType 按类型过滤命中实体
func (q *ParsedQuery) EntitiesOfType(t EntityType) []EntityMention {
	var out []EntityMention
	for _, m := range q.Mentions {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Package entity 定义领域实体
package entity

// EntityType 医疗实体类型
type EntityType string

const (
	EntityTypeDisease      EntityType = "Disease"
	EntityTypeSymptom      EntityType = "Symptom"
	EntityTypeDrug         EntityType = "Drug"
	EntityTypeDepartment   EntityType = "Department"
	EntityTypeTreatment    EntityType = "Treatment"
	EntityTypeExamination  EntityType = "Examination"
	EntityTypeComplication EntityType = "Complication"
	EntityTypeRiskFactor   EntityType = "RiskFactor"
)

// AllEntityTypes 返回图谱中全部实体类型
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityTypeDisease,
		EntityTypeSymptom,
		EntityTypeDrug,
		EntityTypeDepartment,
		EntityTypeTreatment,
		EntityTypeExamination,
		EntityTypeComplication,
		EntityTypeRiskFactor,
	}
}

// ParseEntityTypes 将标签名解析为实体类型，未知标签被丢弃
func ParseEntityTypes(labels []string) []EntityType {
	known := make(map[EntityType]struct{}, 8)
	for _, t := range AllEntityTypes() {
		known[t] = struct{}{}
	}
	out := make([]EntityType, 0, len(labels))
	for _, l := range labels {
		t := EntityType(l)
		if _, ok := known[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// MedicalEntity 知识图谱中的医疗实体
type MedicalEntity struct {
	Name string     `json:"name"`
	Type EntityType `json:"type"`
}

// GraphNeighbor 图谱邻居节点
// Hops 为 0 表示来自单跳关系查询，多跳游走时记录实际跳数
type GraphNeighbor struct {
	Name       string            `json:"name"`
	Type       EntityType        `json:"type"`
	Relation   string            `json:"relation"`
	Hops       int               `json:"hops,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// DrugDetail 药物详情
type DrugDetail struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Treats      []string `json:"treats,omitempty"`
}

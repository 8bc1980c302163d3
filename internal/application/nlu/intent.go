package nlu

import (
	"regexp"

	"med-kg-qa-api/internal/domain/entity"
)

// intentRule 意图匹配规则
type intentRule struct {
	intent  entity.Intent
	pattern *regexp.Regexp
}

// defaultIntentRules 默认意图规则表，按优先级排列，首个命中即胜出
// 优先级是显式策略：症状 > 治疗 > 科室 > 病因 > 药物
var defaultIntentRules = []intentRule{
	{entity.IntentSymptom, regexp.MustCompile(`症状|表现|征兆|体征`)},
	{entity.IntentTreatment, regexp.MustCompile(`治疗|怎么治|医治|用什么药|吃什么药|怎么办`)},
	{entity.IntentDepartment, regexp.MustCompile(`科室|挂号|挂什么科|看什么科|哪个科`)},
	{entity.IntentCause, regexp.MustCompile(`什么病|怎么回事|病因|原因|引起|导致`)},
	{entity.IntentDrugInfo, regexp.MustCompile(`药物|作用|功效|副作用|禁忌`)},
}

// IntentClassifier 基于规则表的意图分类器
type IntentClassifier struct {
	rules []intentRule
}

// NewIntentClassifier 创建使用默认规则表的意图分类器
func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{rules: defaultIntentRules}
}

// Classify 分类问句意图，无规则命中时返回 IntentUnknown
// 确定性：相同输入与规则表恒产出相同结果
func (c *IntentClassifier) Classify(text string) entity.Intent {
	for _, rule := range c.rules {
		if rule.pattern.MatchString(text) {
			return rule.intent
		}
	}
	return entity.IntentUnknown
}

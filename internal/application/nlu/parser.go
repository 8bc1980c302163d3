package nlu

import (
	"med-kg-qa-api/internal/domain/entity"
)

// QueryParser 组合实体抽取与意图分类
type QueryParser struct {
	extractor  *EntityExtractor
	classifier *IntentClassifier
}

// NewQueryParser 创建问句解析器
func NewQueryParser(extractor *EntityExtractor, classifier *IntentClassifier) *QueryParser {
	return &QueryParser{
		extractor:  extractor,
		classifier: classifier,
	}
}

// Parse 解析问句，纯组合无副作用
func (p *QueryParser) Parse(text string) *entity.ParsedQuery {
	return &entity.ParsedQuery{
		Raw:      text,
		Intent:   p.classifier.Classify(text),
		Mentions: p.extractor.Extract(text),
	}
}

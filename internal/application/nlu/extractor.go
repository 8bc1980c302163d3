package nlu

import (
	"med-kg-qa-api/internal/domain/entity"
)

// EntityExtractor 基于实体索引的最长匹配扫描器
// 精确匹配，不做模糊或编辑距离匹配：未收录的写法不产出实体
type EntityExtractor struct {
	index *EntityIndex
}

// NewEntityExtractor 创建实体抽取器
func NewEntityExtractor(index *EntityIndex) *EntityExtractor {
	return &EntityExtractor{index: index}
}

// Extract 从文本中抽取实体
// 从左到右逐 rune 扫描：在每个起点尝试以该起点开始的最长实体名；
// 命中后跳过整个匹配区间继续扫描，区间互不重叠；未命中则前进一个 rune。
func (e *EntityExtractor) Extract(text string) []entity.EntityMention {
	runes := []rune(text)
	n := len(runes)
	maxLen := e.index.MaxNameRunes()
	if n == 0 || maxLen == 0 {
		return nil
	}

	var mentions []entity.EntityMention
	for i := 0; i < n; {
		end := i + maxLen
		if end > n {
			end = n
		}
		matched := false
		// 从最长候选开始收缩，保证同前缀实体中最长的胜出
		for j := end; j > i; j-- {
			candidate := string(runes[i:j])
			if t, ok := e.index.TypeOf(candidate); ok {
				mentions = append(mentions, entity.EntityMention{
					Name:  candidate,
					Type:  t,
					Start: i,
					End:   j,
				})
				i = j
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}
	return mentions
}

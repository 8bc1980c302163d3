package nlu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"med-kg-qa-api/internal/domain/entity"
)

func newTestExtractor(t *testing.T, namesByLabel map[entity.EntityType][]string) *EntityExtractor {
	t.Helper()
	idx := NewEntityIndex(&fakeGraphStore{namesByLabel: namesByLabel}, testLabels)
	require.NoError(t, idx.Refresh(context.Background()))
	return NewEntityExtractor(idx)
}

func TestEntityExtractor_LongestMatchWins(t *testing.T) {
	ex := newTestExtractor(t, map[entity.EntityType][]string{
		entity.EntityTypeDisease: {"胰腺炎", "急性胰腺炎"},
	})

	mentions := ex.Extract("急性胰腺炎有什么症状？")

	require.Len(t, mentions, 1)
	assert.Equal(t, "急性胰腺炎", mentions[0].Name)
	assert.Equal(t, entity.EntityTypeDisease, mentions[0].Type)
	assert.Equal(t, 0, mentions[0].Start)
	assert.Equal(t, 5, mentions[0].End)
}

func TestEntityExtractor_NonOverlappingSpans(t *testing.T) {
	ex := newTestExtractor(t, map[entity.EntityType][]string{
		entity.EntityTypeDisease: {"高血压"},
		entity.EntityTypeSymptom: {"头痛"},
	})

	mentions := ex.Extract("高血压会引起头痛吗")

	require.Len(t, mentions, 2)
	assert.Equal(t, "高血压", mentions[0].Name)
	assert.Equal(t, "头痛", mentions[1].Name)
	// 区间互不重叠且按出现顺序排列
	assert.LessOrEqual(t, mentions[0].End, mentions[1].Start)
}

func TestEntityExtractor_NoFuzzyMatch(t *testing.T) {
	ex := newTestExtractor(t, map[entity.EntityType][]string{
		entity.EntityTypeDisease: {"急性胰腺炎"},
	})

	// 变体写法不命中，精确匹配是有意的边界
	assert.Empty(t, ex.Extract("急性的胰腺炎怎么办"))
}

func TestEntityExtractor_EmptyInputs(t *testing.T) {
	ex := newTestExtractor(t, map[entity.EntityType][]string{
		entity.EntityTypeDisease: {"高血压"},
	})

	assert.Empty(t, ex.Extract(""))

	emptyIdx := NewEntityIndex(&fakeGraphStore{}, testLabels)
	emptyEx := NewEntityExtractor(emptyIdx)
	assert.Empty(t, emptyEx.Extract("高血压有什么症状"))
}

func TestEntityExtractor_AdjacentEntities(t *testing.T) {
	ex := newTestExtractor(t, map[entity.EntityType][]string{
		entity.EntityTypeSymptom: {"腹痛", "发热"},
	})

	mentions := ex.Extract("腹痛发热是怎么回事")

	require.Len(t, mentions, 2)
	assert.Equal(t, "腹痛", mentions[0].Name)
	assert.Equal(t, 0, mentions[0].Start)
	assert.Equal(t, 2, mentions[0].End)
	assert.Equal(t, "发热", mentions[1].Name)
	assert.Equal(t, 2, mentions[1].Start)
	assert.Equal(t, 4, mentions[1].End)
}

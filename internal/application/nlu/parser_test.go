package nlu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"med-kg-qa-api/internal/domain/entity"
)

func TestQueryParser_Parse(t *testing.T) {
	ex := newTestExtractor(t, map[entity.EntityType][]string{
		entity.EntityTypeDisease: {"急性胰腺炎"},
	})
	parser := NewQueryParser(ex, NewIntentClassifier())

	q := parser.Parse("急性胰腺炎有什么症状？")

	assert.Equal(t, "急性胰腺炎有什么症状？", q.Raw)
	assert.Equal(t, entity.IntentSymptom, q.Intent)
	require.Len(t, q.Mentions, 1)
	assert.Equal(t, "急性胰腺炎", q.Mentions[0].Name)

	primary, ok := q.PrimaryEntity(entity.EntityTypeDisease)
	require.True(t, ok)
	assert.Equal(t, "急性胰腺炎", primary.Name)
}

func TestQueryParser_NoEntityNoIntent(t *testing.T) {
	ex := newTestExtractor(t, map[entity.EntityType][]string{
		entity.EntityTypeDisease: {"高血压"},
	})
	parser := NewQueryParser(ex, NewIntentClassifier())

	q := parser.Parse("你好")

	assert.Equal(t, entity.IntentUnknown, q.Intent)
	assert.Empty(t, q.Mentions)

	_, ok := q.PrimaryEntity(entity.EntityTypeDisease)
	assert.False(t, ok)
}

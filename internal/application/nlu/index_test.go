package nlu

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"med-kg-qa-api/internal/domain/entity"
	apperrors "med-kg-qa-api/pkg/errors"
)

// fakeGraphStore 内存图数据库桩
type fakeGraphStore struct {
	namesByLabel map[entity.EntityType][]string
	listErr      error
	listCalls    int
}

func (f *fakeGraphStore) ListEntityNames(ctx context.Context, label entity.EntityType) ([]string, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.namesByLabel[label], nil
}

func (f *fakeGraphStore) Neighbors(ctx context.Context, name string, sourceLabel entity.EntityType, relation string, targetLabel entity.EntityType) ([]entity.GraphNeighbor, error) {
	return nil, nil
}

func (f *fakeGraphStore) ReverseNeighbors(ctx context.Context, name string, targetLabel entity.EntityType, relation string, sourceLabel entity.EntityType) ([]entity.GraphNeighbor, error) {
	return nil, nil
}

func (f *fakeGraphStore) MultiHopNeighbors(ctx context.Context, name string, label entity.EntityType, maxHops, limit int) ([]entity.GraphNeighbor, error) {
	return nil, nil
}

func (f *fakeGraphStore) EntityDescription(ctx context.Context, name string, label entity.EntityType) (string, error) {
	return "", nil
}

func (f *fakeGraphStore) Ping(ctx context.Context) error { return nil }

var testLabels = []entity.EntityType{
	entity.EntityTypeDisease,
	entity.EntityTypeSymptom,
	entity.EntityTypeDrug,
}

func TestEntityIndex_Refresh(t *testing.T) {
	store := &fakeGraphStore{
		namesByLabel: map[entity.EntityType][]string{
			entity.EntityTypeDisease: {"高血压", "急性胰腺炎"},
			entity.EntityTypeSymptom: {"头痛", "腹痛"},
			entity.EntityTypeDrug:    {"阿司匹林"},
		},
	}
	idx := NewEntityIndex(store, testLabels)

	require.NoError(t, idx.Refresh(context.Background()))

	assert.Equal(t, 5, idx.Size())
	assert.True(t, idx.Contains("高血压"))
	assert.True(t, idx.Contains("阿司匹林"))
	assert.False(t, idx.Contains("不存在的实体"))

	typ, ok := idx.TypeOf("急性胰腺炎")
	require.True(t, ok)
	assert.Equal(t, entity.EntityTypeDisease, typ)

	// 最长实体名是 "急性胰腺炎" 5 个 rune
	assert.Equal(t, 5, idx.MaxNameRunes())
	assert.ElementsMatch(t, []string{"头痛", "腹痛"}, idx.NamesByType(entity.EntityTypeSymptom))
}

func TestEntityIndex_RefreshFailureKeepsSnapshot(t *testing.T) {
	store := &fakeGraphStore{
		namesByLabel: map[entity.EntityType][]string{
			entity.EntityTypeDisease: {"高血压"},
		},
	}
	idx := NewEntityIndex(store, testLabels)
	require.NoError(t, idx.Refresh(context.Background()))
	require.True(t, idx.Contains("高血压"))

	store.listErr = errors.New("connection refused")
	err := idx.Refresh(context.Background())

	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeEntityIndexStale, appErr.Code)
	// 旧快照仍然可读
	assert.True(t, idx.Contains("高血压"))
}

func TestEntityIndex_RefreshIdempotent(t *testing.T) {
	store := &fakeGraphStore{
		namesByLabel: map[entity.EntityType][]string{
			entity.EntityTypeDisease: {"高血压", "糖尿病"},
		},
	}
	idx := NewEntityIndex(store, testLabels)

	require.NoError(t, idx.Refresh(context.Background()))
	before := idx.Size()
	require.NoError(t, idx.Refresh(context.Background()))

	assert.Equal(t, before, idx.Size())
	assert.True(t, idx.Contains("高血压"))
	assert.True(t, idx.Contains("糖尿病"))
}

func TestEntityIndex_DuplicateNameFirstLabelWins(t *testing.T) {
	store := &fakeGraphStore{
		namesByLabel: map[entity.EntityType][]string{
			entity.EntityTypeDisease: {"发热"},
			entity.EntityTypeSymptom: {"发热"},
		},
	}
	idx := NewEntityIndex(store, testLabels)
	require.NoError(t, idx.Refresh(context.Background()))

	typ, ok := idx.TypeOf("发热")
	require.True(t, ok)
	assert.Equal(t, entity.EntityTypeDisease, typ)
	assert.Equal(t, 1, idx.Size())
}

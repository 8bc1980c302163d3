package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"med-kg-qa-api/internal/domain/entity"
	apperrors "med-kg-qa-api/pkg/errors"
)

// fakeGraphStore 可编程的图数据库桩
type fakeGraphStore struct {
	neighbors        map[string][]entity.GraphNeighbor
	reverseNeighbors map[string][]entity.GraphNeighbor
	descriptions     map[string]string
	multiHop         []entity.GraphNeighbor
	gotMaxHops       int
	err              error
}

func (f *fakeGraphStore) ListEntityNames(ctx context.Context, label entity.EntityType) ([]string, error) {
	return nil, f.err
}

func (f *fakeGraphStore) Neighbors(ctx context.Context, name string, sourceLabel entity.EntityType, relation string, targetLabel entity.EntityType) ([]entity.GraphNeighbor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.neighbors[name+"/"+relation], nil
}

func (f *fakeGraphStore) ReverseNeighbors(ctx context.Context, name string, targetLabel entity.EntityType, relation string, sourceLabel entity.EntityType) ([]entity.GraphNeighbor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reverseNeighbors[name+"/"+relation], nil
}

func (f *fakeGraphStore) MultiHopNeighbors(ctx context.Context, name string, label entity.EntityType, maxHops, limit int) ([]entity.GraphNeighbor, error) {
	f.gotMaxHops = maxHops
	if f.err != nil {
		return nil, f.err
	}
	return f.multiHop, nil
}

func (f *fakeGraphStore) EntityDescription(ctx context.Context, name string, label entity.EntityType) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.descriptions[name], nil
}

func (f *fakeGraphStore) Ping(ctx context.Context) error { return f.err }

func TestGraphRetriever_SymptomsOf(t *testing.T) {
	store := &fakeGraphStore{
		neighbors: map[string][]entity.GraphNeighbor{
			"急性胰腺炎/" + RelHasSymptom: {
				{Name: "腹痛", Type: entity.EntityTypeSymptom, Relation: RelHasSymptom},
				{Name: "发热", Type: entity.EntityTypeSymptom, Relation: RelHasSymptom},
				{Name: "恶心", Type: entity.EntityTypeSymptom, Relation: RelHasSymptom},
			},
		},
	}
	g := NewGraphRetriever(store, 1)

	result, err := g.SymptomsOf(context.Background(), "急性胰腺炎")

	require.NoError(t, err)
	assert.Equal(t, entity.SourceGraph, result.Source)
	assert.Equal(t, 1.0, result.Confidence)
	require.Len(t, result.Items, 3)
	assert.Equal(t, "腹痛", result.Items[0].Payload)
	assert.Equal(t, "发热", result.Items[1].Payload)
	assert.Equal(t, "恶心", result.Items[2].Payload)
}

func TestGraphRetriever_EmptyTraversalIsSuccessful(t *testing.T) {
	g := NewGraphRetriever(&fakeGraphStore{}, 1)

	result, err := g.SymptomsOf(context.Background(), "罕见病X")

	// 实体存在但无关系：成功的空结果，置信度仍为 1.0
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Equal(t, 1.0, result.Confidence)
}

func TestGraphRetriever_StoreFailureIsDistinguishable(t *testing.T) {
	g := NewGraphRetriever(&fakeGraphStore{err: errors.New("connection refused")}, 1)

	_, err := g.SymptomsOf(context.Background(), "高血压")

	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeRetrievalUnavailable, appErr.Code)
}

func TestGraphRetriever_TreatmentOfMergesDrugsAndTreatments(t *testing.T) {
	store := &fakeGraphStore{
		neighbors: map[string][]entity.GraphNeighbor{
			"糖尿病/" + RelTreatedBy: {
				{Name: "饮食控制", Type: entity.EntityTypeTreatment},
			},
		},
		reverseNeighbors: map[string][]entity.GraphNeighbor{
			"糖尿病/" + RelTreats: {
				{Name: "二甲双胍", Type: entity.EntityTypeDrug},
			},
		},
	}
	g := NewGraphRetriever(store, 1)

	result, err := g.TreatmentOf(context.Background(), "糖尿病")

	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "饮食控制", result.Items[0].Payload)
	assert.Equal(t, "二甲双胍", result.Items[1].Payload)
}

func TestGraphRetriever_DiseasesFromSymptom(t *testing.T) {
	store := &fakeGraphStore{
		reverseNeighbors: map[string][]entity.GraphNeighbor{
			"头痛/" + RelHasSymptom: {
				{Name: "高血压", Type: entity.EntityTypeDisease},
				{Name: "偏头痛", Type: entity.EntityTypeDisease},
			},
		},
	}
	g := NewGraphRetriever(store, 1)

	result, err := g.DiseasesFromSymptom(context.Background(), "头痛")

	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, string(entity.EntityTypeDisease), result.Items[0].Label)
}

func TestGraphRetriever_NeighborhoodOfScoresDecayWithHops(t *testing.T) {
	store := &fakeGraphStore{
		multiHop: []entity.GraphNeighbor{
			{Name: "头晕", Type: entity.EntityTypeSymptom, Relation: RelHasSymptom, Hops: 1},
			{Name: "偏头痛", Type: entity.EntityTypeDisease, Relation: RelHasSymptom, Hops: 2},
			{Name: "布洛芬", Type: entity.EntityTypeDrug, Relation: RelTreats, Hops: 3},
		},
	}
	g := NewGraphRetriever(store, 3)

	result, err := g.NeighborhoodOf(context.Background(), "高血压", entity.EntityTypeDisease)

	require.NoError(t, err)
	require.Len(t, result.Items, 3)
	assert.InDelta(t, 1.0/1.3, result.Items[0].Score, 1e-6)
	assert.InDelta(t, 1.0/1.6, result.Items[1].Score, 1e-6)
	assert.InDelta(t, 1.0/1.9, result.Items[2].Score, 1e-6)
	// 多跳邻域不是精确命中，置信度取最近邻居的分数
	assert.InDelta(t, 1.0/1.3, result.Confidence, 1e-6)
	assert.Less(t, result.Confidence, 1.0)
}

func TestGraphRetriever_NeighborhoodOfHonorsConfiguredDepth(t *testing.T) {
	store := &fakeGraphStore{}
	g := NewGraphRetriever(store, 2)

	_, err := g.NeighborhoodOf(context.Background(), "高血压", entity.EntityTypeDisease)

	require.NoError(t, err)
	assert.Equal(t, 2, store.gotMaxHops)

	// 未配置时按默认深度游走
	store = &fakeGraphStore{}
	g = NewGraphRetriever(store, 0)
	_, err = g.NeighborhoodOf(context.Background(), "高血压", entity.EntityTypeDisease)
	require.NoError(t, err)
	assert.Equal(t, 3, store.gotMaxHops)
}

func TestGraphRetriever_NeighborhoodOfStoreFailureIsDistinguishable(t *testing.T) {
	g := NewGraphRetriever(&fakeGraphStore{err: errors.New("connection refused")}, 3)

	_, err := g.NeighborhoodOf(context.Background(), "高血压", entity.EntityTypeDisease)

	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeRetrievalUnavailable, appErr.Code)
}

func TestGraphRetriever_DrugInfo(t *testing.T) {
	store := &fakeGraphStore{
		descriptions: map[string]string{
			"阿司匹林": "解热镇痛药，常用于抗血小板治疗",
		},
		neighbors: map[string][]entity.GraphNeighbor{
			"阿司匹林/" + RelTreats: {
				{Name: "冠心病", Type: entity.EntityTypeDisease},
			},
		},
	}
	g := NewGraphRetriever(store, 1)

	result, err := g.DrugInfo(context.Background(), "阿司匹林")

	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "description", result.Items[0].Label)
	assert.Equal(t, "冠心病", result.Items[1].Payload)
}

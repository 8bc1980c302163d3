package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"med-kg-qa-api/internal/application/nlu"
	"med-kg-qa-api/internal/domain/entity"
	"med-kg-qa-api/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGraphStore struct {
	namesByLabel map[entity.EntityType][]string
}

func (s *fakeGraphStore) ListEntityNames(_ context.Context, label entity.EntityType) ([]string, error) {
	return s.namesByLabel[label], nil
}

func (s *fakeGraphStore) Neighbors(context.Context, string, entity.EntityType, string, entity.EntityType) ([]entity.GraphNeighbor, error) {
	return nil, nil
}

func (s *fakeGraphStore) ReverseNeighbors(context.Context, string, entity.EntityType, string, entity.EntityType) ([]entity.GraphNeighbor, error) {
	return nil, nil
}

func (s *fakeGraphStore) MultiHopNeighbors(context.Context, string, entity.EntityType, int, int) ([]entity.GraphNeighbor, error) {
	return nil, nil
}

func (s *fakeGraphStore) EntityDescription(context.Context, string, entity.EntityType) (string, error) {
	return "", nil
}

func (s *fakeGraphStore) Ping(context.Context) error { return nil }

func TestHealthReadyReportsMissingDependencies(t *testing.T) {
	h := NewHealthHandler(nil, nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

	h.Ready(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp struct {
		Status string `json:"status"`
		Checks map[string]struct {
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "missing", resp.Checks["neo4j"].Status)
	assert.Equal(t, "missing", resp.Checks["redis"].Status)
}

func TestIndexStatsAfterRefresh(t *testing.T) {
	store := &fakeGraphStore{namesByLabel: map[entity.EntityType][]string{
		entity.EntityTypeDisease: {"高血压", "糖尿病"},
		entity.EntityTypeSymptom: {"头晕"},
	}}
	labels := []entity.EntityType{entity.EntityTypeDisease, entity.EntityTypeSymptom}
	index := nlu.NewEntityIndex(store, labels)
	require.NoError(t, index.Refresh(context.Background()))

	h := NewIndexHandler(index, labels, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/index/stats", nil)

	h.Stats(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response[dto.IndexStatsResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Data.Size)
	assert.Equal(t, 3, resp.Data.MaxNameLen)
	assert.NotEmpty(t, resp.Data.BuiltAt)
	assert.Equal(t, 2, resp.Data.CountByType["Disease"])
	assert.Equal(t, 1, resp.Data.CountByType["Symptom"])
}

func TestIndexRefreshRebuildsSnapshot(t *testing.T) {
	store := &fakeGraphStore{namesByLabel: map[entity.EntityType][]string{
		entity.EntityTypeDrug: {"硝苯地平"},
	}}
	labels := []entity.EntityType{entity.EntityTypeDrug}
	index := nlu.NewEntityIndex(store, labels)

	h := NewIndexHandler(index, labels, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/index/refresh", strings.NewReader("{}"))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Refresh(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response[dto.IndexStatsResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Size)
}

func TestAgentAskRejectsInvalidBody(t *testing.T) {
	h := NewAgentHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/qa/agent",
		strings.NewReader(`{"session_id": "s1"}`)) // 缺少 question
	c.Request.Header.Set("Content-Type", "application/json")

	h.Ask(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

package dto

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"med-kg-qa-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAppErrorSessionConflictMapsTo409(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	AppError(c, errors.ErrSessionConflict)

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(errors.CodeSessionConflict), resp.Error.ErrorCode)
	assert.True(t, resp.Error.Retryable)
}

func TestAppErrorRetrievalUnavailableMapsTo503(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	AppError(c, errors.New(errors.CodeRetrievalUnavailable, "graph store unreachable"))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.False(t, resp.Error.Retryable)
}

func TestAppErrorUnknownErrorMapsTo500(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	AppError(c, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

package util

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/showcase/backend/internal/errors"
	"github.com/zfogg/showcase/backend/internal/ledger"
	"github.com/zfogg/showcase/backend/internal/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", os.DevNull)
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func TestParseBoundedInt(t *testing.T) {
	v, err := ParseBoundedInt("", 50, 1, 500)
	require.NoError(t, err)
	assert.Equal(t, 50, v)

	v, err = ParseBoundedInt("10", 50, 1, 500)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = ParseBoundedInt("0", 50, 1, 500)
	assert.Error(t, err)
	_, err = ParseBoundedInt("501", 50, 1, 500)
	assert.Error(t, err)
	_, err = ParseBoundedInt("ten", 50, 1, 500)
	assert.Error(t, err)
}

func TestRespondWithAPIErrorSetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithAPIError(c, errors.FromRejection("view_cooldown", "View already counted.", 1500*time.Millisecond))

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMITED", body.Code)
	assert.Equal(t, "view_cooldown", body.Reason)
	assert.Equal(t, 2, body.RetryAfter)
}

func TestHandleStoreError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	assert.False(t, HandleStoreError(c, nil, "load"))

	err := fmt.Errorf("%w: append: connection refused", ledger.ErrUnavailable)
	assert.True(t, HandleStoreError(c, err, "append"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	assert.True(t, HandleStoreError(c, fmt.Errorf("boom"), "load"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetUserIDFromContext(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	_, ok := GetUserIDFromContext(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c.Set(UserIDKey, "user-1")
	id, ok := GetUserIDFromContext(c)
	assert.True(t, ok)
	assert.Equal(t, "user-1", id)
}

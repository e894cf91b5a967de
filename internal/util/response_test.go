package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"oral_eval_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Log = zap.NewNop()
}

func TestBusinessErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{ErrTokenNotFound, http.StatusNotFound},
		{ErrAttemptNotFound, http.StatusNotFound},
		{ErrAssignmentNotFound, http.StatusNotFound},
		{ErrUserNotFound, http.StatusNotFound},
		{ErrTokenExpired, http.StatusGone},
		{ErrTokenUsed, http.StatusGone},
		{ErrTokenRevoked, http.StatusGone},
		{ErrQuotaConflict, http.StatusConflict},
		{ErrSessionBusy, http.StatusConflict},
		{ErrAttemptNotTerminal, http.StatusUnprocessableEntity},
		{ErrInvalidTransition, http.StatusUnprocessableEntity},
		{ErrResetNotAllowed, http.StatusUnprocessableEntity},
		{ErrResetCapReached, http.StatusUnprocessableEntity},
		{ErrMalformedResult, http.StatusUnprocessableEntity},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrPermissionDenied, http.StatusForbidden},
		{errors.New("database on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			BusinessError(c, tt.err)

			assert.Equal(t, tt.code, w.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestSuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Success(c, gin.H{"attempt_id": 9})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "success", resp.Message)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 9, data["attempt_id"])
}

func TestWrappedBusinessErrorStillMaps(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	BusinessError(c, fmt.Errorf("redeem: %w", ErrTokenUsed))

	assert.Equal(t, http.StatusGone, w.Code)
}

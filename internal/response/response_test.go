package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(zerolog.Nop()))
	r.GET("/ok", func(c *gin.Context) {
		SuccessWithPagination(c, http.StatusOK, []int{1, 2}, NewPagination(2, 2, 5))
	})
	r.GET("/denied", func(c *gin.Context) {
		AbortFail(c, http.StatusForbidden, ErrPermissionDenied)
	}, func(c *gin.Context) {
		t.Error("handler after AbortFail ran")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "req-1", body.Metadata.RequestID)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
	require.NotNil(t, body.Pagination)
	assert.Equal(t, 3, body.Pagination.TotalPages)
	assert.Nil(t, body.Error)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/denied", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 200))
	r.ServeHTTP(w, req)

	body = Response{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, ErrPermissionDenied, body.Error.Code)
	assert.Len(t, body.Metadata.RequestID, 36)
}

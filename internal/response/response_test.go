package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		Fail(c, http.StatusConflict, ErrAttemptsExhausted)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, ErrAttemptsExhausted, body.Error.Code)
	assert.Equal(t, GetMessage(ErrAttemptsExhausted), body.Error.Message)
	assert.Equal(t, "req-1", body.Metadata.RequestID)
	assert.Nil(t, body.Data)
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 21)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, int64(21), p.TotalItems)

	assert.Equal(t, 0, NewPagination(1, 10, 0).TotalPages)
}

func TestEveryQuizCodeHasMessage(t *testing.T) {
	for _, code := range []ErrCode{
		ErrAttemptsExhausted, ErrSessionNotActive, ErrSessionAlreadyActive,
		ErrInvalidChoice, ErrQuestionOutOfRange, ErrIncompleteAnswers, ErrEmptyAssessment,
	} {
		assert.NotEqual(t, GetMessage("nope"), GetMessage(code), code)
	}
}

func TestRequestIDMiddlewareRejectsUnsafeIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, bad := range []string{"", "has space", strings.Repeat("x", 65), "tab\there"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if bad != "" {
			req.Header.Set("X-Request-ID", bad)
		}
		r.ServeHTTP(w, req)

		got := w.Header().Get("X-Request-ID")
		assert.NotEqual(t, bad, got)
		assert.Len(t, got, 36, "falls back to a generated uuid")
	}
}

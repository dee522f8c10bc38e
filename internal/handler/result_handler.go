package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ResultExporter reads persisted attempts for staff.
type ResultExporter interface {
	List(ctx context.Context, assessmentID uuid.UUID, page, perPage int) ([]model.Attempt, int64, error)
	Export(ctx context.Context, assessmentID uuid.UUID) ([]byte, error)
}

// ResultHandler handles staff result endpoints.
type ResultHandler struct {
	results ResultExporter
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(results ResultExporter) *ResultHandler {
	return &ResultHandler{results: results}
}

// ListAttempts godoc
// GET /api/v1/staff/assessments/:id/attempts?page=1&per_page=20
func (h *ResultHandler) ListAttempts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	attempts, total, err := h.results.List(c.Request.Context(), id, page, perPage)
	if err != nil {
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, attempts, response.NewPagination(page, perPage, total))
}

// ExportAttempts godoc
// GET /api/v1/staff/assessments/:id/attempts/export
// Streams an xlsx workbook with one row per attempt.
func (h *ResultHandler) ExportAttempts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	data, err := h.results.Export(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="attempts-%s.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, data)
}

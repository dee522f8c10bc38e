package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/quiz"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

// QuizSessions is the live session API used by the handlers.
type QuizSessions interface {
	Start(ctx context.Context, studentID, classID int, assessmentID uuid.UUID) (quiz.SessionSnapshot, error)
	SelectAnswer(ctx context.Context, studentID int, questionID, choiceID string) error
	Navigate(studentID, index int) error
	Submit(studentID int, force bool) (quiz.Result, error)
	State(ctx context.Context, studentID int) (quiz.SessionSnapshot, error)
	Abandon(ctx context.Context, studentID int) error
	Subscribe(studentID int) (<-chan service.QuizEvent, func())
}

// AssessmentCatalog is the read side of the catalog used by students.
type AssessmentCatalog interface {
	ListForStudent(ctx context.Context, studentID, classID int) ([]service.LobbyAssessment, error)
	StudentPaper(ctx context.Context, id uuid.UUID) (*model.AssessmentPaper, error)
}

// QuizHandler handles student-facing quiz endpoints.
type QuizHandler struct {
	sessions QuizSessions
	catalog  AssessmentCatalog
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(sessions QuizSessions, catalog AssessmentCatalog) *QuizHandler {
	return &QuizHandler{sessions: sessions, catalog: catalog}
}

// ListAssessments godoc
// GET /api/v1/student/assessments
// Returns assessments open to the student's class with attempt usage.
func (h *QuizHandler) ListAssessments(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	lobby, err := h.catalog.ListForStudent(c.Request.Context(), claims.UserID, claims.ClassID)
	if err != nil {
		failQuiz(c, err)
		return
	}
	if lobby == nil {
		lobby = []service.LobbyAssessment{}
	}

	response.Success(c, http.StatusOK, gin.H{"assessments": lobby})
}

// GetPaper godoc
// GET /api/v1/student/assessments/:id/paper
// Returns question content without correctness flags.
// Requires a running session on this assessment.
func (h *QuizHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.sessions.State(c.Request.Context(), claims.UserID)
	if err != nil || state.Status != quiz.StatusActive || state.AssessmentID != id.String() {
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
		return
	}

	paper, err := h.catalog.StudentPaper(c.Request.Context(), id)
	if err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// Start godoc
// POST /api/v1/student/assessments/:id/start
// Opens a timed session on the assessment.
func (h *QuizHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	snap, err := h.sessions.Start(c.Request.Context(), claims.UserID, claims.ClassID, id)
	if err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusCreated, snap)
}

// State godoc
// GET /api/v1/student/quiz/state
func (h *QuizHandler) State(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	snap, err := h.sessions.State(c.Request.Context(), claims.UserID)
	if err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, snap)
}

// SelectAnswer godoc
// PUT /api/v1/student/quiz/answers
func (h *QuizHandler) SelectAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessions.SelectAnswer(c.Request.Context(), claims.UserID, req.QuestionID, req.ChoiceID); err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// Navigate godoc
// PUT /api/v1/student/quiz/position
func (h *QuizHandler) Navigate(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessions.Navigate(claims.UserID, *req.Index); err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"current_question_index": *req.Index})
}

// Submit godoc
// POST /api/v1/student/quiz/submit
// Finalizes the session. Body {"force": true} submits with unanswered questions.
func (h *QuizHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	res, err := h.sessions.Submit(claims.UserID, req.Force)
	if err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// Abandon godoc
// DELETE /api/v1/student/quiz
// Drops the running session without spending an attempt.
func (h *QuizHandler) Abandon(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.sessions.Abandon(c.Request.Context(), claims.UserID); err != nil {
		failQuiz(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": quiz.StatusIdle})
}

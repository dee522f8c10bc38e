package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/quiz"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// quizErrors maps domain errors to HTTP status and API code. Checked in order.
var quizErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{quiz.ErrAttemptsExhausted, http.StatusConflict, response.ErrAttemptsExhausted},
	{quiz.ErrSessionNotActive, http.StatusConflict, response.ErrSessionNotActive},
	{quiz.ErrSessionAlreadyActive, http.StatusConflict, response.ErrSessionAlreadyActive},
	{quiz.ErrInvalidChoice, http.StatusUnprocessableEntity, response.ErrInvalidChoice},
	{quiz.ErrQuestionIndexOutOfRange, http.StatusUnprocessableEntity, response.ErrQuestionOutOfRange},
	{quiz.ErrIncompleteAnswers, http.StatusUnprocessableEntity, response.ErrIncompleteAnswers},
	{quiz.ErrEmptyAssessment, http.StatusUnprocessableEntity, response.ErrEmptyAssessment},
	{service.ErrAssessmentNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrAssessmentNotPublished, http.StatusForbidden, response.ErrAssessmentNotAvailable},
	{service.ErrNotEligible, http.StatusForbidden, response.ErrAssessmentNotAvailable},
}

func classifyQuizError(err error) (int, response.ErrCode) {
	for _, m := range quizErrors {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

func failQuiz(c *gin.Context, err error) {
	status, code := classifyQuizError(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.Fail(c, status, code)
}

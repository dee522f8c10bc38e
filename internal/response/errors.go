package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrStaffAccessOnly   ErrCode = "STAFF_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Quiz ──────────────────────────────────────────────────────────
	ErrAssessmentNotAvailable ErrCode = "ASSESSMENT_NOT_AVAILABLE"
	ErrAttemptsExhausted      ErrCode = "ATTEMPTS_EXHAUSTED"
	ErrSessionNotActive       ErrCode = "SESSION_NOT_ACTIVE"
	ErrSessionAlreadyActive   ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrInvalidChoice          ErrCode = "INVALID_CHOICE"
	ErrQuestionOutOfRange     ErrCode = "QUESTION_INDEX_OUT_OF_RANGE"
	ErrIncompleteAnswers      ErrCode = "INCOMPLETE_ANSWERS"
	ErrEmptyAssessment        ErrCode = "EMPTY_ASSESSMENT"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrStaffAccessOnly:
		return "This resource is restricted to staff."

	case ErrValidation:
		return "The request contains invalid fields."
	case ErrInvalidID:
		return "The given ID is not valid."
	case ErrInvalidPayload:
		return "The request body could not be read."

	case ErrNotFound:
		return "The requested resource was not found."

	case ErrAssessmentNotAvailable:
		return "This assessment is not available."
	case ErrAttemptsExhausted:
		return "You have no attempts left for this assessment."
	case ErrSessionNotActive:
		return "There is no active quiz session."
	case ErrSessionAlreadyActive:
		return "A quiz session is already running."
	case ErrInvalidChoice:
		return "That choice does not belong to the question."
	case ErrQuestionOutOfRange:
		return "The question index is out of range."
	case ErrIncompleteAnswers:
		return "Answer every question before submitting."
	case ErrEmptyAssessment:
		return "This assessment has no questions."

	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."

	case ErrInternal:
		return "An internal error occurred."
	default:
		return "An unknown error occurred."
	}
}

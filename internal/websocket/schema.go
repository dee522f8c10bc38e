package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect   Action = "select"
	ActionNavigate Action = "navigate"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// ClientMessage carries any client action. Fields unused by an action stay empty.
type ClientMessage struct {
	Action     Action `json:"action"`
	QuestionID string `json:"question_id,omitempty"`
	ChoiceID   string `json:"choice_id,omitempty"`
	Index      *int   `json:"index,omitempty"`
	Force      bool   `json:"force,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick        Event = "tick"
	EventStatus      Event = "status"
	EventResult      Event = "result"
	EventReportError Event = "report_error"
	EventAck         Event = "ack"
	EventError       Event = "error"
	EventPong        Event = "pong"
)

type TickEvent struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

type StatusEvent struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

// ResultEvent mirrors quiz.Result so this package stays free of domain imports.
type ResultEvent struct {
	Event            Event `json:"event"`
	ScorePercent     int   `json:"score_percent"`
	CorrectCount     int   `json:"correct_count"`
	IncorrectCount   int   `json:"incorrect_count"`
	TotalQuestions   int   `json:"total_questions"`
	TimeSpentSeconds int   `json:"time_spent_seconds"`
}

type AckResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

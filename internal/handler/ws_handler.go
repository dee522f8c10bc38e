package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	ws "github.com/stemsi/exstem-quiz/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a student's live quiz session.
type WSHandler struct {
	sessions QuizSessions
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions QuizSessions, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log,
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// QuizStream godoc
// WS /ws/v1/student/quiz/stream
// Pushes countdown ticks, status changes and the final result.
// Accepts select, navigate, submit and ping actions.
func (h *WSHandler) QuizStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	studentID := claims.UserID

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.With().Int("student_id", studentID).Logger()
	out := ws.NewWriter(conn)

	events, cancel := h.sessions.Subscribe(studentID)
	defer cancel()

	if snap, err := h.sessions.State(c.Request.Context(), studentID); err == nil {
		_ = out.WriteTyped(ws.StatusEvent{Event: ws.EventStatus, Status: snap.Status.String()})
	}

	done := make(chan struct{})
	defer close(done)
	go h.pump(out, events, done, log)

	ctx := c.Request.Context()
	for {
		var raw json.RawMessage
		if err := ws.ReadJSON(conn, &raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg ws.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			_ = out.WriteError(string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
			continue
		}

		if err := h.dispatch(ctx, out, studentID, msg); err != nil {
			_, code := classifyQuizError(err)
			if code == response.ErrInternal {
				log.Error().Err(err).Str("action", string(msg.Action)).Msg("WebSocket action failed")
			}
			_ = out.WriteError(string(code), response.GetMessage(code))
		}
	}
}

func (h *WSHandler) dispatch(ctx context.Context, out *ws.Writer, studentID int, msg ws.ClientMessage) error {
	switch msg.Action {
	case ws.ActionPing:
		return out.WriteTyped(ws.PongResponse{Event: ws.EventPong})

	case ws.ActionSelect:
		if msg.QuestionID == "" || msg.ChoiceID == "" {
			return out.WriteError(string(response.ErrValidation), "question_id and choice_id are required")
		}
		if err := h.sessions.SelectAnswer(ctx, studentID, msg.QuestionID, msg.ChoiceID); err != nil {
			return err
		}

	case ws.ActionNavigate:
		if msg.Index == nil {
			return out.WriteError(string(response.ErrValidation), "index is required")
		}
		if err := h.sessions.Navigate(studentID, *msg.Index); err != nil {
			return err
		}

	case ws.ActionSubmit:
		// The result itself arrives through the event stream.
		if _, err := h.sessions.Submit(studentID, msg.Force); err != nil {
			return err
		}

	default:
		return out.WriteError(string(response.ErrInvalidPayload), "unknown action")
	}

	return out.WriteTyped(ws.AckResponse{Event: ws.EventAck, Action: msg.Action})
}

// pump forwards session events until the subscription closes or the socket goes away.
func (h *WSHandler) pump(out *ws.Writer, events <-chan service.QuizEvent, done <-chan struct{}, log zerolog.Logger) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type == service.QuizEventReportError {
				log.Error().Err(ev.Err).Msg("Attempt could not be recorded")
			}
			if err := out.WriteTyped(toWireEvent(ev)); err != nil {
				log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		}
	}
}

func toWireEvent(ev service.QuizEvent) any {
	switch ev.Type {
	case service.QuizEventTick:
		return ws.TickEvent{Event: ws.EventTick, RemainingSeconds: ev.RemainingSeconds}
	case service.QuizEventResult:
		out := ws.ResultEvent{Event: ws.EventResult}
		if ev.Result != nil {
			out.ScorePercent = ev.Result.ScorePercent
			out.CorrectCount = ev.Result.CorrectCount
			out.IncorrectCount = ev.Result.IncorrectCount
			out.TotalQuestions = ev.Result.TotalQuestions
			out.TimeSpentSeconds = ev.Result.TimeSpentSeconds
		}
		return out
	case service.QuizEventReportError:
		return ws.ErrorResponse{
			Event: ws.EventReportError,
			Code:  string(response.ErrInternal),
			Error: response.GetMessage(response.ErrInternal),
		}
	default:
		return ws.StatusEvent{Event: ws.EventStatus, Status: ev.Status.String()}
	}
}

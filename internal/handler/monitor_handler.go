package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/response"
)

const monitorKeepAlive = 30 * time.Second

// MonitorHandler streams finalized attempts of one assessment to staff.
type MonitorHandler struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb *redis.Client, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb: rdb,
		log: log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorAssessment godoc
// GET /api/v1/staff/assessments/:id/monitor
//
// Server-sent events: one "ready" event once subscribed, then one "attempt"
// event per finalized attempt.
func (h *MonitorHandler) MonitorAssessment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	ctx := c.Request.Context()
	pubsub := h.rdb.Subscribe(ctx, config.CacheKey.AssessmentMonitorChannel(id.String()))
	defer pubsub.Close()

	// Wait for the subscription so no event published after "ready" is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		h.log.Error().Err(err).Str("assessment_id", id.String()).Msg("Monitor subscribe failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	c.SSEvent("ready", gin.H{"assessment_id": id.String()})
	c.Writer.Flush()

	keepAlive := time.NewTicker(monitorKeepAlive)
	defer keepAlive.Stop()

	h.log.Info().Str("assessment_id", id.String()).Msg("Staff attached to monitor")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.log.Info().Str("assessment_id", id.String()).Msg("Staff detached from monitor")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payloads are already JSON-encoded MonitorEvents.
			c.SSEvent("attempt", msg.Payload)
			c.Writer.Flush()
		case <-keepAlive.C:
			_, _ = c.Writer.Write([]byte(": ping\n\n"))
			c.Writer.Flush()
		}
	}
}

package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"smartlift_monitor/internal/models"
	"smartlift_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	simBuffer        = 32
	sseKeepAlive     = 15 * time.Second
	sseEventSnap     = "snapshot"
	sseEventDiff     = "diff"
	sseKeepAliveLine = ": keepalive\n\n"
)

// simPayload matches what the stream client expects from the upstream feed.
type simPayload struct {
	Type  string                    `json:"type"`
	Lifts map[string]models.RawLift `json:"lifts"`
}

// @Summary      Simulated status stream
// @Description  Server-sent events: one snapshot event with every lift, then diff events carrying only changed lifts.
// @Tags         simulator
// @Produce      text/event-stream
// @Param        lift_id  query  string  false  "Comma-separated lift ids to follow"
// @Router       /sim/stream [get]
func (h *Handler) simStream(c *gin.Context) {
	filter := parseLiftIDs(c)

	updates, cancel := h.services.Simulator.Subscribe(simBuffer)
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent(sseEventSnap, simPayload{Type: sseEventSnap, Lifts: h.services.Simulator.Snapshot(filter)})
	c.Writer.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-keepAlive.C:
			_, err := io.WriteString(w, sseKeepAliveLine)
			return err == nil
		case diff, ok := <-updates:
			if !ok {
				// fell behind; the client reconnects and starts from a snapshot
				return false
			}
			lifts := make(map[string]models.RawLift, len(diff))
			for id, raw := range diff {
				if followed(filter, id) {
					lifts[id] = raw
				}
			}
			if len(lifts) > 0 {
				c.SSEvent(sseEventDiff, simPayload{Type: sseEventDiff, Lifts: lifts})
			}
			return true
		}
	})
}

// @Summary      Simulated command endpoint
// @Description  Accepts the payload the command dispatcher sends and applies it to the simulated lift.
// @Tags         simulator
// @Accept       json
// @Produce      json
// @Param        body  body   service.CommandRequest  true  "Command payload"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /sim/commands [post]
func (h *Handler) simCommand(c *gin.Context) {
	var req service.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Apply(req); err != nil {
		code := commandErrorStatus(err)
		if code == http.StatusBadGateway {
			code = http.StatusInternalServerError
		}
		if h.log != nil && !errors.Is(err, service.ErrInvalidCommand) {
			h.log.Infow("sim_command_refused", "err", err, "lift_id", req.LiftID, "command", req.Command)
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted", "request_id": req.RequestID, "message": "accepted"})
}

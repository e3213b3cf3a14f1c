package handlers

import (
	"errors"
	"net/http"

	"smartlift_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// Request DTO for a lift command.
type commandRequest struct {
	Command     string `json:"command" binding:"required"` // goto_floor | door_open | door_close | set_mode
	TargetFloor int    `json:"target_floor,omitempty"`     // required if command=goto_floor
	Mode        string `json:"mode,omitempty"`             // required if command=set_mode
}

// SendCommandRequest is an exported model for Swagger docs of the command payload.
type SendCommandRequest struct {
	// Command to send. Allowed: goto_floor, door_open, door_close, set_mode
	Command string `json:"command" example:"goto_floor"`
	// Target floor, 1-based (required when command=goto_floor)
	TargetFloor int `json:"target_floor,omitempty" example:"7"`
	// Operating mode name (required when command=set_mode)
	Mode string `json:"mode,omitempty" example:"auto"`
}

// @Summary      Send command
// @Description  Validates and forwards a command to the lift controller. The lift table is not changed; the effect shows up on the stream.
// @Tags         lifts
// @Accept       json
// @Produce      json
// @Param        id    path   string              true  "Lift id"
// @Param        body  body   SendCommandRequest  true  "Command payload"
// @Success      202   {object}  service.CommandResult
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      502   {object}  map[string]interface{}
// @Router       /api/v1/lifts/{id}/commands [post]
// @Security     BearerAuth
func (h *Handler) sendCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	res, err := h.services.Send(c.Request.Context(), c.Param("id"), service.Command{
		Kind:        service.CommandKind(req.Command),
		TargetFloor: req.TargetFloor,
		Mode:        req.Mode,
	})
	if err != nil {
		code := commandErrorStatus(err)
		if code == http.StatusBadGateway && h.log != nil {
			h.log.Errorw("command_dispatch_failed", "err", err, "lift_id", c.Param("id"), "command", req.Command)
		}
		c.JSON(code, gin.H{"error": err.Error(), "result": res})
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// commandErrorStatus maps dispatcher errors to HTTP codes.
func commandErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownLift):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrCommandRejected):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

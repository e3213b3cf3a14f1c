package handlers

import (
	"errors"
	"net/http"

	"smartlift_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errLiftNotFound    = "lift not found"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List lifts
// @Description  Current projected state of every known lift, ordered by id.
// @Tags         lifts
// @Produce      json
// @Param        building  query   string  false  "Building name (case-insensitive)"
// @Param        org       query   string  false  "Organization name (case-insensitive)"
// @Success      200  {object}  service.LiftsView
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/lifts [get]
// @Security     BearerAuth
func (h *Handler) listLifts(c *gin.Context) {
	view := h.services.ListLifts(service.LiftFilter{
		Building: c.Query("building"),
		Org:      c.Query("org"),
	})
	c.JSON(http.StatusOK, view)
}

// @Summary      Get lift
// @Tags         lifts
// @Produce      json
// @Param        id   path      string  true  "Lift id"
// @Success      200  {object}  models.Lift
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/lifts/{id} [get]
// @Security     BearerAuth
func (h *Handler) getLift(c *gin.Context) {
	l, err := h.services.GetLift(c.Param("id"))
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// @Summary      Floor call table
// @Description  One row per floor, top floor first, with pending up/down/car calls.
// @Tags         lifts
// @Produce      json
// @Param        id   path      string  true  "Lift id"
// @Success      200  {object}  map[string]interface{}  "lift_id, floors"
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/lifts/{id}/calls [get]
// @Security     BearerAuth
func (h *Handler) getCalls(c *gin.Context) {
	id := c.Param("id")
	rows, err := h.services.Calls(id)
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"lift_id": id,
		"floors":  rows,
	})
}

// @Summary      Stream status
// @Description  Connection status with a view hint: loading, error, stale or live.
// @Tags         lifts
// @Produce      json
// @Success      200  {object}  service.StatusView
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Status())
}

func (h *Handler) respondLookupError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrLiftNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": errLiftNotFound})
		return
	}
	h.logAndJSONError(c, http.StatusInternalServerError, "failed to load lift", "lift_lookup_failed", err, "id", c.Param("id"))
}

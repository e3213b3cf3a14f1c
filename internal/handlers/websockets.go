package handlers

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"smartlift_monitor/internal/models"
	"smartlift_monitor/internal/service"
	"smartlift_monitor/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB
	wsBuffer   = 64      // store updates queued per connection before they are dropped
)

// Envelope types pushed to WebSocket clients.
const (
	wsTypeSnapshot = "snapshot"
	wsTypeDiff     = "diff"
	wsTypeClear    = "clear"
	wsTypeStatus   = "status"
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// wsLifts is the payload of snapshot and diff envelopes. A snapshot replaces
// the client's table; a diff overwrites only the listed lifts.
type wsLifts struct {
	Version uint64            `json:"version"`
	Status  models.ConnStatus `json:"status"`
	Lifts   []models.Lift     `json:"lifts"`
}

// Upgrader for HTTP -> WebSocket. Consider tightening CheckOrigin in production.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Summary      Live lift table
// @Description  WebSocket. Sends a snapshot envelope, then diff, clear and status envelopes as the table changes. A snapshot is re-sent whenever this connection missed an update.
// @Tags         lifts
// @Param        lift_id  query  string  false  "Comma-separated lift ids to follow"
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	filter := parseLiftIDs(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader goroutine to handle control frames and detect disconnects.
	done := make(chan struct{})
	go h.startReader(conn, done)

	// Subscribe before the first snapshot so nothing between them is lost.
	updates, cancel := h.services.Monitoring.Subscribe(wsBuffer)
	defer cancel()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	version, err := h.sendSnapshot(conn, filter)
	if err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	// Writer/select loop.
	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case u, ok := <-updates:
			if !ok {
				return
			}
			version, err = h.forward(conn, u, version, filter)
			if err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// forward relays one store update and returns the table version the client
// now holds. Updates already covered by a snapshot are skipped; a gap in
// versions means an update was dropped, so the client is resynced.
func (h *Handler) forward(conn *websocket.Conn, u store.Update, version uint64, filter []string) (uint64, error) {
	if u.Kind == store.UpdateStatus {
		return version, writeEnvelope(conn, wsEnvelope{Type: wsTypeStatus, Data: h.services.Status()})
	}
	if u.Version <= version {
		return version, nil
	}
	if u.Kind == store.UpdateSnapshot || u.Version != version+1 {
		return h.sendSnapshot(conn, filter)
	}

	switch u.Kind {
	case store.UpdateClear:
		return u.Version, writeEnvelope(conn, wsEnvelope{Type: wsTypeClear, Data: wsLifts{
			Version: u.Version,
			Status:  u.Status,
			Lifts:   []models.Lift{},
		}})
	case store.UpdateDiff:
		lifts := make([]models.Lift, 0, len(u.Lifts))
		for id, l := range u.Lifts {
			if followed(filter, id) {
				lifts = append(lifts, l)
			}
		}
		if len(lifts) == 0 {
			return u.Version, nil
		}
		service.SortLifts(lifts)
		return u.Version, writeEnvelope(conn, wsEnvelope{Type: wsTypeDiff, Data: wsLifts{
			Version: u.Version,
			Status:  u.Status,
			Lifts:   lifts,
		}})
	}
	return u.Version, nil
}

// sendSnapshot writes the whole (filtered) table and returns its version.
func (h *Handler) sendSnapshot(conn *websocket.Conn, filter []string) (uint64, error) {
	view := h.services.ListLifts(service.LiftFilter{})
	lifts := view.Lifts
	if len(filter) > 0 {
		lifts = slices.DeleteFunc(lifts, func(l models.Lift) bool { return !followed(filter, l.Key()) })
	}
	if lifts == nil {
		lifts = []models.Lift{}
	}
	return view.Version, writeEnvelope(conn, wsEnvelope{Type: wsTypeSnapshot, Data: wsLifts{
		Version: view.Version,
		Status:  view.Status,
		Lifts:   lifts,
	}})
}

// Helper: startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

func writeEnvelope(conn *websocket.Conn, env wsEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}

// parseLiftIDs reads ?lift_id=1,2 or repeated ?lift_id=1&lift_id=2.
// Empty means every lift.
func parseLiftIDs(c *gin.Context) []string {
	var ids []string
	for _, v := range c.QueryArray("lift_id") {
		for _, id := range strings.Split(v, ",") {
			id = strings.TrimSpace(id)
			if id != "" && !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func followed(filter []string, id string) bool {
	return len(filter) == 0 || slices.Contains(filter, id)
}

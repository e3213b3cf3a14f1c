package service

import (
	"time"

	"smartlift_monitor/internal/models"
)

// LogFilter supports journal filtering by time range, type and lift.
type LogFilter struct {
	From   time.Time // inclusive; zero means no lower bound
	To     time.Time // inclusive; zero means no upper bound
	Type   string    // "", "STATUS_CHANGE", "COMMAND", "COMMAND_FAILED"
	LiftID string
}

// LiftFilter narrows the lift listing. Matching is case-insensitive.
type LiftFilter struct {
	Building string
	Org      string
}

// LiftsView is the lift listing together with the stream state it reflects.
type LiftsView struct {
	Status  models.ConnStatus `json:"status"`
	Version uint64            `json:"version"`
	Count   int               `json:"count"`
	Lifts   []models.Lift     `json:"lifts"`
}

// View hints derived from connection status and data presence.
const (
	ViewLoading = "loading" // connecting, nothing received yet
	ViewError   = "error"   // stream failed and there is no data to show
	ViewStale   = "stale"   // data present, stream degraded
	ViewLive    = "live"
)

type StatusView struct {
	Status  models.ConnStatus `json:"status"`
	View    string            `json:"view"`
	Lifts   int               `json:"lifts"`
	Version uint64            `json:"version"`
}

// CallRow describes the pending calls of one floor.
type CallRow struct {
	Floor int    `json:"floor"`
	Label string `json:"label,omitempty"`
	Up    bool   `json:"up"`
	Down  bool   `json:"down"`
	Car   bool   `json:"car"`
}

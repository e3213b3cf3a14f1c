package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// LiftID identifies one elevator unit. The stream sends it either as a JSON
// number or a JSON string; both decode to the same key.
type LiftID string

// UnmarshalJSON accepts 7, "7" and null.
func (id *LiftID) UnmarshalJSON(data []byte) error {
	s, err := looseScalar(data)
	if err != nil {
		return fmt.Errorf("lift id: %w", err)
	}
	*id = LiftID(s)
	return nil
}

// FlexInt is an integer that may be encoded as a number or a numeric string.
type FlexInt int

// UnmarshalJSON accepts 12, "12", 12.0, "" and null (the last two decode to 0).
func (n *FlexInt) UnmarshalJSON(data []byte) error {
	s, err := looseScalar(data)
	if err != nil {
		return err
	}
	if s == "" {
		*n = 0
		return nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		*n = FlexInt(v)
		return nil
	}
	// integral floats such as 12.0 or 1.2e1
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return fmt.Errorf("parse int %q: not an integer", s)
	}
	*n = FlexInt(f)
	return nil
}

// looseScalar returns the textual value of a JSON string, number or null.
func looseScalar(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		return "", nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return "", err
		}
		return num.String(), nil
	}
}

// RawLift is one lift record as received from the status stream.
type RawLift struct {
	ID            LiftID  `json:"id"`
	LiftName      string  `json:"lift_name"`
	OrgName       string  `json:"org_name"`
	BuildingName  string  `json:"building_name"`
	MaxLevel      FlexInt `json:"max_level"`
	FloorName     string  `json:"floor_name"`      // comma-separated labels, lowest floor first
	LiftStateHex  string  `json:"lift_state_hex"`  // >= 12 hex chars to be fully decodable
	UpStatusHex   string  `json:"up_status_hex"`   // hall calls going up
	DownStatusHex string  `json:"down_status_hex"` // hall calls going down
	CarStatusHex  string  `json:"car_status_hex"`  // in-cabin buttons
	LastUpdate    string  `json:"last_update"`
}

// Lift is the projected, UI-ready view of one elevator unit.
// Values handed out by the store are read-only snapshots.
type Lift struct {
	RawLift
	FloorPosition int       `json:"floor_position"`
	FloorLabel    string    `json:"floor_label,omitempty"`
	FloorLabels   []string  `json:"floor_labels,omitempty"`
	Direction     Direction `json:"direction"`
	DoorState     DoorState `json:"door_state"`
	Mode          Mode      `json:"mode"`
	ErrorCode     int       `json:"error_code"`
	Speed         float64   `json:"speed"` // m/s
	UpCalls       []int     `json:"up_calls"`
	DownCalls     []int     `json:"down_calls"`
	CarCalls      []int     `json:"car_calls"`
	Moving        bool      `json:"moving"`
	DoorAnimating bool      `json:"door_animating"`
}

// Key returns the store key of the lift.
func (l Lift) Key() string { return string(l.ID) }

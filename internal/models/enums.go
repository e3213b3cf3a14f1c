package models

import (
	"encoding/json"
	"strings"
)

// Direction of travel. The zero value means "not moving in a known direction".
type Direction string

const (
	DirectionNone Direction = ""
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// MarshalJSON encodes DirectionNone as null.
func (d Direction) MarshalJSON() ([]byte, error) {
	if d == DirectionNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(d))
}

// UnmarshalJSON maps null back to DirectionNone.
func (d *Direction) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = DirectionNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = Direction(s)
	return nil
}

// DoorState is the cabin door position reported by the controller.
type DoorState string

const (
	DoorOpened  DoorState = "Opened"
	DoorClosed  DoorState = "Closed"
	DoorClosing DoorState = "Closing"
	DoorOpening DoorState = "Opening"
	DoorUnknown DoorState = "Unknown"
)

// Transitional reports whether the door is currently moving.
func (d DoorState) Transitional() bool {
	return d == DoorOpening || d == DoorClosing
}

// Mode is the controller operating mode.
type Mode string

const (
	ModeAuto     Mode = "Auto"
	ModeINSP     Mode = "INSP"
	ModeFire     Mode = "Fire"
	ModeDriving  Mode = "Driving"
	ModeSpecial  Mode = "Special"
	ModeLearning Mode = "Learning"
	ModeLock     Mode = "Lock"
	ModeReset    Mode = "Reset"
	ModeUPS      Mode = "UPS"
	ModeIdle     Mode = "Idle"
	ModeBreak    Mode = "Break"
	ModeBypass   Mode = "Bypass"
	ModeError    Mode = "Error"
)

// ConnStatus is the lifecycle state of the upstream status stream.
type ConnStatus string

const (
	StatusConnecting   ConnStatus = "connecting"
	StatusOnline       ConnStatus = "online"
	StatusError        ConnStatus = "error"
	StatusDisconnected ConnStatus = "disconnected"
)

// Modes lists every mode name in controller order; unknown values decode as ModeError.
var Modes = []Mode{
	ModeAuto, ModeINSP, ModeFire, ModeDriving, ModeSpecial, ModeLearning,
	ModeLock, ModeReset, ModeUPS, ModeIdle, ModeBreak, ModeBypass,
}

// ParseMode matches a mode name case-insensitively. ModeError is not settable.
func ParseMode(s string) (Mode, bool) {
	for _, m := range Modes {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, true
		}
	}
	return "", false
}

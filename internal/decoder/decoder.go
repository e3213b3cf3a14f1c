// Package decoder interprets the controller's hexadecimal status words.
//
// The layout of lift_state_hex is fixed by the controller firmware:
//
//	chars  0-2   byte 0  current floor (1-based)
//	chars  2-4   byte 1  bits 0-1 door state, bit 6 down, bit 7 up
//	chars  4-6   byte 2  bits 0-3 operating mode
//	chars  6-8   byte 3  error code, 0 = no fault
//	chars  8-12  bytes 4-5  speed, big-endian, mm/s
//
// Call bitmaps (up/down/car) hold one bit per floor, floor n at bit (n-1)%8 of
// byte (n-1)/8, for at most 32 floors.
//
// Every function degrades to a documented default on short or non-hex input.
package decoder

import (
	"strconv"

	"smartlift_monitor/internal/models"
)

const (
	floorOffset     = 0
	doorOffset      = 2
	modeOffset      = 4
	errorCodeOffset = 6
	speedOffset     = 8

	doorMask      = 0x03
	modeMask      = 0x0F
	directionUp   = 1 << 7
	directionDown = 1 << 6

	// MaxCallFloors is the highest floor a call bitmap can address.
	MaxCallFloors  = 32
	callBitmapSize = MaxCallFloors / 8

	// MinStateHexLen is the length needed to decode every field.
	MinStateHexLen = 12

	defaultFloor = 1
)

var doorStates = [...]models.DoorState{
	0: models.DoorOpened,
	1: models.DoorClosed,
	2: models.DoorClosing,
	3: models.DoorOpening,
}

var modes = [...]models.Mode{
	0:  models.ModeAuto,
	1:  models.ModeINSP,
	2:  models.ModeFire,
	3:  models.ModeDriving,
	4:  models.ModeSpecial,
	5:  models.ModeLearning,
	6:  models.ModeLock,
	7:  models.ModeReset,
	8:  models.ModeUPS,
	9:  models.ModeIdle,
	10: models.ModeBreak,
	11: models.ModeBypass,
}

// byteAt parses the two hex characters starting at offset.
func byteAt(hex string, offset int) (uint8, bool) {
	if offset < 0 || len(hex) < offset+2 {
		return 0, false
	}
	v, err := strconv.ParseUint(hex[offset:offset+2], 16, 8)
	if err != nil {
		return 0, false
	}
	return uint8(v), true
}

// Floor returns the current floor from byte 0. Defaults to 1.
func Floor(stateHex string) int {
	b, ok := byteAt(stateHex, floorOffset)
	if !ok {
		return defaultFloor
	}
	return int(b)
}

// Door returns the door state from the low two bits of byte 1.
func Door(stateHex string) models.DoorState {
	b, ok := byteAt(stateHex, doorOffset)
	if !ok {
		return models.DoorUnknown
	}
	return doorStates[b&doorMask]
}

// Mode returns the operating mode from the low nibble of byte 2.
// Values 12-15 and undecodable input map to ModeError.
func Mode(stateHex string) models.Mode {
	b, ok := byteAt(stateHex, modeOffset)
	if !ok {
		return models.ModeError
	}
	if v := int(b & modeMask); v < len(modes) {
		return modes[v]
	}
	return models.ModeError
}

// ErrorCode returns byte 3 verbatim. Defaults to 0.
func ErrorCode(stateHex string) int {
	b, ok := byteAt(stateHex, errorCodeOffset)
	if !ok {
		return 0
	}
	return int(b)
}

// Speed returns the cabin speed in m/s from bytes 4-5, truncated to one decimal.
func Speed(stateHex string) float64 {
	hi, okHi := byteAt(stateHex, speedOffset)
	lo, okLo := byteAt(stateHex, speedOffset+2)
	if !okHi || !okLo {
		return 0
	}
	raw := uint16(hi)<<8 | uint16(lo)
	return float64(raw/100) / 10
}

// Direction returns UP for bit 7 and DOWN for bit 6 of byte 1; UP wins.
func Direction(stateHex string) models.Direction {
	b, ok := byteAt(stateHex, doorOffset)
	if !ok {
		return models.DirectionNone
	}
	switch {
	case b&directionUp != 0:
		return models.DirectionUp
	case b&directionDown != 0:
		return models.DirectionDown
	default:
		return models.DirectionNone
	}
}

// IsFloorCalled reports whether the bit for floor (1-based) is set in bitmapHex.
func IsFloorCalled(bitmapHex string, floor int) bool {
	if floor < 1 {
		return false
	}
	byteIndex := (floor - 1) / 8
	bitIndex := uint((floor - 1) % 8)
	if byteIndex >= callBitmapSize {
		return false
	}
	b, ok := byteAt(bitmapHex, byteIndex*2)
	if !ok {
		return false
	}
	return b&(1<<bitIndex) != 0
}

// Called lists the called floors in 1..min(maxFloor, 32), ascending.
// The result is never nil so that it encodes as [] rather than null.
func Called(bitmapHex string, maxFloor int) []int {
	if maxFloor > MaxCallFloors {
		maxFloor = MaxCallFloors
	}
	out := make([]int, 0, 4)
	for n := 1; n <= maxFloor; n++ {
		if IsFloorCalled(bitmapHex, n) {
			out = append(out, n)
		}
	}
	return out
}

package decoder

import (
	"fmt"
	"math"

	"smartlift_monitor/internal/models"
)

// State is the decoded content of one lift_state_hex word.
type State struct {
	Floor     int
	Door      models.DoorState
	Direction models.Direction
	Mode      models.Mode
	ErrorCode int
	Speed     float64 // m/s
}

// EncodeState builds a 12-character lift_state_hex word. Out-of-range values
// are clamped to what the wire format can carry.
func EncodeState(s State) string {
	var b1 uint8
	for i, d := range doorStates {
		if d == s.Door {
			b1 = uint8(i)
		}
	}
	switch s.Direction {
	case models.DirectionUp:
		b1 |= directionUp
	case models.DirectionDown:
		b1 |= directionDown
	}

	b2 := uint8(modeMask) // unmapped nibble decodes as Error
	for i, m := range modes {
		if m == s.Mode {
			b2 = uint8(i)
		}
	}

	mm := math.Round(s.Speed * 1000)
	if mm < 0 {
		mm = 0
	}
	if mm > 0xFFFF {
		mm = 0xFFFF
	}
	return fmt.Sprintf("%02X%02X%02X%02X%04X", clampByte(s.Floor), b1, b2, clampByte(s.ErrorCode), uint16(mm))
}

// EncodeCalls builds an 8-character call bitmap. Floors outside 1..32 are ignored.
func EncodeCalls(floors []int) string {
	var bitmap [callBitmapSize]uint8
	for _, n := range floors {
		if n < 1 || n > MaxCallFloors {
			continue
		}
		bitmap[(n-1)/8] |= 1 << uint((n-1)%8)
	}
	return fmt.Sprintf("%02X%02X%02X%02X", bitmap[0], bitmap[1], bitmap[2], bitmap[3])
}

func clampByte(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 0xFF:
		return 0xFF
	default:
		return uint8(v)
	}
}

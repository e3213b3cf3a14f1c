package decoder

import (
	"errors"
	"fmt"
	"strings"

	"smartlift_monitor/internal/models"
)

// movingThreshold is the speed (m/s) above which a cabin counts as moving.
const movingThreshold = 0.05

// ErrProjection is returned when a raw record could not be turned into a Lift.
var ErrProjection = errors.New("lift projection failed")

// TopFloor is the highest floor of a lift: maxLevel when set, otherwise the
// number of floor labels, otherwise the call bitmap capacity.
func TopFloor(maxLevel, labelCount int) int {
	switch {
	case maxLevel > 0:
		return maxLevel
	case labelCount > 0:
		return labelCount
	default:
		return MaxCallFloors
	}
}

// Project decodes every status word of raw into a UI lift record.
func Project(raw models.RawLift) (lift models.Lift, err error) {
	defer func() {
		if r := recover(); r != nil {
			lift = models.Lift{}
			err = fmt.Errorf("%w: lift %q: %v", ErrProjection, raw.ID, r)
		}
	}()

	state := raw.LiftStateHex
	labels := splitLabels(raw.FloorName)
	maxFloor := TopFloor(int(raw.MaxLevel), len(labels))

	lift = models.Lift{
		RawLift:       raw,
		FloorPosition: Floor(state),
		FloorLabels:   labels,
		Direction:     Direction(state),
		DoorState:     Door(state),
		Mode:          Mode(state),
		ErrorCode:     ErrorCode(state),
		Speed:         Speed(state),
		UpCalls:       Called(raw.UpStatusHex, maxFloor),
		DownCalls:     Called(raw.DownStatusHex, maxFloor),
		CarCalls:      Called(raw.CarStatusHex, maxFloor),
	}
	if i := lift.FloorPosition - 1; i >= 0 && i < len(labels) {
		lift.FloorLabel = labels[i]
	}
	lift.Moving = lift.Speed > movingThreshold
	lift.DoorAnimating = lift.DoorState.Transitional()
	return lift, nil
}

func splitLabels(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

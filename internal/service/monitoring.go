package service

import (
	"cmp"
	"errors"
	"slices"
	"strconv"
	"strings"

	"smartlift_monitor/internal/decoder"
	"smartlift_monitor/internal/models"
	"smartlift_monitor/internal/store"
)

var ErrLiftNotFound = errors.New("lift not found")

// StateReader is the read side of the lift store.
type StateReader interface {
	Lifts() map[string]models.Lift
	Get(id string) (models.Lift, bool)
	Len() int
	Status() models.ConnStatus
	Version() uint64
	Subscribe(buffer int) (<-chan store.Update, func())
}

type MonitoringService struct {
	state StateReader
}

func NewMonitoringService(state StateReader) *MonitoringService {
	return &MonitoringService{state: state}
}

// ListLifts returns the filtered lifts ordered by id.
func (s *MonitoringService) ListLifts(f LiftFilter) LiftsView {
	version := s.state.Version()
	status := s.state.Status()
	all := s.state.Lifts()

	out := make([]models.Lift, 0, len(all))
	for _, l := range all {
		if !matchFold(l.BuildingName, f.Building) || !matchFold(l.OrgName, f.Org) {
			continue
		}
		out = append(out, l)
	}
	SortLifts(out)

	return LiftsView{Status: status, Version: version, Count: len(out), Lifts: out}
}

func (s *MonitoringService) GetLift(id string) (models.Lift, error) {
	l, ok := s.state.Get(strings.TrimSpace(id))
	if !ok {
		return models.Lift{}, ErrLiftNotFound
	}
	return l, nil
}

// Calls returns one row per floor, top floor first. Floors above the call
// bitmap capacity are listed without calls.
func (s *MonitoringService) Calls(id string) ([]CallRow, error) {
	l, err := s.GetLift(id)
	if err != nil {
		return nil, err
	}

	top := decoder.TopFloor(int(l.MaxLevel), len(l.FloorLabels))

	rows := make([]CallRow, 0, top)
	for floor := top; floor >= 1; floor-- {
		row := CallRow{
			Floor: floor,
			Up:    decoder.IsFloorCalled(l.UpStatusHex, floor),
			Down:  decoder.IsFloorCalled(l.DownStatusHex, floor),
			Car:   decoder.IsFloorCalled(l.CarStatusHex, floor),
		}
		if floor-1 < len(l.FloorLabels) {
			row.Label = l.FloorLabels[floor-1]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Status reports the stream status with a view hint for consumers.
func (s *MonitoringService) Status() StatusView {
	st := s.state.Status()
	n := s.state.Len()
	return StatusView{
		Status:  st,
		View:    viewFor(st, n > 0),
		Lifts:   n,
		Version: s.state.Version(),
	}
}

func (s *MonitoringService) Subscribe(buffer int) (<-chan store.Update, func()) {
	return s.state.Subscribe(buffer)
}

func viewFor(st models.ConnStatus, hasData bool) string {
	switch {
	case st == models.StatusOnline:
		return ViewLive
	case hasData:
		return ViewStale
	case st == models.StatusError:
		return ViewError
	default:
		return ViewLoading
	}
}

func matchFold(value, want string) bool {
	want = strings.TrimSpace(want)
	return want == "" || strings.EqualFold(strings.TrimSpace(value), want)
}

// SortLifts orders lifts by id: numeric ids first in numeric order, then the
// rest lexically.
func SortLifts(lifts []models.Lift) {
	slices.SortFunc(lifts, func(a, b models.Lift) int {
		ai, aErr := strconv.Atoi(a.Key())
		bi, bErr := strconv.Atoi(b.Key())
		switch {
		case aErr == nil && bErr == nil:
			if c := cmp.Compare(ai, bi); c != 0 {
				return c
			}
		case aErr == nil:
			return -1
		case bErr == nil:
			return 1
		}
		return cmp.Compare(a.Key(), b.Key())
	})
}

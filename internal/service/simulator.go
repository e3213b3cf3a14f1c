package service

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"smartlift_monitor/internal/decoder"
	"smartlift_monitor/internal/logger"
	"smartlift_monitor/internal/models"
)

// ----------- Simulation constants -----------
const (
	CruiseSpeed     = 1.6  // m/s while travelling between floors
	DoorHoldTicks   = 2    // ticks a door stays fully open
	DefaultCallRate = 0.15 // chance per tick and lift of a new random call
)

// SimulatorOptions shape the synthetic building.
type SimulatorOptions struct {
	Lifts    int
	Floors   int
	Org      string
	Building string
	Seed     int64   // zero picks a time-based seed
	CallRate float64 // zero uses DefaultCallRate, negative disables random calls
}

// simLift is the controller-side state of one synthetic car.
type simLift struct {
	id        string
	name      string
	floor     int
	door      models.DoorState
	doorTicks int
	dir       models.Direction
	mode      models.Mode
	errorCode int
	speed     float64
	up        []bool // index = floor
	down      []bool
	car       []bool
}

// FeedSimulator emulates the upstream status feed for development: lifts
// answer calls, doors cycle, and every tick produces a diff of the lifts whose
// status words changed.
type FeedSimulator struct {
	mu     sync.Mutex
	opts   SimulatorOptions
	log    *logger.Logger
	rng    *rand.Rand
	labels string
	lifts  []*simLift
	byID   map[string]*simLift

	subs    map[int]chan map[string]models.RawLift
	nextSub int
}

// NewFeedSimulator builds opts.Lifts idle lifts parked on the ground floor.
func NewFeedSimulator(opts SimulatorOptions, log *logger.Logger) *FeedSimulator {
	if opts.Lifts <= 0 {
		opts.Lifts = 1
	}
	if opts.Floors < 2 {
		opts.Floors = 2
	}
	if opts.Floors > decoder.MaxCallFloors {
		opts.Floors = decoder.MaxCallFloors
	}
	if opts.CallRate == 0 {
		opts.CallRate = DefaultCallRate
	}
	if opts.Org == "" {
		opts.Org = "Demo Org"
	}
	if opts.Building == "" {
		opts.Building = "Demo Tower"
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if log == nil {
		log = logger.NewNop()
	}

	s := &FeedSimulator{
		opts:   opts,
		log:    log,
		rng:    rand.New(rand.NewSource(seed)),
		labels: floorLabels(opts.Floors),
		byID:   make(map[string]*simLift, opts.Lifts),
		subs:   make(map[int]chan map[string]models.RawLift),
	}
	for i := 1; i <= opts.Lifts; i++ {
		l := &simLift{
			id:    strconv.Itoa(i),
			name:  "Lift " + string(rune('A'+(i-1)%26)),
			floor: 1,
			door:  models.DoorClosed,
			mode:  models.ModeAuto,
			up:    make([]bool, opts.Floors+1),
			down:  make([]bool, opts.Floors+1),
			car:   make([]bool, opts.Floors+1),
		}
		s.lifts = append(s.lifts, l)
		s.byID[l.id] = l
	}
	return s
}

// floorLabels returns "G,1,2,...".
func floorLabels(n int) string {
	parts := make([]string, n)
	parts[0] = "G"
	for i := 1; i < n; i++ {
		parts[i] = strconv.Itoa(i)
	}
	return strings.Join(parts, ",")
}

// Run ticks at the given interval until ctx is canceled.
func (s *FeedSimulator) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeSubscribers()
			return
		case now := <-t.C:
			s.Step(now)
		}
	}
}

// Step advances every lift by one tick and publishes the changed records.
func (s *FeedSimulator) Step(now time.Time) map[string]models.RawLift {
	s.mu.Lock()
	defer s.mu.Unlock()

	diff := make(map[string]models.RawLift)
	for _, l := range s.lifts {
		before := s.raw(l, now)
		s.maybeCall(l)
		s.advance(l)
		after := s.raw(l, now)
		if !sameStatus(before, after) {
			diff[l.id] = after
		}
	}
	if len(diff) > 0 {
		s.publish(diff)
	}
	return diff
}

// Snapshot returns the current records, limited to liftIDs when given.
func (s *FeedSimulator) Snapshot(liftIDs []string) map[string]models.RawLift {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	out := make(map[string]models.RawLift, len(s.lifts))
	for _, l := range s.lifts {
		if len(liftIDs) > 0 && !contains(liftIDs, l.id) {
			continue
		}
		out[l.id] = s.raw(l, now)
	}
	return out
}

// Subscribe registers a diff listener. A listener that falls behind is
// closed; it must resubscribe and start over from a snapshot.
func (s *FeedSimulator) Subscribe(buffer int) (<-chan map[string]models.RawLift, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan map[string]models.RawLift, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Apply executes a controller command against the simulated lift.
func (s *FeedSimulator) Apply(req CommandRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.byID[strings.TrimSpace(req.LiftID)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLift, req.LiftID)
	}

	switch req.Command {
	case CommandGotoFloor:
		if req.TargetFloor < 1 || req.TargetFloor > s.opts.Floors {
			return fmt.Errorf("%w: target_floor must be within 1..%d", ErrInvalidCommand, s.opts.Floors)
		}
		if l.mode != models.ModeAuto {
			return fmt.Errorf("%w: lift %s is in %s mode", ErrCommandRejected, l.id, l.mode)
		}
		l.car[req.TargetFloor] = true
	case CommandDoorOpen:
		if l.speed > 0 {
			return fmt.Errorf("%w: lift %s is moving", ErrCommandRejected, l.id)
		}
		if l.door != models.DoorOpened {
			l.door = models.DoorOpening
		}
		l.doorTicks = DoorHoldTicks
	case CommandDoorClose:
		if l.door == models.DoorOpened || l.door == models.DoorOpening {
			l.door = models.DoorClosing
		}
	case CommandSetMode:
		m, ok := models.ParseMode(req.Mode)
		if !ok {
			return fmt.Errorf("%w: unknown mode %q", ErrInvalidCommand, req.Mode)
		}
		l.mode = m
		if m != models.ModeAuto {
			l.speed = 0
			l.dir = models.DirectionNone
		}
	default:
		return fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, req.Command)
	}
	s.log.Infow("sim_command_applied", "lift_id", l.id, "command", req.Command, "request_id", req.RequestID)
	return nil
}

// advance moves one lift by one tick. Must be called with s.mu held.
func (s *FeedSimulator) advance(l *simLift) {
	if l.mode != models.ModeAuto {
		l.speed = 0
		l.dir = models.DirectionNone
		return
	}

	switch l.door {
	case models.DoorOpening:
		l.door = models.DoorOpened
		l.doorTicks = DoorHoldTicks
		return
	case models.DoorOpened:
		l.doorTicks--
		if l.doorTicks <= 0 {
			l.door = models.DoorClosing
		}
		return
	case models.DoorClosing:
		l.door = models.DoorClosed
		return
	}

	target := s.nextStop(l)
	switch {
	case target == 0:
		l.speed = 0
		l.dir = models.DirectionNone
		return
	case target > l.floor:
		l.floor++
		l.dir = models.DirectionUp
	case target < l.floor:
		l.floor--
		l.dir = models.DirectionDown
	}
	l.speed = CruiseSpeed

	if l.floor == target {
		l.speed = 0
		l.dir = models.DirectionNone
		l.up[l.floor], l.down[l.floor], l.car[l.floor] = false, false, false
		l.door = models.DoorOpening
	}
}

// nextStop picks the next floor to serve, keeping the current direction
// while calls remain ahead. Zero means no calls.
func (s *FeedSimulator) nextStop(l *simLift) int {
	called := func(f int) bool { return l.up[f] || l.down[f] || l.car[f] }

	if called(l.floor) {
		return l.floor
	}
	if l.dir != models.DirectionDown {
		for f := l.floor + 1; f <= s.opts.Floors; f++ {
			if called(f) {
				return f
			}
		}
	}
	if l.dir != models.DirectionUp {
		for f := l.floor - 1; f >= 1; f-- {
			if called(f) {
				return f
			}
		}
	}
	// nothing ahead: look the other way
	best := 0
	for f := 1; f <= s.opts.Floors; f++ {
		if called(f) && (best == 0 || abs(f-l.floor) < abs(best-l.floor)) {
			best = f
		}
	}
	return best
}

// maybeCall registers a random hall or car call. Must be called with s.mu held.
func (s *FeedSimulator) maybeCall(l *simLift) {
	if s.opts.CallRate < 0 || l.mode != models.ModeAuto || s.rng.Float64() >= s.opts.CallRate {
		return
	}
	f := 1 + s.rng.Intn(s.opts.Floors)
	switch s.rng.Intn(3) {
	case 0:
		if f < s.opts.Floors {
			l.up[f] = true
		}
	case 1:
		if f > 1 {
			l.down[f] = true
		}
	default:
		l.car[f] = true
	}
}

// raw encodes l the way the controller reports it. Must be called with s.mu held.
func (s *FeedSimulator) raw(l *simLift, now time.Time) models.RawLift {
	return models.RawLift{
		ID:           models.LiftID(l.id),
		LiftName:     l.name,
		OrgName:      s.opts.Org,
		BuildingName: s.opts.Building,
		MaxLevel:     models.FlexInt(s.opts.Floors),
		FloorName:    s.labels,
		LiftStateHex: decoder.EncodeState(decoder.State{
			Floor:     l.floor,
			Door:      l.door,
			Direction: l.dir,
			Mode:      l.mode,
			ErrorCode: l.errorCode,
			Speed:     l.speed,
		}),
		UpStatusHex:   decoder.EncodeCalls(calledFloors(l.up)),
		DownStatusHex: decoder.EncodeCalls(calledFloors(l.down)),
		CarStatusHex:  decoder.EncodeCalls(calledFloors(l.car)),
		LastUpdate:    now.UTC().Format(time.RFC3339),
	}
}

// publish must be called with s.mu held.
func (s *FeedSimulator) publish(diff map[string]models.RawLift) {
	for id, ch := range s.subs {
		select {
		case ch <- diff:
		default:
			delete(s.subs, id)
			close(ch)
			s.log.Warnw("sim_subscriber_dropped", "subscriber", id)
		}
	}
}

func (s *FeedSimulator) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// helpers
func sameStatus(a, b models.RawLift) bool {
	return a.LiftStateHex == b.LiftStateHex &&
		a.UpStatusHex == b.UpStatusHex &&
		a.DownStatusHex == b.DownStatusHex &&
		a.CarStatusHex == b.CarStatusHex
}

func calledFloors(flags []bool) []int {
	var out []int
	for f, on := range flags {
		if on {
			out = append(out, f)
		}
	}
	return out
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

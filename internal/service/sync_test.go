package service

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"smartlift_monitor/internal/decoder"
	"smartlift_monitor/internal/metrics"
	"smartlift_monitor/internal/models"
	"smartlift_monitor/internal/scheduler"
	"smartlift_monitor/internal/store"
	"smartlift_monitor/internal/stream"
)

// fakeSubscriber captures the stream config so tests can drive callbacks.
type fakeSubscriber struct {
	cfg       stream.Config
	torn      int
	subscribe int
}

func (f *fakeSubscriber) Subscribe(_ context.Context, cfg stream.Config) func() {
	f.subscribe++
	f.cfg = cfg
	return func() { f.torn++ }
}

type syncFixture struct {
	sub     *fakeSubscriber
	clock   *scheduler.FakeClock
	store   *store.Store
	sched   *scheduler.Scheduler
	journal *journalStub
	metrics *metrics.Metrics
	sync    *LiftSync
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	f := &syncFixture{
		sub:     &fakeSubscriber{},
		clock:   scheduler.NewFakeClock(time.Unix(0, 0)),
		store:   store.New(),
		journal: &journalStub{},
		metrics: metrics.New(),
	}
	f.sched = scheduler.New(f.store, scheduler.Config{
		BatchWindow:  50 * time.Millisecond,
		MinRenderGap: 150 * time.Millisecond,
	}, scheduler.WithClock(f.clock), scheduler.WithFlushHook(f.metrics.RecordFlush))
	f.sync = NewLiftSync(f.sub, f.sched, f.store, f.journal, f.metrics, nil).WithLiftIDs([]string{"1", "2"})
	if err := f.sync.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return f
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func record(floor int) map[string]any {
	return map[string]any{
		"lift_name":      "Lift",
		"max_level":      "12",
		"floor_name":     "G,1,2,3,4,5,6,7,8,9,10,11",
		"lift_state_hex": decoder.EncodeState(decoder.State{Floor: floor, Door: models.DoorClosed, Mode: models.ModeAuto}),
		"car_status_hex": decoder.EncodeCalls([]int{floor + 1}),
	}
}

func TestLiftSync_StartPassesFilterAndRejectsRestart(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	if !slices.Equal(f.sub.cfg.LiftIDs, []string{"1", "2"}) {
		t.Fatalf("lift filter = %v; want [1 2]", f.sub.cfg.LiftIDs)
	}
	if err := f.sync.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start: want ErrAlreadyStarted, got %v", err)
	}
	if f.sub.subscribe != 1 {
		t.Fatalf("subscribed %d times; want 1", f.sub.subscribe)
	}
}

func floorOf(t *testing.T, st *store.Store, id string) int {
	t.Helper()
	l, ok := st.Get(id)
	if !ok {
		t.Fatalf("lift %s missing from store", id)
	}
	return l.FloorPosition
}

func counter(t *testing.T, got float64, want float64, name string) {
	t.Helper()
	if got != want {
		t.Fatalf("%s = %v; want %v", name, got, want)
	}
}

func TestLiftSync_SnapshotThenDiffKeepsUnmentionedLifts(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	f.sub.cfg.OnSnapshot(stream.Message{Kind: stream.KindSnapshot, Lifts: map[string]json.RawMessage{
		"1": rawJSON(t, record(3)),
		"2": rawJSON(t, record(5)),
	}})

	if n := f.store.Len(); n != 2 {
		t.Fatalf("store has %d lifts; want 2", n)
	}
	l1, _ := f.store.Get("1")
	if l1.FloorPosition != 3 || l1.ID != "1" || int(l1.MaxLevel) != 12 {
		t.Fatalf("unexpected snapshot lift: %+v", l1)
	}

	// a diff carries only the changed status word
	f.sub.cfg.OnDiff(stream.Message{Kind: stream.KindDiff, Lifts: map[string]json.RawMessage{
		"1": rawJSON(t, map[string]any{
			"lift_state_hex": decoder.EncodeState(decoder.State{Floor: 4, Door: models.DoorOpening, Mode: models.ModeAuto}),
		}),
	}})

	// not applied before the batch window and min gap have passed
	if got := floorOf(t, f.store, "1"); got != 3 {
		t.Fatalf("diff applied early: floor %d", got)
	}

	f.clock.Advance(150 * time.Millisecond)

	l1, _ = f.store.Get("1")
	if l1.FloorPosition != 4 || !l1.DoorAnimating {
		t.Fatalf("diff not applied: %+v", l1)
	}
	// fields absent from the diff are kept
	if l1.LiftName != "Lift" {
		t.Fatalf("lift name = %q; want Lift", l1.LiftName)
	}
	if !slices.Equal(l1.CarCalls, []int{4}) {
		t.Fatalf("car calls = %v; want [4]", l1.CarCalls)
	}
	if got := floorOf(t, f.store, "2"); got != 5 {
		t.Fatalf("lift 2 floor = %d; want 5", got)
	}

	counter(t, testutil.ToFloat64(f.metrics.StreamMessages.WithLabelValues("snapshot")), 1, "snapshot messages")
	counter(t, testutil.ToFloat64(f.metrics.StreamMessages.WithLabelValues("diff")), 1, "diff messages")
	counter(t, testutil.ToFloat64(f.metrics.Flushes), 1, "flushes")
}

func TestLiftSync_DiffsCoalesceLastWriteWins(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	f.sub.cfg.OnSnapshot(stream.Message{Lifts: map[string]json.RawMessage{"1": rawJSON(t, record(1))}})
	f.clock.Advance(time.Second)

	for _, floor := range []int{2, 3, 4} {
		f.sub.cfg.OnDiff(stream.Message{Lifts: map[string]json.RawMessage{"1": rawJSON(t, record(floor))}})
	}
	v := f.store.Version()
	f.clock.Advance(50 * time.Millisecond)

	if got := floorOf(t, f.store, "1"); got != 4 {
		t.Fatalf("floor = %d; want 4", got)
	}
	// one flush for the whole burst
	if got := f.store.Version(); got != v+1 {
		t.Fatalf("version = %d; want %d", got, v+1)
	}
}

func TestLiftSync_DiffForUnknownLiftStartsFromEmptyRecord(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	f.sub.cfg.OnSnapshot(stream.Message{Lifts: map[string]json.RawMessage{}})
	f.clock.Advance(time.Second)

	f.sub.cfg.OnDiff(stream.Message{Lifts: map[string]json.RawMessage{"9": rawJSON(t, record(2))}})
	f.clock.Advance(50 * time.Millisecond)

	l, ok := f.store.Get("9")
	if !ok {
		t.Fatal("lift 9 missing from store")
	}
	if l.ID != "9" || l.FloorPosition != 2 {
		t.Fatalf("unexpected lift: id %q floor %d", l.ID, l.FloorPosition)
	}
}

func TestLiftSync_MalformedRecordIsSkipped(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	f.sub.cfg.OnSnapshot(stream.Message{Lifts: map[string]json.RawMessage{
		"1": rawJSON(t, record(3)),
		"2": rawJSON(t, record(5)),
	}})
	f.clock.Advance(time.Second)

	f.sub.cfg.OnDiff(stream.Message{Lifts: map[string]json.RawMessage{
		"1": json.RawMessage(`{"max_level":"twelve"}`),
		"2": rawJSON(t, record(6)),
	}})
	f.clock.Advance(50 * time.Millisecond)

	// previous value retained
	if got := floorOf(t, f.store, "1"); got != 3 {
		t.Fatalf("lift 1 floor = %d; want 3", got)
	}
	if got := floorOf(t, f.store, "2"); got != 6 {
		t.Fatalf("lift 2 floor = %d; want 6", got)
	}
	counter(t, testutil.ToFloat64(f.metrics.ProjectionFailures), 1, "projection failures")

	// a broken record in a later snapshot keeps the known value as well
	f.sub.cfg.OnSnapshot(stream.Message{Lifts: map[string]json.RawMessage{
		"1": json.RawMessage(`[]`),
		"2": rawJSON(t, record(7)),
	}})
	if got := floorOf(t, f.store, "1"); got != 3 {
		t.Fatalf("lift 1 floor after snapshot = %d; want 3", got)
	}
}

func TestLiftSync_StatusChangesReachStoreMetricsAndJournal(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	f.sub.cfg.OnSnapshot(stream.Message{Lifts: map[string]json.RawMessage{"1": rawJSON(t, record(3))}})

	f.sub.cfg.OnStatusChange(models.StatusOnline)
	f.sub.cfg.OnStatusChange(models.StatusError)

	if st := f.store.Status(); st != models.StatusError {
		t.Fatalf("status = %s; want error", st)
	}
	// transport errors keep existing data
	if n := f.store.Len(); n != 1 {
		t.Fatalf("store has %d lifts; want 1", n)
	}
	counter(t, testutil.ToFloat64(f.metrics.ConnectionStatus.WithLabelValues("error")), 1, "error status gauge")

	events := f.journal.snapshot()
	if len(events) != 2 {
		t.Fatalf("journal has %d events; want 2", len(events))
	}
	if events[0].Type != models.EventStatusChange || events[0].Description != "online" || events[1].Description != "error" {
		t.Fatalf("unexpected journal: %+v", events)
	}
}

func TestLiftSync_JournalFailureDoesNotBlockStatus(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	f.journal.err = errors.New("disk full")

	f.sub.cfg.OnStatusChange(models.StatusOnline)
	if st := f.store.Status(); st != models.StatusOnline {
		t.Fatalf("status = %s; want online", st)
	}
}

func TestLiftSync_StopTearsDownAndCancelsPendingFlush(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	f.sub.cfg.OnSnapshot(stream.Message{Lifts: map[string]json.RawMessage{"1": rawJSON(t, record(3))}})
	f.clock.Advance(time.Second)
	f.sub.cfg.OnDiff(stream.Message{Lifts: map[string]json.RawMessage{"1": rawJSON(t, record(8))}})
	if n := f.sched.Pending(); n != 1 {
		t.Fatalf("pending = %d; want 1", n)
	}

	updates, cancel := f.store.Subscribe(8)
	defer cancel()

	f.sync.Stop()
	f.sync.Stop()
	if f.sub.torn != 1 {
		t.Fatalf("teardown ran %d times; want 1", f.sub.torn)
	}
	if ph := f.sched.Phase(); ph != scheduler.PhaseClosed {
		t.Fatalf("scheduler phase = %v; want closed", ph)
	}

	v := f.store.Version()
	f.clock.Advance(time.Second)
	if got := f.store.Version(); got != v {
		t.Fatalf("flush after teardown: version %d -> %d", v, got)
	}

	if u := <-updates; u.Kind != store.UpdateClear {
		t.Fatalf("first update after stop = %s; want clear", u.Kind)
	}
	select {
	case u := <-updates:
		t.Fatalf("unexpected update after teardown: %+v", u)
	default:
	}

	if err := f.sync.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("Start after Stop: want ErrAlreadyStarted, got %v", err)
	}
}

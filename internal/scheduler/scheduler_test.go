package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartlift_monitor/internal/models"
	"smartlift_monitor/internal/store"
)

// recordingSink wraps a real store and timestamps every write.
type recordingSink struct {
	*store.Store
	clock Clock

	mu       sync.Mutex
	merges   []time.Time
	batches  []map[string]models.Lift
	replaces int
	clears   int
}

func newRecordingSink(c Clock) *recordingSink {
	return &recordingSink{Store: store.New(), clock: c}
}

func (r *recordingSink) Merge(l map[string]models.Lift) {
	r.mu.Lock()
	r.merges = append(r.merges, r.clock.Now())
	r.batches = append(r.batches, l)
	r.mu.Unlock()
	r.Store.Merge(l)
}

func (r *recordingSink) Replace(l map[string]models.Lift) {
	r.mu.Lock()
	r.replaces++
	r.mu.Unlock()
	r.Store.Replace(l)
}

func (r *recordingSink) Clear() {
	r.mu.Lock()
	r.clears++
	r.mu.Unlock()
	r.Store.Clear()
}

func lift(id string, floor int) models.Lift {
	return models.Lift{RawLift: models.RawLift{ID: models.LiftID(id)}, FloorPosition: floor}
}

func diff(id string, floor int) map[string]models.Lift {
	return map[string]models.Lift{id: lift(id, floor)}
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestScheduler() (*Scheduler, *FakeClock, *recordingSink) {
	clk := NewFakeClock(epoch)
	sink := newRecordingSink(clk)
	s := New(sink, Config{BatchWindow: 50 * time.Millisecond, MinRenderGap: 150 * time.Millisecond}, WithClock(clk))
	return s, clk, sink
}

func TestScheduler_SnapshotThenDiffMergesOnlyMentionedLifts(t *testing.T) {
	s, clk, sink := newTestScheduler()

	s.Snapshot(map[string]models.Lift{"1": lift("1", 1), "2": lift("2", 5)})
	s.Enqueue(diff("1", 9))
	clk.Advance(time.Second)

	got := sink.Lifts()
	require.Len(t, got, 2)
	assert.Equal(t, 9, got["1"].FloorPosition)
	assert.Equal(t, 5, got["2"].FloorPosition)
}

func TestScheduler_CoalescesWithinWindowLastWriteWins(t *testing.T) {
	s, clk, sink := newTestScheduler()

	s.Enqueue(diff("1", 2))
	clk.Advance(10 * time.Millisecond)
	s.Enqueue(diff("1", 3))
	clk.Advance(10 * time.Millisecond)
	s.Enqueue(diff("1", 4))
	assert.Equal(t, PhaseScheduled, s.Phase())
	assert.Empty(t, sink.merges, "nothing is written before the window closes")

	clk.Advance(30 * time.Millisecond)

	require.Len(t, sink.merges, 1)
	assert.Equal(t, epoch.Add(50*time.Millisecond), sink.merges[0])
	assert.Equal(t, 4, sink.batches[0]["1"].FloorPosition)
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_MinRenderGapDelaysFlush(t *testing.T) {
	s, clk, sink := newTestScheduler()

	s.Enqueue(diff("1", 1))
	clk.Advance(50 * time.Millisecond) // first flush at t=50
	require.Len(t, sink.merges, 1)

	s.Enqueue(diff("2", 2))            // window closes at t=100
	clk.Advance(60 * time.Millisecond) // t=110, gap not yet elapsed
	require.Len(t, sink.merges, 1)
	assert.Equal(t, PhaseScheduled, s.Phase())

	clk.Advance(90 * time.Millisecond) // t=200
	require.Len(t, sink.merges, 2)
	assert.Equal(t, epoch.Add(200*time.Millisecond), sink.merges[1])
}

func TestScheduler_ContinuousPressureBoundedByMinGap(t *testing.T) {
	s, clk, sink := newTestScheduler()
	gap := 150 * time.Millisecond

	for i := 0; i < 300; i++ {
		s.Enqueue(diff("1", i))
		clk.Advance(7 * time.Millisecond)
	}
	clk.Advance(time.Second)

	require.GreaterOrEqual(t, len(sink.merges), 2)
	for i := 1; i < len(sink.merges); i++ {
		d := sink.merges[i].Sub(sink.merges[i-1])
		assert.GreaterOrEqual(t, d, gap, "flush %d came %v after the previous one", i, d)
	}
	assert.Equal(t, 299, sink.Lifts()["1"].FloorPosition, "the last diff is never lost")
}

func TestScheduler_SubscriberSeesBoundedUpdateRate(t *testing.T) {
	s, clk, sink := newTestScheduler()
	updates, cancel := sink.Subscribe(1024)
	defer cancel()

	start := clk.Now()
	for i := 0; i < 200; i++ {
		s.Enqueue(diff("1", i))
		s.Enqueue(diff("2", i))
		clk.Advance(5 * time.Millisecond)
	}
	elapsed := clk.Now().Sub(start)

	n := 0
	for len(updates) > 0 {
		<-updates
		n++
	}
	maxUpdates := int(elapsed/(150*time.Millisecond)) + 1
	assert.LessOrEqual(t, n, maxUpdates)
	assert.Greater(t, n, 0)
}

func TestScheduler_SnapshotDiscardsPendingDiffs(t *testing.T) {
	s, clk, sink := newTestScheduler()

	s.Enqueue(diff("1", 8))
	s.Snapshot(map[string]models.Lift{"1": lift("1", 1)})
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Equal(t, 0, clk.Pending(), "snapshot cancels the armed flush")

	clk.Advance(time.Second)
	assert.Empty(t, sink.merges)
	assert.Equal(t, 1, sink.Lifts()["1"].FloorPosition)
}

func TestScheduler_SnapshotCountsTowardsGap(t *testing.T) {
	s, clk, sink := newTestScheduler()

	s.Snapshot(map[string]models.Lift{"1": lift("1", 1)})
	s.Enqueue(diff("1", 2))
	clk.Advance(50 * time.Millisecond)
	assert.Empty(t, sink.merges)

	clk.Advance(100 * time.Millisecond)
	require.Len(t, sink.merges, 1)
	assert.Equal(t, epoch.Add(150*time.Millisecond), sink.merges[0])
}

func TestScheduler_NoMutationAfterClose(t *testing.T) {
	s, clk, sink := newTestScheduler()

	s.Snapshot(map[string]models.Lift{"1": lift("1", 1)})
	s.Enqueue(diff("1", 5))
	s.Close()
	version := sink.Version()

	clk.Advance(time.Second)
	s.Enqueue(diff("1", 6))
	s.Snapshot(map[string]models.Lift{"9": lift("9", 9)})
	s.Close()
	clk.Advance(time.Second)

	assert.Empty(t, sink.merges)
	assert.Equal(t, 1, sink.replaces)
	assert.Equal(t, 1, sink.clears)
	assert.Equal(t, version, sink.Version())
	assert.Equal(t, 0, sink.Len())
	assert.Equal(t, PhaseClosed, s.Phase())
}

func TestScheduler_StaleTimerCallbackIsIgnored(t *testing.T) {
	s, clk, sink := newTestScheduler()

	s.Enqueue(diff("1", 1))
	staleGen := s.gen
	s.Snapshot(nil)
	s.fire(staleGen)
	clk.Advance(time.Second)

	assert.Empty(t, sink.merges)
}

func TestScheduler_LatestPrefersPending(t *testing.T) {
	s, _, _ := newTestScheduler()

	s.Snapshot(map[string]models.Lift{"1": lift("1", 1)})
	l, ok := s.Latest("1")
	require.True(t, ok)
	assert.Equal(t, 1, l.FloorPosition)

	s.Enqueue(diff("1", 2))
	l, ok = s.Latest("1")
	require.True(t, ok)
	assert.Equal(t, 2, l.FloorPosition)

	_, ok = s.Latest("missing")
	assert.False(t, ok)
}

func TestScheduler_FlushHookReportsBatchSize(t *testing.T) {
	clk := NewFakeClock(epoch)
	var sizes []int
	s := New(newRecordingSink(clk), Config{}, WithClock(clk), WithFlushHook(func(n int) { sizes = append(sizes, n) }))

	s.Enqueue(map[string]models.Lift{"1": lift("1", 1), "2": lift("2", 1)})
	s.Enqueue(diff("3", 1))
	clk.Advance(DefaultBatchWindow)

	assert.Equal(t, []int{3}, sizes)
}

func TestScheduler_RealClockFlushes(t *testing.T) {
	sink := newRecordingSink(RealClock())
	s := New(sink, Config{BatchWindow: 5 * time.Millisecond, MinRenderGap: time.Millisecond})
	defer s.Close()

	s.Enqueue(diff("1", 3))
	require.Eventually(t, func() bool {
		l, ok := sink.Get("1")
		return ok && l.FloorPosition == 3
	}, time.Second, 5*time.Millisecond)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"smartlift_monitor/internal/decoder"
	"smartlift_monitor/internal/logger"
	"smartlift_monitor/internal/metrics"
	"smartlift_monitor/internal/models"
	"smartlift_monitor/internal/repository"
	"smartlift_monitor/internal/stream"
)

const journalTimeout = 2 * time.Second

var ErrAlreadyStarted = errors.New("lift sync already started")

// Subscriber opens a stream subscription; *stream.Client implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, cfg stream.Config) (teardown func())
}

// Batcher is the write path into the store; *scheduler.Scheduler implements it.
type Batcher interface {
	Snapshot(lifts map[string]models.Lift)
	Enqueue(lifts map[string]models.Lift)
	Latest(id string) (models.Lift, bool)
	Close()
}

// StatusSink receives connection status changes; *store.Store implements it.
type StatusSink interface {
	SetStatus(st models.ConnStatus)
}

// LiftSync owns the single upstream stream of the process. It projects
// snapshots straight into the store and routes diffs through the batcher.
type LiftSync struct {
	client  Subscriber
	batcher Batcher
	status  StatusSink
	journal repository.EventRepo
	metrics *metrics.Metrics
	log     *logger.Logger
	liftIDs []string

	mu       sync.Mutex
	teardown func()
	started  bool
	stopped  bool
}

func NewLiftSync(client Subscriber, batcher Batcher, status StatusSink, journal repository.EventRepo, m *metrics.Metrics, log *logger.Logger) *LiftSync {
	if log == nil {
		log = logger.NewNop()
	}
	return &LiftSync{
		client:  client,
		batcher: batcher,
		status:  status,
		journal: journal,
		metrics: m,
		log:     log,
	}
}

// WithLiftIDs restricts the subscription to the given lifts. Call before Start.
func (s *LiftSync) WithLiftIDs(ids []string) *LiftSync {
	s.liftIDs = append([]string(nil), ids...)
	return s
}

// Start opens the stream subscription. It returns immediately; connection
// progress is reported through the status sink.
func (s *LiftSync) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return ErrAlreadyStarted
	}
	s.started = true

	s.teardown = s.client.Subscribe(ctx, stream.Config{
		LiftIDs:        s.liftIDs,
		OnStatusChange: s.onStatus,
		OnSnapshot:     s.onSnapshot,
		OnDiff:         s.onDiff,
	})
	s.log.Infow("lift_sync_started", "lift_ids", s.liftIDs)
	return nil
}

// Stop closes the stream, then cancels any pending flush. Safe to call more
// than once and before Start.
func (s *LiftSync) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	teardown := s.teardown
	s.mu.Unlock()

	if teardown != nil {
		teardown()
	}
	s.batcher.Close()
	s.log.Infow("lift_sync_stopped")
}

func (s *LiftSync) onSnapshot(msg stream.Message) {
	s.recordMessage(stream.KindSnapshot)

	lifts := make(map[string]models.Lift, len(msg.Lifts))
	for id, raw := range msg.Lifts {
		rl := models.RawLift{ID: models.LiftID(id)}
		lift, err := s.project(id, raw, rl)
		if err != nil {
			// keep what the store already has for this lift
			if prev, ok := s.batcher.Latest(id); ok {
				lifts[id] = prev
			}
			continue
		}
		lifts[id] = lift
	}
	s.batcher.Snapshot(lifts)
	s.log.Debugw("snapshot_applied", "lifts", len(lifts), "event_id", msg.ID)
}

func (s *LiftSync) onDiff(msg stream.Message) {
	s.recordMessage(stream.KindDiff)

	lifts := make(map[string]models.Lift, len(msg.Lifts))
	for id, raw := range msg.Lifts {
		base := models.RawLift{ID: models.LiftID(id)}
		if prev, ok := s.batcher.Latest(id); ok {
			base = prev.RawLift
		}
		lift, err := s.project(id, raw, base)
		if err != nil {
			continue
		}
		lifts[id] = lift
	}
	s.batcher.Enqueue(lifts)
}

// project decodes raw over base field by field and projects the result.
func (s *LiftSync) project(id string, raw json.RawMessage, base models.RawLift) (models.Lift, error) {
	rl := base
	if err := json.Unmarshal(raw, &rl); err != nil {
		s.projectionFailed(id, fmt.Errorf("decode lift record: %w", err))
		return models.Lift{}, err
	}
	rl.ID = models.LiftID(id)

	lift, err := decoder.Project(rl)
	if err != nil {
		s.projectionFailed(id, err)
		return models.Lift{}, err
	}
	return lift, nil
}

func (s *LiftSync) projectionFailed(id string, err error) {
	if s.metrics != nil {
		s.metrics.RecordProjectionFailure()
	}
	s.log.Warnw("lift_projection_skipped", "lift_id", id, "err", err)
}

func (s *LiftSync) onStatus(st models.ConnStatus) {
	s.status.SetStatus(st)
	if s.metrics != nil {
		s.metrics.RecordStatus(st)
	}
	s.log.Infow("stream_status", "status", st)

	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	err := s.journal.Append(ctx, models.LiftEvent{
		Type:        models.EventStatusChange,
		Description: string(st),
		Metadata:    map[string]any{"status": st},
	})
	if err != nil {
		s.log.Errorw("journal_append_failed", "type", models.EventStatusChange, "err", err)
	}
}

func (s *LiftSync) recordMessage(kind stream.Kind) {
	if s.metrics != nil {
		s.metrics.RecordMessage(string(kind))
	}
}

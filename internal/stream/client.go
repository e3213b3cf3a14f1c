// Package stream keeps one long-lived Server-Sent Events connection to the
// lift status feed and classifies each message as a snapshot or a diff.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"smartlift_monitor/internal/logger"
	"smartlift_monitor/internal/models"
)

// Reconnect timing defaults.
const (
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 30 * time.Second

	maxBackoffShift = 16
)

var (
	// ErrUnexpectedStatus is reported when the feed answers with a non-200 status.
	ErrUnexpectedStatus = errors.New("unexpected stream response status")

	errNoLifts = errors.New("payload has no lifts")
)

// Options configure the transport.
type Options struct {
	URL          string
	Token        string // sent as a bearer token when set
	InitialDelay time.Duration
	MaxDelay     time.Duration
	HTTPClient   *http.Client // must not set a Timeout; the stream is long-lived
}

// Config is what a subscriber supplies.
type Config struct {
	LiftIDs        []string // optional filter
	OnStatusChange func(models.ConnStatus)
	OnSnapshot     func(Message)
	OnDiff         func(Message)
}

// Client opens stream subscriptions.
type Client struct {
	opts Options
	http *http.Client
	log  *logger.Logger
}

// NewClient builds a client. A nil logger discards output.
func NewClient(opts Options, log *logger.Logger) *Client {
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = DefaultInitialDelay
	}
	if opts.MaxDelay < opts.InitialDelay {
		opts.MaxDelay = DefaultMaxDelay
		if opts.MaxDelay < opts.InitialDelay {
			opts.MaxDelay = opts.InitialDelay
		}
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{opts: opts, http: hc, log: log}
}

// Subscribe connects in the background and keeps reconnecting until the
// returned teardown func is called or ctx ends. Teardown closes the
// connection and waits until no callback can run any more; it must not be
// called from inside a callback.
func (c *Client) Subscribe(ctx context.Context, cfg Config) (teardown func()) {
	ctx, cancel := context.WithCancel(ctx)
	s := &subscription{
		client: c,
		cfg:    cfg,
		done:   make(chan struct{}),
	}
	if len(cfg.LiftIDs) > 0 {
		s.allowed = make(map[string]bool, len(cfg.LiftIDs))
		for _, id := range cfg.LiftIDs {
			s.allowed[id] = true
		}
	}

	go s.run(ctx)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-s.done
		})
	}
}

type subscription struct {
	client  *Client
	cfg     Config
	allowed map[string]bool
	done    chan struct{}

	mu     sync.Mutex
	status models.ConnStatus
	lastID string
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.done)
	defer s.setStatus(models.StatusDisconnected)

	log := s.client.log
	attempt := 0
	for {
		s.setStatus(models.StatusConnecting)
		received, err := s.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warnw("stream_connection_failed", "url", s.client.opts.URL, "err", err)
			s.setStatus(models.StatusError)
		} else {
			log.Infow("stream_closed_by_server", "url", s.client.opts.URL)
			s.setStatus(models.StatusDisconnected)
		}

		if received > 0 {
			attempt = 0
		}
		attempt++
		delay := backoff(attempt, s.client.opts.InitialDelay, s.client.opts.MaxDelay)
		log.Debugw("stream_reconnect_scheduled", "attempt", attempt, "delay", delay)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// connect runs one connection until it ends and returns how many messages
// were delivered on it.
func (s *subscription) connect(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.streamURL(), nil)
	if err != nil {
		return 0, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if tok := s.client.opts.Token; tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if id := s.lastEventID(); id != "" {
		req.Header.Set("Last-Event-ID", id)
	}

	resp, err := s.client.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("open stream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	received := 0
	err = readEvents(resp.Body, func(ev event) error {
		msg, err := decodeMessage(ev, received == 0)
		if err != nil {
			s.client.log.Warnw("stream_message_dropped", "event", ev.Name, "err", err)
			return nil
		}
		if ev.ID != "" {
			s.setLastEventID(ev.ID)
		}
		if received == 0 {
			s.setStatus(models.StatusOnline)
		}
		received++
		s.dispatch(msg.filter(s.allowed))
		return nil
	})
	if err != nil {
		return received, fmt.Errorf("read stream: %w", err)
	}
	return received, nil
}

func (s *subscription) dispatch(msg Message) {
	switch msg.Kind {
	case KindSnapshot:
		if s.cfg.OnSnapshot != nil {
			s.cfg.OnSnapshot(msg)
		}
	default:
		if len(msg.Lifts) == 0 {
			return
		}
		if s.cfg.OnDiff != nil {
			s.cfg.OnDiff(msg)
		}
	}
}

func (s *subscription) streamURL() string {
	raw := s.client.opts.URL
	if len(s.cfg.LiftIDs) == 0 {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("lift_id", strings.Join(s.cfg.LiftIDs, ","))
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *subscription) setStatus(st models.ConnStatus) {
	s.mu.Lock()
	if s.status == st {
		s.mu.Unlock()
		return
	}
	s.status = st
	s.mu.Unlock()

	if s.cfg.OnStatusChange != nil {
		s.cfg.OnStatusChange(st)
	}
}

func (s *subscription) lastEventID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

func (s *subscription) setLastEventID(id string) {
	s.mu.Lock()
	s.lastID = id
	s.mu.Unlock()
}

// backoff returns initial * 2^(attempt-1), capped at max.
func backoff(attempt int, initial, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	d := initial * time.Duration(1<<uint(shift))
	if d > maxDelay || d <= 0 {
		d = maxDelay
	}
	return d
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartlift_monitor/internal/decoder"
	"smartlift_monitor/internal/logger"
	"smartlift_monitor/internal/metrics"
	"smartlift_monitor/internal/models"
	"smartlift_monitor/internal/repository"
)

// CommandKind names an operator command.
type CommandKind string

const (
	CommandGotoFloor CommandKind = "goto_floor"
	CommandDoorOpen  CommandKind = "door_open"
	CommandDoorClose CommandKind = "door_close"
	CommandSetMode   CommandKind = "set_mode"
)

const defaultCommandTimeout = 5 * time.Second

var (
	ErrUnknownLift     = errors.New("unknown lift")
	ErrInvalidCommand  = errors.New("invalid command")
	ErrCommandRejected = errors.New("command rejected by controller")
)

// Command is an operator request for one lift.
type Command struct {
	Kind        CommandKind `json:"command"`
	TargetFloor int         `json:"target_floor,omitempty"`
	Mode        string      `json:"mode,omitempty"`
}

// CommandRequest is the wire payload sent to the command endpoint.
type CommandRequest struct {
	RequestID   string      `json:"request_id"`
	LiftID      string      `json:"lift_id"`
	Command     CommandKind `json:"command"`
	TargetFloor int         `json:"target_floor,omitempty"`
	Mode        string      `json:"mode,omitempty"`
}

// CommandResult is what the caller learns about a dispatched command.
type CommandResult struct {
	RequestID  string      `json:"request_id"`
	LiftID     string      `json:"lift_id"`
	Command    CommandKind `json:"command"`
	Accepted   bool        `json:"accepted"`
	StatusCode int         `json:"status_code,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// CommanderOptions configure the command endpoint.
type CommanderOptions struct {
	URL        string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// LiftLookup resolves lifts known to the store.
type LiftLookup interface {
	Get(id string) (models.Lift, bool)
}

// Commander validates operator commands, forwards them to the controller API
// and journals the outcome. It never touches the lift store.
type Commander struct {
	opts    CommanderOptions
	http    *http.Client
	lifts   LiftLookup
	journal repository.EventRepo
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewCommander(opts CommanderOptions, lifts LiftLookup, journal repository.EventRepo, m *metrics.Metrics, log *logger.Logger) *Commander {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultCommandTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Commander{opts: opts, http: hc, lifts: lifts, journal: journal, metrics: m, log: log}
}

// Send dispatches cmd to liftID. Validation failures wrap ErrUnknownLift or
// ErrInvalidCommand; a non-2xx answer wraps ErrCommandRejected.
func (c *Commander) Send(ctx context.Context, liftID string, cmd Command) (CommandResult, error) {
	liftID = strings.TrimSpace(liftID)
	res := CommandResult{LiftID: liftID, Command: cmd.Kind}

	lift, ok := c.lifts.Get(liftID)
	if !ok {
		c.record(cmd.Kind, metrics.OutcomeInvalid)
		return res, fmt.Errorf("%w: %q", ErrUnknownLift, liftID)
	}

	req, err := buildRequest(lift, cmd)
	if err != nil {
		c.record(cmd.Kind, metrics.OutcomeInvalid)
		return res, err
	}
	res.RequestID = req.RequestID

	status, msg, err := c.post(ctx, req)
	res.StatusCode = status
	res.Message = msg

	switch {
	case err != nil:
		c.record(cmd.Kind, metrics.OutcomeFailed)
	case status < 200 || status > 299:
		err = fmt.Errorf("%w: %d %s", ErrCommandRejected, status, msg)
		c.record(cmd.Kind, metrics.OutcomeRejected)
	default:
		res.Accepted = true
		c.record(cmd.Kind, metrics.OutcomeOK)
	}

	c.journalOutcome(ctx, req, res, err)
	if err != nil {
		c.log.Warnw("command_failed", "lift_id", liftID, "command", cmd.Kind, "request_id", req.RequestID, "err", err)
		return res, err
	}
	c.log.Infow("command_sent", "lift_id", liftID, "command", cmd.Kind, "request_id", req.RequestID)
	return res, nil
}

// buildRequest validates cmd against what is known about lift.
func buildRequest(lift models.Lift, cmd Command) (CommandRequest, error) {
	req := CommandRequest{
		RequestID: uuid.NewString(),
		LiftID:    lift.Key(),
		Command:   cmd.Kind,
	}

	switch cmd.Kind {
	case CommandGotoFloor:
		top := int(lift.MaxLevel)
		if top <= 0 || top > decoder.MaxCallFloors {
			top = decoder.MaxCallFloors
		}
		if cmd.TargetFloor < 1 || cmd.TargetFloor > top {
			return req, fmt.Errorf("%w: target_floor must be within 1..%d, got %d", ErrInvalidCommand, top, cmd.TargetFloor)
		}
		req.TargetFloor = cmd.TargetFloor
	case CommandDoorOpen, CommandDoorClose:
	case CommandSetMode:
		m, ok := models.ParseMode(cmd.Mode)
		if !ok {
			return req, fmt.Errorf("%w: unknown mode %q", ErrInvalidCommand, cmd.Mode)
		}
		req.Mode = string(m)
	default:
		return req, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, cmd.Kind)
	}
	return req, nil
}

// post returns the HTTP status and the controller's message, if any.
func (c *Commander) post(ctx context.Context, req CommandRequest) (int, string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, "", fmt.Errorf("encode command: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("build command request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.opts.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, "", fmt.Errorf("send command: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, responseMessage(raw), nil
}

// responseMessage extracts {"message"} or {"error"} from a JSON body, or
// returns the trimmed text.
func responseMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func (c *Commander) record(kind CommandKind, outcome string) {
	if c.metrics != nil {
		c.metrics.RecordCommand(boundedKind(kind), outcome)
	}
}

// boundedKind keeps the metrics label set fixed: client-supplied names
// outside the known commands are counted as "unknown".
func boundedKind(k CommandKind) string {
	switch k {
	case CommandGotoFloor, CommandDoorOpen, CommandDoorClose, CommandSetMode:
		return string(k)
	default:
		return "unknown"
	}
}

func (c *Commander) journalOutcome(ctx context.Context, req CommandRequest, res CommandResult, sendErr error) {
	if c.journal == nil {
		return
	}
	ev := models.LiftEvent{
		Type:        models.EventCommand,
		LiftID:      req.LiftID,
		Description: fmt.Sprintf("%s accepted", req.Command),
		Metadata: map[string]any{
			"request_id":   req.RequestID,
			"target_floor": req.TargetFloor,
			"mode":         req.Mode,
			"status_code":  res.StatusCode,
		},
	}
	if sendErr != nil {
		ev.Type = models.EventCommandFailed
		ev.Description = fmt.Sprintf("%s failed: %v", req.Command, sendErr)
	}
	// the request context may already be done; the journal entry is still wanted
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := c.journal.Append(jctx, ev); err != nil {
		c.log.Errorw("journal_append_failed", "type", ev.Type, "lift_id", req.LiftID, "err", err)
	}
}

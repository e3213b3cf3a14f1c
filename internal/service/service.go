package service

import (
	"context"
	"time"

	"smartlift_monitor/internal/logger"
	"smartlift_monitor/internal/metrics"
	"smartlift_monitor/internal/models"
	"smartlift_monitor/internal/repository"
	"smartlift_monitor/internal/store"
)

type Authorization interface {
	Enabled() bool
	ParseToken(accessToken string) (int, error)
}

// Monitoring exposes read-only lift state and the stream status.
type Monitoring interface {
	ListLifts(f LiftFilter) LiftsView
	GetLift(id string) (models.Lift, error)
	Calls(id string) ([]CallRow, error)
	Status() StatusView
	Subscribe(buffer int) (<-chan store.Update, func())
}

// EventLog exposes the append-only journal with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.LiftEvent, error)
}

// Commands dispatches operator commands to the lift controller API.
type Commands interface {
	Send(ctx context.Context, liftID string, cmd Command) (CommandResult, error)
}

// Simulator is the development feed served under /sim.
// Stop via context cancellation in main() for graceful shutdown.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
	Snapshot(liftIDs []string) map[string]models.RawLift
	Subscribe(buffer int) (<-chan map[string]models.RawLift, func())
	Apply(req CommandRequest) error
}

// Service aggregates the sub-services used by the HTTP layer.
type Service struct {
	Monitoring
	EventLog
	Commands
	Simulator
	Authorization
}

// Options carries what the sub-services need beyond the repositories.
type Options struct {
	JWTSecret string
	Command   CommanderOptions
	Simulator *SimulatorOptions // nil disables the development feed
	Metrics   *metrics.Metrics
	Log       *logger.Logger
}

// NewService wires the repository layer and the lift store into concrete services.
func NewService(repos *repository.Repository, st *store.Store, opts Options) *Service {
	svc := &Service{
		Monitoring:    NewMonitoringService(st),
		EventLog:      NewEventLogService(repos.EventRepo),
		Commands:      NewCommander(opts.Command, st, repos.EventRepo, opts.Metrics, opts.Log),
		Authorization: NewAuthService(opts.JWTSecret),
	}
	if opts.Simulator != nil {
		svc.Simulator = NewFeedSimulator(*opts.Simulator, opts.Log)
	}
	return svc
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"smartlift_monitor/internal/models"
)

// EventFilter narrows a journal listing. Zero fields match everything.
type EventFilter struct {
	From   time.Time
	To     time.Time
	Type   string
	LiftID string
}

type EventRepo interface {
	Append(ctx context.Context, e models.LiftEvent) error
	List(ctx context.Context, f EventFilter) ([]models.LiftEvent, error)
}

type Repository struct {
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
	}
}

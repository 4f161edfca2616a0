package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Baaaki/taskvault/internal/models"
	"github.com/google/uuid"
)

// ErrUnavailable is returned by Subscribe when no pub/sub backend is configured.
var ErrUnavailable = errors.New("event broker unavailable")

type EventType string

const (
	EventTaskCreated EventType = "task.created"
	EventTaskUpdated EventType = "task.updated"
	EventTaskDeleted EventType = "task.deleted"
)

// TaskEvent describes one committed change to a task. Events are routed by
// OwnerID, so a subscriber only ever sees its own tasks.
type TaskEvent struct {
	Type       EventType    `json:"type"`
	OwnerID    uuid.UUID    `json:"owner_id"`
	TaskID     uuid.UUID    `json:"task_id"`
	Task       *models.Task `json:"task,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// TaskEventBroker fans task events out to the owner's live subscribers.
type TaskEventBroker interface {
	Publish(ctx context.Context, event TaskEvent) error

	// Subscribe returns once the subscription is active. Events stop when ctx
	// is done or the subscription is closed.
	Subscribe(ctx context.Context, ownerID uuid.UUID) (*Subscription, error)

	Close() error
}

// Subscription delivers events for a single owner.
type Subscription struct {
	events <-chan TaskEvent
	stop   func() error
	once   sync.Once
	err    error
}

func newSubscription(events <-chan TaskEvent, stop func() error) *Subscription {
	return &Subscription{events: events, stop: stop}
}

// Events is closed when the subscription ends.
func (s *Subscription) Events() <-chan TaskEvent {
	return s.events
}

// Close is safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.err = s.stop()
	})
	return s.err
}

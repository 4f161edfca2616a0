package broker

import (
	"context"

	"github.com/google/uuid"
)

// NopBroker drops every event. Used when Redis is not configured.
type NopBroker struct{}

func NewNopBroker() *NopBroker {
	return &NopBroker{}
}

func (NopBroker) Publish(ctx context.Context, event TaskEvent) error {
	return nil
}

func (NopBroker) Subscribe(ctx context.Context, ownerID uuid.UUID) (*Subscription, error) {
	return nil, ErrUnavailable
}

func (NopBroker) Close() error {
	return nil
}

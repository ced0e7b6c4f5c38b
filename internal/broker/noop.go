package broker

import "context"

// DisabledPublisher drops every event. Used when no broker is configured.
type DisabledPublisher struct{}

func NewDisabledPublisher() *DisabledPublisher {
	return &DisabledPublisher{}
}

func (p *DisabledPublisher) Publish(ctx context.Context, ev Event) error {
	return nil
}

func (p *DisabledPublisher) Close() error {
	return nil
}

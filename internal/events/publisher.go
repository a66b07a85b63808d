package events

import "context"

// Publisher hands envelopes to downstream collaborators. Publishing is
// best-effort: callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// NopPublisher drops every envelope. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Envelope) error { return nil }
func (NopPublisher) Close() error                            { return nil }

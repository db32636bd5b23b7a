package shared

import "context"

// EventHandler reacts to events published after a document's transaction
// has committed. A handler error is logged by the bus; it never reaches the
// code that posted the document.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the types subscribed to when none are given; empty means all
	EventTypes() []string
}

// EventPublisher delivers a document's pending events once its post or
// unpost is durable.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

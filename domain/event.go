package domain

import (
	"context"
	"time"
)

// Types of follow graph events.
const (
	EventFollowCreated   = "follow.created"
	EventFollowRemoved   = "follow.removed"
	EventFollowRequested = "follow.requested"
	EventFollowAccepted  = "follow.accepted"
	EventFollowDeclined  = "follow.declined"
)

// Event describes a change of the follow graph.
type Event struct {
	Type      string    `json:"type"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	RequestID string    `json:"request_id,omitempty"`
	At        time.Time `json:"at"`
}

// EventPublisher delivers events to interested parties. Publishing never
// fails the operation that caused the event.
type EventPublisher interface {
	Publish(ctx context.Context, e Event)
}

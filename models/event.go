package models

import "time"

// EventKind classifies an inbound messaging event.
type EventKind string

const (
	EventText     EventKind = "text"
	EventNonText  EventKind = "non_text"
	EventEcho     EventKind = "echo"
	EventDelivery EventKind = "delivery"
	EventRead     EventKind = "read"
)

// InboundEvent is one normalized messaging event from a webhook delivery.
type InboundEvent struct {
	SenderID    string
	RecipientID string
	PageID      string
	MessageID   string
	Text        string
	Timestamp   time.Time

	IsEcho       bool
	EchoAppID    string
	EchoMetadata string

	IsDelivery bool
	IsRead     bool
}

// Kind derives the event kind. Receipts take precedence over echoes.
func (e InboundEvent) Kind() EventKind {
	switch {
	case e.IsDelivery:
		return EventDelivery
	case e.IsRead:
		return EventRead
	case e.IsEcho:
		return EventEcho
	case e.Text == "":
		return EventNonText
	default:
		return EventText
	}
}

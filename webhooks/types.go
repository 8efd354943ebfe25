package webhooks

import (
	"strconv"
	"time"

	"support-router/models"
)

// WebhookEvent represents the main webhook payload from Facebook
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry represents a page entry in the webhook
type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging,omitempty"`
}

// Messaging represents a messaging event
type Messaging struct {
	Sender    User      `json:"sender"`
	Recipient User      `json:"recipient"`
	Timestamp int64     `json:"timestamp"`
	Message   *Message  `json:"message,omitempty"`
	Delivery  *Delivery `json:"delivery,omitempty"`
	Read      *Read     `json:"read,omitempty"`
}

// User represents a Facebook user
type User struct {
	ID string `json:"id"`
}

// Message represents a message. Echoes of page messages carry IsEcho,
// the sending app and any metadata attached at send time.
type Message struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text"`
	IsEcho      bool         `json:"is_echo,omitempty"`
	AppID       int64        `json:"app_id,omitempty"`
	Metadata    string       `json:"metadata,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment
type Attachment struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

// Payload represents attachment payload
type Payload struct {
	URL string `json:"url"`
}

// Delivery is a delivery receipt.
type Delivery struct {
	MIDs      []string `json:"mids,omitempty"`
	Watermark int64    `json:"watermark"`
}

// Read is a read receipt.
type Read struct {
	Watermark int64 `json:"watermark"`
}

// InboundEvents flattens a delivery into router events, preserving order.
// Entries without a message or receipt are dropped.
func (w WebhookEvent) InboundEvents() []models.InboundEvent {
	var events []models.InboundEvent
	for _, entry := range w.Entry {
		for _, m := range entry.Messaging {
			if m.Message == nil && m.Delivery == nil && m.Read == nil {
				continue
			}
			ev := models.InboundEvent{
				SenderID:    m.Sender.ID,
				RecipientID: m.Recipient.ID,
				PageID:      entry.ID,
				Timestamp:   time.UnixMilli(m.Timestamp).UTC(),
				IsDelivery:  m.Delivery != nil,
				IsRead:      m.Read != nil,
			}
			if m.Message != nil {
				ev.MessageID = m.Message.MID
				ev.Text = m.Message.Text
				ev.IsEcho = m.Message.IsEcho
				ev.EchoMetadata = m.Message.Metadata
				if m.Message.AppID != 0 {
					ev.EchoAppID = strconv.FormatInt(m.Message.AppID, 10)
				}
			}
			events = append(events, ev)
		}
	}
	return events
}

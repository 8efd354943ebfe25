package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCustomerIsOnboarded(t *testing.T) {
	tests := []struct {
		name     string
		customer Customer
		want     bool
	}{
		{"empty", Customer{}, false},
		{"name only", Customer{Name: "Ana"}, false},
		{"phone only", Customer{Phone: "5551234567"}, false},
		{"whitespace name", Customer{Name: "  ", Phone: "5551234567"}, false},
		{"both", Customer{Name: "Ana", Phone: "5551234567"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.customer.IsOnboarded())
		})
	}
}

func TestCustomerUpdateFields(t *testing.T) {
	assert.True(t, CustomerUpdate{}.IsEmpty())

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	fields := PauseUpdate(at).Fields()
	assert.Equal(t, map[string]interface{}{"ai_paused": true, "last_human_reply_at": at}, fields)

	assert.Equal(t, map[string]interface{}{"ai_paused": false}, ResumeUpdate().Fields())
}

func TestInboundEventKind(t *testing.T) {
	assert.Equal(t, EventDelivery, InboundEvent{IsDelivery: true, IsEcho: true}.Kind())
	assert.Equal(t, EventRead, InboundEvent{IsRead: true}.Kind())
	assert.Equal(t, EventEcho, InboundEvent{IsEcho: true, Text: "hi"}.Kind())
	assert.Equal(t, EventNonText, InboundEvent{}.Kind())
	assert.Equal(t, EventText, InboundEvent{Text: "hi"}.Kind())
}

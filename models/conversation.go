package models

import "time"

// TurnRole identifies who authored a conversation turn.
type TurnRole string

const (
	RoleCustomer  TurnRole = "customer"
	RoleAssistant TurnRole = "assistant"
)

// Turn is one message in an onboarding conversation.
type Turn struct {
	Role TurnRole  `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// CustomerTurn builds an inbound turn.
func CustomerTurn(text string, at time.Time) Turn {
	return Turn{Role: RoleCustomer, Text: text, At: at}
}

// AssistantTurn builds an outbound turn.
func AssistantTurn(text string, at time.Time) Turn {
	return Turn{Role: RoleAssistant, Text: text, At: at}
}

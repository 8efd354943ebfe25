package handlers

import (
	"time"

	"support-router/models"
)

// State is the routing state of a customer, derived from its record.
type State string

const (
	StateUnknown         State = "UNKNOWN"
	StatePausedPermanent State = "PAUSED_PERMANENT"
	StatePausedTimed     State = "PAUSED_TIMED"
	StateOnboarding      State = "ONBOARDING"
	StateActive          State = "ACTIVE"
)

// DeriveState maps a customer record to its routing state at now. A
// timed pause whose window has elapsed derives to the underlying state;
// ResumeDue reports that the stored flag still needs clearing.
func DeriveState(customer *models.Customer, now time.Time, resumeAfter time.Duration) State {
	if customer == nil {
		return StateUnknown
	}
	if customer.AIPaused {
		if customer.SupportInitiated() {
			return StatePausedPermanent
		}
		if !pauseElapsed(customer, now, resumeAfter) {
			return StatePausedTimed
		}
	}
	if customer.IsOnboarded() {
		return StateActive
	}
	return StateOnboarding
}

// ResumeDue reports whether a customer-initiated pause has run its course.
func ResumeDue(customer *models.Customer, now time.Time, resumeAfter time.Duration) bool {
	return customer != nil &&
		customer.AIPaused &&
		!customer.SupportInitiated() &&
		pauseElapsed(customer, now, resumeAfter)
}

func pauseElapsed(customer *models.Customer, now time.Time, resumeAfter time.Duration) bool {
	if customer.LastHumanReplyAt == nil {
		return true
	}
	return now.Sub(*customer.LastHumanReplyAt) >= resumeAfter
}

// IsPaused reports whether the state suppresses automated handling.
func (s State) IsPaused() bool {
	return s == StatePausedPermanent || s == StatePausedTimed
}

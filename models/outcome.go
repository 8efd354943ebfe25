package models

import "time"

// Outcome is the terminal result of routing one event.
type Outcome string

const (
	OutcomeReceiptIgnored      Outcome = "receipt_ignored"
	OutcomeEchoIgnored         Outcome = "echo_ignored"
	OutcomeHumanTakeover       Outcome = "human_takeover"
	OutcomeSkippedNoText       Outcome = "skipped_no_text"
	OutcomePausedForwarded     Outcome = "paused_forwarded"
	OutcomeOnboardingStarted   Outcome = "onboarding_started"
	OutcomeOnboardingContinued Outcome = "onboarding_continued"
	OutcomeOnboardingCompleted Outcome = "onboarding_completed"
	OutcomeSpamLogged          Outcome = "spam_logged"
	OutcomeAnsweredByAI        Outcome = "answered_by_ai"
	OutcomeForwardedToSupport  Outcome = "forwarded_to_support"
	OutcomeFailed              Outcome = "failed"
)

// RoutingResult describes how one event was handled.
type RoutingResult struct {
	EventID  string        `json:"event_id"`
	Kind     EventKind     `json:"kind"`
	PSID     string        `json:"psid,omitempty"`
	State    string        `json:"state,omitempty"`
	Outcome  Outcome       `json:"outcome"`
	Category string        `json:"category,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

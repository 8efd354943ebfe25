package handlers

import (
	"fmt"
	"strings"

	"support-router/models"
)

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

func formatNewInquiryAlert(psid, text string) string {
	return fmt.Sprintf("🆕 NEW CUSTOMER INQUIRY\n\nPSID: %s\nFirst Message: %s\n\nPlease follow up!", psid, text)
}

func formatOnboardingCompleteAlert(c *models.Customer) string {
	var b strings.Builder
	b.WriteString("✅ CUSTOMER ONBOARDED\n\n")
	fmt.Fprintf(&b, "Name: %s\n", orUnknown(c.Name))
	fmt.Fprintf(&b, "Phone: %s\n", orUnknown(c.Phone))
	if c.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", c.Email)
	}
	if c.Inquiry != "" {
		fmt.Fprintf(&b, "Inquiry: %s\n", c.Inquiry)
	}
	if c.FirstMessage != "" {
		fmt.Fprintf(&b, "First Message: %s\n", c.FirstMessage)
	}
	fmt.Fprintf(&b, "\nPSID: %s", c.PSID)
	return b.String()
}

func formatPausedAlert(c *models.Customer, category, text string) string {
	return fmt.Sprintf("💬 *NEW MESSAGE (AI PAUSED)*\n\nUser: %s\nCategory: %s\nMessage: \"%s\"\n\nNote: A human is currently handling this chat.",
		orUnknown(c.Name), category, text)
}

func formatCustomerMessage(c *models.Customer, text string, qc models.QueryClassification, aiReplied bool) string {
	var b strings.Builder
	b.WriteString("💬 CUSTOMER MESSAGE\n\n")
	fmt.Fprintf(&b, "Name: %s\n", orUnknown(c.Name))
	fmt.Fprintf(&b, "Phone: %s\n", orUnknown(c.Phone))
	if c.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", c.Email)
	}
	fmt.Fprintf(&b, "Category: %s\n", qc.Category)
	if qc.NeedsEscalation {
		b.WriteString("⚠️ Needs human attention\n")
	}
	fmt.Fprintf(&b, "\nMessage:\n%s\n\n", text)
	if aiReplied {
		b.WriteString("AI replied: yes\n")
	} else {
		b.WriteString("AI replied: no, awaiting your response\n")
	}
	fmt.Fprintf(&b, "PSID: %s", c.PSID)
	return b.String()
}

func formatSpamFilteredAlert(psid, text string, v models.SpamVerdict) string {
	return fmt.Sprintf("🚫 SPAM FILTERED\n\nPSID: %s\nConfidence: %.0f%%\nReason: %s\nMessage: \"%s\"\n\nNo reply was sent.",
		psid, v.Confidence*100, v.Reason, text)
}

func formatRepeatedSpamAlert(psid, text string, v models.SpamVerdict, occurrences int) string {
	return fmt.Sprintf("🚨 REPEATED SPAM\n\nPSID: %s\nThe same message arrived %d times recently.\nReason: %s\nMessage: \"%s\"\n\nConsider blocking this sender.",
		psid, occurrences, v.Reason, text)
}

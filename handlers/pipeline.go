package handlers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"support-router/logger"
	"support-router/models"
)

const (
	genericAcknowledgment = "Thanks for your message! Our team will review and get back to you shortly."
	maxBrandCategories    = 3
)

// RepeatPolicy decides when spam counts as repeated: at least MinMatches
// of the Window most recent spam entries, the new one included, carry the
// same normalized text.
type RepeatPolicy struct {
	Window     int
	MinMatches int
}

// DefaultRepeatPolicy is three entries with two matches.
var DefaultRepeatPolicy = RepeatPolicy{Window: 3, MinMatches: 2}

// Matches counts entries in recent whose text equals text after folding
// case and collapsing whitespace.
func (p RepeatPolicy) Matches(recent []models.SpamLog, text string) int {
	want := normalizeText(text)
	n := 0
	for i, entry := range recent {
		if i >= p.Window {
			break
		}
		if normalizeText(entry.Message) == want {
			n++
		}
	}
	return n
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

const brandPromptTemplate = `Does the customer message below ask which brands %s carries, or about a specific brand or product category?

Message: "%s"

Known categories: %s

Respond ONLY with valid JSON (no markdown, no code blocks):
{"is_brand_inquiry": true or false, "categories": ["matching product categories"]}`

type brandInquiry struct {
	IsBrandInquiry bool     `json:"is_brand_inquiry"`
	Categories     []string `json:"categories" validate:"max=10,dive,max=80"`
}

const answerPromptTemplate = `You are a friendly customer service AI for %s, specializing in %s.

Customer name: %s
Customer message: "%s"
%s
Guidelines:
- Be warm and professional
- Keep the reply brief (2-4 sentences)
- Only mention brands listed above; never invent prices or availability
- If a human needs to follow up, say the team will contact them soon

Write the reply (plain text, no JSON, no formatting):`

// QueryPipeline handles text from fully onboarded customers.
type QueryPipeline struct {
	store     Store
	messenger EndUserChannel
	support   SupportChannel
	intel     Intelligence
	spam      SpamClassifier
	profile   BusinessProfile
	repeat    RepeatPolicy
}

func NewQueryPipeline(store Store, messenger EndUserChannel, support SupportChannel, intel Intelligence,
	spam SpamClassifier, profile BusinessProfile, repeat RepeatPolicy) *QueryPipeline {
	return &QueryPipeline{
		store:     store,
		messenger: messenger,
		support:   support,
		intel:     intel,
		spam:      spam,
		profile:   profile,
		repeat:    repeat,
	}
}

// Handle routes one message. qc is the category verdict already made for
// the query log.
func (p *QueryPipeline) Handle(ctx context.Context, customer *models.Customer, text string, qc models.QueryClassification) (models.Outcome, error) {
	verdict := p.spam.Classify(ctx, text)
	if verdict.IsSpam {
		return p.handleSpam(ctx, customer.PSID, text, verdict)
	}
	return p.handleGenuine(ctx, customer, text, qc)
}

func (p *QueryPipeline) handleSpam(ctx context.Context, psid, text string, verdict models.SpamVerdict) (models.Outcome, error) {
	log := logger.FromContext(ctx)

	if _, err := p.store.AppendSpamLog(ctx, &models.SpamLog{
		PSID:       psid,
		Message:    text,
		Reason:     verdict.Reason,
		Confidence: verdict.Confidence,
	}); err != nil {
		return models.OutcomeFailed, fmt.Errorf("append spam log: %w", err)
	}

	matches := 1
	recent, err := p.store.RecentSpamLogs(ctx, psid, p.repeat.Window)
	if err != nil {
		log.Error("Failed to load recent spam logs", zap.Error(err))
	} else {
		matches = p.repeat.Matches(recent, text)
	}

	alert := formatSpamFilteredAlert(psid, text, verdict)
	if matches >= p.repeat.MinMatches {
		alert = formatRepeatedSpamAlert(psid, text, verdict, matches)
		log.Warn("Repeated spam detected", zap.Int("matches", matches))
	}
	if err := p.support.Send(ctx, alert); err != nil {
		log.Error("Failed to notify support about spam", zap.Error(err))
	}

	log.Info("Spam logged",
		zap.Float64("confidence", verdict.Confidence),
		zap.String("source", string(verdict.Source)),
		zap.String("reason", verdict.Reason))
	return models.OutcomeSpamLogged, nil
}

func (p *QueryPipeline) handleGenuine(ctx context.Context, customer *models.Customer, text string, qc models.QueryClassification) (models.Outcome, error) {
	log := logger.FromContext(ctx)

	brandsSection, brandLookup := p.lookupBrands(ctx, text)

	prompt := fmt.Sprintf(answerPromptTemplate, p.profile.Name, p.profile.Description,
		orUnknown(customer.Name), text, brandsSection)
	answer, aiAnswered := p.intel.TryGenerate(ctx, prompt)
	if !aiAnswered {
		answer = genericAcknowledgment
	}

	if err := p.messenger.Send(ctx, customer.PSID, answer); err != nil {
		log.Error("Failed to send reply", zap.Error(err))
		aiAnswered = false
	}

	informational := qc.Informational || brandLookup
	if informational && aiAnswered && !qc.NeedsEscalation {
		log.Info("Answered by AI without forwarding", zap.String("category", qc.Category))
		return models.OutcomeAnsweredByAI, nil
	}

	if err := p.support.Send(ctx, formatCustomerMessage(customer, text, qc, aiAnswered)); err != nil {
		log.Error("Failed to forward message to support", zap.Error(err))
	}
	return models.OutcomeForwardedToSupport, nil
}

// lookupBrands detects brand or category questions and returns a prompt
// section listing matching brands.
func (p *QueryPipeline) lookupBrands(ctx context.Context, text string) (string, bool) {
	var inquiry brandInquiry
	prompt := fmt.Sprintf(brandPromptTemplate, p.profile.Name, text, strings.Join(models.QueryCategories[:3], ", "))
	if !p.intel.TryClassify(ctx, prompt, &inquiry) || !inquiry.IsBrandInquiry {
		return "", false
	}

	var b strings.Builder
	for i, category := range inquiry.Categories {
		if i >= maxBrandCategories {
			break
		}
		brands, err := p.store.BrandsByCategory(ctx, category)
		if err != nil {
			logger.FromContext(ctx).Error("Failed to look up brands", zap.String("category", category), zap.Error(err))
			continue
		}
		if len(brands) == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", category, strings.Join(brands, ", "))
	}

	if b.Len() == 0 {
		return "\nNo catalogue brands matched this question.\n", true
	}
	return "\nBrands we carry:\n" + b.String(), true
}

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"support-router/logger"
	"support-router/models"
	"support-router/services"
)

// OnboardingFlow collects contact details from new customers.
type OnboardingFlow interface {
	Start(ctx context.Context, event models.InboundEvent) (models.Outcome, error)
	Continue(ctx context.Context, customer *models.Customer, text string) (models.Outcome, error)
}

const (
	welcomeFallback = "Hello! 👋 Welcome to our support. We've received your message and our team will get back to you shortly.\n\nTo help us serve you better, could you please share your name?"
	askPhoneText    = "Thanks, %s! Could you also share your phone number so we can reach you faster?"
	askNameText     = "Thanks! Could you please share your name?"
	contactSaved    = "Perfect! We have your contact info now. Our team will reach out to you soon. Is there anything else you'd like to add?"
)

const onboardingPromptTemplate = `You are a friendly customer service AI for %s, specializing in %s.

Your goal: Collect customer information naturally through conversation.

Required info to collect:
- Name
- Phone number
- Their specific need/inquiry

Guidelines:
- Be warm and professional
- Ask ONE question at a time
- Keep responses brief (2-3 sentences max)
- If they ask about products, answer briefly then continue collecting info
- Once you have all info, thank them and say support will contact them soon

Current customer data: %s

Conversation so far:
%s

Generate the next AI response (plain text, no JSON, no formatting):`

type onboardingBase struct {
	store     Store
	messenger EndUserChannel
	support   SupportChannel
	now       func() time.Time
}

func (b *onboardingBase) createCustomer(ctx context.Context, event models.InboundEvent) (*models.Customer, error) {
	customer, err := b.store.CreateCustomer(ctx, &models.Customer{
		PSID:         event.SenderID,
		PageID:       event.PageID,
		FirstMessage: event.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return customer, nil
}

func (b *onboardingBase) reply(ctx context.Context, psid, text string) {
	if err := b.messenger.Send(ctx, psid, text); err != nil {
		logger.FromContext(ctx).Error("Failed to send onboarding reply", zap.Error(err))
	}
}

func (b *onboardingBase) notify(ctx context.Context, text string) {
	if err := b.support.Send(ctx, text); err != nil {
		logger.FromContext(ctx).Error("Failed to notify support", zap.Error(err))
	}
}

// AIOnboarding runs onboarding as an AI-led conversation.
type AIOnboarding struct {
	onboardingBase
	intel   Intelligence
	history HistoryStore
	profile BusinessProfile
}

func NewAIOnboarding(store Store, messenger EndUserChannel, support SupportChannel, intel Intelligence,
	history HistoryStore, profile BusinessProfile) *AIOnboarding {
	return &AIOnboarding{
		onboardingBase: onboardingBase{store: store, messenger: messenger, support: support, now: time.Now},
		intel:          intel,
		history:        history,
		profile:        profile,
	}
}

func (a *AIOnboarding) Start(ctx context.Context, event models.InboundEvent) (models.Outcome, error) {
	customer, err := a.createCustomer(ctx, event)
	if err != nil {
		return models.OutcomeFailed, err
	}

	turns := []models.Turn{models.CustomerTurn(event.Text, a.now())}
	a.appendHistory(ctx, customer.PSID, turns...)

	customer = a.applyExtracted(ctx, customer, event.Text)

	welcome, ok := a.intel.TryGenerate(ctx, a.prompt(customer, turns))
	if !ok {
		welcome = welcomeFallback
	}
	a.reply(ctx, customer.PSID, welcome)
	a.appendHistory(ctx, customer.PSID, models.AssistantTurn(welcome, a.now()))

	a.notify(ctx, formatNewInquiryAlert(customer.PSID, event.Text))

	if customer.IsOnboarded() {
		return a.complete(ctx, customer), nil
	}
	return models.OutcomeOnboardingStarted, nil
}

func (a *AIOnboarding) Continue(ctx context.Context, customer *models.Customer, text string) (models.Outcome, error) {
	psid := customer.PSID
	a.appendHistory(ctx, psid, models.CustomerTurn(text, a.now()))

	customer = a.applyExtracted(ctx, customer, text)

	turns, err := a.history.Load(ctx, psid)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to load conversation history", zap.Error(err))
		turns = []models.Turn{models.CustomerTurn(text, a.now())}
	}

	next, ok := a.intel.TryGenerate(ctx, a.prompt(customer, turns))
	if !ok {
		next = nextQuestion(customer)
	}
	a.reply(ctx, psid, next)
	a.appendHistory(ctx, psid, models.AssistantTurn(next, a.now()))

	if customer.IsOnboarded() {
		return a.complete(ctx, customer), nil
	}
	return models.OutcomeOnboardingContinued, nil
}

func (a *AIOnboarding) complete(ctx context.Context, customer *models.Customer) models.Outcome {
	a.notify(ctx, formatOnboardingCompleteAlert(customer))
	if err := a.history.Clear(ctx, customer.PSID); err != nil {
		logger.FromContext(ctx).Warn("Failed to clear conversation history", zap.Error(err))
	}
	logger.FromContext(ctx).Info("Customer onboarded")
	return models.OutcomeOnboardingCompleted
}

// applyExtracted merges fields found in text into the stored record and
// returns the freshest copy available.
func (a *AIOnboarding) applyExtracted(ctx context.Context, customer *models.Customer, text string) *models.Customer {
	fields, ok := a.intel.TryExtract(ctx, text)
	if !ok || fields.IsEmpty() {
		return customer
	}

	update := mergeUpdate(customer, fields)
	if update.IsEmpty() {
		return customer
	}

	updated, err := a.store.UpdateCustomer(ctx, customer.PSID, update)
	if err != nil || updated == nil {
		logger.FromContext(ctx).Error("Failed to store extracted details", zap.Error(err))
		return customer
	}
	return updated
}

// mergeUpdate fills only missing fields, except inquiry which tracks the
// latest stated need.
func mergeUpdate(customer *models.Customer, fields models.ExtractedFields) models.CustomerUpdate {
	var update models.CustomerUpdate
	if fields.Name != "" && customer.Name == "" {
		update.Name = &fields.Name
	}
	if fields.Phone != "" && customer.Phone == "" {
		update.Phone = &fields.Phone
	}
	if fields.Email != "" && customer.Email == "" {
		update.Email = &fields.Email
	}
	if fields.Inquiry != "" && fields.Inquiry != customer.Inquiry {
		update.Inquiry = &fields.Inquiry
	}
	return update
}

func (a *AIOnboarding) appendHistory(ctx context.Context, psid string, turns ...models.Turn) {
	if err := a.history.Append(ctx, psid, turns...); err != nil {
		logger.FromContext(ctx).Warn("Failed to append conversation history", zap.Error(err))
	}
}

func (a *AIOnboarding) prompt(customer *models.Customer, turns []models.Turn) string {
	data, _ := json.Marshal(map[string]string{
		"name":    customer.Name,
		"phone":   customer.Phone,
		"email":   customer.Email,
		"inquiry": customer.Inquiry,
	})

	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		speaker := "AI"
		if turn.Role == models.RoleCustomer {
			speaker = "Customer"
		}
		lines = append(lines, speaker+": "+turn.Text)
	}

	return fmt.Sprintf(onboardingPromptTemplate, a.profile.Name, a.profile.Description, string(data), strings.Join(lines, "\n"))
}

// nextQuestion asks for the first missing field.
func nextQuestion(customer *models.Customer) string {
	switch {
	case customer.Name == "":
		return askNameText
	case customer.Phone == "":
		return fmt.Sprintf(askPhoneText, customer.Name)
	default:
		return contactSaved
	}
}

// ScriptedOnboarding asks for name, then phone, without AI or history.
type ScriptedOnboarding struct {
	onboardingBase
}

func NewScriptedOnboarding(store Store, messenger EndUserChannel, support SupportChannel) *ScriptedOnboarding {
	return &ScriptedOnboarding{
		onboardingBase: onboardingBase{store: store, messenger: messenger, support: support, now: time.Now},
	}
}

func (s *ScriptedOnboarding) Start(ctx context.Context, event models.InboundEvent) (models.Outcome, error) {
	customer, err := s.createCustomer(ctx, event)
	if err != nil {
		return models.OutcomeFailed, err
	}
	s.reply(ctx, customer.PSID, welcomeFallback)
	s.notify(ctx, formatNewInquiryAlert(customer.PSID, event.Text))
	return models.OutcomeOnboardingStarted, nil
}

func (s *ScriptedOnboarding) Continue(ctx context.Context, customer *models.Customer, text string) (models.Outcome, error) {
	value := strings.TrimSpace(text)

	var update models.CustomerUpdate
	switch {
	case customer.Name == "":
		fields := services.SanitizeExtracted(models.ExtractedFields{Name: value})
		if fields.Name == "" {
			s.reply(ctx, customer.PSID, askNameText)
			return models.OutcomeOnboardingContinued, nil
		}
		update.Name = &fields.Name
	case customer.Phone == "":
		fields := services.SanitizeExtracted(models.ExtractedFields{Phone: value})
		if fields.Phone == "" {
			s.reply(ctx, customer.PSID, fmt.Sprintf(askPhoneText, customer.Name))
			return models.OutcomeOnboardingContinued, nil
		}
		update.Phone = &fields.Phone
	default:
		s.reply(ctx, customer.PSID, genericAcknowledgment)
		return models.OutcomeOnboardingContinued, nil
	}

	updated, err := s.store.UpdateCustomer(ctx, customer.PSID, update)
	if err != nil {
		return models.OutcomeFailed, fmt.Errorf("update customer: %w", err)
	}
	if updated == nil {
		return models.OutcomeFailed, fmt.Errorf("customer %s disappeared during onboarding", customer.PSID)
	}

	s.reply(ctx, updated.PSID, nextQuestion(updated))
	if updated.IsOnboarded() {
		s.notify(ctx, formatOnboardingCompleteAlert(updated))
		return models.OutcomeOnboardingCompleted, nil
	}
	return models.OutcomeOnboardingContinued, nil
}

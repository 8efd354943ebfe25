package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-router/models"
)

func textEvent(psid, text string) models.InboundEvent {
	return models.InboundEvent{SenderID: psid, RecipientID: "page-1", PageID: "page-1", MessageID: "m-" + text, Text: text, Timestamp: testNow}
}

func newTestAIOnboarding(store Store, intel Intelligence, history HistoryStore) (*AIOnboarding, *recordingMessenger, *recordingSupport) {
	messenger := &recordingMessenger{}
	support := &recordingSupport{}
	a := NewAIOnboarding(store, messenger, support, intel, history, testProfile)
	a.now = fixedClock
	return a, messenger, support
}

func TestAIOnboardingStartWithoutAI(t *testing.T) {
	store := newMemStore()
	history := newMemHistory()
	a, messenger, support := newTestAIOnboarding(store, &fakeIntel{}, history)

	outcome, err := a.Start(context.Background(), textEvent("psid-1", "Do you install projectors?"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeOnboardingStarted, outcome)

	c := store.get("psid-1")
	require.NotNil(t, c)
	assert.Equal(t, "Do you install projectors?", c.FirstMessage)
	assert.Equal(t, "page-1", c.PageID)

	require.Len(t, messenger.messages(), 1)
	assert.Equal(t, welcomeFallback, messenger.messages()[0].Text)

	alerts := support.messages()
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "NEW CUSTOMER INQUIRY")
	assert.Contains(t, alerts[0], "Do you install projectors?")

	turns, _ := history.Load(context.Background(), "psid-1")
	require.Len(t, turns, 2)
	assert.Equal(t, models.RoleCustomer, turns[0].Role)
	assert.Equal(t, models.RoleAssistant, turns[1].Role)
}

func TestAIOnboardingStartAppliesExtractedFields(t *testing.T) {
	store := newMemStore()
	intel := &fakeIntel{
		reply:     "Hi Ann! What's the best number to reach you?",
		replyOK:   true,
		extracted: models.ExtractedFields{Name: "Ann", Inquiry: "projector install"},
		extractOK: true,
	}
	a, messenger, _ := newTestAIOnboarding(store, intel, newMemHistory())

	outcome, err := a.Start(context.Background(), textEvent("psid-1", "Hi, I'm Ann and want a projector installed"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeOnboardingStarted, outcome)

	c := store.get("psid-1")
	assert.Equal(t, "Ann", c.Name)
	assert.Equal(t, "projector install", c.Inquiry)
	assert.Empty(t, c.Phone)
	assert.Equal(t, intel.reply, messenger.messages()[0].Text)

	prompts := intel.generatedPrompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], `"name":"Ann"`)
	assert.Contains(t, prompts[0], "Customer: Hi, I'm Ann and want a projector installed")
}

func TestAIOnboardingContinueCompletes(t *testing.T) {
	store := newMemStore()
	store.put(&models.Customer{PSID: "psid-1", Name: "Ann", FirstMessage: "hi"})
	history := newMemHistory()
	_ = history.Append(context.Background(), "psid-1", models.CustomerTurn("hi", testNow), models.AssistantTurn("Welcome!", testNow))

	intel := &fakeIntel{extracted: models.ExtractedFields{Phone: "+1 555 010 0200"}, extractOK: true}
	a, messenger, support := newTestAIOnboarding(store, intel, history)

	outcome, err := a.Continue(context.Background(), store.get("psid-1"), "my number is +1 555 010 0200")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeOnboardingCompleted, outcome)

	assert.Equal(t, "+1 555 010 0200", store.get("psid-1").Phone)
	require.Len(t, messenger.messages(), 1)
	assert.Equal(t, contactSaved, messenger.messages()[0].Text)

	alerts := support.messages()
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "CUSTOMER ONBOARDED")
	assert.Contains(t, alerts[0], "Name: Ann")
	assert.Contains(t, alerts[0], "Phone: +1 555 010 0200")

	turns, _ := history.Load(context.Background(), "psid-1")
	assert.Empty(t, turns)
}

func TestAIOnboardingContinueAsksForMissingField(t *testing.T) {
	store := newMemStore()
	store.put(&models.Customer{PSID: "psid-1", FirstMessage: "hi"})
	a, messenger, support := newTestAIOnboarding(store, &fakeIntel{}, newMemHistory())

	outcome, err := a.Continue(context.Background(), store.get("psid-1"), "just browsing")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeOnboardingContinued, outcome)
	assert.Equal(t, askNameText, messenger.messages()[0].Text)
	assert.Empty(t, support.messages())
}

func TestMergeUpdateKeepsExistingContact(t *testing.T) {
	c := &models.Customer{Name: "Ann", Inquiry: "speakers"}
	update := mergeUpdate(c, models.ExtractedFields{Name: "Bob", Phone: "5550100", Inquiry: "speakers"})
	assert.Nil(t, update.Name)
	assert.Nil(t, update.Inquiry)
	require.NotNil(t, update.Phone)
	assert.Equal(t, "5550100", *update.Phone)
}

func TestScriptedOnboarding(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	messenger := &recordingMessenger{}
	support := &recordingSupport{}
	s := NewScriptedOnboarding(store, messenger, support)

	outcome, err := s.Start(ctx, textEvent("psid-1", "hello"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeOnboardingStarted, outcome)

	outcome, err = s.Continue(ctx, store.get("psid-1"), "  Ann ")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeOnboardingContinued, outcome)
	assert.Equal(t, "Ann", store.get("psid-1").Name)

	outcome, err = s.Continue(ctx, store.get("psid-1"), "call me maybe")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeOnboardingContinued, outcome)
	assert.Empty(t, store.get("psid-1").Phone)

	outcome, err = s.Continue(ctx, store.get("psid-1"), "(555) 010-0200")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeOnboardingCompleted, outcome)

	texts := make([]string, 0, 4)
	for _, m := range messenger.messages() {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{
		welcomeFallback,
		"Thanks, Ann! Could you also share your phone number so we can reach you faster?",
		"Thanks, Ann! Could you also share your phone number so we can reach you faster?",
		contactSaved,
	}, texts)

	alerts := support.messages()
	require.Len(t, alerts, 2)
	assert.Contains(t, alerts[0], "NEW CUSTOMER INQUIRY")
	assert.Contains(t, alerts[1], "Phone: (555) 010-0200")
}

func TestScriptedOnboardingRejectsUnusableNames(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	messenger := &recordingMessenger{}
	s := NewScriptedOnboarding(store, messenger, &recordingSupport{})

	_, err := s.Start(ctx, textEvent("psid-1", "hello"))
	require.NoError(t, err)

	for _, text := range []string{strings.Repeat("very long story ", 70), "A", "   "} {
		outcome, err := s.Continue(ctx, store.get("psid-1"), text)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeOnboardingContinued, outcome)
		assert.Empty(t, store.get("psid-1").Name)
	}

	msgs := messenger.messages()
	require.Len(t, msgs, 4)
	for _, m := range msgs[1:] {
		assert.Equal(t, askNameText, m.Text)
	}

	_, err = s.Continue(ctx, store.get("psid-1"), "Ann")
	require.NoError(t, err)
	assert.Equal(t, "Ann", store.get("psid-1").Name)
}

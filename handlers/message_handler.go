package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"support-router/logger"
	"support-router/models"
	"support-router/services"
)

// QueryCategorizer assigns a category and escalation verdict to a message.
type QueryCategorizer interface {
	Classify(ctx context.Context, text string) models.QueryClassification
}

// RouterOptions tunes the router.
type RouterOptions struct {
	AppID        string
	ResumeAfter  time.Duration
	EventTimeout time.Duration
}

type stateHandler func(ctx context.Context, event models.InboundEvent, customer *models.Customer, qc models.QueryClassification) (models.Outcome, error)

// Router decides, per inbound event, whether to onboard, pause, answer or
// forward. It never returns an error to the transport.
type Router struct {
	store      Store
	support    SupportChannel
	classifier QueryCategorizer
	onboarding OnboardingFlow
	pipeline   *QueryPipeline
	locker     Locker
	feed       OutcomeFeed
	opts       RouterOptions
	now        func() time.Time

	dispatch map[State]stateHandler
}

func NewRouter(store Store, support SupportChannel, classifier QueryCategorizer, onboarding OnboardingFlow,
	pipeline *QueryPipeline, locker Locker, feed OutcomeFeed, opts RouterOptions) *Router {
	r := &Router{
		store:      store,
		support:    support,
		classifier: classifier,
		onboarding: onboarding,
		pipeline:   pipeline,
		locker:     locker,
		feed:       feed,
		opts:       opts,
		now:        time.Now,
	}
	r.dispatch = map[State]stateHandler{
		StateUnknown: func(ctx context.Context, event models.InboundEvent, _ *models.Customer, _ models.QueryClassification) (models.Outcome, error) {
			return r.onboarding.Start(ctx, event)
		},
		StateOnboarding: func(ctx context.Context, event models.InboundEvent, customer *models.Customer, _ models.QueryClassification) (models.Outcome, error) {
			return r.onboarding.Continue(ctx, customer, event.Text)
		},
		StateActive: func(ctx context.Context, event models.InboundEvent, customer *models.Customer, qc models.QueryClassification) (models.Outcome, error) {
			return r.pipeline.Handle(ctx, customer, event.Text, qc)
		},
		StatePausedPermanent: r.forwardPaused,
		StatePausedTimed:     r.forwardPaused,
	}
	return r
}

// HandleEvent routes one event and reports what happened.
func (r *Router) HandleEvent(ctx context.Context, event models.InboundEvent) (result models.RoutingResult) {
	start := r.now()
	kind := event.Kind()

	eventID := event.MessageID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	psid := event.SenderID
	if kind == models.EventEcho {
		psid = event.RecipientID
	}

	log := logger.FromContext(ctx).With(
		zap.String("event_id", eventID),
		zap.String("psid", psid),
		zap.String("kind", string(kind)))
	ctx = logger.WithLogger(ctx, log)

	result = models.RoutingResult{EventID: eventID, Kind: kind, PSID: psid}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Panic while routing event", zap.Any("panic", rec), zap.Stack("stack"))
			result.Outcome = models.OutcomeFailed
			result.Error = fmt.Sprintf("panic: %v", rec)
		}
		result.Duration = r.now().Sub(start)
		result.At = start
		r.finish(log, result)
	}()

	if r.opts.EventTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.EventTimeout)
		defer cancel()
	}

	if psid != "" {
		unlock := r.locker.Lock(psid)
		defer unlock()
	}

	var state State
	var err error
	result.Outcome, state, err = r.route(ctx, event, kind, &result)
	result.State = string(state)
	if err != nil {
		result.Outcome = models.OutcomeFailed
		result.Error = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error("Event processing timed out", zap.Error(err))
		} else {
			log.Error("Event processing failed", zap.Error(err))
		}
	}
	return result
}

func (r *Router) route(ctx context.Context, event models.InboundEvent, kind models.EventKind, result *models.RoutingResult) (models.Outcome, State, error) {
	log := logger.FromContext(ctx)

	switch kind {
	case models.EventDelivery, models.EventRead:
		log.Debug("Receipt ignored")
		return models.OutcomeReceiptIgnored, "", nil
	case models.EventEcho:
		return r.handleEcho(ctx, event)
	case models.EventNonText:
		log.Info("Skipping message without text")
		return models.OutcomeSkippedNoText, "", nil
	}

	customer, err := r.store.GetCustomerByID(ctx, event.SenderID)
	if err != nil {
		return models.OutcomeFailed, "", fmt.Errorf("get customer: %w", err)
	}

	qc := r.classifier.Classify(ctx, event.Text)
	result.Category = qc.Category
	if _, err := r.store.AppendQueryLog(ctx, &models.QueryLog{
		PSID:            event.SenderID,
		Message:         event.Text,
		Category:        qc.Category,
		IsSpam:          qc.IsSpam,
		NeedsEscalation: qc.NeedsEscalation,
	}); err != nil {
		log.Error("Failed to append query log", zap.Error(err))
	}

	now := r.now()
	if ResumeDue(customer, now, r.opts.ResumeAfter) {
		updated, err := r.store.UpdateCustomer(ctx, customer.PSID, models.ResumeUpdate())
		if err != nil {
			return models.OutcomeFailed, "", fmt.Errorf("resume customer: %w", err)
		}
		if updated != nil {
			customer = updated
		} else {
			customer.AIPaused = false
		}
		log.Info("Pause window elapsed, automation resumed")
	}

	state := DeriveState(customer, now, r.opts.ResumeAfter)
	handler, ok := r.dispatch[state]
	if !ok {
		return models.OutcomeFailed, state, fmt.Errorf("no handler for state %s", state)
	}

	outcome, err := handler(ctx, event, customer, qc)
	return outcome, state, err
}

func (r *Router) handleEcho(ctx context.Context, event models.InboundEvent) (models.Outcome, State, error) {
	log := logger.FromContext(ctx)

	if event.EchoMetadata == services.OutboundMetadata || (r.opts.AppID != "" && event.EchoAppID == r.opts.AppID) {
		log.Debug("Echo of automated reply ignored")
		return models.OutcomeEchoIgnored, "", nil
	}
	if event.RecipientID == "" {
		log.Warn("Page echo without a recipient, nothing to pause")
		return models.OutcomeEchoIgnored, "", nil
	}

	pageID := event.PageID
	if pageID == "" {
		pageID = event.SenderID
	}
	customer, err := r.store.PauseCustomer(ctx, event.RecipientID, pageID, r.now())
	if err != nil {
		return models.OutcomeFailed, "", fmt.Errorf("pause customer: %w", err)
	}

	state := DeriveState(customer, r.now(), r.opts.ResumeAfter)
	log.Info("Human agent replied, automation paused", zap.String("state", string(state)))
	return models.OutcomeHumanTakeover, state, nil
}

func (r *Router) forwardPaused(ctx context.Context, event models.InboundEvent, customer *models.Customer, qc models.QueryClassification) (models.Outcome, error) {
	if err := r.support.Send(ctx, formatPausedAlert(customer, qc.Category, event.Text)); err != nil {
		logger.FromContext(ctx).Error("Failed to forward paused conversation", zap.Error(err))
	}
	return models.OutcomePausedForwarded, nil
}

func (r *Router) finish(log *zap.Logger, result models.RoutingResult) {
	services.ObserveOutcome(string(result.Outcome), result.Duration)

	fields := []zap.Field{
		zap.String("outcome", string(result.Outcome)),
		zap.Duration("duration", result.Duration),
	}
	if result.State != "" {
		fields = append(fields, zap.String("state", result.State))
	}
	if result.Category != "" {
		fields = append(fields, zap.String("category", result.Category))
	}
	log.Info("Event routed", fields...)

	if r.feed != nil {
		r.feed.Publish(result)
	}
}

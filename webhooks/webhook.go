package webhooks

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"support-router/config"
	"support-router/logger"
	"support-router/middleware"
	"support-router/models"
	"support-router/services"
)

const verifyRateLimitMax = 20

// EventRouter handles one normalized event.
type EventRouter interface {
	HandleEvent(ctx context.Context, event models.InboundEvent) models.RoutingResult
}

// Submitter runs deliveries off the request goroutine.
type Submitter interface {
	Submit(task func())
}

func RegisterRoutes(app *fiber.App, cfg *config.Config, router EventRouter, pool Submitter) {
	webhook := app.Group("/webhook")

	// Webhook verification endpoint
	webhook.Get("/", rateLimit(verifyRateLimitMax, cfg.RateLimitWindow), verifyWebhook(cfg))

	// Webhook event handler
	webhook.Post("/",
		rateLimit(cfg.RateLimitMax, cfg.RateLimitWindow),
		middleware.VerifySignature(cfg.AppSecret),
		handleWebhookEvent(router, pool))
}

func rateLimit(limit int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		LimitReached: func(c *fiber.Ctx) error {
			logger.Log.Warn("Webhook rate limit exceeded", zap.String("ip", c.IP()))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	})
}

// verifyWebhook handles Facebook webhook verification
func verifyWebhook(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		mode := c.Query("hub.mode")
		token := c.Query("hub.verify_token")
		challenge := c.Query("hub.challenge")

		if mode == "subscribe" && token != "" && token == cfg.VerifyToken {
			logger.Log.Info("Webhook verified successfully")
			return c.SendString(challenge)
		}

		logger.Log.Warn("Webhook verification failed", zap.String("mode", mode))
		return c.SendStatus(fiber.StatusForbidden)
	}
}

// handleWebhookEvent acknowledges the delivery at once and routes its
// events on the worker pool.
func handleWebhookEvent(router EventRouter, pool Submitter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body WebhookEvent
		if err := c.BodyParser(&body); err != nil {
			logger.Log.Error("Failed to parse webhook body", zap.Error(err))
			return c.SendStatus(fiber.StatusBadRequest)
		}

		// Only process page events
		if body.Object != "page" {
			return c.SendStatus(fiber.StatusNotFound)
		}

		events := body.InboundEvents()
		for _, ev := range events {
			services.EventsReceivedTotal.WithLabelValues(string(ev.Kind())).Inc()
		}

		if len(events) > 0 {
			requestID := uuid.New().String()
			pool.Submit(func() {
				processDelivery(requestID, router, events)
			})
		}

		return c.SendString("EVENT_RECEIVED")
	}
}

// processDelivery routes the events of one delivery in array order.
func processDelivery(requestID string, router EventRouter, events []models.InboundEvent) {
	log := logger.Log.With(zap.String("request_id", requestID))
	ctx := logger.WithLogger(context.Background(), log)

	log.Debug("Processing webhook delivery", zap.Int("events", len(events)))
	for _, ev := range events {
		router.HandleEvent(ctx, ev)
	}
}

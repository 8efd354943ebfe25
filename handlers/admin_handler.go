package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"support-router/logger"
	"support-router/models"
)

const (
	defaultSpamLogLimit = 20
	maxSpamLogLimit     = 100
	adminRequestTimeout = 10 * time.Second
)

// AdminHandler exposes customer inspection and pause control to operators.
// Pause and resume share the router's per-customer lock so they never
// interleave with an event for the same customer.
type AdminHandler struct {
	store       Store
	locker      Locker
	resumeAfter time.Duration
	now         func() time.Time
}

func NewAdminHandler(store Store, locker Locker, resumeAfter time.Duration) *AdminHandler {
	return &AdminHandler{store: store, locker: locker, resumeAfter: resumeAfter, now: time.Now}
}

// RegisterRoutes mounts the admin endpoints on router.
func (h *AdminHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/customers/:psid", h.GetCustomer)
	router.Post("/customers/:psid/pause", h.PauseCustomer)
	router.Post("/customers/:psid/resume", h.ResumeCustomer)
	router.Get("/customers/:psid/spam-logs", h.GetSpamLogs)
}

func (h *AdminHandler) customerResponse(customer *models.Customer) fiber.Map {
	return fiber.Map{
		"customer": customer,
		"state":    DeriveState(customer, h.now(), h.resumeAfter),
	}
}

// GetCustomer returns the stored record and its derived routing state.
func (h *AdminHandler) GetCustomer(c *fiber.Ctx) error {
	psid := c.Params("psid")

	ctx, cancel := context.WithTimeout(c.UserContext(), adminRequestTimeout)
	defer cancel()

	customer, err := h.store.GetCustomerByID(ctx, psid)
	if err != nil {
		logger.Log.Error("Failed to get customer", zap.String("psid", psid), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get customer",
		})
	}
	if customer == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Customer not found",
		})
	}

	return c.JSON(h.customerResponse(customer))
}

// PauseCustomer hands a conversation to a human, as if an agent had
// replied from the page inbox.
func (h *AdminHandler) PauseCustomer(c *fiber.Ctx) error {
	psid := c.Params("psid")

	var req struct {
		PageID string `json:"page_id"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
		}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), adminRequestTimeout)
	defer cancel()

	unlock := h.locker.Lock(psid)
	customer, err := h.store.PauseCustomer(ctx, psid, req.PageID, h.now())
	unlock()
	if err != nil {
		logger.Log.Error("Failed to pause customer", zap.String("psid", psid), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to pause customer",
		})
	}

	logger.Log.Info("Customer paused by operator", zap.String("psid", psid))
	return c.JSON(h.customerResponse(customer))
}

// ResumeCustomer clears the pause flag. This is the only way to lift a
// pause on a conversation support started.
func (h *AdminHandler) ResumeCustomer(c *fiber.Ctx) error {
	psid := c.Params("psid")

	ctx, cancel := context.WithTimeout(c.UserContext(), adminRequestTimeout)
	defer cancel()

	unlock := h.locker.Lock(psid)
	customer, err := h.store.UpdateCustomer(ctx, psid, models.ResumeUpdate())
	unlock()
	if err != nil {
		logger.Log.Error("Failed to resume customer", zap.String("psid", psid), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to resume customer",
		})
	}
	if customer == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Customer not found",
		})
	}

	logger.Log.Info("Customer resumed by operator", zap.String("psid", psid))
	return c.JSON(h.customerResponse(customer))
}

// GetSpamLogs lists the most recent spam entries for a customer.
func (h *AdminHandler) GetSpamLogs(c *fiber.Ctx) error {
	psid := c.Params("psid")

	limit := c.QueryInt("limit", defaultSpamLogLimit)
	if limit <= 0 || limit > maxSpamLogLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 100",
		})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), adminRequestTimeout)
	defer cancel()

	logs, err := h.store.RecentSpamLogs(ctx, psid, limit)
	if err != nil {
		logger.Log.Error("Failed to get spam logs", zap.String("psid", psid), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get spam logs",
		})
	}
	if logs == nil {
		logs = []models.SpamLog{}
	}

	return c.JSON(fiber.Map{
		"psid":      psid,
		"spam_logs": logs,
		"count":     len(logs),
	})
}

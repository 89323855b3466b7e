package payment

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the payment routes. Refunds are an operator action and go
// behind the API key guard.
func (h *Handler) Register(api fiber.Router, adminGuard fiber.Handler) {
	api.Get("/payments/orders/:orderId", h.GetByOrder)
	api.Post("/payments/orders/:orderId/refund", adminGuard, h.Refund)
}

func (h *Handler) GetByOrder(c *fiber.Ctx) error {
	orderID, err := c.ParamsInt("orderId")
	if err != nil || orderID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid order id"})
	}
	p, err := h.svc.GetByOrderID(c.Context(), orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": false, "error": "payment not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": true, "data": p})
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Refund(c *fiber.Ctx) error {
	orderID, err := c.ParamsInt("orderId")
	if err != nil || orderID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid order id"})
	}

	var req refundRequest
	_ = c.BodyParser(&req)
	if req.Reason == "" {
		req.Reason = "Customer request"
	}

	p, err := h.svc.Refund(c.Context(), orderID, req.Reason)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": false, "error": "payment not found"})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"status": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": true, "data": p})
}

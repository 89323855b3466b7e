package order

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/distributed-system-hk251/saga-choreography/internal/event"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(api fiber.Router) {
	api.Post("/orders", h.CreateOrder)
	api.Post("/orders/:id/cancel", h.CancelOrder)
	api.Get("/orders/users/:userId", h.ListByUser)
}

type createOrderRequest struct {
	UserID    int          `json:"userId"`
	Items     []event.Item `json:"items"`
	RequestID string       `json:"requestId"`
}

func (h *Handler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid request body"})
	}
	if req.UserID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "userId is required"})
	}
	if len(req.Items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "items must not be empty"})
	}
	for _, it := range req.Items {
		if it.ProductID <= 0 || it.Quantity <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "each item needs a productId and a positive quantity"})
		}
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	o, err := h.svc.CreateOrder(c.Context(), req.UserID, req.Items, req.RequestID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": true, "data": o})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelOrder(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid order id"})
	}

	var req cancelOrderRequest
	// Body is optional; a bare cancel uses the default reason.
	_ = c.BodyParser(&req)

	o, err := h.svc.CancelOrder(c.Context(), id, req.Reason)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": false, "error": "order not found"})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"status": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": true, "data": o})
}

func (h *Handler) ListByUser(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("userId")
	if err != nil || userID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid user id"})
	}

	orders, err := h.svc.ListByUser(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": true, "data": orders, "total": len(orders)})
}

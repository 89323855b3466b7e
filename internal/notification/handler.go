package notification

import (
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(api fiber.Router) {
	api.Get("/notifications", h.List)
	api.Post("/device_tokens", h.RegisterDeviceToken)
}

func (h *Handler) List(c *fiber.Ctx) error {
	var query Query
	query.Parse(c)
	notifs, total, err := h.svc.List(c.Context(), query)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": true, "data": notifs, "total": total})
}

type deviceTokenRequest struct {
	UserID      int    `json:"user_id"`
	DeviceToken string `json:"device_token"`
	DeviceType  string `json:"device_type"`
}

func (h *Handler) RegisterDeviceToken(c *fiber.Ctx) error {
	var req deviceTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid request body"})
	}
	if req.UserID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "user_id is required"})
	}

	token := &DeviceToken{
		UserID:      req.UserID,
		DeviceToken: req.DeviceToken,
		DeviceType:  req.DeviceType,
	}
	if err := h.svc.RegisterDeviceToken(c.Context(), token); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": true, "data": token})
}

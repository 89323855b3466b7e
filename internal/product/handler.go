package product

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/distributed-system-hk251/saga-choreography/internal/event"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the catalog routes. Catalog writes are admin-only and go
// behind the API key guard.
func (h *Handler) Register(api fiber.Router, adminGuard fiber.Handler) {
	api.Get("/products", h.List)
	api.Get("/products/:id", h.Get)
	api.Post("/products/total_amount", h.TotalAmount)
	api.Post("/products", adminGuard, h.Create)
}

func (h *Handler) Create(c *fiber.Ctx) error {
	var p Product
	if err := c.BodyParser(&p); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid request body"})
	}
	if err := h.svc.CreateProduct(c.Context(), &p); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": true, "data": p})
}

func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid product id"})
	}
	p, err := h.svc.GetProduct(c.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": false, "error": "product not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": true, "data": p})
}

func (h *Handler) List(c *fiber.Ctx) error {
	products, err := h.svc.ListProducts(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": true, "data": products, "total": len(products)})
}

type totalAmountRequest struct {
	Items []event.Item `json:"items"`
}

func (h *Handler) TotalAmount(c *fiber.Ctx) error {
	var req totalAmountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid request body"})
	}
	if len(req.Items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "items must not be empty"})
	}
	total, err := h.svc.TotalAmount(c.Context(), req.Items)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": false, "error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": true, "data": total})
}

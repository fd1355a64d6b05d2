package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gap-pos/internal/service"
)

// ReferenceHandler serves dictionaries for the application form.
type ReferenceHandler struct {
	service *service.ReferenceService
}

// NewReferenceHandler constructs handler.
func NewReferenceHandler(referenceService *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{service: referenceService}
}

// Products GET /reference/products.
func (h *ReferenceHandler) Products(c *fiber.Ctx) error {
	items, err := h.service.Products(c.UserContext(), c.Get(EnvironmentHeader))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}

// Makes GET /reference/makes.
func (h *ReferenceHandler) Makes(c *fiber.Ctx) error {
	items, err := h.service.Makes(c.UserContext(), c.Get(EnvironmentHeader))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}

// Models GET /reference/models?make=.
func (h *ReferenceHandler) Models(c *fiber.Ctx) error {
	items, err := h.service.Models(c.UserContext(), c.Get(EnvironmentHeader), c.Query("make"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}

// Portfolio GET /reference/portfolios/:product.
func (h *ReferenceHandler) Portfolio(c *fiber.Ctx) error {
	p, err := h.service.Portfolio(c.UserContext(), c.Get(EnvironmentHeader), c.Params("product"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": p})
}

package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gap-pos/internal/api/dto"
	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/observability"
	"github.com/spec-kit/gap-pos/internal/repository"
	"github.com/spec-kit/gap-pos/internal/service"
	apperrors "github.com/spec-kit/gap-pos/pkg/util/errorutil"
)

// AdminHandler exposes operator endpoints.
type AdminHandler struct {
	service *service.AdminService
	metrics *observability.Metrics
}

// NewAdminHandler constructs handler.
func NewAdminHandler(adminService *service.AdminService, metrics *observability.Metrics) *AdminHandler {
	return &AdminHandler{service: adminService, metrics: metrics}
}

// GetEnvironment GET /admin/environment.
func (h *AdminHandler) GetEnvironment(c *fiber.Ctx) error {
	status, err := h.service.Environment(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": status})
}

// SetEnvironment PUT /admin/environment.
func (h *AdminHandler) SetEnvironment(c *fiber.Ctx) error {
	var req dto.SetEnvironmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Environment) == "" {
		return apperrors.NewValidationError("environment required", map[string]any{"field": "environment"})
	}
	status, err := h.service.SwitchEnvironment(c.UserContext(), req.Environment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": status})
}

// RefreshPortfolios POST /admin/portfolios/refresh.
func (h *AdminHandler) RefreshPortfolios(c *fiber.Ctx) error {
	override := c.Get(EnvironmentHeader)
	if q := c.Query("environment"); q != "" {
		override = q
	}
	env, n, err := h.service.RefreshPortfolios(c.UserContext(), override)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RefreshResponse{Environment: env, Products: n}})
}

// ListPolicies GET /admin/policies.
func (h *AdminHandler) ListPolicies(c *fiber.Ctx) error {
	q, err := parsePolicyListQuery(c)
	if err != nil {
		return err
	}
	records, err := h.service.ListPolicies(c.UserContext(), repository.PolicyFilter{
		Environment: q.Environment,
		Statuses:    q.Statuses,
		ProductCode: q.ProductCode,
		SearchTerm:  q.SearchTerm,
		LockedFrom:  q.LockedFrom,
		LockedTo:    q.LockedTo,
		Limit:       q.PageSize,
		Offset:      (q.Page - 1) * q.PageSize,
	})
	if err != nil {
		return err
	}
	items := make([]dto.PolicyResponse, 0, len(records))
	for i := range records {
		items = append(items, policyResponse(&records[i]))
	}
	return c.JSON(fiber.Map{"data": items, "page": q.Page, "page_size": q.PageSize})
}

// GetPolicy GET /admin/policies/:policyId.
func (h *AdminHandler) GetPolicy(c *fiber.Ctx) error {
	record, docs, err := h.service.Policy(c.UserContext(), c.Params("policyId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PolicyDetailResponse{
		PolicyResponse: policyResponse(record),
		HolderEmail:    record.HolderEmail,
		Documents:      documentResponses("", docs),
	}})
}

// Metrics GET /metrics.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.metrics.Snapshot())
}

func parsePolicyListQuery(c *fiber.Ctx) (dto.PolicyListQuery, error) {
	q := dto.PolicyListQuery{
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), 20),
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			q.Statuses = append(q.Statuses, domain.PolicyStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if raw := c.Query("environment"); raw != "" {
		env, err := domain.ParseEnvironment(raw)
		if err != nil {
			return q, apperrors.NewValidationError(err.Error(), map[string]any{"field": "environment"})
		}
		q.Environment = &env
	}
	if product := strings.TrimSpace(c.Query("product")); product != "" {
		q.ProductCode = &product
	}
	if term := strings.TrimSpace(c.Query("q")); term != "" {
		q.SearchTerm = &term
	}
	q.LockedFrom = parseTime(c.Query("locked_from"))
	q.LockedTo = parseTime(c.Query("locked_to"))
	return q, nil
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

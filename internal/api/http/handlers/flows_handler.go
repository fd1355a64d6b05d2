package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gap-pos/internal/api/dto"
	"github.com/spec-kit/gap-pos/internal/auth"
	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/service"
	apperrors "github.com/spec-kit/gap-pos/pkg/util/errorutil"
)

// EnvironmentHeader carries the client's environment override.
const EnvironmentHeader = "X-Gap-Environment"

// FlowsHandler exposes the policy flow endpoints.
type FlowsHandler struct {
	service *service.PolicyService
	tokens  *auth.TokenManager
}

// NewFlowsHandler constructs handler.
func NewFlowsHandler(policyService *service.PolicyService, tokens *auth.TokenManager) *FlowsHandler {
	return &FlowsHandler{service: policyService, tokens: tokens}
}

// Start POST /flows.
func (h *FlowsHandler) Start(c *fiber.Ctx) error {
	var req dto.StartFlowRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}

	flow, err := h.service.Start(c.UserContext(), c.Get(EnvironmentHeader), req.Application)
	if err != nil {
		return err
	}
	token, exp, err := h.tokens.GenerateFlowToken(flow.ID, flow.Environment)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.StartFlowResponse{
		Flow: flowResponse(flow),
		Auth: dto.FlowTokenResponse{Token: token, ExpiresAt: exp},
	}})
}

// Get GET /flows/:id.
func (h *FlowsHandler) Get(c *fiber.Ctx) error {
	flow, err := h.service.Get(c.UserContext(), flowRef(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": flowResponse(flow)})
}

// UpdateApplication PUT /flows/:id/application.
func (h *FlowsHandler) UpdateApplication(c *fiber.Ctx) error {
	var app domain.PolicyApplication
	if err := c.BodyParser(&app); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	flow, err := h.service.UpdateApplication(c.UserContext(), flowRef(c), app)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": flowResponse(flow)})
}

// Calculate POST /flows/:id/calculation.
func (h *FlowsHandler) Calculate(c *fiber.Ctx) error {
	flow, err := h.service.Calculate(c.UserContext(), flowRef(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": flowResponse(flow)})
}

// Lock POST /flows/:id/lock.
func (h *FlowsHandler) Lock(c *fiber.Ctx) error {
	var req dto.LockRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AcceptedPremium == nil {
		return apperrors.NewValidationError("accepted_premium required", map[string]any{"field": "accepted_premium"})
	}
	flow, err := h.service.Lock(c.UserContext(), flowRef(c), *req.AcceptedPremium)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": flowResponse(flow)})
}

// StartSignature POST /flows/:id/signature.
func (h *FlowsHandler) StartSignature(c *fiber.Ctx) error {
	var req dto.SignatureRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	flow, err := h.service.InitiateSignature(c.UserContext(), flowRef(c), req.SignatureType)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": flowResponse(flow)})
}

// ConfirmSignature POST /flows/:id/signature/confirm.
func (h *FlowsHandler) ConfirmSignature(c *fiber.Ctx) error {
	var req dto.ConfirmSignatureRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	flow, err := h.service.ConfirmSignature(c.UserContext(), flowRef(c), req.Code)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": flowResponse(flow)})
}

// Documents GET /flows/:id/documents. Answers 202 while generation is still running.
func (h *FlowsHandler) Documents(c *fiber.Ctx) error {
	flow, err := h.service.FetchDocuments(c.UserContext(), flowRef(c))
	if err != nil {
		return err
	}
	set := documentSetResponse(flow)
	status := fiber.StatusOK
	if set == nil || set.NotYetAvailable {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(fiber.Map{"data": set})
}

// Download GET /flows/:id/documents/:code/download.
func (h *FlowsHandler) Download(c *fiber.Ctx) error {
	dl, err := h.service.OpenDocument(c.UserContext(), flowRef(c), c.Params("code"))
	if err != nil {
		return err
	}
	if dl.RedirectURL != "" {
		return c.Redirect(dl.RedirectURL, fiber.StatusFound)
	}
	if dl.ContentType != "" {
		c.Set(fiber.HeaderContentType, dl.ContentType)
	}
	if dl.FileName != "" {
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+strings.ReplaceAll(dl.FileName, `"`, "")+`"`)
	}
	return c.SendStream(dl.Body)
}

// Abandon DELETE /flows/:id.
func (h *FlowsHandler) Abandon(c *fiber.Ctx) error {
	if err := h.service.Abandon(c.UserContext(), flowRef(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func flowRef(c *fiber.Ctx) service.FlowRef {
	return service.FlowRef{ID: c.Params("id"), Environment: c.Get(EnvironmentHeader)}
}

func flowResponse(flow *domain.PolicyFlow) dto.FlowResponse {
	resp := dto.FlowResponse{
		ID:                 flow.ID,
		Environment:        flow.Environment,
		EnvironmentLabel:   flow.Environment.Label(),
		Status:             flow.Status,
		Application:        flow.Application,
		QuoteConsumed:      flow.QuoteConsumed,
		LockPending:        flow.LockInFlight,
		SignatureExpiresAt: flow.SignatureExpiresAt,
		Documents:          documentSetResponse(flow),
		FailureReason:      flow.FailureReason,
		CreatedAt:          flow.CreatedAt,
		UpdatedAt:          flow.UpdatedAt,
	}
	if calc := flow.Calculation; calc != nil {
		resp.Calculation = &dto.CalculationResponse{
			QuoteID:        calc.QuoteID,
			Premium:        calc.Premium,
			CoverageMonths: calc.CoverageMonths,
			MaxCoverage:    calc.MaxCoverage,
			VehicleValue:   calc.VehicleValue,
			CalculatedAt:   calc.CalculatedAt,
		}
	}
	if flow.Policy != nil {
		p := policyResponse(flow.Policy)
		resp.Policy = &p
	}
	return resp
}

func policyResponse(p *domain.PolicyRecord) dto.PolicyResponse {
	return dto.PolicyResponse{
		PolicyID:      p.PolicyID,
		PolicyNumber:  p.PolicyNumber,
		Status:        p.Status,
		SignatureType: p.SignatureType,
		Premium:       p.Premium,
		Environment:   p.Environment,
		ProductCode:   p.ProductCode,
		HolderName:    p.HolderName,
		LockedAt:      p.LockedAt,
		ConfirmedAt:   p.ConfirmedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func documentSetResponse(flow *domain.PolicyFlow) *dto.DocumentSetResponse {
	if flow.Documents == nil {
		return nil
	}
	return &dto.DocumentSetResponse{
		PolicyID:        flow.Documents.PolicyID,
		NotYetAvailable: flow.Documents.NotYetAvailable,
		Documents:       documentResponses("/flows/"+flow.ID, flow.Documents.Documents),
	}
}

func documentResponses(base string, docs []domain.Document) []dto.DocumentResponse {
	out := make([]dto.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		resp := dto.DocumentResponse{
			Code:      d.Code,
			Name:      d.Name,
			MimeType:  d.MimeType,
			CreatedAt: d.CreatedAt,
			Archived:  d.ArchiveKey != "",
		}
		if base != "" {
			resp.DownloadPath = base + "/documents/" + d.Code + "/download"
		}
		out = append(out, resp)
	}
	return out
}

package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/gap-pos/pkg/util/errorutil"
)

const claimsKey = "flow_claims"

// FlowMiddleware validates flow bearer tokens against the :id route parameter.
type FlowMiddleware struct {
	tokens *TokenManager
}

// NewFlowMiddleware constructs middleware.
func NewFlowMiddleware(tokens *TokenManager) *FlowMiddleware {
	return &FlowMiddleware{tokens: tokens}
}

// Handle enforces that the caller owns the flow in the path.
func (m *FlowMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseFlowToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if id := c.Params("id"); id != "" && id != claims.FlowID {
		return apperrors.NewForbidden("token does not grant access to this flow")
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

// ClaimsFromContext retrieves the validated flow claims.
func ClaimsFromContext(c *fiber.Ctx) (*FlowClaims, bool) {
	val := c.Locals(claimsKey)
	if val == nil {
		return nil, false
	}
	claims, ok := val.(*FlowClaims)
	return claims, ok
}

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/gap-pos/internal/domain"
	apperrors "github.com/spec-kit/gap-pos/pkg/util/errorutil"
)

func testApp(tm *TokenManager, gate *OperatorGate) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var de *apperrors.DomainError
			if errors.As(err, &de) {
				return c.Status(de.HTTPStatus).SendString(de.Code)
			}
			return c.Status(http.StatusInternalServerError).SendString(err.Error())
		},
	})
	mw := NewFlowMiddleware(tm)
	app.Get("/flows/:id", mw.Handle, func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			return errors.New("claims missing")
		}
		return c.SendString(string(claims.Environment))
	})
	app.Get("/admin", gate.Handler(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app
}

func TestFlowToken_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 10)
	token, exp, err := tm.GenerateFlowToken("flow-1", domain.EnvironmentProduction)
	require.NoError(t, err)
	assert.False(t, exp.IsZero())

	claims, err := tm.ParseFlowToken(token)
	require.NoError(t, err)
	assert.Equal(t, "flow-1", claims.FlowID)
	assert.Equal(t, domain.EnvironmentProduction, claims.Environment)

	_, err = NewTokenManager("other", 10).ParseFlowToken(token)
	assert.Error(t, err)
}

func TestFlowMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 10)
	app := testApp(tm, NewOperatorGate("op", ""))
	token, _, err := tm.GenerateFlowToken("flow-1", domain.EnvironmentTest)
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing header", "/flows/flow-1", "", http.StatusUnauthorized},
		{"wrong scheme", "/flows/flow-1", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "/flows/flow-1", "Bearer nope", http.StatusUnauthorized},
		{"other flow", "/flows/flow-2", "Bearer " + token, http.StatusForbidden},
		{"own flow", "/flows/flow-1", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestOperatorGate(t *testing.T) {
	hash, err := HashPassword("s3cret", 4)
	require.NoError(t, err)
	app := testApp(NewTokenManager("secret", 10), NewOperatorGate("op", hash))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.SetBasicAuth("op", "s3cret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.SetBasicAuth("op", "wrong")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.False(t, NewOperatorGate("op", "").Authorize("op", ""))
}

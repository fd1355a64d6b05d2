package http

import (
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/gap-pos/internal/api/http/handlers"
	"github.com/spec-kit/gap-pos/internal/auth"
	"github.com/spec-kit/gap-pos/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Flows     *handlers.FlowsHandler
	Reference *handlers.ReferenceHandler
	Admin     *handlers.AdminHandler
	FlowAuth  *auth.FlowMiddleware
	Operator  *auth.OperatorGate
}

// NewApp creates the fiber application with the JSON codec and error rendering used by every route.
func NewApp(name string, logger *zap.Logger, metrics *observability.Metrics) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          ErrorHandler(logger, metrics),
	})
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	ref := app.Group("/reference")
	ref.Get("/products", cfg.Reference.Products)
	ref.Get("/makes", cfg.Reference.Makes)
	ref.Get("/models", cfg.Reference.Models)
	ref.Get("/portfolios/:product", cfg.Reference.Portfolio)

	owner := cfg.FlowAuth.Handle
	flows := app.Group("/flows")
	flows.Post("", cfg.Flows.Start)
	flows.Get("/:id", owner, cfg.Flows.Get)
	flows.Delete("/:id", owner, cfg.Flows.Abandon)
	flows.Put("/:id/application", owner, cfg.Flows.UpdateApplication)
	flows.Post("/:id/calculation", owner, cfg.Flows.Calculate)
	flows.Post("/:id/lock", owner, cfg.Flows.Lock)
	flows.Post("/:id/signature", owner, cfg.Flows.StartSignature)
	flows.Post("/:id/signature/confirm", owner, cfg.Flows.ConfirmSignature)
	flows.Get("/:id/documents", owner, cfg.Flows.Documents)
	flows.Get("/:id/documents/:code/download", owner, cfg.Flows.Download)

	operator := cfg.Operator.Handler()
	app.Get("/metrics", operator, cfg.Admin.Metrics)

	admin := app.Group("/admin", operator)
	admin.Get("/environment", cfg.Admin.GetEnvironment)
	admin.Put("/environment", cfg.Admin.SetEnvironment)
	admin.Post("/portfolios/refresh", cfg.Admin.RefreshPortfolios)
	admin.Get("/policies", cfg.Admin.ListPolicies)
	admin.Get("/policies/:policyId", cfg.Admin.GetPolicy)
}

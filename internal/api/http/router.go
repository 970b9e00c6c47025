package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deskline/helpdesk-service/internal/api/http/handlers"
	"github.com/deskline/helpdesk-service/internal/auth"
	"github.com/deskline/helpdesk-service/internal/domain"
	"github.com/deskline/helpdesk-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Company        *handlers.CompanyHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/companies/register", cfg.Auth.RegisterCompany)
	authGroup.Post("/users/register", cfg.Auth.RegisterUser)
	authGroup.Post("/login", cfg.Auth.Login)

	authenticated := auth.RequireAnyRole()
	authGroup.Post("/logout", cfg.AuthMiddleware.Handle, authenticated, cfg.Auth.Logout)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, authenticated, cfg.Auth.Me)

	company := app.Group("/company", cfg.AuthMiddleware.Handle)
	adminOnly := auth.RequireRole(domain.RoleCompanyAdmin)
	company.Post("/agents", adminOnly, cfg.Company.CreateAgent)
	company.Get("/agents", adminOnly, cfg.Company.ListAgents)
	company.Patch("/agents/:id", adminOnly, cfg.Company.UpdateAgent)
	company.Post("/categories", adminOnly, cfg.Company.CreateCategory)
	company.Get("/categories", authenticated, cfg.Company.ListCategories)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, authenticated)
	tickets.Post("/", auth.RequireRole(domain.RoleUser), cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:code", cfg.Tickets.GetTicket)
	tickets.Get("/:code/history", cfg.Tickets.ListHistory)
	tickets.Post("/:code/responses", cfg.Tickets.AddResponse)
	tickets.Post("/:code/resolve", cfg.Tickets.Resolve)
	tickets.Post("/:code/reopen", cfg.Tickets.Reopen)
	tickets.Post("/:code/close", cfg.Tickets.Close)
	tickets.Post("/:code/assign", cfg.Tickets.Assign)
}

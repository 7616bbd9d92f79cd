// Package leads provides the lead management bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/leads/handler"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/leads/service"
	"outreach_backend/internal/leadsource"
	"outreach_backend/platform/events"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
	svc     *service.Service
}

// NewModule creates and initializes the leads module. The lead source client
// may be nil; imports then fail with a clear error while the read surface
// keeps working.
func NewModule(pool *pgxpool.Pool, source *leadsource.Client, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, source, bus, log)

	return &Module{
		handler: handler.New(svc, val),
		repo:    repo,
		svc:     svc,
	}
}

func (m *Module) Name() string { return "leads" }

// RegisterRoutes mounts the leads endpoints under the authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
}

// Repository exposes the lead store for the scheduler composition root.
func (m *Module) Repository() *repository.Repository { return m.repo }

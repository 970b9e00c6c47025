package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/deskline/helpdesk-service/internal/auth"
	"github.com/deskline/helpdesk-service/internal/config"
	"github.com/deskline/helpdesk-service/internal/domain"
	"github.com/deskline/helpdesk-service/internal/repository"
	apperrors "github.com/deskline/helpdesk-service/pkg/util"
)

// CompanyService manages company-scoped resources: agents and categories.
type CompanyService struct {
	users      repository.UserRepository
	categories repository.CategoryRepository
	companies  repository.CompanyRepository
	bcryptCost int
	logger     *zap.Logger
}

// CompanyDependencies bundles repositories.
type CompanyDependencies struct {
	UserRepo     repository.UserRepository
	CategoryRepo repository.CategoryRepository
	CompanyRepo  repository.CompanyRepository
	Logger       *zap.Logger
}

// NewCompanyService constructs the service.
func NewCompanyService(cfg config.Config, deps CompanyDependencies) *CompanyService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompanyService{
		users:      deps.UserRepo,
		categories: deps.CategoryRepo,
		companies:  deps.CompanyRepo,
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     logger,
	}
}

// CreateAgent adds an AGENT account to the admin's company.
func (s *CompanyService) CreateAgent(ctx context.Context, actor domain.Actor, name, email, password string) (*domain.User, error) {
	companyID, err := requireCompanyAdmin(actor)
	if err != nil {
		return nil, err
	}
	if fields := credentialProblems(name, email, password); len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid agent", fields)
	}
	email = normalizeEmail(email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !isNoRows(err) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	agent := &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAgent,
		CompanyID:    &companyID,
		Active:       true,
	}
	if err := s.users.Create(ctx, agent); err != nil {
		return nil, registrationError(err, map[string]any{"email": email})
	}
	s.logger.Info("agent created", zap.String("company", companyID), zap.String("agent", agent.ID))
	return agent, nil
}

// SetAgentActive enables or disables an agent of the admin's company.
// Inactive agents cannot log in or receive assignments.
func (s *CompanyService) SetAgentActive(ctx context.Context, actor domain.Actor, agentID string, active bool) (*domain.User, error) {
	companyID, err := requireCompanyAdmin(actor)
	if err != nil {
		return nil, err
	}
	agent, err := s.users.GetByID(ctx, agentID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
		}
		return nil, apperrors.MapError(err)
	}
	if agent.Role != domain.RoleAgent || agent.CompanyID == nil || *agent.CompanyID != companyID {
		return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
	}
	agent.Active = active
	if err := s.users.Update(ctx, agent); err != nil {
		return nil, apperrors.MapError(err)
	}
	return agent, nil
}

// ListAgents returns the agents of the actor's company.
func (s *CompanyService) ListAgents(ctx context.Context, actor domain.Actor, limit, offset int) ([]domain.User, error) {
	companyID, err := requireCompanyAdmin(actor)
	if err != nil {
		return nil, err
	}
	role := domain.RoleAgent
	agents, err := s.users.List(ctx, repository.UserFilter{
		CompanyID: &companyID,
		Role:      &role,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return agents, nil
}

// CreateCategory adds a ticket category to the admin's company.
func (s *CompanyService) CreateCategory(ctx context.Context, actor domain.Actor, name string) (*domain.Category, error) {
	companyID, err := requireCompanyAdmin(actor)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewFieldError("name", "required")
	}
	existing, err := s.categories.ListByCompany(ctx, companyID, true)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for _, category := range existing {
		if strings.EqualFold(category.Name, name) {
			return nil, apperrors.NewConflict("category already exists", map[string]any{"name": name})
		}
	}
	category := &domain.Category{CompanyID: companyID, Name: name, Active: true}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, apperrors.MapError(err)
	}
	return category, nil
}

// ListCategories returns active categories. Staff see their own company;
// customers pass the company they are about to open a ticket with.
func (s *CompanyService) ListCategories(ctx context.Context, actor domain.Actor, companyID string) ([]domain.Category, error) {
	switch {
	case actor.Role.IsCompanyStaff() && actor.CompanyID != nil:
		companyID = *actor.CompanyID
	case actor.Role == domain.RoleUser:
		companyID = strings.TrimSpace(companyID)
		if companyID == "" {
			return nil, apperrors.NewFieldError("company_id", "required")
		}
		if _, err := s.companies.GetByID(ctx, companyID); err != nil {
			if isNoRows(err) {
				return nil, apperrors.NewNotFound("company", map[string]any{"company_id": companyID})
			}
			return nil, apperrors.MapError(err)
		}
	default:
		return nil, apperrors.NewForbidden("categories are scoped to a company")
	}
	categories, err := s.categories.ListByCompany(ctx, companyID, false)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return categories, nil
}

func requireCompanyAdmin(actor domain.Actor) (string, error) {
	if actor.Role != domain.RoleCompanyAdmin || actor.CompanyID == nil {
		return "", apperrors.NewForbidden("company admin role required")
	}
	return *actor.CompanyID, nil
}

package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deskline/helpdesk-service/internal/auth"
	"github.com/deskline/helpdesk-service/internal/config"
	"github.com/deskline/helpdesk-service/internal/domain"
	"github.com/deskline/helpdesk-service/internal/repository"
	apperrors "github.com/deskline/helpdesk-service/pkg/util"
)

const (
	minPasswordLength = 8
	// bcrypt only accepts inputs up to 72 bytes.
	maxPasswordBytes = 72
)

// AuthResult is returned by registration and login flows.
type AuthResult struct {
	User      *domain.User
	Company   *domain.Company
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	companies  repository.CompanyRepository
	tx         repository.Transactor
	denylist   auth.Denylist
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	CompanyRepo repository.CompanyRepository
	Transactor  repository.Transactor
	Denylist    auth.Denylist
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	denylist := deps.Denylist
	if denylist == nil {
		denylist = auth.NewMemoryDenylist()
	}
	return &AuthService{
		users:      deps.UserRepo,
		companies:  deps.CompanyRepo,
		tx:         deps.Transactor,
		denylist:   denylist,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     logger,
	}
}

// RegisterCompany creates a company together with its first COMPANY_ADMIN.
func (s *AuthService) RegisterCompany(ctx context.Context, companyName, adminName, email, password string) (*AuthResult, error) {
	companyName = strings.TrimSpace(companyName)
	fields := credentialProblems(adminName, email, password)
	slug := slugify(companyName)
	if companyName == "" || slug == "" {
		fields["company_name"] = "required"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid registration", fields)
	}
	email = normalizeEmail(email)
	if err := s.ensureEmailAvailable(ctx, email); err != nil {
		return nil, err
	}
	if _, err := s.companies.GetBySlug(ctx, slug); err == nil {
		return nil, apperrors.NewConflict("company already registered", map[string]any{"slug": slug})
	} else if !isNoRows(err) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	company := &domain.Company{Name: companyName, Slug: slug, Active: true}
	admin := &domain.User{
		Name:         strings.TrimSpace(adminName),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleCompanyAdmin,
		Active:       true,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Companies.Create(ctx, company); err != nil {
			return err
		}
		companyID := company.ID
		admin.CompanyID = &companyID
		return repos.Users.Create(ctx, admin)
	})
	if err != nil {
		return nil, registrationError(err, map[string]any{"slug": slug, "email": email})
	}
	s.logger.Info("company registered", zap.String("company", company.ID), zap.String("slug", slug))
	return s.issue(admin, company)
}

// RegisterUser creates a new customer account.
func (s *AuthService) RegisterUser(ctx context.Context, name, email, password string) (*AuthResult, error) {
	if fields := credentialProblems(name, email, password); len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid registration", fields)
	}
	email = normalizeEmail(email)
	if err := s.ensureEmailAvailable(ctx, email); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	user := &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, registrationError(err, map[string]any{"email": email})
	}
	return s.issue(user, nil)
}

// Login authenticates any account by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.Active {
		return nil, apperrors.NewUnauthorized("account inactive")
	}
	return s.issue(user, nil)
}

// Logout revokes the presented token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" {
		return apperrors.NewUnauthorized("missing token")
	}
	expiresAt := time.Now()
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.denylist.Revoke(ctx, claims.ID, expiresAt); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Denylist exposes the revocation store for middleware usage.
func (s *AuthService) Denylist() auth.Denylist {
	return s.denylist
}

func (s *AuthService) issue(user *domain.User, company *domain.Company) (*AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &AuthResult{User: user, Company: company, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) ensureEmailAvailable(ctx context.Context, email string) error {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !isNoRows(err) {
		return apperrors.MapError(err)
	}
	return nil
}

func credentialProblems(name, email, password string) map[string]any {
	fields := map[string]any{}
	if strings.TrimSpace(name) == "" {
		fields["name"] = "required"
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		fields["email"] = "must be a valid email address"
	}
	switch {
	case len(password) < minPasswordLength:
		fields["password"] = "must be at least 8 characters"
	case len(password) > maxPasswordBytes:
		fields["password"] = "must be at most 72 bytes"
	}
	return fields
}

// registrationError reports a unique constraint hit by a concurrent
// registration as a conflict.
func registrationError(err error, details map[string]any) error {
	if repository.IsUniqueViolation(err) {
		return apperrors.NewConflict("account already registered", details)
	}
	return apperrors.MapError(err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

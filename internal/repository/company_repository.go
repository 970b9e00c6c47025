package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/deskline/helpdesk-service/internal/domain"
)

// CompanyRepository provides tenant persistence.
type CompanyRepository interface {
	Create(ctx context.Context, company *domain.Company) error
	GetByID(ctx context.Context, id string) (*domain.Company, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Company, error)
}

type companyRepository struct {
	db DBTX
}

// NewCompanyRepository creates repository.
func NewCompanyRepository(db DBTX) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) Create(ctx context.Context, company *domain.Company) error {
	const query = `
        INSERT INTO companies (name, slug, active)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query, company.Name, company.Slug, company.Active).
		Scan(&company.ID, &company.CreatedAt, &company.UpdatedAt)
}

func (r *companyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	const query = `SELECT id, name, slug, active, created_at, updated_at FROM companies WHERE id=$1`
	return scanCompany(r.db.QueryRow(ctx, query, id))
}

func (r *companyRepository) GetBySlug(ctx context.Context, slug string) (*domain.Company, error) {
	const query = `SELECT id, name, slug, active, created_at, updated_at FROM companies WHERE slug=$1`
	return scanCompany(r.db.QueryRow(ctx, query, slug))
}

func scanCompany(row pgx.Row) (*domain.Company, error) {
	var company domain.Company
	if err := row.Scan(&company.ID, &company.Name, &company.Slug, &company.Active, &company.CreatedAt, &company.UpdatedAt); err != nil {
		return nil, err
	}
	return &company, nil
}

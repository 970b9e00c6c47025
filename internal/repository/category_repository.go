package repository

import (
	"context"

	"github.com/deskline/helpdesk-service/internal/domain"
)

// CategoryRepository manages ticket categories.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	ListByCompany(ctx context.Context, companyID string, includeInactive bool) ([]domain.Category, error)
}

type categoryRepository struct {
	db DBTX
}

// NewCategoryRepository creates repository.
func NewCategoryRepository(db DBTX) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	const query = `
        INSERT INTO categories (company_id, name, active)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query, category.CompanyID, category.Name, category.Active).
		Scan(&category.ID, &category.CreatedAt)
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	const query = `SELECT id, company_id, name, active, created_at FROM categories WHERE id=$1`
	var category domain.Category
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&category.ID,
		&category.CompanyID,
		&category.Name,
		&category.Active,
		&category.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) ListByCompany(ctx context.Context, companyID string, includeInactive bool) ([]domain.Category, error) {
	query := `SELECT id, company_id, name, active, created_at FROM categories WHERE company_id=$1`
	if !includeInactive {
		query += " AND active = TRUE"
	}
	query += " ORDER BY name ASC"
	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Category
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.ID, &category.CompanyID, &category.Name, &category.Active, &category.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, category)
	}
	return result, rows.Err()
}

package memrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskline/helpdesk-service/internal/domain"
	"github.com/deskline/helpdesk-service/internal/repository"
)

// UserRepository is an in-memory repository.UserRepository.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

var _ repository.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates an empty user repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]domain.User)}
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = *user
	return nil
}

func (r *UserRepository) snapshot() func() {
	r.mu.RLock()
	saved := make(map[string]domain.User, len(r.users))
	for id, user := range r.users {
		saved[id] = user
	}
	r.mu.RUnlock()
	return func() {
		r.mu.Lock()
		r.users = saved
		r.mu.Unlock()
	}
}

func (r *UserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *UserRepository) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.mu.RLock()
	result := make([]domain.User, 0)
	for _, user := range r.users {
		if filter.CompanyID != nil && (user.CompanyID == nil || *user.CompanyID != *filter.CompanyID) {
			continue
		}
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && user.Active != *filter.Active {
			continue
		}
		result = append(result, user)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	start, end := page(len(result), filter.Limit, filter.Offset)
	return result[start:end], nil
}

// CompanyRepository is an in-memory repository.CompanyRepository.
type CompanyRepository struct {
	mu        sync.RWMutex
	companies map[string]domain.Company
}

var _ repository.CompanyRepository = (*CompanyRepository)(nil)

// NewCompanyRepository creates an empty company repository.
func NewCompanyRepository() *CompanyRepository {
	return &CompanyRepository{companies: make(map[string]domain.Company)}
}

func (r *CompanyRepository) Create(_ context.Context, company *domain.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	now := time.Now()
	company.CreatedAt, company.UpdatedAt = now, now
	r.companies[company.ID] = *company
	return nil
}

func (r *CompanyRepository) snapshot() func() {
	r.mu.RLock()
	saved := make(map[string]domain.Company, len(r.companies))
	for id, company := range r.companies {
		saved[id] = company
	}
	r.mu.RUnlock()
	return func() {
		r.mu.Lock()
		r.companies = saved
		r.mu.Unlock()
	}
}

func (r *CompanyRepository) GetByID(_ context.Context, id string) (*domain.Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	company, ok := r.companies[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &company, nil
}

func (r *CompanyRepository) GetBySlug(_ context.Context, slug string) (*domain.Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, company := range r.companies {
		if company.Slug == slug {
			c := company
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// CategoryRepository is an in-memory repository.CategoryRepository.
type CategoryRepository struct {
	mu         sync.RWMutex
	categories map[string]domain.Category
}

var _ repository.CategoryRepository = (*CategoryRepository)(nil)

// NewCategoryRepository creates an empty category repository.
func NewCategoryRepository() *CategoryRepository {
	return &CategoryRepository{categories: make(map[string]domain.Category)}
}

func (r *CategoryRepository) Create(_ context.Context, category *domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	category.CreatedAt = time.Now()
	r.categories[category.ID] = *category
	return nil
}

func (r *CategoryRepository) GetByID(_ context.Context, id string) (*domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	category, ok := r.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &category, nil
}

func (r *CategoryRepository) ListByCompany(_ context.Context, companyID string, includeInactive bool) ([]domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.Category, 0)
	for _, category := range r.categories {
		if category.CompanyID != companyID || (!includeInactive && !category.Active) {
			continue
		}
		result = append(result, category)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

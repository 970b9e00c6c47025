package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/deskline/helpdesk-service/internal/config"
	"github.com/deskline/helpdesk-service/internal/domain"
	"github.com/deskline/helpdesk-service/internal/events"
	"github.com/deskline/helpdesk-service/internal/repository"
	"github.com/deskline/helpdesk-service/internal/repository/memrepo"
	"github.com/deskline/helpdesk-service/internal/service"
)

var baseTime = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Type)
	}
	return out
}

func (r *recorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	store    *memrepo.Store
	clock    *testClock
	recorded *recorder
	cfg      config.Config

	dispatcher events.Dispatcher

	tickets    *service.TicketService
	assignment *service.AssignmentService

	acme, globex *domain.Company
	category     *domain.Category

	customer, otherCustomer *domain.User
	agent, acmeAdmin        *domain.User
	inactiveAgent           *domain.User
	globexAgent             *domain.User
	platformAdmin           *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:    memrepo.NewStore(),
		clock:    &testClock{now: baseTime},
		recorded: &recorder{},
		cfg: config.Config{
			Auth:      config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 15, BcryptCost: 4},
			Lifecycle: config.LifecycleConfig{ReopenWindowDays: 30},
		},
	}

	dispatcher := events.NewInMemoryDispatcher(nil)
	for _, eventType := range events.AllTypes {
		dispatcher.Subscribe(eventType, f.recorded.handle)
	}

	f.acme = &domain.Company{Name: "Acme", Slug: "acme", Active: true}
	f.globex = &domain.Company{Name: "Globex", Slug: "globex", Active: true}
	require.NoError(t, f.store.Companies.Create(ctx, f.acme))
	require.NoError(t, f.store.Companies.Create(ctx, f.globex))

	f.category = &domain.Category{CompanyID: f.acme.ID, Name: "Billing", Active: true}
	require.NoError(t, f.store.Categories.Create(ctx, f.category))

	f.customer = f.addUser(t, "customer@example.com", domain.RoleUser, nil, true)
	f.otherCustomer = f.addUser(t, "other@example.com", domain.RoleUser, nil, true)
	f.agent = f.addUser(t, "agent@acme.test", domain.RoleAgent, &f.acme.ID, true)
	f.acmeAdmin = f.addUser(t, "admin@acme.test", domain.RoleCompanyAdmin, &f.acme.ID, true)
	f.inactiveAgent = f.addUser(t, "gone@acme.test", domain.RoleAgent, &f.acme.ID, false)
	f.globexAgent = f.addUser(t, "agent@globex.test", domain.RoleAgent, &f.globex.ID, true)
	f.platformAdmin = f.addUser(t, "root@platform.test", domain.RolePlatformAdmin, nil, true)

	f.dispatcher = dispatcher
	f.tickets = f.ticketService(f.store.Tickets, f.store)
	f.assignment = f.assignmentService(f.store)
	return f
}

func (f *fixture) ticketService(tickets repository.TicketRepository, tx repository.Transactor) *service.TicketService {
	return service.NewTicketService(service.TicketDependencies{
		TicketRepo:   tickets,
		ResponseRepo: f.store.Responses,
		HistoryRepo:  f.store.History,
		CompanyRepo:  f.store.Companies,
		CategoryRepo: f.store.Categories,
		Transactor:   tx,
		ReopenWindow: f.cfg.Lifecycle.ReopenWindow(),
		Dispatcher:   f.dispatcher,
		Clock:        f.clock.Now,
	})
}

func (f *fixture) assignmentService(tx repository.Transactor) *service.AssignmentService {
	return service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo: f.store.Tickets,
		UserRepo:   f.store.Users,
		Transactor: tx,
		Dispatcher: f.dispatcher,
		Clock:      f.clock.Now,
	})
}

// swappingTx runs units of work on store after letting swap replace some of
// the transactional repositories.
type swappingTx struct {
	store *memrepo.Store
	swap  func(repos *repository.Repositories)
}

func (tx swappingTx) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return tx.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		tx.swap(&repos)
		return fn(ctx, repos)
	})
}

var errHistoryWrite = errors.New("history insert failed")

type failingHistoryRepo struct {
	*memrepo.HistoryRepository
}

func (failingHistoryRepo) Create(context.Context, *domain.TicketHistory) error {
	return errHistoryWrite
}

func failingHistory(store *memrepo.Store) swappingTx {
	return swappingTx{store: store, swap: func(repos *repository.Repositories) {
		repos.History = failingHistoryRepo{store.History}
	}}
}

func (f *fixture) addUser(t *testing.T, email string, role domain.Role, companyID *string, active bool) *domain.User {
	t.Helper()
	var company *string
	if companyID != nil {
		id := *companyID
		company = &id
	}
	user := &domain.User{Name: email, Email: email, Role: role, CompanyID: company, Active: active}
	require.NoError(t, f.store.Users.Create(context.Background(), user))
	return user
}

// seedTicket stores an acme ticket created by f.customer in the given state.
func (f *fixture) seedTicket(t *testing.T, status domain.TicketStatus, mutate func(*domain.Ticket)) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		ID:                     uuid.NewString(),
		Code:                   "TCK-" + uuid.NewString()[:8],
		CompanyID:              f.acme.ID,
		CreatorID:              f.customer.ID,
		Title:                  "Printer on fire",
		Description:            "It is still on fire.",
		Status:                 status,
		Priority:               domain.TicketPriorityMedium,
		LastResponseAuthorType: domain.ResponseAuthorNone,
		CreatedAt:              baseTime.Add(-48 * time.Hour),
		UpdatedAt:              baseTime.Add(-48 * time.Hour),
	}
	switch status {
	case domain.TicketStatusResolved:
		resolved := baseTime.Add(-24 * time.Hour)
		ticket.ResolvedAt = &resolved
	case domain.TicketStatusClosed:
		resolved := baseTime.Add(-24 * time.Hour)
		closed := baseTime.Add(-24 * time.Hour)
		ticket.ResolvedAt = &resolved
		ticket.ClosedAt = &closed
	}
	if mutate != nil {
		mutate(ticket)
	}
	f.store.Tickets.Put(ticket)
	return ticket
}

func (f *fixture) reload(t *testing.T, ticket *domain.Ticket) *domain.Ticket {
	t.Helper()
	stored, err := f.store.Tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	return stored
}

func timePtr(t time.Time) *time.Time {
	return &t
}

package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deskline/helpdesk-service/internal/api/http/handlers"
	"github.com/deskline/helpdesk-service/internal/auth"
	"github.com/deskline/helpdesk-service/internal/config"
	"github.com/deskline/helpdesk-service/internal/events"
	"github.com/deskline/helpdesk-service/internal/observability"
	"github.com/deskline/helpdesk-service/internal/repository/memrepo"
	"github.com/deskline/helpdesk-service/internal/service"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := config.Config{
		Auth:      config.AuthConfig{JWTSecret: "router-test", AccessTokenTTLMinutes: 30, BcryptCost: 4},
		Lifecycle: config.LifecycleConfig{ReopenWindowDays: 30},
	}
	store := memrepo.NewStore()
	logger := zap.NewNop()
	metrics := observability.NewMetrics("helpdesk_test")
	dispatcher := events.NewInMemoryDispatcher(logger)

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo:    store.Users,
		CompanyRepo: store.Companies,
		Transactor:  store,
		Denylist:    auth.NewMemoryDenylist(),
	})
	companyService := service.NewCompanyService(cfg, service.CompanyDependencies{
		UserRepo:     store.Users,
		CategoryRepo: store.Categories,
		CompanyRepo:  store.Companies,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   store.Tickets,
		ResponseRepo: store.Responses,
		HistoryRepo:  store.History,
		CompanyRepo:  store.Companies,
		CategoryRepo: store.Categories,
		Transactor:   store,
		ReopenWindow: cfg.Lifecycle.ReopenWindow(),
		Dispatcher:   dispatcher,
		Metrics:      metrics,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  store.Tickets,
		UserRepo:    store.Users,
		Transactor:  store,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk", "test", map[string]handlers.Pinger{"postgres": nil}),
		Auth:           handlers.NewAuthHandler(authService),
		Company:        handlers.NewCompanyHandler(companyService),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), store.Users, authService.Denylist(), logger),
		Metrics:        metrics,
	})
	return app
}

type apiResponse struct {
	status int
	body   map[string]any
	raw    string
}

func (r apiResponse) data() map[string]any {
	data, _ := r.body["data"].(map[string]any)
	return data
}

func (r apiResponse) errorField(name string) any {
	errBody, _ := r.body["error"].(map[string]any)
	return errBody[name]
}

func call(t *testing.T, app *fiber.App, method, path, token string, payload any) apiResponse {
	t.Helper()
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := apiResponse{status: resp.StatusCode, raw: string(raw)}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

type session struct {
	token     string
	userID    string
	companyID string
}

func sessionFrom(t *testing.T, resp apiResponse) session {
	t.Helper()
	require.Contains(t, []int{fiber.StatusOK, fiber.StatusCreated}, resp.status, resp.raw)
	data := resp.data()
	user := data["user"].(map[string]any)
	s := session{token: data["token"].(string), userID: user["id"].(string)}
	if companyID, ok := user["company_id"].(string); ok {
		s.companyID = companyID
	}
	return s
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)

	admin := sessionFrom(t, call(t, app, "POST", "/auth/companies/register", "", map[string]any{
		"company_name": "Acme", "admin_name": "Ada", "email": "ada@acme.test", "password": "password-1",
	}))
	require.NotEmpty(t, admin.companyID)

	resp := call(t, app, "POST", "/company/agents", admin.token, map[string]any{
		"name": "Bob", "email": "bob@acme.test", "password": "password-2",
	})
	require.Equal(t, fiber.StatusCreated, resp.status, resp.raw)
	agentID := resp.data()["id"].(string)
	agent := sessionFrom(t, call(t, app, "POST", "/auth/login", "", map[string]any{
		"email": "bob@acme.test", "password": "password-2",
	}))
	assert.Equal(t, agentID, agent.userID)

	customer := sessionFrom(t, call(t, app, "POST", "/auth/users/register", "", map[string]any{
		"name": "Cleo", "email": "cleo@example.com", "password": "password-3",
	}))

	resp = call(t, app, "POST", "/tickets", customer.token, map[string]any{
		"company_id": admin.companyID, "title": "Login broken", "description": "Cannot sign in",
	})
	require.Equal(t, fiber.StatusCreated, resp.status, resp.raw)
	ticket := resp.data()
	code := ticket["code"].(string)
	assert.Equal(t, "open", ticket["status"])
	assert.Equal(t, "none", ticket["last_response_author_type"])
	assert.Nil(t, ticket["owner_agent_id"])

	resp = call(t, app, "POST", "/tickets/"+code+"/resolve", customer.token, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status, resp.raw)
	assert.Equal(t, "FORBIDDEN", resp.errorField("code"))
	assert.Equal(t, "authorization", resp.errorField("category"))

	resp = call(t, app, "POST", "/tickets/"+code+"/assign", admin.token, map[string]any{
		"new_agent_id": agentID, "note": "yours",
	})
	require.Equal(t, fiber.StatusOK, resp.status, resp.raw)
	assert.Equal(t, agentID, resp.data()["owner_agent_id"])

	resp = call(t, app, "POST", "/tickets/"+code+"/responses", agent.token, map[string]any{"body": "On it"})
	require.Equal(t, fiber.StatusCreated, resp.status, resp.raw)
	assert.Equal(t, "agent", resp.data()["author_type"])

	resp = call(t, app, "POST", "/tickets/"+code+"/resolve", agent.token, map[string]any{"note": "reset done"})
	require.Equal(t, fiber.StatusOK, resp.status, resp.raw)
	assert.Equal(t, "resolved", resp.data()["status"])
	assert.NotNil(t, resp.data()["resolved_at"])

	resp = call(t, app, "POST", "/tickets/"+code+"/resolve", agent.token, nil)
	assert.Equal(t, fiber.StatusConflict, resp.status, resp.raw)
	assert.Equal(t, "state_conflict", resp.errorField("category"))

	resp = call(t, app, "POST", "/tickets/"+code+"/reopen", customer.token, nil)
	require.Equal(t, fiber.StatusOK, resp.status, resp.raw)
	assert.Equal(t, "pending", resp.data()["status"])

	resp = call(t, app, "POST", "/tickets/"+code+"/close", agent.token, nil)
	require.Equal(t, fiber.StatusOK, resp.status, resp.raw)
	assert.Equal(t, "closed", resp.data()["status"])
	assert.NotNil(t, resp.data()["closed_at"])

	resp = call(t, app, "GET", "/tickets/"+code, customer.token, nil)
	require.Equal(t, fiber.StatusOK, resp.status, resp.raw)
	assert.Equal(t, "agent", resp.data()["last_response_author_type"])
	assert.Len(t, resp.data()["responses"], 1)

	resp = call(t, app, "GET", "/tickets/"+code+"/history", agent.token, nil)
	require.Equal(t, fiber.StatusOK, resp.status, resp.raw)
	assert.Len(t, resp.body["data"], 5)

	resp = call(t, app, "GET", "/tickets?status=closed", agent.token, nil)
	require.Equal(t, fiber.StatusOK, resp.status, resp.raw)
	assert.Len(t, resp.body["data"], 1)
}

func TestErrorEnvelope(t *testing.T) {
	app := newTestApp(t)
	admin := sessionFrom(t, call(t, app, "POST", "/auth/companies/register", "", map[string]any{
		"company_name": "Globex", "admin_name": "Hank", "email": "hank@globex.test", "password": "password-1",
	}))
	customer := sessionFrom(t, call(t, app, "POST", "/auth/users/register", "", map[string]any{
		"name": "Ivy", "email": "ivy@example.com", "password": "password-3",
	}))
	resp := call(t, app, "POST", "/tickets", customer.token, map[string]any{
		"company_id": admin.companyID, "title": "Slow", "description": "Very slow",
	})
	require.Equal(t, fiber.StatusCreated, resp.status, resp.raw)
	code := resp.data()["code"].(string)

	t.Run("validation with field details", func(t *testing.T) {
		resp := call(t, app, "POST", "/tickets/"+code+"/assign", admin.token, map[string]any{})
		assert.Equal(t, fiber.StatusBadRequest, resp.status, resp.raw)
		assert.Equal(t, "VALIDATION_FAILED", resp.errorField("code"))
		assert.Equal(t, "validation", resp.errorField("category"))
		details, _ := resp.errorField("details").(map[string]any)
		assert.Contains(t, details, "new_agent_id")
	})

	t.Run("unknown ticket", func(t *testing.T) {
		resp := call(t, app, "POST", "/tickets/TCK-DEADBEEF/close", admin.token, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.status, resp.raw)
		assert.Equal(t, "not_found", resp.errorField("category"))
	})

	t.Run("missing token", func(t *testing.T) {
		resp := call(t, app, "GET", "/tickets", "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.status, resp.raw)
		assert.Equal(t, "authentication", resp.errorField("category"))
	})

	t.Run("customer cannot manage agents", func(t *testing.T) {
		resp := call(t, app, "GET", "/company/agents", customer.token, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.status, resp.raw)
	})

	t.Run("staff cannot open tickets", func(t *testing.T) {
		resp := call(t, app, "POST", "/tickets", admin.token, map[string]any{
			"company_id": admin.companyID, "title": "x", "description": "y",
		})
		assert.Equal(t, fiber.StatusForbidden, resp.status, resp.raw)
	})

	t.Run("bad registration payload", func(t *testing.T) {
		resp := call(t, app, "POST", "/auth/users/register", "", map[string]any{"email": "nope"})
		assert.Equal(t, fiber.StatusBadRequest, resp.status, resp.raw)
		details, _ := resp.errorField("details").(map[string]any)
		assert.Contains(t, details, "email")
		assert.Contains(t, details, "password")
	})

	t.Run("password longer than bcrypt accepts", func(t *testing.T) {
		resp := call(t, app, "POST", "/auth/users/register", "", map[string]any{
			"name": "Jo", "email": "jo@example.com", "password": strings.Repeat("é", 40),
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.status, resp.raw)
		assert.Equal(t, "validation", resp.errorField("category"))
		details, _ := resp.errorField("details").(map[string]any)
		assert.Contains(t, details, "password")
	})

	t.Run("unknown route", func(t *testing.T) {
		resp := call(t, app, "GET", "/nowhere", "", nil)
		assert.Equal(t, fiber.StatusNotFound, resp.status, resp.raw)
		assert.Equal(t, "NOT_FOUND", resp.errorField("code"))
	})
}

func TestLogoutRevokesToken(t *testing.T) {
	app := newTestApp(t)
	customer := sessionFrom(t, call(t, app, "POST", "/auth/users/register", "", map[string]any{
		"name": "Jo", "email": "jo@example.com", "password": "password-3",
	}))

	resp := call(t, app, "GET", "/auth/me", customer.token, nil)
	require.Equal(t, fiber.StatusOK, resp.status, resp.raw)
	assert.Equal(t, "USER", resp.data()["role"])

	resp = call(t, app, "POST", "/auth/logout", customer.token, nil)
	require.Equal(t, fiber.StatusNoContent, resp.status, resp.raw)

	resp = call(t, app, "GET", "/auth/me", customer.token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.status, resp.raw)
}

func TestOperationalEndpoints(t *testing.T) {
	app := newTestApp(t)

	resp := call(t, app, "GET", "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "alive", resp.body["status"])

	resp = call(t, app, "GET", "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.status, resp.raw)
	deps := resp.body["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["postgres"])

	resp = call(t, app, "GET", "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Contains(t, resp.raw, "helpdesk_test_http_requests_total")
}

func TestTicketListPagesReachEveryTicket(t *testing.T) {
	app := newTestApp(t)

	admin := sessionFrom(t, call(t, app, "POST", "/auth/companies/register", "", map[string]any{
		"company_name": "Paged", "admin_name": "Pat", "email": "pat@paged.test", "password": "password-1",
	}))
	customer := sessionFrom(t, call(t, app, "POST", "/auth/users/register", "", map[string]any{
		"name": "Quinn", "email": "quinn@example.com", "password": "password-2",
	}))
	for i := 0; i < 150; i++ {
		resp := call(t, app, "POST", "/tickets", customer.token, map[string]any{
			"company_id": admin.companyID, "title": "Ticket", "description": "Details",
		})
		require.Equal(t, fiber.StatusCreated, resp.status, resp.raw)
	}

	seen := map[string]bool{}
	for page, want := range map[int]int{1: 100, 2: 50, 3: 0} {
		resp := call(t, app, "GET", fmt.Sprintf("/tickets?page=%d&page_size=120", page), admin.token, nil)
		require.Equal(t, fiber.StatusOK, resp.status, resp.raw)
		assert.EqualValues(t, 100, resp.body["page_size"])
		items, _ := resp.body["data"].([]any)
		assert.Len(t, items, want, "page %d", page)
		for _, item := range items {
			seen[item.(map[string]any)["code"].(string)] = true
		}
	}
	assert.Len(t, seen, 150)
}

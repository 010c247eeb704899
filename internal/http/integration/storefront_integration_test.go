package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/cache"
	"github.com/geocoder89/storefront/internal/catalog"
	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/db"
	apphttp "github.com/geocoder89/storefront/internal/http"
	"github.com/geocoder89/storefront/internal/http/handlers"
	"github.com/geocoder89/storefront/internal/identity"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/geocoder89/storefront/internal/repo/memory"
	"github.com/geocoder89/storefront/internal/roleguard"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router http.Handler
	users  *memory.UsersRepo
}

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		CatalogBackend: config.BackendMemory,
		LoginPath:      "/login",
		GuardTimeout:   time.Second,
		CORSOrigins:    []string{"http://localhost:3000"},
	}
}

func setupServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	users := memory.NewUsersRepo()
	identities := memory.NewIdentityRepo()
	local := identity.NewLocal(identities, identities, auth.NewManager("test-secret-key", time.Hour))

	guard := roleguard.New(local, users,
		roleguard.WithTimeout(cfg.GuardTimeout),
		roleguard.WithLogger(logger),
		roleguard.WithObserver(prom),
	)

	views := cache.New[catalog.View](time.Minute)
	svc := catalog.NewService(memory.NewCatalogStore(),
		catalog.WithLogger(logger),
		catalog.WithObserver(prom),
		catalog.WithChangeHook(func(string) { views.Clear() }),
	)

	router := apphttp.NewRouter(apphttp.Deps{
		Log:      logger,
		Config:   cfg,
		Guard:    guard,
		Users:    users,
		Identity: local,
		Catalog:  svc,
		Views:    views,
		Prom:     prom,
		Gatherer: reg,
		Checks: map[string]handlers.Pinger{
			"catalog": func(context.Context) error { return nil },
		},
	})

	return &testServer{router: router, users: users}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// register signs a shopper up and returns their session cookie.
func (s *testServer) register(t *testing.T, email string) *http.Cookie {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    email,
		"password": "secret123",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == roleguard.SessionCookie {
			return c
		}
	}
	t.Fatalf("register did not set the %s cookie", roleguard.SessionCookie)
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorEnvelope struct {
	Error handlers.APIError `json:"error"`
}

func TestStorefront_AnonymousBrowseSeedsCatalog(t *testing.T) {
	s := setupServer(t, testConfig())

	rec := s.do(t, http.MethodGet, "/api/catalog", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	v := decode[catalog.View](t, rec)
	assert.Len(t, v.Categories, 4)
	assert.Len(t, v.Products, 6)
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	rec = s.do(t, http.MethodGet, "/api/catalog?categoryId=4", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v = decode[catalog.View](t, rec)
	assert.Equal(t, "Pastries", v.SelectedCategoryName)
	assert.Len(t, v.Products, 3)
}

func TestAdminArea_AccessByRole(t *testing.T) {
	s := setupServer(t, testConfig())

	t.Run("anonymous is sent to login", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/admin/categories", nil, nil)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))

		rec = s.do(t, http.MethodGet, "/api/admin/shell", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	shopper := s.register(t, "shopper@example.com")

	t.Run("shopper is turned away", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/admin", nil, shopper)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))

		rec = s.do(t, http.MethodGet, "/api/admin/shell", nil, shopper)
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, handlers.PermissionDenied, decode[errorEnvelope](t, rec).Error.Message)

		rec = s.do(t, http.MethodPost, "/api/admin/categories", map[string]string{"name": "Breads"}, shopper)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("check role reports USER", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/auth/check-role", nil, shopper)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"role":"USER"}`, rec.Body.String())
	})

	t.Run("promotion takes effect on the next request", func(t *testing.T) {
		err := db.EnsureAdmin(context.Background(), s.users, "shopper@example.com", slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, err)

		rec := s.do(t, http.MethodGet, "/admin/products", nil, shopper)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode[struct {
			Shell handlers.Shell `json:"shell"`
		}](t, rec)
		assert.Equal(t, "/admin/products", body.Shell.Path)
		assert.Equal(t, "Admin Dashboard", body.Shell.Title)
	})

	t.Run("signed out session is anonymous again", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/auth/signout", nil, shopper)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = s.do(t, http.MethodGet, "/admin", nil, shopper)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})
}

func TestAdminCatalog_EndToEnd(t *testing.T) {
	s := setupServer(t, testConfig())
	ctx := context.Background()

	admin := s.register(t, "owner@example.com")
	require.NoError(t, db.EnsureAdmin(ctx, s.users, "owner@example.com", slog.New(slog.NewTextHandler(io.Discard, nil))))

	// public page first so the browse cache is warm
	rec := s.do(t, http.MethodGet, "/api/catalog", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/admin/categories", map[string]string{"name": "Breads"}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Category struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"category"`
		Message string `json:"message"`
	}](t, rec)
	assert.Equal(t, "Category added successfully!", created.Message)

	rec = s.do(t, http.MethodPost, "/api/admin/categories", map[string]string{"name": " breads "}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/admin/products", map[string]string{
		"name":        "Sourdough",
		"description": "Slow fermented loaf.",
		"categoryId":  created.Category.ID,
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/catalog", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[catalog.View](t, rec)
	assert.Len(t, v.Categories, 5, "cache must be cleared by the write")
	assert.Len(t, v.Products, 7)

	rec = s.do(t, http.MethodGet, "/api/admin/dashboard", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[struct {
		Stats catalog.Stats `json:"stats"`
	}](t, rec)
	assert.Equal(t, 7, stats.Stats.TotalProducts)
	assert.Equal(t, "Pastries", stats.Stats.MostPopularCategory)

	rec = s.do(t, http.MethodDelete, "/api/admin/categories/"+created.Category.ID, nil, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Category and 1 associated product(s) deleted successfully!")

	rec = s.do(t, http.MethodGet, "/api/admin/products", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Sourdough")
}

func TestSelfElevation_OnlyMountedWhenAllowed(t *testing.T) {
	s := setupServer(t, testConfig())
	shopper := s.register(t, "a@example.com")

	rec := s.do(t, http.MethodPost, "/api/auth/set-admin", nil, shopper)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cfg := testConfig()
	cfg.Env = "dev"
	cfg.AllowSelfElevation = true
	s = setupServer(t, cfg)
	shopper = s.register(t, "a@example.com")

	rec = s.do(t, http.MethodPost, "/api/auth/set-admin", nil, shopper)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/admin/dashboard", nil, shopper)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOpsEndpoints(t *testing.T) {
	s := setupServer(t, testConfig())

	rec := s.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// one guarded request so the decision counter has a sample
	s.do(t, http.MethodGet, "/api/admin/shell", nil, nil)

	rec = s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `storefront_guard_decisions_total{decision="unauthenticated"}`), body)
	assert.Contains(t, body, "storefront_http_requests_total")
}

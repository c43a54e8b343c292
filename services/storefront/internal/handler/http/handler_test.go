package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/pkg/health"
	"github.com/utafrali/EcommerceGo/pkg/pagination"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/client"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/domain"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/session"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/storage/memory"
)

// ============================================================================
// Mock collaborators
// ============================================================================

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) Login(ctx context.Context, email, password string) (*client.LoginResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.LoginResult), args.Error(1)
}

func (m *mockAuth) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) ListProducts(ctx context.Context, q client.ProductQuery) (*client.Page[domain.Product], error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Page[domain.Product]), args.Error(1)
}

func (m *mockCatalog) GetProduct(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalog) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCatalog) ListBrands(ctx context.Context) ([]domain.Brand, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Brand), args.Error(1)
}

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) ListOrders(ctx context.Context, token string, params pagination.Params) (*client.Page[domain.Order], error) {
	args := m.Called(ctx, token, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Page[domain.Order]), args.Error(1)
}

func (m *mockOrders) GetOrder(ctx context.Context, token string, id int64) (*domain.Order, error) {
	args := m.Called(ctx, token, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

type mockSettings struct {
	mock.Mock
}

func (m *mockSettings) GetSettings(ctx context.Context) (*domain.Settings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Settings), args.Error(1)
}

// ============================================================================
// Test helpers
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	router   http.Handler
	storage  *memory.Storage
	auth     *mockAuth
	catalog  *mockCatalog
	orders   *mockOrders
	settings *mockSettings
	relayHit string
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		storage:  memory.New(),
		auth:     &mockAuth{},
		catalog:  &mockCatalog{},
		orders:   &mockOrders{},
		settings: &mockSettings{},
	}

	reg := session.NewRegistry(env.storage, time.Minute, testLogger())
	t.Cleanup(reg.Close)

	relayStub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.relayHit = r.URL.Path
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	})

	limiter := NewRateLimiter(100, 100, false, testLogger())
	t.Cleanup(limiter.Close)

	env.router = NewRouter(RouterConfig{
		Environment:        "development",
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		PprofCIDRs:         []string{"127.0.0.0/8"},
		LoginPath:          "/login",
	}, Dependencies{
		Registry:     reg,
		Codec:        session.NewCodec("test-secret", time.Hour),
		Relay:        relayStub,
		RelayLimiter: limiter,
		Auth:         env.auth,
		Catalog:      env.catalog,
		Orders:       env.orders,
		Settings:     env.settings,
		Health:       health.NewHandler(time.Second),
	}, testLogger())

	return env
}

// browser replays the session cookie the way a browser would.
type browser struct {
	t      *testing.T
	env    *testEnv
	cookie *http.Cookie
}

func (e *testEnv) browser(t *testing.T) *browser {
	return &browser{t: t, env: e}
}

func (b *browser) do(method, path string, body any) *httptest.ResponseRecorder {
	b.t.Helper()

	var reader io.Reader
	if body != nil {
		switch v := body.(type) {
		case string:
			reader = bytes.NewBufferString(v)
		default:
			data, err := json.Marshal(v)
			require.NoError(b.t, err)
			reader = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}

	rec := httptest.NewRecorder()
	b.env.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			b.cookie = c
		}
	}
	return rec
}

// loginAs signs the browser in with a stubbed backend login.
func (b *browser) loginAs(user *domain.User, isAdmin bool) {
	b.t.Helper()

	b.env.auth.On("Login", mock.Anything, user.Email, "secret").
		Return(&client.LoginResult{Token: "tok-" + user.Email, User: user, IsAdmin: isAdmin}, nil).Once()

	rec := b.do(http.MethodPost, "/api/v1/session/login", map[string]string{
		"email":    user.Email,
		"password": "secret",
	})
	require.Equal(b.t, http.StatusOK, rec.Code, rec.Body.String())
}

// decodeData unmarshals the "data" member of a response envelope.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code
}

var (
	customer = &domain.User{ID: 7, Name: "Ada", Email: "ada@example.com", Role: "customer"}
	admin    = &domain.User{ID: 1, Name: "Root", Email: "root@example.com", Role: "admin"}
)

func newRequest(method, path, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	return httptest.NewRequest(method, path, reader)
}

func serve(env *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

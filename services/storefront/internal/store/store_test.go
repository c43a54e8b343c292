package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/services/storefront/internal/storage/memory"
)

// --- Mock Storage ---

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockStorage) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *mockStorage) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockStorage) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- Test Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hydratedCart(t *testing.T, s *memory.Storage) *CartStore {
	t.Helper()
	c := NewCartStore(s, testLogger())
	require.NoError(t, c.Hydrate(context.Background()))
	return c
}

func hydratedAuth(t *testing.T, s *memory.Storage) *AuthStore {
	t.Helper()
	a := NewAuthStore(s, testLogger())
	require.NoError(t, a.Hydrate(context.Background()))
	return a
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/pkg/database"
	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/storage"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setupStorage(t *testing.T, ttl time.Duration) (*Storage, pgxmock.PgxPoolIface) {
	t.Helper()
	mock := database.NewMockPool(t)

	s := New(mock, ttl)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestStorage_Get_Success(t *testing.T) {
	s, mock := setupStorage(t, 0)

	mock.ExpectQuery("SELECT value FROM storefront_storage").
		WithArgs("cart-storage").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(`{"items":[]}`))

	v, err := s.Get(context.Background(), "cart-storage")

	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_Get_NotFound(t *testing.T) {
	s, mock := setupStorage(t, 0)

	mock.ExpectQuery("SELECT value FROM storefront_storage").
		WithArgs("auth_token").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "auth_token")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_Get_DatabaseError(t *testing.T) {
	s, mock := setupStorage(t, 0)

	mock.ExpectQuery("SELECT value FROM storefront_storage").
		WithArgs("user").
		WillReturnError(errors.New("connection reset"))

	_, err := s.Get(context.Background(), "user")

	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Contains(t, err.Error(), "select storage key user")
}

// ---------------------------------------------------------------------------
// Set / Remove
// ---------------------------------------------------------------------------

func TestStorage_Set_WithTTL(t *testing.T) {
	s, mock := setupStorage(t, 2*time.Hour)
	expires := fixedNow.Add(2 * time.Hour)

	mock.ExpectExec("INSERT INTO storefront_storage").
		WithArgs("is_admin", "true", &expires).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Set(context.Background(), "is_admin", "true"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_Set_WithoutTTL(t *testing.T) {
	s, mock := setupStorage(t, 0)

	mock.ExpectExec("INSERT INTO storefront_storage").
		WithArgs("auth_token", "tok", (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Set(context.Background(), "auth_token", "tok"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_Set_Error(t *testing.T) {
	s, mock := setupStorage(t, 0)

	mock.ExpectExec("INSERT INTO storefront_storage").
		WithArgs("auth_token", "tok", (*time.Time)(nil)).
		WillReturnError(errors.New("disk full"))

	err := s.Set(context.Background(), "auth_token", "tok")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestStorage_Remove(t *testing.T) {
	s, mock := setupStorage(t, 0)

	mock.ExpectExec("DELETE FROM storefront_storage WHERE key").
		WithArgs("user").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.Remove(context.Background(), "user"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Maintenance
// ---------------------------------------------------------------------------

func TestStorage_PurgeExpired(t *testing.T) {
	s, mock := setupStorage(t, time.Hour)

	mock.ExpectExec("DELETE FROM storefront_storage WHERE expires_at").
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := s.PurgeExpired(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_Ping(t *testing.T) {
	s, mock := setupStorage(t, 0)

	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func appendValue(suffix string) storage.UpdateFunc {
	return func(current string, _ bool) (string, bool, error) {
		return current + suffix, true, nil
	}
}

func expectValue(mock pgxmock.PgxPoolIface, key, value string) {
	mock.ExpectQuery("SELECT value FROM storefront_storage").
		WithArgs(key).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(value))
}

func TestStorage_Update_SwapsValueItRead(t *testing.T) {
	s, mock := setupStorage(t, 0)

	expectValue(mock, "cart-storage", "a")
	mock.ExpectExec("UPDATE storefront_storage").
		WithArgs("cart-storage", "ab", (*time.Time)(nil), "a").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.Update(context.Background(), "cart-storage", appendValue("b")))
}

func TestStorage_Update_RetriesAfterConcurrentWrite(t *testing.T) {
	s, mock := setupStorage(t, 0)

	expectValue(mock, "cart-storage", "a")
	mock.ExpectExec("UPDATE storefront_storage").
		WithArgs("cart-storage", "ab", (*time.Time)(nil), "a").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	expectValue(mock, "cart-storage", "ax")
	mock.ExpectExec("UPDATE storefront_storage").
		WithArgs("cart-storage", "axb", (*time.Time)(nil), "ax").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.Update(context.Background(), "cart-storage", appendValue("b")))
}

func TestStorage_Update_InsertsAbsentKey(t *testing.T) {
	s, mock := setupStorage(t, time.Hour)
	expires := fixedNow.Add(time.Hour)

	mock.ExpectQuery("SELECT value FROM storefront_storage").
		WithArgs("cart-storage").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO storefront_storage").
		WithArgs("cart-storage", "b", &expires).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	var sawFound bool
	err := s.Update(context.Background(), "cart-storage", func(current string, found bool) (string, bool, error) {
		sawFound = found
		return current + "b", true, nil
	})

	require.NoError(t, err)
	assert.False(t, sawFound)
}

func TestStorage_Update_NoWrite(t *testing.T) {
	s, mock := setupStorage(t, 0)

	expectValue(mock, "cart-storage", "a")

	err := s.Update(context.Background(), "cart-storage", func(string, bool) (string, bool, error) {
		return "", false, nil
	})

	assert.NoError(t, err)
}

func TestStorage_Update_GivesUpOnPersistentConflict(t *testing.T) {
	s, mock := setupStorage(t, 0)

	for i := 0; i < maxUpdateAttempts; i++ {
		expectValue(mock, "cart-storage", "a")
		mock.ExpectExec("UPDATE storefront_storage").
			WithArgs("cart-storage", "ab", (*time.Time)(nil), "a").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	}

	err := s.Update(context.Background(), "cart-storage", appendValue("b"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrConflict))
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

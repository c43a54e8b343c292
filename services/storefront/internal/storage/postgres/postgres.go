package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/EcommerceGo/pkg/database"
	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/storage"
)

const maxUpdateAttempts = 5

const (
	getQuery = `
		SELECT value FROM storefront_storage
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > NOW())`

	upsertQuery = `
		INSERT INTO storefront_storage (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = NOW()`

	// swapQuery replaces value only if nobody changed it since it was read.
	swapQuery = `
		UPDATE storefront_storage
		SET value = $2, expires_at = $3, updated_at = NOW()
		WHERE key = $1 AND value = $4 AND (expires_at IS NULL OR expires_at > NOW())`

	// insertAbsentQuery creates the key, taking over a row only once it has expired.
	insertAbsentQuery = `
		INSERT INTO storefront_storage (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = NOW()
		WHERE storefront_storage.expires_at IS NOT NULL AND storefront_storage.expires_at <= NOW()`

	deleteQuery = `DELETE FROM storefront_storage WHERE key = $1`

	purgeQuery = `DELETE FROM storefront_storage WHERE expires_at IS NOT NULL AND expires_at <= NOW()`
)

// Storage implements storage.Storage on the storefront_storage table.
type Storage struct {
	db  database.DBTX
	ttl time.Duration
	now func() time.Time
}

// New creates a new PostgreSQL-backed storage. A zero ttl keeps entries forever.
func New(db database.DBTX, ttl time.Duration) *Storage {
	return &Storage{db: db, ttl: ttl, now: time.Now}
}

// Get retrieves the value stored under key.
func (s *Storage) Get(ctx context.Context, key string) (_ string, err error) {
	ctx, end := database.TraceQuery(ctx, "StorageGet", getQuery)
	defer func() { end(err) }()

	var value string
	if err := s.db.QueryRow(ctx, getQuery, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NotFound("storage key", key)
		}
		return "", fmt.Errorf("select storage key %s: %w", key, err)
	}
	return value, nil
}

// Set upserts value under key.
func (s *Storage) Set(ctx context.Context, key, value string) (err error) {
	ctx, end := database.TraceQuery(ctx, "StorageSet", upsertQuery)
	defer func() { end(err) }()

	if _, err := s.db.Exec(ctx, upsertQuery, key, value, s.expiresAt()); err != nil {
		return fmt.Errorf("upsert storage key %s: %w", key, err)
	}
	return nil
}

// Update applies fn with optimistic concurrency: the new value is written
// only if the row still holds the value fn saw, otherwise fn runs again on
// the fresh value.
func (s *Storage) Update(ctx context.Context, key string, fn storage.UpdateFunc) error {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := s.Get(ctx, key)
		found := err == nil
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		next, write, err := fn(current, found)
		if err != nil || !write {
			return err
		}

		swapped, err := s.swap(ctx, key, current, found, next)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
	}
	return fmt.Errorf("update storage key %s: %w", key, storage.ErrConflict)
}

func (s *Storage) swap(ctx context.Context, key, current string, found bool, next string) (_ bool, err error) {
	query := insertAbsentQuery
	args := []any{key, next, s.expiresAt()}
	if found {
		query = swapQuery
		args = append(args, current)
	}

	ctx, end := database.TraceQuery(ctx, "StorageSwap", query)
	defer func() { end(err) }()

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("swap storage key %s: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Storage) expiresAt() *time.Time {
	if s.ttl <= 0 {
		return nil
	}
	t := s.now().UTC().Add(s.ttl)
	return &t
}

// Remove deletes key.
func (s *Storage) Remove(ctx context.Context, key string) (err error) {
	ctx, end := database.TraceQuery(ctx, "StorageRemove", deleteQuery)
	defer func() { end(err) }()

	if _, err := s.db.Exec(ctx, deleteQuery, key); err != nil {
		return fmt.Errorf("delete storage key %s: %w", key, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Storage) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("ping storage database: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired entries and returns how many were removed.
func (s *Storage) PurgeExpired(ctx context.Context) (_ int64, err error) {
	ctx, end := database.TraceQuery(ctx, "StoragePurgeExpired", purgeQuery)
	defer func() { end(err) }()

	tag, err := s.db.Exec(ctx, purgeQuery)
	if err != nil {
		return 0, fmt.Errorf("purge expired storage entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

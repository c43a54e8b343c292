// Package storage defines the durable key-value port behind the client
// persistence stores.
package storage

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
)

// Storage persists string values by key. Get returns an error wrapping
// apperrors.ErrNotFound when the key is absent. Remove of an absent key is
// not an error.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// ErrConflict is returned by Update when other writers kept changing the key
// until the backend gave up retrying.
var ErrConflict = fmt.Errorf("storage: concurrent update: %w", apperrors.ErrConflict)

// UpdateFunc computes the next value of a key from its current one; found is
// false when the key is absent. Returning write=false leaves the key alone.
// It may run more than once and must not call back into the storage.
type UpdateFunc func(current string, found bool) (next string, write bool, err error)

// Updater is implemented by backends that can read-modify-write one key
// atomically with respect to every other writer of that backend.
type Updater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// Update applies fn to key, atomically when s implements Updater and as a
// plain Get then Set otherwise.
func Update(ctx context.Context, s Storage, key string, fn UpdateFunc) error {
	if u, ok := s.(Updater); ok {
		return u.Update(ctx, key, fn)
	}

	current, err := s.Get(ctx, key)
	found := err == nil
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	next, write, err := fn(current, found)
	if err != nil || !write {
		return err
	}
	return s.Set(ctx, key, next)
}

type prefixed struct {
	inner  Storage
	prefix string
}

// WithPrefix namespaces every key of s under prefix, so that one backend can
// hold the entries of many browser sessions.
func WithPrefix(s Storage, prefix string) Storage {
	return &prefixed{inner: s, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) (string, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key, value string) error {
	return p.inner.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) Remove(ctx context.Context, key string) error {
	return p.inner.Remove(ctx, p.prefix+key)
}

func (p *prefixed) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return Update(ctx, p.inner, p.prefix+key, fn)
}

func (p *prefixed) Ping(ctx context.Context) error {
	return p.inner.Ping(ctx)
}

// SessionPrefix returns the key namespace of one browser session.
func SessionPrefix(sessionID string) string {
	return "session:" + sessionID + ":"
}

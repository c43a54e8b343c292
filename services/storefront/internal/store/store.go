// Package store holds the per-session cart and auth stores. Each store keeps
// its state in memory, mirrors every committed change to a storage.Storage,
// and rebuilds itself from that storage on Hydrate.
package store

import (
	"context"
	"errors"
	"net/http"
	"sync"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
)

// Storage keys shared with external readers of the durable store.
const (
	CartStorageKey = "cart-storage"
	AuthStorageKey = "auth-storage"
	AuthTokenKey   = "auth_token"
	UserKey        = "user"
	IsAdminKey     = "is_admin"
)

// ErrNotHydrated is returned by mutations attempted before the store has
// finished reading its durable state.
var ErrNotHydrated = &apperrors.AppError{
	Code:    "NOT_HYDRATED",
	Message: "session state is still loading",
	Status:  http.StatusServiceUnavailable,
	Err:     apperrors.ErrServiceUnavail,
}

type hydrationState int

const (
	stateUninitialized hydrationState = iota
	stateHydrating
	stateReady
)

func (s hydrationState) String() string {
	switch s {
	case stateHydrating:
		return "hydrating"
	case stateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// hydration tracks the uninitialized -> hydrating -> ready transitions of a
// store. The caller guards state with its own mutex; ready is closed once.
type hydration struct {
	state hydrationState
	ready chan struct{}
	// serializes Hydrate calls
	run sync.Mutex
}

func (h *hydration) markReady() {
	h.state = stateReady
	close(h.ready)
}

func waitReady(ctx context.Context, ready <-chan struct{}) error {
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Listener is notified with a snapshot after every committed change.
type Listener[T any] func(ctx context.Context, snapshot T)

type listenerEntry[T any] struct {
	id int
	fn Listener[T]
}

type listeners[T any] struct {
	mu      sync.Mutex
	nextID  int
	entries []listenerEntry[T]
}

func (l *listeners[T]) add(fn Listener[T]) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, listenerEntry[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, e := range l.entries {
				if e.id == id {
					l.entries = append(l.entries[:i], l.entries[i+1:]...)
					return
				}
			}
		})
	}
}

// notify runs outside the store lock so listeners may read the store.
func (l *listeners[T]) notify(ctx context.Context, snapshot T) {
	l.mu.Lock()
	fns := make([]Listener[T], len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(ctx, snapshot)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}

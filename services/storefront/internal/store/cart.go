package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/domain"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/storage"
)

// CartStore is the cart of one browser session.
type CartStore struct {
	storage   storage.Storage
	logger    *slog.Logger
	listeners listeners[domain.Cart]

	mu        sync.RWMutex
	cart      domain.Cart
	hydration hydration
}

// NewCartStore creates an empty, unhydrated cart store backed by s.
func NewCartStore(s storage.Storage, logger *slog.Logger) *CartStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartStore{
		storage:   s,
		logger:    logger,
		cart:      domain.Cart{Items: []domain.CartItem{}},
		hydration: hydration{ready: make(chan struct{})},
	}
}

// Hydrate loads the persisted cart. A missing entry yields an empty cart and
// an unreadable one is discarded with a warning. Storage errors leave the
// store uninitialized so Hydrate can be retried.
func (s *CartStore) Hydrate(ctx context.Context) error {
	s.hydration.run.Lock()
	defer s.hydration.run.Unlock()

	s.mu.Lock()
	if s.hydration.state == stateReady {
		s.mu.Unlock()
		return nil
	}
	s.hydration.state = stateHydrating
	s.mu.Unlock()

	cart, err := s.load(ctx)

	s.mu.Lock()
	if err != nil {
		s.hydration.state = stateUninitialized
		s.mu.Unlock()
		return fmt.Errorf("hydrate cart: %w", err)
	}
	s.cart = cart
	s.hydration.markReady()
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "cart hydrated", slog.Int("items", len(cart.Items)))
	return nil
}

func (s *CartStore) load(ctx context.Context) (domain.Cart, error) {
	raw, err := s.storage.Get(ctx, CartStorageKey)
	if err != nil {
		if isNotFound(err) {
			return s.decode(ctx, "", false), nil
		}
		return domain.Cart{Items: []domain.CartItem{}}, err
	}
	return s.decode(ctx, raw, true), nil
}

// decode parses a persisted cart. Absent or unreadable entries yield an
// empty cart.
func (s *CartStore) decode(ctx context.Context, raw string, found bool) domain.Cart {
	empty := domain.Cart{Items: []domain.CartItem{}}
	if !found {
		return empty
	}

	var cart domain.Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		s.logger.WarnContext(ctx, "discarding unreadable persisted cart",
			slog.String("error", err.Error()),
		)
		return empty
	}
	cart.Normalize()
	return cart
}

// Refresh reloads a hydrated cart from storage so writes made by other
// replicas become visible. It is a no-op before hydration.
func (s *CartStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hydration.state != stateReady {
		return nil
	}

	cart, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("refresh cart: %w", err)
	}
	s.cart = cart
	return nil
}

// HasHydrated reports whether the persisted cart has been loaded.
func (s *CartStore) HasHydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydration.state == stateReady
}

// Ready returns a channel that is closed once the store is hydrated.
func (s *CartStore) Ready() <-chan struct{} {
	return s.hydration.ready
}

// WaitHydrated blocks until the store is hydrated or ctx is done.
func (s *CartStore) WaitHydrated(ctx context.Context) error {
	return waitReady(ctx, s.hydration.ready)
}

// Snapshot returns a copy of the cart.
func (s *CartStore) Snapshot() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// Items returns a copy of the cart lines in insertion order.
func (s *CartStore) Items() []domain.CartItem {
	return s.Snapshot().Items
}

// Total returns the sum of price times quantity.
func (s *CartStore) Total() domain.Money {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.TotalAmount()
}

// ItemCount returns the number of units in the cart.
func (s *CartStore) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.ItemCount()
}

// Subscribe registers fn for committed changes and returns its unsubscribe
// function.
func (s *CartStore) Subscribe(fn Listener[domain.Cart]) func() {
	return s.listeners.add(fn)
}

// AddItem adds item, or increases the quantity of the existing line for the
// same product. Other fields of an existing line are left untouched.
func (s *CartStore) AddItem(ctx context.Context, item domain.CartItem) error {
	if item.Quantity <= 0 {
		return apperrors.InvalidInput("quantity must be at least 1")
	}
	if item.Price < 0 {
		return apperrors.InvalidInput("price must not be negative")
	}

	return s.mutate(ctx, func(c *domain.Cart) bool {
		if idx := c.FindItemIndex(item.ProductID); idx >= 0 {
			c.Items[idx].Quantity += item.Quantity
			return true
		}
		c.Items = append(c.Items, item)
		return true
	})
}

// RemoveItem deletes the line for productID. Removing an absent product is a
// no-op.
func (s *CartStore) RemoveItem(ctx context.Context, productID int64) error {
	return s.mutate(ctx, func(c *domain.Cart) bool {
		idx := c.FindItemIndex(productID)
		if idx < 0 {
			return false
		}
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		return true
	})
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero or
// less removes it; an absent product is a no-op.
func (s *CartStore) UpdateQuantity(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, productID)
	}

	return s.mutate(ctx, func(c *domain.Cart) bool {
		idx := c.FindItemIndex(productID)
		if idx < 0 {
			return false
		}
		c.Items[idx].Quantity = quantity
		return true
	})
}

// ClearCart empties the cart.
func (s *CartStore) ClearCart(ctx context.Context) error {
	return s.mutate(ctx, func(c *domain.Cart) bool {
		c.Items = []domain.CartItem{}
		return true
	})
}

// mutate applies fn to the durable cart and commits the result only once it
// has been persisted. The read-modify-write goes through storage.Update so
// that concurrent writers of the same session, on this replica or another,
// do not lose each other's changes. fn returns false when nothing changed.
func (s *CartStore) mutate(ctx context.Context, fn func(c *domain.Cart) bool) error {
	s.mu.Lock()
	if s.hydration.state != stateReady {
		s.mu.Unlock()
		return ErrNotHydrated
	}

	var (
		next    domain.Cart
		changed bool
	)
	err := storage.Update(ctx, s.storage, CartStorageKey, func(current string, found bool) (string, bool, error) {
		next = s.decode(ctx, current, found)
		changed = fn(&next)
		if !changed {
			return "", false, nil
		}
		data, err := json.Marshal(next)
		if err != nil {
			return "", false, fmt.Errorf("marshal cart: %w", err)
		}
		return string(data), true, nil
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist cart: %w", err)
	}

	// Either way next is what storage now holds.
	s.cart = next
	if !changed {
		s.mu.Unlock()
		return nil
	}
	snapshot := next.Clone()
	s.mu.Unlock()

	s.listeners.notify(ctx, snapshot)
	return nil
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/EcommerceGo/services/storefront/internal/storage"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/store"
)

// Session is the live state of one browser session.
type Session struct {
	ID   string
	Cart *store.CartStore
	Auth *store.AuthStore
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Registry keeps the sessions seen recently in memory. Idle sessions are
// dropped after idleTTL; their durable copy stays in storage and is
// hydrated again on the next request.
type Registry struct {
	storage storage.Storage
	logger  *slog.Logger
	idleTTL time.Duration
	nowFunc func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
	hooks    []func(*Session)

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a registry backed by s and starts its eviction loop.
// Close stops the loop.
func NewRegistry(s storage.Storage, idleTTL time.Duration, logger *slog.Logger) *Registry {
	r := newRegistry(s, idleTTL, logger)
	go r.cleanupLoop()
	return r
}

func newRegistry(s storage.Storage, idleTTL time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		storage:  s,
		logger:   logger,
		idleTTL:  idleTTL,
		nowFunc:  time.Now,
		sessions: make(map[string]*entry),
		stop:     make(chan struct{}),
	}
}

// OnCreate registers fn to run for every session the registry constructs,
// before it is hydrated. It is used to attach store subscribers.
func (r *Registry) OnCreate(fn func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Get returns the hydrated session for id, constructing it on first use.
// A session already held in memory is refreshed from storage first, so
// replicas sharing one backend see each other's writes.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	sess, cached := r.lookup(id)
	if cached {
		r.refresh(ctx, sess)
	}

	if err := sess.Cart.Hydrate(ctx); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	if err := sess.Auth.Hydrate(ctx); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return sess, nil
}

// refresh keeps serving the in-memory copy when storage cannot be read.
func (r *Registry) refresh(ctx context.Context, sess *Session) {
	if err := sess.Cart.Refresh(ctx); err != nil {
		r.logger.WarnContext(ctx, "serving cached cart",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := sess.Auth.Refresh(ctx); err != nil {
		r.logger.WarnContext(ctx, "serving cached auth session",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Registry) lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	if e, ok := r.sessions[id]; ok {
		e.lastSeen = now
		return e.session, true
	}

	scoped := storage.WithPrefix(r.storage, storage.SessionPrefix(id))
	l := r.logger.With(slog.String("session_id", id))
	sess := &Session{
		ID:   id,
		Cart: store.NewCartStore(scoped, l),
		Auth: store.NewAuthStore(scoped, l),
	}
	for _, hook := range r.hooks {
		hook(sess)
	}
	r.sessions[id] = &entry{session: sess, lastSeen: now}
	return sess, false
}

// Len returns the number of sessions held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops the eviction loop.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Registry) cleanupLoop() {
	interval := r.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.cleanup(); n > 0 {
				r.logger.Debug("evicted idle sessions", slog.Int("count", n))
			}
		case <-r.stop:
			return
		}
	}
}

// cleanup evicts sessions idle for longer than idleTTL.
func (r *Registry) cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	evicted := 0
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > r.idleTTL {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/domain"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/storage"
)

// persistedAuth is the layout of the auth-storage entry.
type persistedAuth struct {
	Token   *string      `json:"token"`
	User    *domain.User `json:"user"`
	IsAdmin bool         `json:"isAdmin"`
}

type authState struct {
	token   string
	user    *domain.User
	isAdmin bool
}

// AuthStore caches the authentication result of one browser session. It never
// talks to the auth API itself.
type AuthStore struct {
	storage   storage.Storage
	logger    *slog.Logger
	listeners listeners[domain.AuthSession]

	mu        sync.RWMutex
	state     authState
	hydration hydration
}

// NewAuthStore creates a logged-out, unhydrated auth store backed by s.
func NewAuthStore(s storage.Storage, logger *slog.Logger) *AuthStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthStore{
		storage:   s,
		logger:    logger,
		hydration: hydration{ready: make(chan struct{})},
	}
}

// Hydrate loads the persisted session, falling back to the individual
// auth_token, user and is_admin entries when auth-storage is absent.
// HasHydrated flips to true exactly once, on the first successful call.
func (s *AuthStore) Hydrate(ctx context.Context) error {
	s.hydration.run.Lock()
	defer s.hydration.run.Unlock()

	s.mu.Lock()
	if s.hydration.state == stateReady {
		s.mu.Unlock()
		return nil
	}
	s.hydration.state = stateHydrating
	s.mu.Unlock()

	st, err := s.load(ctx)

	s.mu.Lock()
	if err != nil {
		s.hydration.state = stateUninitialized
		s.mu.Unlock()
		return fmt.Errorf("hydrate auth session: %w", err)
	}
	s.state = st
	s.hydration.markReady()
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "auth session hydrated", slog.Bool("authenticated", st.token != ""))
	return nil
}

func (s *AuthStore) load(ctx context.Context) (authState, error) {
	raw, err := s.storage.Get(ctx, AuthStorageKey)
	switch {
	case err == nil:
		var p persistedAuth
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			s.logger.WarnContext(ctx, "discarding unreadable persisted auth session",
				slog.String("error", err.Error()),
			)
			return authState{}, nil
		}
		st := authState{user: p.User, isAdmin: p.IsAdmin}
		if p.Token != nil {
			st.token = *p.Token
		}
		return consistent(st), nil
	case isNotFound(err):
		return s.loadEntries(ctx)
	default:
		return authState{}, err
	}
}

// loadEntries reads the three independent entries other code may have written.
func (s *AuthStore) loadEntries(ctx context.Context) (authState, error) {
	var st authState

	token, err := s.getOptional(ctx, AuthTokenKey)
	if err != nil {
		return authState{}, err
	}
	st.token = token

	rawUser, err := s.getOptional(ctx, UserKey)
	if err != nil {
		return authState{}, err
	}
	if rawUser != "" {
		var u domain.User
		if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
			s.logger.WarnContext(ctx, "discarding unreadable persisted user",
				slog.String("error", err.Error()),
			)
		} else {
			st.user = &u
		}
	}

	isAdmin, err := s.getOptional(ctx, IsAdminKey)
	if err != nil {
		return authState{}, err
	}
	st.isAdmin = isAdmin == "true"

	return consistent(st), nil
}

func (s *AuthStore) getOptional(ctx context.Context, key string) (string, error) {
	v, err := s.storage.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

// consistent drops half-present credentials: token and user come as a pair.
func consistent(st authState) authState {
	if st.token == "" || st.user == nil {
		return authState{}
	}
	return st
}

// Refresh reloads a hydrated session from storage so a login or logout
// handled by another replica becomes visible. It is a no-op before
// hydration.
func (s *AuthStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hydration.state != stateReady {
		return nil
	}

	st, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("refresh auth session: %w", err)
	}
	s.state = st
	return nil
}

// HasHydrated reports whether the persisted session has been loaded.
func (s *AuthStore) HasHydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydration.state == stateReady
}

// Ready returns a channel that is closed once the store is hydrated.
func (s *AuthStore) Ready() <-chan struct{} {
	return s.hydration.ready
}

// WaitHydrated blocks until the store is hydrated or ctx is done.
func (s *AuthStore) WaitHydrated(ctx context.Context) error {
	return waitReady(ctx, s.hydration.ready)
}

// Snapshot returns the current session.
func (s *AuthStore) Snapshot() domain.AuthSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *AuthStore) snapshotLocked() domain.AuthSession {
	sess := domain.AuthSession{
		Token:       s.state.token,
		IsAdmin:     s.state.isAdmin,
		HasHydrated: s.hydration.state == stateReady,
	}
	if s.state.user != nil {
		u := *s.state.user
		sess.User = &u
	}
	return sess
}

// IsAuthenticated is false until the store has hydrated.
func (s *AuthStore) IsAuthenticated() bool {
	return s.Snapshot().IsAuthenticated()
}

// Subscribe registers fn for committed changes and returns its unsubscribe
// function.
func (s *AuthStore) Subscribe(fn Listener[domain.AuthSession]) func() {
	return s.listeners.add(fn)
}

// Login stores the result of a successful authentication.
func (s *AuthStore) Login(ctx context.Context, token string, user *domain.User, isAdmin bool) error {
	if token == "" {
		return apperrors.InvalidInput("token is required")
	}
	if user == nil {
		return apperrors.InvalidInput("user is required")
	}

	u := *user
	return s.commit(ctx, authState{token: token, user: &u, isAdmin: isAdmin})
}

// Logout clears the session and removes the persisted credentials.
func (s *AuthStore) Logout(ctx context.Context) error {
	return s.commit(ctx, authState{})
}

func (s *AuthStore) commit(ctx context.Context, next authState) error {
	s.mu.Lock()
	if s.hydration.state != stateReady {
		s.mu.Unlock()
		return ErrNotHydrated
	}

	prev := s.state
	if err := s.persist(ctx, next); err != nil {
		if rbErr := s.persist(ctx, prev); rbErr != nil {
			s.logger.ErrorContext(ctx, "failed to restore persisted auth session",
				slog.String("error", rbErr.Error()),
			)
		}
		s.mu.Unlock()
		return err
	}

	s.state = next
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.listeners.notify(ctx, snapshot)
	return nil
}

func (s *AuthStore) persist(ctx context.Context, st authState) error {
	if st.token == "" {
		for _, key := range []string{AuthTokenKey, UserKey, IsAdminKey} {
			if err := s.storage.Remove(ctx, key); err != nil {
				return fmt.Errorf("remove %s: %w", key, err)
			}
		}
		return s.persistCombined(ctx, persistedAuth{})
	}

	userJSON, err := json.Marshal(st.user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	entries := []struct{ key, value string }{
		{AuthTokenKey, st.token},
		{UserKey, string(userJSON)},
		{IsAdminKey, strconv.FormatBool(st.isAdmin)},
	}
	for _, e := range entries {
		if err := s.storage.Set(ctx, e.key, e.value); err != nil {
			return fmt.Errorf("persist %s: %w", e.key, err)
		}
	}

	token := st.token
	return s.persistCombined(ctx, persistedAuth{Token: &token, User: st.user, IsAdmin: st.isAdmin})
}

func (s *AuthStore) persistCombined(ctx context.Context, p persistedAuth) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal auth session: %w", err)
	}
	if err := s.storage.Set(ctx, AuthStorageKey, string(data)); err != nil {
		return fmt.Errorf("persist %s: %w", AuthStorageKey, err)
	}
	return nil
}

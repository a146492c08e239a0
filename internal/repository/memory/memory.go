// Package memory implements the user repository as an in-process store.
//
// This is the default backend: created empty at process start, discarded at
// process end. Nothing is persisted — restarting the server logs everyone out
// and forgets every account. That is acceptable for the demo deployment and
// makes tests trivial; production deployments set DB_PATH and get the SQLite
// implementation instead.
//
// WHY A MUTEX IN A "SIMPLE" STORE?
// Go's net/http runs each request on its own goroutine, so every request can
// touch this store concurrently. All reads take RLock; Insert and
// UpdateRefreshToken take the write lock. Crucially, Insert performs the
// uniqueness check and the append under ONE write lock — a check-then-insert
// split across two critical sections would let two signups with the same
// username both succeed.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shaily-20/cloudify-auth/internal/apperror"
	"github.com/shaily-20/cloudify-auth/internal/model"
	"github.com/shaily-20/cloudify-auth/internal/repository"
)

// compile-time check that *Store implements repository.UserRepository
var _ repository.UserRepository = (*Store)(nil)

// Store holds user records in memory, keyed by ID, with secondary indexes
// for the lookup paths the auth flows need.
type Store struct {
	mu         sync.RWMutex
	byID       map[int64]*model.User
	byUsername map[string]int64
	byEmail    map[string]int64
	nextID     int64 // monotonically assigned, never reused (even if deletion is added later)
}

// NewStore returns an empty store. The first inserted user gets ID 1.
func NewStore() *Store {
	return &Store{
		byID:       make(map[int64]*model.User),
		byUsername: make(map[string]int64),
		byEmail:    make(map[string]int64),
	}
}

// Insert stores a new user, assigning the next ID and CreatedAt.
//
// Uniqueness and assignment happen under a single write lock, so concurrent
// duplicate signups cannot both succeed: one caller wins, the other gets
// apperror.Duplicate and the store is unchanged.
func (s *Store) Insert(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[user.Username]; exists {
		return apperror.Duplicate("Username")
	}
	if _, exists := s.byEmail[user.Email]; exists {
		return apperror.Duplicate("Email")
	}

	s.nextID++
	user.ID = s.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	// Store a copy so callers can't mutate our state through the pointer
	// they passed in (and vice versa).
	stored := *user
	s.byID[stored.ID] = &stored
	s.byUsername[stored.Username] = stored.ID
	s.byEmail[stored.Email] = stored.ID

	return nil
}

// FindByID returns the user with the given ID.
func (s *Store) FindByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, apperror.NotFound("User")
	}
	copied := *u
	return &copied, nil
}

// FindByUsername returns the user with the given username.
func (s *Store) FindByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, apperror.NotFound("User")
	}
	copied := *s.byID[id]
	return &copied, nil
}

// FindByEmail returns the user with the given email.
func (s *Store) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, apperror.NotFound("User")
	}
	copied := *s.byID[id]
	return &copied, nil
}

// FindByRefreshToken returns the user whose CURRENT refresh token is exactly
// the given value. A token that was rotated away matches nothing, because the
// record only ever holds the latest one.
//
// This is a linear scan. The store holds demo-scale data and logout is the
// only caller, so an extra index isn't worth the bookkeeping.
func (s *Store) FindByRefreshToken(_ context.Context, token string) (*model.User, error) {
	if token == "" {
		// Empty means "no token" on the record — never match it.
		return nil, apperror.NotFound("User")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.byID {
		if u.RefreshToken == token {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("User")
}

// UpdateRefreshToken overwrites the stored refresh token for the user.
// Passing "" clears it. Overwrite, not append — at most one valid refresh
// token exists per user at any time.
func (s *Store) UpdateRefreshToken(_ context.Context, id int64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return apperror.NotFound("User")
	}
	u.RefreshToken = token
	return nil
}

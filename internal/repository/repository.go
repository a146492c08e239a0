// Package repository defines the storage interfaces the rest of the app
// programs against.
//
// WHY AN INTERFACE?
// Endpoint and service code must not care where users live. The default
// deployment keeps them in memory (process lifetime, nothing survives a
// restart); setting DB_PATH swaps in the SQLite implementation without
// touching a single handler. Tests pass the in-memory store directly.
package repository

import (
	"context"

	"github.com/shaily-20/cloudify-auth/internal/model"
)

// UserRepository is the credential store. Lookups return
// apperror.NotFound("User") when no record matches.
//
// ATOMICITY CONTRACT:
// Insert enforces username and email uniqueness itself, atomically, and
// returns apperror.Duplicate on violation. Callers must NOT check-then-insert:
// net/http serves requests concurrently, so two signups racing on the same
// username would both pass a pre-check. The mutex in the memory store and the
// UNIQUE constraints in SQLite are what make the "two concurrent signups with
// the same username never both succeed" guarantee hold.
type UserRepository interface {
	// Insert assigns the next ID and CreatedAt, stores the record, and
	// fills them back into user. Duplicate username/email → apperror.Duplicate.
	Insert(ctx context.Context, user *model.User) error

	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByRefreshToken matches the currently stored (non-empty) refresh
	// token exactly. Superseded tokens match nothing.
	FindByRefreshToken(ctx context.Context, token string) (*model.User, error)

	// UpdateRefreshToken overwrites the stored refresh token in place.
	// An empty token clears it (logout).
	UpdateRefreshToken(ctx context.Context, id int64, token string) error
}

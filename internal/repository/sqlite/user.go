package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shaily-20/cloudify-auth/internal/apperror"
	"github.com/shaily-20/cloudify-auth/internal/model"
	"github.com/shaily-20/cloudify-auth/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Insert stores a new user and fills in the assigned ID and CreatedAt.
//
// Uniqueness is enforced by the UNIQUE constraints, not by a pre-check —
// the INSERT itself is the atomic check-and-insert. When SQLite rejects the
// row we translate the constraint error into the same apperror.Duplicate the
// in-memory store returns, so callers see one behaviour regardless of backend.
//
// AUTOINCREMENT (vs plain INTEGER PRIMARY KEY) guarantees IDs are never
// reused even if rows are ever deleted.
func (db *DB) Insert(ctx context.Context, user *model.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, refresh_token, google_id, picture, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash, user.RefreshToken,
		user.GoogleID, user.Picture, user.CreatedAt,
	)
	if err != nil {
		if dup := duplicateField(err); dup != "" {
			return apperror.Duplicate(dup)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading inserted user id: %w", err)
	}
	user.ID = id

	return nil
}

// duplicateField inspects a driver error for a UNIQUE violation and names the
// offending field in display form ("Username"/"Email"), or "" if the error is
// something else. modernc.org/sqlite reports constraint errors as
// "UNIQUE constraint failed: users.username" in the message.
func duplicateField(err error) string {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return ""
	}
	switch {
	case strings.Contains(msg, "users.username"):
		return "Username"
	case strings.Contains(msg, "users.email"):
		return "Email"
	default:
		return "Username"
	}
}

// FindByID returns the user with the given ID.
func (db *DB) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return db.findOne(ctx, `WHERE id = ?`, id)
}

// FindByUsername returns the user with the given username.
func (db *DB) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.findOne(ctx, `WHERE username = ?`, username)
}

// FindByEmail returns the user with the given email.
func (db *DB) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.findOne(ctx, `WHERE email = ?`, email)
}

// FindByRefreshToken returns the user whose current refresh token is exactly
// the given value. The empty string means "no token" on a record and never
// matches.
func (db *DB) FindByRefreshToken(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperror.NotFound("User")
	}
	return db.findOne(ctx, `WHERE refresh_token = ?`, token)
}

// findOne runs a single-row SELECT with the given WHERE clause.
func (db *DB) findOne(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, refresh_token, google_id, picture, created_at
		 FROM users `+where, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.RefreshToken,
		&u.GoogleID, &u.Picture, &u.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("User")
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying user: %w", err)
	}

	return &u, nil
}

// UpdateRefreshToken overwrites the stored refresh token for the user.
// An empty token clears it (logout).
func (db *DB) UpdateRefreshToken(ctx context.Context, id int64, token string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET refresh_token = ? WHERE id = ?`, token, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating refresh token for user %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking refresh token update for user %d: %w", id, err)
	}
	if affected == 0 {
		return apperror.NotFound("User")
	}

	return nil
}

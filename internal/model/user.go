// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Accounts come from two places: the signup form (username + email + bcrypt
// password hash) or Google sign-in (profile name, email, picture, Google
// subject ID — no password). Both kinds live in the same record; a pure
// federated account simply has an empty PasswordHash.
//
// WHY ID int64?
// IDs are assigned by the store, monotonically, starting at 1, and are never
// reused. int64 matches what both the in-memory counter and SQLite's
// INTEGER PRIMARY KEY produce.
//
// WHY RefreshToken ON THE USER?
// JWTs are stateless, but refresh tokens are deliberately NOT: the currently
// valid refresh token is stored on the record and overwritten every time a
// new pair is issued. A presented refresh token that is well-formed and
// unexpired but doesn't match the stored one has been superseded — that is
// how stale/stolen token reuse is detected.
//
// WHY PasswordHash string (not *string)?
// Google-only accounts have no password. We use the empty string as the
// "absent" value rather than a nullable pointer — simpler to work with, and
// bcrypt comparison against "" always fails, so a federated account can never
// slip through the password form.
type User struct {
	ID           int64     `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"` // never serialized
	RefreshToken string    `json:"-"         db:"refresh_token"` // never serialized
	GoogleID     string    `json:"-"         db:"google_id"`     // Google "sub" claim, empty for local accounts
	Picture      string    `json:"picture,omitempty" db:"picture"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// UserSummary is the subset of a user record that is safe to return to
// clients. It never carries the password hash, the refresh token, or the
// Google subject ID.
type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Picture  string `json:"picture,omitempty"`
}

// Summary returns the sanitized view of the user for API responses.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Picture:  u.Picture,
	}
}

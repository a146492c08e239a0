// Package service contains the business logic layer of the application.
//
// AuthService sits between the HTTP handlers and the store/token utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (store)
//	                   ↘ TokenService (JWT)  ↘ PasswordService (bcrypt)
//
// The split keeps HTTP out of the business rules: the service never reads a
// request or sets a cookie, and the handlers never touch bcrypt or the store.
// Handlers translate the service's domain errors (apperror values) into
// status codes; the service doesn't know what a 401 is.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shaily-20/cloudify-auth/internal/apperror"
	"github.com/shaily-20/cloudify-auth/internal/auth"
	"github.com/shaily-20/cloudify-auth/internal/model"
	"github.com/shaily-20/cloudify-auth/internal/repository"
)

// ErrUnknownUser is returned by Login when the username doesn't exist.
// It is still an authentication failure (401), but the SPA treats it
// specially: the login form branches to signup ("isNewUser" in the response).
var ErrUnknownUser = &apperror.AppError{
	Err:     apperror.ErrUnauthorized,
	Message: "User not found. Please sign up!",
}

// AuthService implements the signup/login/refresh/logout lifecycle.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService wires the service with its dependencies. Called from the
// server's composition root.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// Session bundles the authenticated user with the freshly issued token pair,
// so the handler can set both cookies and build the response in one step.
type Session struct {
	User   *model.User
	Tokens *auth.TokenPair
}

// establish issues a new token pair for the user and persists the refresh
// token on the record, superseding whatever was there. Every successful
// authentication path funnels through here.
func (s *AuthService) establish(ctx context.Context, user *model.User) (*Session, error) {
	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing tokens for user %d: %w", user.ID, err)
	}

	// Overwrite, not append: at most one valid refresh token per user. The
	// previous token (if any) stops working the moment this lands.
	if err := s.users.UpdateRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("service/auth: storing refresh token for user %d: %w", user.ID, err)
	}
	user.RefreshToken = pair.RefreshToken

	return &Session{User: user, Tokens: pair}, nil
}

// Signup registers a new account and logs it in immediately.
//
// Uniqueness of username and email is enforced by the store's atomic Insert —
// there is deliberately no check-then-insert here, because two concurrent
// signups would both pass such a check. On duplicate, the store reports
// apperror.Duplicate and nothing has been written.
func (s *AuthService) Signup(ctx context.Context, username, email, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password for %q: %w", username, err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: inserting user %q: %w", username, err)
	}

	s.logger.Info("user signed up",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.establish(ctx, user)
}

// Login authenticates a username/password pair.
//
// An unknown username returns ErrUnknownUser so the SPA can branch to signup;
// a wrong password returns a plain authentication failure. A Google-only
// account has an empty password hash, which bcrypt never matches, so it takes
// the "incorrect password" path like any bad guess.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("service/auth: looking up user %q: %w", username, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("Incorrect password!")
	}

	s.logger.Info("user logged in",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.establish(ctx, user)
}

// Refresh rotates a token pair: verify the presented refresh token, confirm
// it is the one currently on record, then issue and persist a new pair.
//
// THE EXACT-MATCH CHECK IS THE POINT:
// A refresh token that verifies cryptographically but differs from the stored
// value has been superseded by a later refresh. Presenting it means the
// client is stale — or the token was stolen and someone else already rotated
// it. Either way access is denied; the reuse is logged as a security signal,
// never silently tolerated.
func (s *AuthService) Refresh(ctx context.Context, presented string) (*Session, error) {
	userID, err := s.tokens.Verify(presented)
	if err != nil {
		return nil, apperror.Unauthorized("Invalid refresh token")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("Invalid refresh token")
		}
		return nil, fmt.Errorf("service/auth: looking up user %d: %w", userID, err)
	}

	if user.RefreshToken != presented {
		s.logger.Warn("refresh token reuse detected",
			slog.Int64("userID", user.ID),
		)
		return nil, apperror.Unauthorized("Invalid refresh token")
	}

	return s.establish(ctx, user)
}

// Logout invalidates the refresh token presented in the cookie, if it still
// resolves to a user. Idempotent by design: logging out twice, or with no
// cookie at all, is not an error — there is simply nothing left to revoke.
func (s *AuthService) Logout(ctx context.Context, presented string) {
	if presented == "" {
		return
	}

	user, err := s.users.FindByRefreshToken(ctx, presented)
	if err != nil {
		// Unknown or already-revoked token. Nothing to do.
		return
	}

	if err := s.users.UpdateRefreshToken(ctx, user.ID, ""); err != nil {
		// The cookie is cleared client-side regardless; just record it.
		s.logger.Error("clearing refresh token failed",
			slog.Int64("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("user logged out", slog.Int64("userID", user.ID))
}

// GetUserByID resolves an authenticated user ID to the full record. Used by
// the status and protected endpoints after the middleware verifies the access
// token. Records are never deleted, so a miss here is unexpected — but it
// still surfaces as a not-found, not a crash.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", id, err)
	}
	return user, nil
}

// LoginWithGoogle finds or creates the account for a verified Google
// identity, keyed by email, then logs it in.
//
// First sign-in creates the record from the Google profile: display name as
// username, subject ID and picture stored alongside, no password hash.
// Google display names aren't unique, so a collision with an existing
// username retries once with the (globally unique) subject ID appended.
func (s *AuthService) LoginWithGoogle(ctx context.Context, gUser *auth.GoogleUser) (*Session, error) {
	if gUser == nil {
		return nil, fmt.Errorf("service/auth: Google user must not be nil")
	}

	user, err := s.users.FindByEmail(ctx, gUser.Email)
	switch {
	case err == nil:
		// Existing account (local or federated) — Google just proved
		// ownership of its email.
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.createGoogleUser(ctx, gUser)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("service/auth: looking up user by email: %w", err)
	}

	s.logger.Info("user authenticated via Google",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.establish(ctx, user)
}

func (s *AuthService) createGoogleUser(ctx context.Context, gUser *auth.GoogleUser) (*model.User, error) {
	username := strings.TrimSpace(gUser.Name)
	if username == "" {
		username = gUser.Email
	}

	user := &model.User{
		Username: username,
		Email:    gUser.Email,
		GoogleID: gUser.Subject,
		Picture:  gUser.Picture,
	}

	err := s.users.Insert(ctx, user)
	if err != nil && errors.Is(err, apperror.ErrValidation) {
		// Username taken by an unrelated account; the subject ID is unique.
		user.Username = fmt.Sprintf("%s-%s", username, gUser.Subject)
		err = s.users.Insert(ctx, user)
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: creating Google user %q: %w", gUser.Email, err)
	}

	return user, nil
}

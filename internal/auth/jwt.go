// Package auth provides token issuing/verification, password hashing, the
// cookie policy, and the Google sign-in collaborators for the API.
//
// SESSION MODEL:
// Every successful authentication (signup, login, Google, refresh) issues a
// PAIR of JWTs signed with the same HMAC secret:
//
//   - access token  — 1 hour.  Sent on every request in the "token" cookie;
//     proves recent authentication. Verified statelessly.
//   - refresh token — 7 days.  Sent only to /refresh-token in the
//     "refreshToken" cookie; exchanged for a fresh pair. The current value is
//     also stored on the user record so reuse of a rotated-away token can be
//     detected (see service.Refresh).
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims (data) → {"sub":"1","exp":1234567890,...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// The server can verify the signature without any store lookup — just the secret.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

// Token lifetimes. The cookie max-ages in cookies.go mirror these: the
// browser drops the cookie at the same moment the claim inside it expires.
const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 7 * 24 * time.Hour
)

const issuer = "cloudify-auth"

// TokenService signs and verifies the JWT pairs.
//
// It holds the HMAC secret used for both operations. The same secret signs
// access and refresh tokens; what distinguishes a refresh token is the
// server-side record check, not the claim set.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// TokenPair bundles an access token and the refresh token issued with it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// claims embeds jwt.RegisteredClaims: Subject carries the user ID, ID (jti)
// a per-token random value.
type claims struct {
	jwt.RegisteredClaims
}

// IssuePair creates a signed access/refresh token pair for the user.
//
// WHY A jti (ID) CLAIM?
// Two HS256 tokens with identical claims are identical strings. Without a
// per-token random ID, a login followed by a refresh within the same second
// would mint the SAME refresh token twice, and rotation (overwrite old with
// new) would silently become a no-op — reuse of the "old" token would still
// pass the exact-match check. xid gives each token a unique identity.
func (s *TokenService) IssuePair(userID int64) (*TokenPair, error) {
	access, err := s.sign(userID, AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(userID, RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// sign creates one HS256-signed token for userID expiring after ttl.
func (s *TokenService) sign(userID int64, ttl time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        xid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and validates a token string and returns the user ID it
// encodes.
//
// CHECKS (performed by the jwt library):
//   - Signature is valid (not tampered with)
//   - Token is not expired
//   - Issuer matches (rejects tokens minted by other apps sharing a secret)
//   - Algorithm is HS256 — jwt.WithValidMethods closes the classic
//     algorithm-confusion hole where an attacker submits an unsigned
//     "alg":"none" token.
//
// There is no partial validity: expired, malformed, or foreign tokens all
// fail the same way.
func (s *TokenService) Verify(tokenStr string) (int64, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fmt.Errorf("auth: token expired")
		}
		return 0, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("auth: invalid token claims")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("auth: token has no valid subject")
	}

	return userID, nil
}

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/shaily-20/cloudify-auth/internal/auth"
	"github.com/shaily-20/cloudify-auth/internal/handler"
	"github.com/shaily-20/cloudify-auth/internal/repository/memory"
	"github.com/shaily-20/cloudify-auth/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVerifier implements auth.IdentityVerifier without calling Google.
type fakeVerifier struct {
	user *auth.GoogleUser
	err  error
}

func (f *fakeVerifier) Verify(_ context.Context, _ string) (*auth.GoogleUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

// testEnv bundles the handler with its real collaborators: in-memory store,
// real token and password services (bcrypt cost 4), fake Google verifier.
type testEnv struct {
	h      *handler.AuthHandler
	tokens *auth.TokenService
	google *fakeVerifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := service.NewAuthService(memory.NewStore(), tokens, auth.NewPasswordServiceForTest(4), logger)

	google := &fakeVerifier{}
	h := handler.NewAuthHandler(svc, google, nil, auth.CookiePolicy{Secure: false}, logger)

	return &testEnv{h: h, tokens: tokens, google: google}
}

func postJSON(h http.HandlerFunc, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func responseCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// signupAlice drives a real signup and returns the recorder (for cookies).
func signupAlice(t *testing.T, env *testEnv) *httptest.ResponseRecorder {
	t.Helper()
	rr := postJSON(env.h.HandleSignup, "/signup", `{"username":"alice","email":"a@x.com","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	return rr
}

func TestHandleSignup(t *testing.T) {
	t.Run("creates user, sets cookies, sanitizes body", func(t *testing.T) {
		env := newTestEnv(t)

		rr := signupAlice(t, env)

		body := decodeBody(t, rr)
		assert.Equal(t, "User created successfully!", body["message"])

		user := body["user"].(map[string]any)
		assert.Equal(t, float64(1), user["id"])
		assert.Equal(t, "alice", user["username"])
		assert.Equal(t, "a@x.com", user["email"])

		// Secrets stay out of the body entirely.
		raw := rr.Body.String()
		assert.NotContains(t, raw, "$2a$")
		assert.NotContains(t, raw, "passwordHash")
		assert.NotContains(t, raw, "refreshToken")

		access := responseCookie(rr, auth.AccessCookieName)
		refresh := responseCookie(rr, auth.RefreshCookieName)
		require.NotNil(t, access)
		require.NotNil(t, refresh)
		assert.True(t, access.HttpOnly)
		assert.True(t, refresh.HttpOnly)

		// The access cookie holds a verifiable token for the new user.
		userID, err := env.tokens.Verify(access.Value)
		require.NoError(t, err)
		assert.Equal(t, int64(1), userID)
	})

	t.Run("duplicate username is 400 with no cookies", func(t *testing.T) {
		env := newTestEnv(t)
		signupAlice(t, env)

		rr := postJSON(env.h.HandleSignup, "/signup", `{"username":"alice","email":"b@x.com","password":"pw"}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Username already exists!", decodeBody(t, rr)["message"])
		assert.Nil(t, responseCookie(rr, auth.AccessCookieName))
	})

	t.Run("duplicate email is 400", func(t *testing.T) {
		env := newTestEnv(t)
		signupAlice(t, env)

		rr := postJSON(env.h.HandleSignup, "/signup", `{"username":"bob","email":"a@x.com","password":"pw"}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Email already exists!", decodeBody(t, rr)["message"])
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		env := newTestEnv(t)

		rr := postJSON(env.h.HandleSignup, "/signup", `{"username":`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandleLogin(t *testing.T) {
	t.Run("correct credentials", func(t *testing.T) {
		env := newTestEnv(t)
		signupAlice(t, env)

		rr := postJSON(env.h.HandleLogin, "/login", `{"username":"alice","password":"pw"}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "Login successful!", body["message"])
		assert.NotNil(t, responseCookie(rr, auth.AccessCookieName))
		assert.NotNil(t, responseCookie(rr, auth.RefreshCookieName))
	})

	t.Run("unknown username flags isNewUser", func(t *testing.T) {
		env := newTestEnv(t)

		rr := postJSON(env.h.HandleLogin, "/login", `{"username":"nobody","password":"pw"}`)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "User not found. Please sign up!", body["message"])
		assert.Equal(t, true, body["isNewUser"])
	})

	t.Run("wrong password", func(t *testing.T) {
		env := newTestEnv(t)
		signupAlice(t, env)

		rr := postJSON(env.h.HandleLogin, "/login", `{"username":"alice","password":"nope"}`)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "Incorrect password!", body["message"])
		assert.Nil(t, body["isNewUser"])
	})
}

func TestHandleRefresh(t *testing.T) {
	t.Run("rotates the pair", func(t *testing.T) {
		env := newTestEnv(t)
		signup := signupAlice(t, env)
		refreshCookie := responseCookie(signup, auth.RefreshCookieName)

		rr := postJSON(env.h.HandleRefresh, "/refresh-token", "", refreshCookie)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Tokens refreshed successfully", decodeBody(t, rr)["message"])

		newRefresh := responseCookie(rr, auth.RefreshCookieName)
		require.NotNil(t, newRefresh)
		assert.NotEqual(t, refreshCookie.Value, newRefresh.Value)
	})

	t.Run("missing cookie is 401", func(t *testing.T) {
		env := newTestEnv(t)

		rr := postJSON(env.h.HandleRefresh, "/refresh-token", "")

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Refresh token not found", decodeBody(t, rr)["message"])
	})

	t.Run("superseded token is 401", func(t *testing.T) {
		env := newTestEnv(t)
		signup := signupAlice(t, env)
		stale := responseCookie(signup, auth.RefreshCookieName)

		// First refresh rotates the stored token; the signup-era cookie is
		// now a replay even though the JWT inside is flawless.
		first := postJSON(env.h.HandleRefresh, "/refresh-token", "", stale)
		require.Equal(t, http.StatusOK, first.Code)

		rr := postJSON(env.h.HandleRefresh, "/refresh-token", "", stale)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Invalid refresh token", decodeBody(t, rr)["message"])
	})

	t.Run("garbage token is 401", func(t *testing.T) {
		env := newTestEnv(t)

		rr := postJSON(env.h.HandleRefresh, "/refresh-token", "",
			&http.Cookie{Name: auth.RefreshCookieName, Value: "junk"})

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestHandleLogout(t *testing.T) {
	t.Run("revokes and clears", func(t *testing.T) {
		env := newTestEnv(t)
		signup := signupAlice(t, env)
		refreshCookie := responseCookie(signup, auth.RefreshCookieName)

		rr := postJSON(env.h.HandleLogout, "/logout", "", refreshCookie)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Logged out successfully!", decodeBody(t, rr)["message"])

		cleared := responseCookie(rr, auth.RefreshCookieName)
		require.NotNil(t, cleared)
		assert.Empty(t, cleared.Value)
		assert.Negative(t, cleared.MaxAge)

		// The revoked token can't refresh anymore.
		refresh := postJSON(env.h.HandleRefresh, "/refresh-token", "", refreshCookie)
		assert.Equal(t, http.StatusUnauthorized, refresh.Code)
	})

	t.Run("idempotent without a cookie", func(t *testing.T) {
		env := newTestEnv(t)

		rr := postJSON(env.h.HandleLogout, "/logout", "")

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestAuthGatedEndpoints(t *testing.T) {
	// getWithAuth routes a GET through the real RequireAuth middleware, the
	// way the server mounts these endpoints.
	getWithAuth := func(env *testEnv, h http.HandlerFunc, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rr := httptest.NewRecorder()
		auth.RequireAuth(env.tokens)(h).ServeHTTP(rr, req)
		return rr
	}

	t.Run("check-auth after login", func(t *testing.T) {
		env := newTestEnv(t)
		signup := signupAlice(t, env)
		accessCookie := responseCookie(signup, auth.AccessCookieName)

		rr := getWithAuth(env, env.h.HandleCheckAuth, "/check-auth", accessCookie)

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, true, body["isAuthenticated"])
		user := body["user"].(map[string]any)
		assert.Equal(t, float64(1), user["id"])
		assert.Equal(t, "alice", user["username"])
	})

	t.Run("check-auth without a token", func(t *testing.T) {
		env := newTestEnv(t)

		rr := getWithAuth(env, env.h.HandleCheckAuth, "/check-auth")

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("check-auth for a vanished user is 404", func(t *testing.T) {
		env := newTestEnv(t)

		// A valid token for an ID the store has never seen.
		pair, err := env.tokens.IssuePair(99)
		require.NoError(t, err)

		rr := getWithAuth(env, env.h.HandleCheckAuth, "/check-auth",
			&http.Cookie{Name: auth.AccessCookieName, Value: pair.AccessToken})

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "User not found", decodeBody(t, rr)["message"])
	})

	t.Run("protected", func(t *testing.T) {
		env := newTestEnv(t)
		signup := signupAlice(t, env)
		accessCookie := responseCookie(signup, auth.AccessCookieName)

		rr := getWithAuth(env, env.h.HandleProtected, "/protected", accessCookie)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Protected Data Accessed!", decodeBody(t, rr)["message"])
	})
}

func TestHandleGoogleAuth(t *testing.T) {
	t.Run("verified token logs in and sets cookies", func(t *testing.T) {
		env := newTestEnv(t)
		env.google.user = &auth.GoogleUser{
			Subject: "sub-123",
			Email:   "carol@gmail.com",
			Name:    "Carol Example",
			Picture: "https://lh3.googleusercontent.com/a/photo.jpg",
		}

		rr := postJSON(env.h.HandleGoogleAuth, "/auth/google", `{"token":"google-id-token"}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "Google login successful!", body["message"])

		user := body["user"].(map[string]any)
		assert.Equal(t, "Carol Example", user["username"])
		assert.Equal(t, "https://lh3.googleusercontent.com/a/photo.jpg", user["picture"])

		assert.NotNil(t, responseCookie(rr, auth.AccessCookieName))
		assert.NotNil(t, responseCookie(rr, auth.RefreshCookieName))
	})

	t.Run("verification failure is 401", func(t *testing.T) {
		env := newTestEnv(t)
		env.google.err = errors.New("idtoken: audience provided does not match")

		rr := postJSON(env.h.HandleGoogleAuth, "/auth/google", `{"token":"someone-elses-token"}`)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Google authentication failed", decodeBody(t, rr)["message"])
		assert.Nil(t, responseCookie(rr, auth.AccessCookieName))
	})

	t.Run("missing token is 400", func(t *testing.T) {
		env := newTestEnv(t)

		rr := postJSON(env.h.HandleGoogleAuth, "/auth/google", `{}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("second sign-in reuses the account", func(t *testing.T) {
		env := newTestEnv(t)
		env.google.user = &auth.GoogleUser{Subject: "sub-1", Email: "g@x.com", Name: "G"}

		first := postJSON(env.h.HandleGoogleAuth, "/auth/google", `{"token":"t"}`)
		second := postJSON(env.h.HandleGoogleAuth, "/auth/google", `{"token":"t"}`)

		firstUser := decodeBody(t, first)["user"].(map[string]any)
		secondUser := decodeBody(t, second)["user"].(map[string]any)
		assert.Equal(t, firstUser["id"], secondUser["id"])
	})
}

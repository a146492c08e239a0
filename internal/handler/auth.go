package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"
	"github.com/shaily-20/cloudify-auth/internal/auth"
	"github.com/shaily-20/cloudify-auth/internal/model"
	"github.com/shaily-20/cloudify-auth/internal/service"
)

// AuthHandler exposes the authentication lifecycle over HTTP:
//
//	POST /signup                → create account, log in, set cookies
//	POST /login                 → password login, set cookies
//	POST /refresh-token         → rotate the pair from the refresh cookie
//	POST /logout                → revoke refresh token, clear cookies
//	GET  /check-auth            → auth status for the SPA's gate
//	GET  /protected             → example token-gated resource
//	POST /auth/google           → SPA-supplied Google ID token login
//	GET  /auth/google/login     → server-side Google redirect flow
//	GET  /auth/google/callback  → completes the redirect flow
//
// The handler owns the HTTP concerns only — request parsing, cookies, status
// codes. All rules live in service.AuthService; Google token verification is
// behind auth.IdentityVerifier so tests inject a fake.
type AuthHandler struct {
	svc      *service.AuthService
	verifier auth.IdentityVerifier // nil when Google sign-in is not configured
	provider *auth.GoogleProvider  // nil when the redirect flow is not configured
	cookies  auth.CookiePolicy
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. verifier and provider may be nil;
// the server only registers the corresponding routes when they are set.
func NewAuthHandler(
	svc *service.AuthService,
	verifier auth.IdentityVerifier,
	provider *auth.GoogleProvider,
	cookies auth.CookiePolicy,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		svc:      svc,
		verifier: verifier,
		provider: provider,
		cookies:  cookies,
		logger:   logger,
	}
}

// HandleSignup creates an account and logs it in immediately.
//
// HTTP: POST /signup {username, email, password}
// 201 with the sanitized user on success; 400 with "Username already exists!"
// or "Email already exists!" on a duplicate. The response body never carries
// the password hash or either token — tokens travel only as cookies.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return
	}

	sess, err := h.svc.Signup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.SetSession(w, sess.Tokens)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User created successfully!",
		"user":    sess.User.Summary(),
	})
}

// HandleLogin authenticates a username/password pair.
//
// HTTP: POST /login {username, password}
// An unknown username still gets 401, but with isNewUser:true so the SPA's
// login form can branch straight to signup instead of showing a dead end.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return
	}

	sess, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUnknownUser) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"message":   service.ErrUnknownUser.Message,
				"isNewUser": true,
			})
			return
		}
		writeError(w, err)
		return
	}

	h.cookies.SetSession(w, sess.Tokens)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful!",
		"user":    sess.User.Summary(),
	})
}

// HandleRefresh exchanges the refresh cookie for a fresh token pair.
//
// HTTP: POST /refresh-token (no body — the token rides in the cookie)
// Missing cookie, invalid token, and a superseded-token replay all end in
// 401; the client must log in again.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.RefreshCookieName)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Refresh token not found"})
		return
	}

	sess, err := h.svc.Refresh(r.Context(), cookie.Value)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.SetSession(w, sess.Tokens)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Tokens refreshed successfully"})
}

// HandleLogout revokes the stored refresh token and clears both cookies.
//
// HTTP: POST /logout — never fails. Logging out twice, or with no cookie at
// all, still returns 200; there's nothing useful to tell the client beyond
// "you are logged out now".
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.RefreshCookieName); err == nil {
		h.svc.Logout(r.Context(), cookie.Value)
	}

	h.cookies.ClearSession(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully!"})
}

// authStatusUser is the minimal identity the status endpoints return.
type authStatusUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// resolveUser looks up the user the middleware authenticated. Records are
// never deleted, so a miss is unexpected — it answers 404, not a crash.
func (h *AuthHandler) resolveUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth; kept for direct handler tests.
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "No token provided"})
		return nil, false
	}

	user, err := h.svc.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Warn("authenticated user id no longer resolves", slog.Int64("userID", userID))
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
		return nil, false
	}
	return user, true
}

// HandleCheckAuth reports authentication status for the SPA's route gate.
//
// HTTP: GET /check-auth (behind RequireAuth)
func (h *AuthHandler) HandleCheckAuth(w http.ResponseWriter, r *http.Request) {
	user, ok := h.resolveUser(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"isAuthenticated": true,
		"user":            authStatusUser{ID: user.ID, Username: user.Username},
	})
}

// HandleProtected is the example token-gated resource.
//
// HTTP: GET /protected (behind RequireAuth)
func (h *AuthHandler) HandleProtected(w http.ResponseWriter, r *http.Request) {
	user, ok := h.resolveUser(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Protected Data Accessed!",
		"user":    authStatusUser{ID: user.ID, Username: user.Username},
	})
}

// HandleGoogleAuth logs in with a Google ID token obtained by the SPA.
//
// HTTP: POST /auth/google {token}
// The token is verified against Google's public keys and our client ID
// before anything touches the store. Any verification failure is a plain
// 401 — the reason (expired, wrong audience, forged) is logged server-side,
// not echoed to the caller.
func (h *AuthHandler) HandleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return
	}

	gUser, err := h.verifier.Verify(r.Context(), req.Token)
	if err != nil {
		h.logger.Warn("Google ID token verification failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Google authentication failed"})
		return
	}

	sess, err := h.svc.LoginWithGoogle(r.Context(), gUser)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.SetSession(w, sess.Tokens)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Google login successful!",
		"user":    sess.User.Summary(),
	})
}

// HandleGoogleLogin starts the server-side Google redirect flow.
//
// HTTP: GET /auth/google/login
// The random state lands in a short-lived cookie; the callback compares it
// against what Google echoes back (CSRF protection for the OAuth dance).
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the redirect flow: state check, code
// exchange, find-or-create, cookies, then back to the app.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("Google callback: state mismatch")
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid OAuth state"})
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		// The user declined on Google's consent page.
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing OAuth code"})
		return
	}

	gUser, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("Google callback: exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Google authentication failed"})
		return
	}

	sess, err := h.svc.LoginWithGoogle(r.Context(), gUser)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.SetSession(w, sess.Tokens)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

package auth

import "net/http"

// Cookie names the SPA's auth flows rely on.
const (
	AccessCookieName  = "token"
	RefreshCookieName = "refreshToken"
)

// CookiePolicy writes and clears the session cookies with one consistent set
// of attributes.
//
// Every token-setting endpoint (signup, login, refresh, Google) goes through
// this type, so the attributes cannot drift between flows. Secure is resolved
// once at startup from configuration (on behind HTTPS in production, off for
// local development) — it is never hardcoded per endpoint.
//
// HttpOnly keeps JavaScript away from the tokens (XSS can't exfiltrate them);
// SameSite=Lax withholds them on cross-site POSTs.
type CookiePolicy struct {
	Secure bool
}

// SetSession writes both token cookies. Max ages mirror the token TTLs, so
// the browser forgets a cookie at the same moment its token expires.
func (p CookiePolicy) SetSession(w http.ResponseWriter, pair *TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(AccessTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   int(RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession tells the browser to drop both token cookies immediately.
func (p CookiePolicy) ClearSession(w http.ResponseWriter) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1, // delete immediately
			HttpOnly: true,
			Secure:   p.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

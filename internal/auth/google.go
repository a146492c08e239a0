package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

// GoogleUser is the slice of a Google identity we keep: enough to find or
// create an account keyed by email.
type GoogleUser struct {
	Subject string `json:"sub"`     // Google's stable account ID ("sub" claim)
	Email   string `json:"email"`   // verified email for the account
	Name    string `json:"name"`    // display name, becomes the username
	Picture string `json:"picture"` // profile picture URL
}

// IdentityVerifier checks an externally supplied Google ID token and returns
// the identity it asserts.
//
// The SPA obtains the ID token itself (Google's sign-in widget runs in the
// browser) and POSTs it to /auth/google; the backend's only job is to verify
// the token really came from Google and was minted for OUR client ID. Behind
// an interface so tests substitute a fake instead of needing Google's keys.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (*GoogleUser, error)
}

// GoogleVerifier validates Google ID tokens using Google's published public
// keys, via google.golang.org/api/idtoken.
//
// AUDIENCE CHECK:
// An ID token names the OAuth client it was issued for in its "aud" claim.
// Validating against our client ID rejects tokens a user legitimately
// obtained for some OTHER application — without this, any Google-signed
// token would log into our app.
type GoogleVerifier struct {
	clientID string
}

// NewGoogleVerifier creates a verifier for tokens issued to clientID.
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID}
}

// Verify validates signature, expiry, and audience, and extracts the profile
// claims. The idtoken package fetches and caches Google's signing keys.
func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (*GoogleUser, error) {
	payload, err := idtoken.Validate(ctx, rawToken, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("auth: validating Google ID token: %w", err)
	}

	user := &GoogleUser{
		Subject: payload.Subject,
		Email:   claimString(payload.Claims, "email"),
		Name:    claimString(payload.Claims, "name"),
		Picture: claimString(payload.Claims, "picture"),
	}
	if user.Email == "" {
		return nil, fmt.Errorf("auth: Google ID token carries no email claim")
	}

	return user, nil
}

// claimString reads an optional string claim from the token payload.
func claimString(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

// GoogleProvider wraps golang.org/x/oauth2 for the server-side Google
// Authorization Code flow — the redirect-based alternative to the SPA's
// ID-token POST.
//
// FLOW:
//  1. /auth/google/login redirects the browser to Google's consent page,
//     carrying our client ID and a CSRF state value.
//  2. Google redirects back to the callback URL with a short-lived code.
//  3. The server exchanges the code for an access token (server-to-server,
//     using the client secret — it never touches the browser).
//  4. The server calls the OpenID userinfo endpoint for the profile.
type GoogleProvider struct {
	config *oauth2.Config
}

// userinfoURL is Google's OpenID Connect userinfo endpoint.
const userinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// NewGoogleProvider creates a provider for the given OAuth client.
// callbackURL must exactly match an authorized redirect URI registered in the
// Google Cloud console for this client.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthURL returns the Google consent page URL to redirect the user to.
//
// The state is a random value we also store in a short-lived cookie; the
// callback handler checks the returned state against it. An attacker who
// tricks a browser into completing an OAuth flow for the attacker's account
// can't forge that cookie (CSRF protection).
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for a Google user profile:
// code → OAuth access token → userinfo call.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that attaches the
	// "Authorization: Bearer <token>" header on every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(userinfoURL)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo endpoint returned status %d", resp.StatusCode)
	}

	var gUser GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&gUser); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo response: %w", err)
	}

	if gUser.Subject == "" || gUser.Email == "" {
		return nil, fmt.Errorf("auth: Google returned an incomplete profile")
	}

	return &gUser, nil
}

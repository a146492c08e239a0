// Package config loads all runtime configuration once at startup.
//
// Values come from the environment, optionally seeded from a .env file in the
// working directory (the usual local-development setup). Nothing else in the
// codebase reads os.Getenv — handlers and services receive what they need
// through constructors.
package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable the server needs.
type Config struct {
	Port int `env:"PORT" envDefault:"5000"`

	// Environment gates the Secure attribute on the session cookies:
	// "production" → Secure on (HTTPS only), anything else → off.
	// One switch for every token-setting endpoint; no per-endpoint flags.
	Environment string `env:"APP_ENV" envDefault:"development"`

	// JWTSecret signs both access and refresh tokens. There is no usable
	// fallback — a missing secret is a fatal configuration error, checked in
	// Load rather than discovered on the first signup.
	JWTSecret string `env:"JWT_SECRET"`

	// Google sign-in. ClientID alone enables ID-token verification for the
	// SPA flow; ClientSecret + CallbackURL additionally enable the
	// server-side redirect flow.
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL"`

	// AllowedOrigins is the SPA origin allow-list for credentialed CORS.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// DBPath selects the credential store: empty → in-memory (accounts live
	// for the process lifetime), set → SQLite file at that path.
	DBPath string `env:"DB_PATH"`
}

// SecureCookies reports whether session cookies should carry the Secure
// attribute, resolved once here and injected as a plain bool.
func (c *Config) SecureCookies() bool {
	return c.Environment == "production"
}

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	// Missing .env is fine — production sets real environment variables.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET must be set")
	}

	return &cfg, nil
}

// Package server wires the application together and runs the HTTP server.
//
// This is the composition root: New builds the dependency chain
//
//	config → store (memory or sqlite) → AuthService → AuthHandler → routes
//
// so construction happens in exactly one place and main.go stays minimal.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shaily-20/cloudify-auth/internal/auth"
	"github.com/shaily-20/cloudify-auth/internal/config"
	"github.com/shaily-20/cloudify-auth/internal/handler"
	"github.com/shaily-20/cloudify-auth/internal/middleware"
	"github.com/shaily-20/cloudify-auth/internal/repository"
	"github.com/shaily-20/cloudify-auth/internal/repository/memory"
	sqliteRepo "github.com/shaily-20/cloudify-auth/internal/repository/sqlite"
	"github.com/shaily-20/cloudify-auth/internal/service"
)

// Server owns the router and whatever store backend was selected. A SQLite
// store holds a file handle that must be closed on shutdown; the in-memory
// store needs no cleanup, so closer stays nil for it.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	closer io.Closer
}

// New assembles the server from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	var (
		users  repository.UserRepository
		closer io.Closer
	)
	if cfg.DBPath != "" {
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		users = db
		closer = db
		logger.Info("using sqlite credential store", slog.String("path", cfg.DBPath))
	} else {
		users = memory.NewStore()
		logger.Info("using in-memory credential store — accounts do not survive restarts")
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	svc := service.NewAuthService(users, tokens, auth.NewPasswordService(), logger)

	// Google sign-in is optional: without a client ID the SPA flow route is
	// not registered; without a secret + callback, neither is the redirect
	// flow.
	var verifier auth.IdentityVerifier
	if cfg.GoogleClientID != "" {
		verifier = auth.NewGoogleVerifier(cfg.GoogleClientID)
	} else {
		logger.Warn("GOOGLE_CLIENT_ID not set — Google sign-in is disabled")
	}
	var provider *auth.GoogleProvider
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" && cfg.GoogleCallbackURL != "" {
		provider = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
	}

	cookies := auth.CookiePolicy{Secure: cfg.SecureCookies()}
	authHandler := handler.NewAuthHandler(svc, verifier, provider, cookies, logger)

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		closer: closer,
	}
	s.setupRoutes(authHandler, tokens)

	return s, nil
}

// setupRoutes configures middleware and mounts every endpoint.
//
// Middleware order: request ID and real IP first (so the logger sees them),
// then panic recovery, logging, and CORS. The SPA runs on a different origin
// and authenticates with cookies, so CORS must allow credentials and name
// origins explicitly — the wildcard is forbidden for credentialed requests.
func (s *Server) setupRoutes(authHandler *handler.AuthHandler, tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	s.router.Post("/signup", authHandler.HandleSignup)
	s.router.Post("/login", authHandler.HandleLogin)
	s.router.Post("/refresh-token", authHandler.HandleRefresh)
	s.router.Post("/logout", authHandler.HandleLogout)

	// Token-gated endpoints sit behind the verifying middleware.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/check-auth", authHandler.HandleCheckAuth)
		r.Get("/protected", authHandler.HandleProtected)
	})

	if s.config.GoogleClientID != "" {
		s.router.Post("/auth/google", authHandler.HandleGoogleAuth)
	}
	if s.config.GoogleClientID != "" && s.config.GoogleClientSecret != "" && s.config.GoogleCallbackURL != "" {
		s.router.Get("/auth/google/login", authHandler.HandleGoogleLogin)
		s.router.Get("/auth/google/callback", authHandler.HandleGoogleCallback)
	}
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30 seconds,
// close the store.
func (s *Server) Start() error {
	defer func() {
		if s.closer != nil {
			s.closer.Close()
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Environment),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

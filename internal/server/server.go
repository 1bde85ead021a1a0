// Package server sets up the HTTP server, router, and all route
// definitions.
//
// This package is the "wiring" layer — the composition root where every
// dependency is assembled:
//
//	config → sqlite.DB → repositories
//	       → TokenService / PasswordService / OAuth providers / Mailer
//	       → AuthService / UserService
//	       → handlers → routes (behind the auth gate where required)
//
// Keeping the wiring out of main.go makes it testable: handler tests spin
// up the full router against an in-memory database without running main.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/auth-service/internal/auth"
	"github.com/sakif/auth-service/internal/config"
	"github.com/sakif/auth-service/internal/handler"
	"github.com/sakif/auth-service/internal/mail"
	"github.com/sakif/auth-service/internal/middleware"
	sqliteRepo "github.com/sakif/auth-service/internal/repository/sqlite"
	"github.com/sakif/auth-service/internal/service"
)

// Server owns the router and the resources that must be released on
// shutdown. The database connection is closed after the last in-flight
// request finishes, flushing the WAL and releasing the file lock.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency graph and mounts the routes.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router so tests can drive the whole stack through
// httptest without opening a socket.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures middleware, builds the service layer and mounts
// every route.
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID — tags each request for log correlation
//  2. RealIP — folds X-Forwarded-For into RemoteAddr, which the reset
//     flow records as request provenance
//  3. Recoverer — panics become 500s instead of dropped connections
//  4. SecureHeaders, Logger — every response hardened and logged
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.SecureHeaders)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.cfg.JWTSecret, s.cfg.AccessTokenTTL())
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	providers := map[string]auth.Provider{
		auth.ServiceFacebook: auth.NewFacebookProvider(),
		auth.ServiceGoogle:   auth.NewGoogleProvider(),
	}
	mailer := mail.New(s.cfg.Email, s.cfg.FrontendURL, s.logger)

	// The sqlite.DB value implements the user repository directly; the
	// token repositories are views over the same connection.
	refreshTokens := s.db.RefreshTokens()
	resetTokens := s.db.PasswordResetTokens()

	authService := service.NewAuthService(
		s.db, refreshTokens, resetTokens,
		tokens, passwords, providers, mailer,
		s.cfg, s.logger,
	)
	userService := service.NewUserService(s.db, refreshTokens, resetTokens, passwords, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.cfg, s.logger)
	profileHandler := handler.NewProfileHandler(userService, authService, s.cfg, s.logger)
	userHandler := handler.NewUserHandler(userService, s.cfg, s.logger)

	gate := auth.NewGate(tokens, s.db)

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/status", handleStatus)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/verify", authHandler.HandleVerify)
			r.Post("/refresh-token", authHandler.HandleRefreshToken)
			r.Post("/facebook", authHandler.HandleFacebook)
			r.Post("/google", authHandler.HandleGoogle)
			r.Post("/send-password-reset", authHandler.HandleSendPasswordReset)
			r.Post("/password-reset", authHandler.HandlePasswordReset)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(gate.Authenticated)
			r.Get("/", profileHandler.HandleGet)
			r.Patch("/", profileHandler.HandleUpdate)
			r.Post("/change-password", profileHandler.HandleChangePassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(gate.AdminOnly).Get("/", userHandler.HandleList)
			r.With(gate.AdminOnly).Post("/", userHandler.HandleCreate)
			r.With(gate.SelfOrAdmin).Get("/{id}", userHandler.HandleGet)
			r.With(gate.SelfOrAdmin).Patch("/{id}", userHandler.HandleUpdate)
			r.With(gate.AdminOnly).Delete("/{id}", userHandler.HandleDelete)
		})
	})

	return nil
}

// handleStatus answers the health check used by load balancers and
// uptime probes.
func handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, wait up to 30s for in-flight
// requests, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         s.cfg.HTTPAddr,
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
			slog.String("addr", s.cfg.HTTPAddr),
			slog.String("env", s.cfg.Env),
			slog.String("database", s.cfg.DBPath),
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

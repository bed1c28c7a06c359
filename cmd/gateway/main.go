package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/keynest/gateway/internal/audit"
	"github.com/keynest/gateway/internal/config"
	"github.com/keynest/gateway/internal/handlers"
	"github.com/keynest/gateway/internal/keycloak"
	"github.com/keynest/gateway/internal/logging"
	"github.com/keynest/gateway/internal/middleware"
	"github.com/keynest/gateway/internal/server"
	"github.com/keynest/gateway/internal/service"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	logger.Info("starting gateway",
		logging.Service("gateway"),
		"port", cfg.Server.Port,
		"realm", cfg.Keycloak.Realm,
	)

	// Identity provider client and audit trail
	kc := keycloak.New(&cfg.Keycloak, logger.Logger)
	auditLog := audit.NewLogger(cfg.Audit.Secret, logger.Logger)

	// Service layer
	authService := service.NewAuthService(kc, auditLog)
	userService := service.NewUserService(kc, auditLog)

	// HTTP handlers and router
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	guard := middleware.NewGuard(logger.Logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(authHandler, userHandler, guard),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("gateway listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server stopped")
}

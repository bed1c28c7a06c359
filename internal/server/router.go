package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keynest/gateway/internal/handlers"
	"github.com/keynest/gateway/internal/middleware"
)

// NewRouter constructs a ServeMux with the gateway routes registered.
// Required roles are declared here, statically per route: login is
// public, refresh carries no requirement (the guard allows it), and the
// user-management routes are admin-only.
func NewRouter(auth *handlers.AuthHandler, users *handlers.UserHandler, guard *middleware.Guard) http.Handler {
	mux := http.NewServeMux()

	// Authentication endpoints
	mux.HandleFunc("POST /auth/login", auth.Login)
	mux.HandleFunc("POST /auth/refresh", guard.Require()(auth.Refresh))

	// User management endpoints
	mux.HandleFunc("POST /users", guard.Require(middleware.RoleAdmin)(users.Create))
	mux.HandleFunc("PUT /users/{id}", guard.Require(middleware.RoleAdmin)(users.Update))
	mux.HandleFunc("DELETE /users/{id}", guard.Require(middleware.RoleAdmin)(users.Delete))

	// Health check and metrics
	mux.HandleFunc("/healthz", auth.HealthCheck)
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.Metrics(middleware.RequestID(mux))
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/keynest/gateway/internal/keycloak"
	"github.com/keynest/gateway/internal/models"
	"github.com/keynest/gateway/internal/service"
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{
		service: service,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, []string{"invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	resp, err := h.service.Login(r.Context(), &req, getClientIP(r), r.Header.Get("User-Agent"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, []string{"invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	resp, err := h.service.Refresh(r.Context(), &req, getClientIP(r), r.Header.Get("User-Agent"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeValidationError renders request validation failures in the same
// envelope shape the provider error normalizer produces.
func writeValidationError(w http.ResponseWriter, errs []string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"statusCode": http.StatusBadRequest,
		"message":    "Validation errors",
		"errors":     errs,
	})
}

// writeError maps service failures onto HTTP responses. Credential
// rejections stay generic so provider detail never leaks.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, keycloak.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"statusCode": http.StatusUnauthorized,
			"message":    "Invalid credentials",
		})
	case errors.Is(err, keycloak.ErrInvalidRefreshToken):
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"statusCode": http.StatusUnauthorized,
			"message":    "Invalid or expired refresh token",
		})
	default:
		var apiErr *keycloak.APIError
		if errors.As(err, &apiErr) {
			writeJSON(w, apiErr.StatusCode, apiErr)
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"statusCode": http.StatusInternalServerError,
			"message":    "Internal server error",
		})
	}
}

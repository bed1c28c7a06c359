package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keynest/gateway/internal/audit"
	"github.com/keynest/gateway/internal/config"
	"github.com/keynest/gateway/internal/keycloak"
	"github.com/keynest/gateway/internal/middleware"
	"github.com/keynest/gateway/internal/service"
)

// testEnv wires the handlers against a stub identity provider, covering
// the full request path from route guard to provider call.
type testEnv struct {
	idp *httptest.Server
	mux *http.ServeMux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{}
	env.idp = httptest.NewServer(http.HandlerFunc(env.handleIdP))
	t.Cleanup(env.idp.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	kc := keycloak.New(&config.KeycloakConfig{
		BaseURL:       env.idp.URL,
		Realm:         "keynest",
		ClientID:      "keynest-server",
		ClientSecret:  "secret",
		AdminUsername: "admin",
		AdminPassword: "admin-pass",
		HTTPTimeout:   5 * time.Second,
	}, logger)

	auditLog := audit.NewLogger("test-key", logger)
	authHandler := NewAuthHandler(service.NewAuthService(kc, auditLog))
	userHandler := NewUserHandler(service.NewUserService(kc, auditLog))
	guard := middleware.NewGuard(logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.HandleFunc("POST /auth/refresh", guard.Require()(authHandler.Refresh))
	mux.HandleFunc("POST /users", guard.Require(middleware.RoleAdmin)(userHandler.Create))
	mux.HandleFunc("PUT /users/{id}", guard.Require(middleware.RoleAdmin)(userHandler.Update))
	mux.HandleFunc("DELETE /users/{id}", guard.Require(middleware.RoleAdmin)(userHandler.Delete))
	env.mux = mux

	return env
}

// handleIdP emulates the provider: the token endpoint plus the handful
// of admin API routes the client exercises.
func (e *testEnv) handleIdP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/realms/keynest/protocol/openid-connect/token" {
		e.handleTokenGrant(w, r)
		return
	}

	adminPrefix := "/admin/realms/keynest"
	path := strings.TrimPrefix(r.URL.Path, adminPrefix)

	switch {
	case r.Method == http.MethodPost && path == "/users":
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodGet && path == "/users":
		writeStubJSON(w, []map[string]string{{"id": "new-user-id", "username": r.URL.Query().Get("username")}})
	case r.Method == http.MethodGet && path == "/clients":
		writeStubJSON(w, []map[string]string{{"id": "client-internal-id", "clientId": "keynest-server"}})
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/clients/client-internal-id/roles/"):
		name := strings.TrimPrefix(path, "/clients/client-internal-id/roles/")
		writeStubJSON(w, map[string]string{"id": "role-" + name, "name": name})
	case r.Method == http.MethodPost && strings.HasPrefix(path, "/users/") && strings.Contains(path, "/role-mappings/"):
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/users/"):
		writeStubJSON(w, map[string]any{
			"id":        strings.TrimPrefix(path, "/users/"),
			"username":  "existing",
			"email":     "existing@example.com",
			"firstName": "Existing",
			"lastName":  "User",
		})
	case r.Method == http.MethodPut && strings.HasPrefix(path, "/users/"):
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/users/"):
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (e *testEnv) handleTokenGrant(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()

	switch {
	case r.PostForm.Get("client_id") == "admin-cli":
		writeStubJSON(w, map[string]any{"access_token": "admin-token", "refresh_token": "admin-refresh", "expires_in": 300})
	case r.PostForm.Get("grant_type") == "password":
		if r.PostForm.Get("password") == "wrong" {
			w.WriteHeader(http.StatusUnauthorized)
			writeStubJSON(w, map[string]string{"error": "invalid_grant"})
			return
		}
		writeStubJSON(w, map[string]any{"access_token": "user-access", "refresh_token": "user-refresh", "expires_in": 300})
	case r.PostForm.Get("grant_type") == "refresh_token":
		if r.PostForm.Get("refresh_token") == "expired" {
			w.WriteHeader(http.StatusBadRequest)
			writeStubJSON(w, map[string]string{"error": "invalid_grant"})
			return
		}
		writeStubJSON(w, map[string]any{"access_token": "refreshed-access", "refresh_token": "refreshed-refresh", "expires_in": 300})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func writeStubJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (e *testEnv) request(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func bearerToken(t *testing.T, roles ...string) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"preferred_username": "operator",
		"realm_access":       map[string]any{"roles": roles},
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "correct-horse",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["accessToken"] != "user-access" {
		t.Errorf("unexpected accessToken: %v", body["accessToken"])
	}
	if body["refreshToken"] != "user-refresh" {
		t.Errorf("unexpected refreshToken: %v", body["refreshToken"])
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrong",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["message"] != "Invalid credentials" {
		t.Errorf("unexpected message: %v", body["message"])
	}
	// The provider's error detail must not leak through.
	if strings.Contains(rec.Body.String(), "invalid_grant") {
		t.Error("provider error detail leaked into the response")
	}
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["message"] != "Validation errors" {
		t.Errorf("unexpected message: %v", body["message"])
	}
	errs, ok := body["errors"].([]any)
	if !ok || len(errs) != 1 {
		t.Fatalf("expected one validation error, got %v", body["errors"])
	}
}

func TestRefreshWithoutCredentialAllowed(t *testing.T) {
	env := newTestEnv(t)

	// No Authorization header: the refresh route has no role requirement.
	rec := env.request(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refreshToken": "some-refresh-token",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["accessToken"] != "refreshed-access" {
		t.Errorf("unexpected accessToken: %v", body["accessToken"])
	}
}

func TestRefreshRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refreshToken": "expired",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "Invalid or expired refresh token" {
		t.Errorf("unexpected message: %v", body["message"])
	}
}

func TestCreateUserAsAdmin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/users", bearerToken(t, middleware.RoleAdmin), map[string]any{
		"username": "newuser",
		"email":    "newuser@example.com",
		"password": "s3cret-pass",
		"roles":    []string{"ROLE_USER"},
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["userId"] != "new-user-id" {
		t.Errorf("unexpected userId: %v", body["userId"])
	}
}

func TestCreateUserWithoutAdminRole(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/users", bearerToken(t, "ROLE_USER"), map[string]any{
		"username": "newuser",
		"email":    "newuser@example.com",
		"password": "s3cret-pass",
		"roles":    []string{"ROLE_USER"},
	})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "Access denied" {
		t.Errorf("unexpected message: %v", body["message"])
	}
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/users", bearerToken(t, middleware.RoleAdmin), map[string]any{
		"username": "newuser",
		"email":    "not-an-email",
		"password": "123",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	errs, ok := body["errors"].([]any)
	if !ok || len(errs) != 3 {
		t.Fatalf("expected three validation errors, got %v", body["errors"])
	}
}

func TestUpdateUser(t *testing.T) {
	env := newTestEnv(t)

	target := "/users/" + url.PathEscape("existing-id")
	rec := env.request(t, http.MethodPut, target, bearerToken(t, middleware.RoleAdmin), map[string]string{
		"firstName": "Renamed",
	})

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodDelete, "/users/existing-id", bearerToken(t, middleware.RoleAdmin), nil)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteUserUnauthenticated(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodDelete, "/users/existing-id", "", nil)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "Token not found or invalid format" {
		t.Errorf("unexpected message: %v", body["message"])
	}
}

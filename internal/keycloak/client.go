package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/keynest/gateway/internal/config"
	"github.com/keynest/gateway/internal/models"
)

const (
	// adminClientID is the provider's built-in CLI client used for the
	// admin password grant.
	adminClientID = "admin-cli"

	// adminTokenMargin is subtracted from the provider-reported token
	// lifetime so a cached token is never served right before it expires
	// mid-flight.
	adminTokenMargin = 10 * time.Second
)

// Client talks to the identity provider: OAuth2 grants for end users and
// the Admin REST API for user lifecycle management. The admin credential
// is cached in a single slot and refreshed on expiry.
type Client struct {
	baseURL       string
	realm         string
	clientID      string
	clientSecret  string
	adminUsername string
	adminPassword string

	httpClient *http.Client
	logger     *slog.Logger

	// Admin token cache. The entry is replaced whole, never mutated.
	mu               sync.Mutex
	adminAccessToken string
	adminTokenExpiry time.Time
}

// New creates a provider client from the keycloak configuration section.
func New(cfg *config.KeycloakConfig, logger *slog.Logger) *Client {
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		realm:         cfg.Realm,
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		adminUsername: cfg.AdminUsername,
		adminPassword: cfg.AdminPassword,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger.With(slog.String("component", "keycloak_client")),
	}
}

func (c *Client) tokenEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, c.realm)
}

func (c *Client) adminBaseURL() string {
	return fmt.Sprintf("%s/admin/realms/%s", c.baseURL, c.realm)
}

// --- Token grants ---

// grant performs a form-encoded request against the token endpoint.
func (c *Client) grant(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(resp)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}

	return &token, nil
}

// Login exchanges end-user credentials for a token pair via the password
// grant. Provider failures are logged but never surfaced to the caller.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	token, err := c.grant(ctx, url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"username":      {username},
		"password":      {password},
		"grant_type":    {"password"},
	})
	if err != nil {
		c.logger.Error("login rejected by provider",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, ErrInvalidCredentials
	}

	return &TokenPair{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}, nil
}

// RefreshTokens exchanges a refresh token for a fresh token pair.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := c.grant(ctx, url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	})
	if err != nil {
		c.logger.Error("token refresh rejected by provider", slog.String("error", err.Error()))
		return nil, ErrInvalidRefreshToken
	}

	return &TokenPair{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}, nil
}

// adminToken returns the cached admin access token, refreshing it through
// the admin password grant when the cached entry has expired.
func (c *Client) adminToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.adminAccessToken != "" && c.adminTokenExpiry.After(now) {
		return c.adminAccessToken, nil
	}

	token, err := c.grant(ctx, url.Values{
		"client_id":  {adminClientID},
		"username":   {c.adminUsername},
		"password":   {c.adminPassword},
		"grant_type": {"password"},
	})
	if err != nil {
		return "", normalize(c.logger, "Error getting token", http.StatusInternalServerError,
			fmt.Errorf("%w: %w", ErrAdminAuth, err))
	}

	c.adminAccessToken = token.AccessToken
	c.adminTokenExpiry = now.Add(time.Duration(token.ExpiresIn)*time.Second - adminTokenMargin)

	c.logger.Debug("admin token refreshed", slog.Time("expires_at", c.adminTokenExpiry))

	return c.adminAccessToken, nil
}

// --- HTTP helpers ---

// do performs an authenticated request against the Admin REST API.
func (c *Client) do(ctx context.Context, token, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.adminBaseURL()+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// newHTTPError captures a non-2xx provider response, parsing the error
// body when the provider supplied one.
func newHTTPError(resp *http.Response) *httpError {
	raw, _ := io.ReadAll(resp.Body)

	e := &httpError{status: resp.StatusCode, body: string(raw)}

	var p providerError
	if err := json.Unmarshal(raw, &p); err == nil && p.ErrorMessage != "" {
		e.provider = &p
	}

	return e
}

// decodeResponse decodes a JSON response into target, converting non-2xx
// statuses into provider errors.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newHTTPError(resp)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("decoding provider response: %w", err)
		}
	}

	return nil
}

// checkResponse verifies the response status for requests without a body.
func checkResponse(resp *http.Response, expected int) error {
	defer resp.Body.Close()

	if resp.StatusCode != expected {
		return newHTTPError(resp)
	}

	return nil
}

// --- User lifecycle ---

// userFromCreate maps an incoming create payload onto a provider user
// record. Enabled defaults to true only on creation.
func userFromCreate(req *models.CreateUserRequest) UserRepresentation {
	enabled := true
	rep := UserRepresentation{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Enabled:   &enabled,
		Attributes: &UserAttributes{
			PhoneNumber: req.PhoneNumber,
			Document:    req.Document,
			UserType:    req.UserType,
		},
	}

	if req.Password != "" {
		rep.Credentials = []Credential{{Type: "password", Value: req.Password, Temporary: false}}
	}

	return rep
}

// mergeUpdate merges provided fields over the existing provider record.
// The provider's update is a full-replace API, so unspecified fields must
// carry the existing values. Username is immutable.
func mergeUpdate(existing *UserRepresentation, req *models.UpdateUserRequest) UserRepresentation {
	pick := func(v, fallback string) string {
		if v != "" {
			return v
		}
		return fallback
	}

	var existingAttrs UserAttributes
	if existing.Attributes != nil {
		existingAttrs = *existing.Attributes
	}

	rep := UserRepresentation{
		Username:  existing.Username,
		Email:     pick(req.Email, existing.Email),
		FirstName: pick(req.FirstName, existing.FirstName),
		LastName:  pick(req.LastName, existing.LastName),
		Attributes: &UserAttributes{
			PhoneNumber: pick(req.PhoneNumber, existingAttrs.PhoneNumber),
			Document:    pick(req.Document, existingAttrs.Document),
			UserType:    pick(req.UserType, existingAttrs.UserType),
		},
	}

	if req.Password != "" {
		rep.Credentials = []Credential{{Type: "password", Value: req.Password, Temporary: false}}
	}

	return rep
}

// CreateUser creates a user upstream and returns the generated ID. The
// provider does not return the new record's ID, so the client resolves it
// with a follow-up lookup by username, then assigns any requested client
// roles. There is no rollback: a failure after creation leaves the user
// in place upstream.
func (c *Client) CreateUser(ctx context.Context, req *models.CreateUserRequest) (string, error) {
	token, err := c.adminToken(ctx)
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, token, http.MethodPost, "/users", userFromCreate(req))
	if err != nil {
		return "", normalize(c.logger, "Error creating user", http.StatusInternalServerError, err)
	}
	if err := checkResponse(resp, http.StatusCreated); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			err = NewAPIError(http.StatusBadRequest, "Error creating user", ErrCreateRejected)
		}
		return "", normalize(c.logger, "Error creating user", http.StatusInternalServerError, err)
	}

	userID, err := c.UserIDByUsername(ctx, req.Username)
	if err != nil {
		return "", normalize(c.logger, "Error creating user", http.StatusInternalServerError, err)
	}
	if userID == "" {
		inner := NewAPIError(http.StatusNotFound, "User created but ID not found", ErrCreatedIDNotFound)
		return "", normalize(c.logger, "Error creating user", http.StatusInternalServerError, inner)
	}

	if len(req.Roles) > 0 {
		if err := c.AssignRoles(ctx, userID, req.Roles); err != nil {
			return "", normalize(c.logger, "Error creating user", http.StatusInternalServerError, err)
		}
	}

	return userID, nil
}

// UpdateUser applies a partial update. The existing record is read first
// so unspecified fields keep their current values across the full-replace
// PUT.
func (c *Client) UpdateUser(ctx context.Context, userID string, req *models.UpdateUserRequest) error {
	token, err := c.adminToken(ctx)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, token, http.MethodGet, "/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return normalize(c.logger, "Error updating user", http.StatusInternalServerError, err)
	}

	var existing UserRepresentation
	if err := decodeResponse(resp, &existing); err != nil {
		return normalize(c.logger, "Error updating user", http.StatusInternalServerError, err)
	}

	merged := mergeUpdate(&existing, req)

	resp, err = c.do(ctx, token, http.MethodPut, "/users/"+url.PathEscape(userID), merged)
	if err != nil {
		return normalize(c.logger, "Error updating user", http.StatusInternalServerError, err)
	}
	if err := checkResponse(resp, http.StatusNoContent); err != nil {
		return normalize(c.logger, "Error updating user", http.StatusInternalServerError, err)
	}

	return nil
}

// DeleteUser removes a user upstream. No soft-delete semantics.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	token, err := c.adminToken(ctx)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, token, http.MethodDelete, "/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return normalize(c.logger, "Error deleting user", http.StatusInternalServerError, err)
	}
	if err := checkResponse(resp, http.StatusNoContent); err != nil {
		return normalize(c.logger, "Error deleting user", http.StatusInternalServerError, err)
	}

	return nil
}

// UserIDByUsername resolves a username to the provider's user ID. Lookup
// is best-effort: provider failures are logged and an empty ID returned
// rather than failing the caller. An admin credential failure still
// propagates.
func (c *Client) UserIDByUsername(ctx context.Context, username string) (string, error) {
	token, err := c.adminToken(ctx)
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, token, http.MethodGet, "/users?username="+url.QueryEscape(username), nil)
	if err != nil {
		c.logger.Error("error fetching user", slog.String("username", username), slog.String("error", err.Error()))
		return "", nil
	}

	var users []UserRepresentation
	if err := decodeResponse(resp, &users); err != nil {
		c.logger.Error("error fetching user", slog.String("username", username), slog.String("error", err.Error()))
		return "", nil
	}

	if len(users) == 0 {
		return "", nil
	}

	return users[0].ID, nil
}

// --- Roles ---

// clientInternalID resolves the provider's internal ID for the configured
// client application.
func (c *Client) clientInternalID(ctx context.Context) (string, error) {
	token, err := c.adminToken(ctx)
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, token, http.MethodGet, "/clients?clientId="+url.QueryEscape(c.clientID), nil)
	if err != nil {
		return "", normalize(c.logger, "Error getting client ID", http.StatusInternalServerError, err)
	}

	var clients []clientRepresentation
	if err := decodeResponse(resp, &clients); err != nil {
		return "", normalize(c.logger, "Error getting client ID", http.StatusInternalServerError, err)
	}

	if len(clients) == 0 {
		return "", normalize(c.logger, "Error getting client ID", http.StatusInternalServerError,
			fmt.Errorf("%w: %s", ErrClientNotFound, c.clientID))
	}

	return clients[0].ID, nil
}

// clientRoleByName looks up one client-scoped role descriptor. Resolution
// is best-effort per role so one invalid name does not abort a batch.
func (c *Client) clientRoleByName(ctx context.Context, roleName, clientInternalID string) *Role {
	token, err := c.adminToken(ctx)
	if err != nil {
		c.logger.Error("error getting role", slog.String("role", roleName), slog.String("error", err.Error()))
		return nil
	}

	path := "/clients/" + url.PathEscape(clientInternalID) + "/roles/" + url.PathEscape(roleName)
	resp, err := c.do(ctx, token, http.MethodGet, path, nil)
	if err != nil {
		c.logger.Error("error getting role", slog.String("role", roleName), slog.String("error", err.Error()))
		return nil
	}

	var role Role
	if err := decodeResponse(resp, &role); err != nil {
		c.logger.Error("error getting role", slog.String("role", roleName), slog.String("error", err.Error()))
		return nil
	}

	return &role
}

// AssignRoles resolves each role name concurrently, discards the ones the
// provider does not know, and posts the resolved descriptors as one batch
// role-mapping. All-unresolved input is a warning, not an error, and
// performs no network call.
func (c *Client) AssignRoles(ctx context.Context, userID string, roleNames []string) error {
	clientInternalID, err := c.clientInternalID(ctx)
	if err != nil {
		return err
	}

	resolved := make([]*Role, len(roleNames))
	var wg sync.WaitGroup
	for i, name := range roleNames {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			resolved[i] = c.clientRoleByName(ctx, name, clientInternalID)
		}(i, name)
	}
	wg.Wait()

	valid := make([]Role, 0, len(roleNames))
	for _, role := range resolved {
		if role != nil {
			valid = append(valid, *role)
		}
	}

	if len(valid) == 0 {
		c.logger.Warn("no valid roles found to assign", slog.String("user_id", userID))
		return nil
	}

	token, err := c.adminToken(ctx)
	if err != nil {
		return err
	}

	path := "/users/" + url.PathEscape(userID) + "/role-mappings/clients/" + url.PathEscape(clientInternalID)
	resp, err := c.do(ctx, token, http.MethodPost, path, valid)
	if err != nil {
		return normalize(c.logger, "Error assigning roles to user", http.StatusInternalServerError, err)
	}
	if err := checkResponse(resp, http.StatusNoContent); err != nil {
		return normalize(c.logger, "Error assigning roles to user", http.StatusInternalServerError, err)
	}

	return nil
}

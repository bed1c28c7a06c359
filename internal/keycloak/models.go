package keycloak

// tokenResponse is the provider's token endpoint response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// TokenPair is the end-user credential pair returned by Login and RefreshTokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserAttributes holds the provider-specific extension fields kept under
// a user's attributes sub-object.
type UserAttributes struct {
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Document    string `json:"document,omitempty"`
	UserType    string `json:"userType,omitempty"`
}

// Credential is a one-shot credential descriptor, sent only on create or
// password change.
type Credential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// UserRepresentation mirrors the provider's user record. Enabled is a
// pointer so updates leave the flag untouched; creates set it to true.
type UserRepresentation struct {
	ID          string          `json:"id,omitempty"`
	Username    string          `json:"username,omitempty"`
	Email       string          `json:"email,omitempty"`
	FirstName   string          `json:"firstName,omitempty"`
	LastName    string          `json:"lastName,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty"`
	Attributes  *UserAttributes `json:"attributes,omitempty"`
	Credentials []Credential    `json:"credentials,omitempty"`
}

// Role is a provider role descriptor, used as the role-mapping payload.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// clientRepresentation is the subset of the provider's client record the
// gateway reads.
type clientRepresentation struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
}

// providerError is the error body the provider attaches to admin API
// rejections.
type providerError struct {
	ErrorMessage string   `json:"errorMessage"`
	Params       []string `json:"params"`
}

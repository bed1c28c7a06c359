package claims

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMalformedToken = errors.New("malformed token")

// RoleList holds the roles claim of a single access entry.
type RoleList struct {
	Roles []string `json:"roles"`
}

// AccessClaims is the decoded payload of a Keycloak-issued access token.
// Realm roles live under realm_access; each client application keeps its
// own role list under resource_access keyed by client name.
type AccessClaims struct {
	PreferredUsername string              `json:"preferred_username"`
	RealmAccess       RoleList            `json:"realm_access"`
	ResourceAccess    map[string]RoleList `json:"resource_access"`
	jwt.RegisteredClaims
}

// Decode parses the payload of a bearer token without verifying its
// signature. The token is trusted to have been issued by the identity
// provider; signature verification happens upstream.
func Decode(token string) (*AccessClaims, error) {
	c := &AccessClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return c, nil
}

// Roles returns the union of realm roles and every resource's roles,
// deduplicated. Missing claims contribute nothing.
func (c *AccessClaims) Roles() []string {
	seen := make(map[string]bool)
	roles := make([]string, 0, len(c.RealmAccess.Roles))

	add := func(list []string) {
		for _, role := range list {
			if !seen[role] {
				seen[role] = true
				roles = append(roles, role)
			}
		}
	}

	add(c.RealmAccess.Roles)
	for _, access := range c.ResourceAccess {
		add(access.Roles)
	}

	return roles
}

// HasAny reports whether the claim set carries at least one of the
// given roles.
func (c *AccessClaims) HasAny(required []string) bool {
	userRoles := c.Roles()
	for _, want := range required {
		for _, have := range userRoles {
			if want == have {
				return true
			}
		}
	}
	return false
}

package models

import "strings"

// Wire format is camelCase to match the upstream API contract.

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() []string {
	var errs []string
	if r.Username == "" {
		errs = append(errs, "username is required")
	}
	if r.Password == "" {
		errs = append(errs, "password is required")
	}
	return errs
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r *RefreshRequest) Validate() []string {
	if r.RefreshToken == "" {
		return []string{"refreshToken is required"}
	}
	return nil
}

type CreateUserRequest struct {
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	PhoneNumber string   `json:"phoneNumber"`
	Document    string   `json:"document"`
	UserType    string   `json:"userType"`
	Password    string   `json:"password"`
	Roles       []string `json:"roles"`
}

func (r *CreateUserRequest) Validate() []string {
	var errs []string
	if r.Username == "" {
		errs = append(errs, "username is required")
	}
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		errs = append(errs, "email must be a valid email address")
	}
	if len(r.Password) < 6 {
		errs = append(errs, "the password must be at least 6 characters long")
	}
	if len(r.Roles) == 0 {
		errs = append(errs, "the user must have at least one role")
	}
	return errs
}

// UpdateUserRequest carries a partial update: empty fields keep the
// existing provider value. Roles are not updated through this request.
type UpdateUserRequest struct {
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	Document    string `json:"document"`
	UserType    string `json:"userType"`
	Password    string `json:"password"`
}

func (r *UpdateUserRequest) Validate() []string {
	if r.Password != "" && len(r.Password) < 6 {
		return []string{"the password must be at least 6 characters long"}
	}
	return nil
}

type TokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type CreateUserResponse struct {
	UserID string `json:"userId"`
}

package models

import "time"

// Actor types
const (
	ActorTypeUser   = "user"
	ActorTypeSystem = "system"
)

// Audited actions
const (
	ActionLogin        = "auth.login"
	ActionTokenRefresh = "auth.refresh"
	ActionUserCreate   = "user.create"
	ActionUserUpdate   = "user.update"
	ActionUserDelete   = "user.delete"
	ActionRoleAssign   = "user.assign_roles"
)

// Results
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// AuditLog is a tamper-evident record of an authentication or
// user-management action. Signature is an HMAC over the identifying fields.
type AuditLog struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	ActorType  string                 `json:"actor_type"`
	ActorID    string                 `json:"actor_id"`
	ActorName  string                 `json:"actor_name"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resource_id"`
	IPAddress  string                 `json:"ip_address"`
	UserAgent  string                 `json:"user_agent"`
	Result     string                 `json:"result"`
	Reason     string                 `json:"reason,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Signature  string                 `json:"signature"`
}

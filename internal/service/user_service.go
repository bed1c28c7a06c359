package service

import (
	"context"

	"github.com/keynest/gateway/internal/audit"
	"github.com/keynest/gateway/internal/keycloak"
	"github.com/keynest/gateway/internal/models"
)

// UserService manages the user lifecycle against the provider's admin
// API. The provider is the system of record; nothing is stored locally.
type UserService struct {
	kc       *keycloak.Client
	auditLog *audit.Logger
}

func NewUserService(kc *keycloak.Client, auditLog *audit.Logger) *UserService {
	return &UserService{
		kc:       kc,
		auditLog: auditLog,
	}
}

func (s *UserService) CreateUser(ctx context.Context, req *models.CreateUserRequest, actor, ipAddress, userAgent string) (*models.CreateUserResponse, error) {
	userID, err := s.kc.CreateUser(ctx, req)
	if err != nil {
		// The user may exist upstream even when this fails: id lookup and
		// role assignment run after creation and there is no rollback.
		s.auditLog.Log(
			models.ActorTypeUser, "", actor,
			models.ActionUserCreate, "user", "",
			ipAddress, userAgent,
			models.ResultFailure, err.Error(),
			map[string]interface{}{"username": req.Username},
		)
		return nil, err
	}

	s.auditLog.Log(
		models.ActorTypeUser, "", actor,
		models.ActionUserCreate, "user", userID,
		ipAddress, userAgent,
		models.ResultSuccess, "",
		map[string]interface{}{
			"username": req.Username,
			"email":    req.Email,
			"roles":    req.Roles,
		},
	)

	return &models.CreateUserResponse{UserID: userID}, nil
}

func (s *UserService) UpdateUser(ctx context.Context, userID string, req *models.UpdateUserRequest, actor, ipAddress, userAgent string) error {
	if err := s.kc.UpdateUser(ctx, userID, req); err != nil {
		s.auditLog.Log(
			models.ActorTypeUser, "", actor,
			models.ActionUserUpdate, "user", userID,
			ipAddress, userAgent,
			models.ResultFailure, err.Error(),
			nil,
		)
		return err
	}

	s.auditLog.Log(
		models.ActorTypeUser, "", actor,
		models.ActionUserUpdate, "user", userID,
		ipAddress, userAgent,
		models.ResultSuccess, "",
		nil,
	)

	return nil
}

func (s *UserService) DeleteUser(ctx context.Context, userID string, actor, ipAddress, userAgent string) error {
	if err := s.kc.DeleteUser(ctx, userID); err != nil {
		s.auditLog.Log(
			models.ActorTypeUser, "", actor,
			models.ActionUserDelete, "user", userID,
			ipAddress, userAgent,
			models.ResultFailure, err.Error(),
			nil,
		)
		return err
	}

	s.auditLog.Log(
		models.ActorTypeUser, "", actor,
		models.ActionUserDelete, "user", userID,
		ipAddress, userAgent,
		models.ResultSuccess, "",
		nil,
	)

	return nil
}

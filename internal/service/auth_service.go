package service

import (
	"context"

	"github.com/keynest/gateway/internal/audit"
	"github.com/keynest/gateway/internal/keycloak"
	"github.com/keynest/gateway/internal/models"
)

// AuthService fronts the provider's token grants for end users.
type AuthService struct {
	kc       *keycloak.Client
	auditLog *audit.Logger
}

func NewAuthService(kc *keycloak.Client, auditLog *audit.Logger) *AuthService {
	return &AuthService{
		kc:       kc,
		auditLog: auditLog,
	}
}

func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest, ipAddress, userAgent string) (*models.TokenPairResponse, error) {
	pair, err := s.kc.Login(ctx, req.Username, req.Password)
	if err != nil {
		s.auditLog.Log(
			models.ActorTypeUser, "", req.Username,
			models.ActionLogin, "session", "",
			ipAddress, userAgent,
			models.ResultFailure, "provider rejected credentials",
			nil,
		)
		return nil, err
	}

	s.auditLog.Log(
		models.ActorTypeUser, "", req.Username,
		models.ActionLogin, "session", "",
		ipAddress, userAgent,
		models.ResultSuccess, "",
		nil,
	)

	return &models.TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

func (s *AuthService) Refresh(ctx context.Context, req *models.RefreshRequest, ipAddress, userAgent string) (*models.TokenPairResponse, error) {
	pair, err := s.kc.RefreshTokens(ctx, req.RefreshToken)
	if err != nil {
		s.auditLog.Log(
			models.ActorTypeUser, "", "",
			models.ActionTokenRefresh, "session", "",
			ipAddress, userAgent,
			models.ResultFailure, "provider rejected refresh token",
			nil,
		)
		return nil, err
	}

	s.auditLog.Log(
		models.ActorTypeUser, "", "",
		models.ActionTokenRefresh, "session", "",
		ipAddress, userAgent,
		models.ResultSuccess, "",
		nil,
	)

	return &models.TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

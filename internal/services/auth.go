package services

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/types"
	"github.com/rorbcloud/calibration-backend/internal/utils"
)

// AuthService verifies externally issued RS256 bearer tokens and extracts
// the owner identifier from the sub claim.
type AuthService interface {
	OwnerIDFromToken(tokenString string) (string, error)
}

type authService struct {
	publicKey *rsa.PublicKey
	log       *logger.Logger
}

func NewAuthService(log *logger.Logger) (AuthService, error) {
	serviceLog := log.With("service", "AuthService")
	publicKeyPEM := utils.GetEnv("JWT_PUBLIC_KEY", "", log)
	if publicKeyPEM == "" {
		return nil, fmt.Errorf("JWT_PUBLIC_KEY is not set")
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT_PUBLIC_KEY: %w", err)
	}
	return &authService{publicKey: publicKey, log: serviceLog}, nil
}

func (s *authService) OwnerIDFromToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return s.publicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return "", types.NewAuthError("invalid token", err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", types.NewAuthError("token has no subject", err)
	}
	return sub, nil
}

package services

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rorbcloud/calibration-backend/internal/types"
)

func setupAuth(t *testing.T) (AuthService, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	t.Setenv("JWT_PUBLIC_KEY", string(pubPEM))

	svc, err := NewAuthService(newTestLogger(t))
	if err != nil {
		t.Fatalf("NewAuthService failed: %v", err)
	}
	return svc, key
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestOwnerIDFromToken(t *testing.T) {
	svc, key := setupAuth(t)

	token := signToken(t, key, jwt.MapClaims{
		"sub": "owner-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	ownerID, err := svc.OwnerIDFromToken(token)
	if err != nil {
		t.Fatalf("OwnerIDFromToken failed: %v", err)
	}
	if ownerID != "owner-42" {
		t.Fatalf("expected owner-42, got %q", ownerID)
	}
}

func TestOwnerIDFromTokenRejectsBadSignature(t *testing.T) {
	svc, _ := setupAuth(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	token := signToken(t, otherKey, jwt.MapClaims{
		"sub": "owner-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := svc.OwnerIDFromToken(token); !types.IsKind(err, types.KindAuth) {
		t.Fatalf("expected auth error for foreign signature, got %v", err)
	}
}

func TestOwnerIDFromTokenRejectsExpired(t *testing.T) {
	svc, key := setupAuth(t)

	token := signToken(t, key, jwt.MapClaims{
		"sub": "owner-42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	if _, err := svc.OwnerIDFromToken(token); !types.IsKind(err, types.KindAuth) {
		t.Fatalf("expected auth error for expired token, got %v", err)
	}
}

func TestOwnerIDFromTokenRejectsMissingSubject(t *testing.T) {
	svc, key := setupAuth(t)

	token := signToken(t, key, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := svc.OwnerIDFromToken(token); !types.IsKind(err, types.KindAuth) {
		t.Fatalf("expected auth error for missing sub, got %v", err)
	}
}

func TestOwnerIDFromTokenRejectsGarbage(t *testing.T) {
	svc, _ := setupAuth(t)
	if _, err := svc.OwnerIDFromToken("not.a.jwt"); !types.IsKind(err, types.KindAuth) {
		t.Fatalf("expected auth error for malformed token, got %v", err)
	}
}

package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/freshmarket/storefront-backend/pkg/config"
	"github.com/freshmarket/storefront-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "freshcart",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	customerID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		CustomerID: customerID,
		Role:       enums.CustomerRoleCustomer,
		JTI:        "session-1",
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := NewVerifier(cfg).Parse(token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.CustomerID != customerID {
		t.Fatalf("expected customer id %s, got %s", customerID, claims.CustomerID)
	}
	if claims.Role != enums.CustomerRoleCustomer {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.ID != "session-1" {
		t.Fatalf("expected jti session-1, got %q", claims.ID)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestMintAccessTokenGeneratesJTI(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		CustomerID: uuid.New(),
		Role:       enums.CustomerRoleAdmin,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	claims, err := NewVerifier(cfg).Parse(token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		t.Fatalf("expected generated uuid jti, got %q", claims.ID)
	}
}

func TestVerifierInvalidSignature(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		CustomerID: uuid.New(),
		Role:       enums.CustomerRoleCustomer,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := NewVerifier(cfg).Parse(token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestVerifierWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		CustomerID: uuid.New(),
		Role:       enums.CustomerRoleCustomer,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := NewVerifier(other).Parse(token); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestVerifierExpired(t *testing.T) {
	cfg := testJWTConfig()
	cfg.ExpirationMinutes = 15
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{
		CustomerID: uuid.New(),
		Role:       enums.CustomerRoleCustomer,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	_, err = NewVerifier(cfg).Parse(token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMintAccessTokenRejectsBadPayload(t *testing.T) {
	cfg := testJWTConfig()
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{CustomerID: uuid.New(), Role: ""}); err == nil {
		t.Fatal("expected invalid role error")
	}
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.CustomerRoleCustomer}); err == nil {
		t.Fatal("expected missing customer error")
	}
	cfg.Secret = ""
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{CustomerID: uuid.New(), Role: enums.CustomerRoleCustomer}); err == nil {
		t.Fatal("expected missing secret error")
	}
}

func TestVerifierRequiresExpiryAndClaims(t *testing.T) {
	cfg := testJWTConfig()
	sign := func(claims jwt.Claims) string {
		t.Helper()
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return raw
	}

	noExpiry := sign(AccessTokenClaims{
		CustomerID:       uuid.New(),
		Role:             enums.CustomerRoleCustomer,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer},
	})
	if _, err := NewVerifier(cfg).Parse(noExpiry); err == nil {
		t.Fatal("expected token without exp to be rejected")
	}

	badRole := sign(AccessTokenClaims{
		CustomerID: uuid.New(),
		Role:       "root",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if _, err := NewVerifier(cfg).Parse(badRole); err == nil || !strings.Contains(err.Error(), "invalid role") {
		t.Fatalf("expected role validation error, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, AccessTokenClaims{CustomerID: uuid.New(), Role: enums.CustomerRoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := NewVerifier(cfg).Parse(unsigned); err == nil {
		t.Fatal("expected alg none to be rejected")
	}
}

func TestVerifierWithoutSecret(t *testing.T) {
	if _, err := NewVerifier(config.JWTConfig{Issuer: "x"}).Parse("a.b.c"); err == nil {
		t.Fatal("expected missing secret error")
	}
}

// Package auth verifies storefront access tokens.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/freshmarket/storefront-backend/pkg/enums"
)

type AccessTokenPayload struct {
	CustomerID uuid.UUID
	Role       enums.CustomerRole
	JTI        string
}

// AccessTokenClaims is the JWT body presented by storefront clients.
type AccessTokenClaims struct {
	CustomerID uuid.UUID          `json:"customerId"`
	Role       enums.CustomerRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims pass; jwt.Parser calls it.
func (c AccessTokenClaims) Validate() error {
	if c.CustomerID == uuid.Nil {
		return fmt.Errorf("token missing customer id")
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("token carries invalid role %q", c.Role)
	}
	return nil
}

// Expiry returns the exp claim, or the zero time when absent.
func (c AccessTokenClaims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

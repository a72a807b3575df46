package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	ctxCustomerID  contextKey = "customer_id"
	ctxRole        contextKey = "actor_role"
	ctxCartSession contextKey = "cart_session"
	ctxToken       contextKey = "access_token"
)

// AccessToken identifies the bearer token behind the current request.
type AccessToken struct {
	ID        string
	ExpiresAt time.Time
}

// CustomerIDFromContext returns the authenticated customer, or uuid.Nil.
func CustomerIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxCustomerID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// CartSessionFromContext returns the cart cookie token seeded by CartSession.
func CartSessionFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCartSession).(string); ok {
		return v
	}
	return ""
}

// WithCustomerID injects the customer identifier into the context.
func WithCustomerID(ctx context.Context, customerID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCustomerID, customerID)
}

func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}

// WithCartSession injects the cart session token for downstream handlers.
func WithCartSession(ctx context.Context, token string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCartSession, token)
}

func WithAccessToken(ctx context.Context, token AccessToken) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxToken, token)
}

// AccessTokenFromContext returns the token reference stored by Auth.
func AccessTokenFromContext(ctx context.Context) (AccessToken, bool) {
	if ctx == nil {
		return AccessToken{}, false
	}
	token, ok := ctx.Value(ctxToken).(AccessToken)
	return token, ok
}

package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/freshmarket/storefront-backend/api/middleware"
	"github.com/freshmarket/storefront-backend/api/responses"
	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
	"github.com/freshmarket/storefront-backend/pkg/logger"
)

// TokenRevoker signs an access token out before it expires.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// Logout revokes the bearer token used for the request.
func Logout(revoker TokenRevoker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := middleware.AccessTokenFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		if token.ID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeBusinessRule, "token has no id and cannot be revoked"))
			return
		}
		if err := revoker.Revoke(r.Context(), token.ID, token.ExpiresAt); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke token"))
			return
		}
		responses.WriteSuccess(w, map[string]bool{"revoked": true})
	}
}

package middleware

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/freshmarket/storefront-backend/api/responses"
	"github.com/freshmarket/storefront-backend/pkg/config"
	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
	"github.com/freshmarket/storefront-backend/pkg/logger"
)

const (
	cartTokenBytes     = 32
	maxCartTokenLength = 128
)

// CartSession reads the opaque cart cookie, minting one when it is absent,
// and refreshes its expiry on every request.
func CartSession(cfg config.CartConfig, secure bool, logg *logger.Logger) func(http.Handler) http.Handler {
	name := strings.TrimSpace(cfg.CookieName)
	if name == "" {
		name = "fc_cart"
	}
	maxAge := int(cfg.TTL.Seconds())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if cookie, err := r.Cookie(name); err == nil {
				token = strings.TrimSpace(cookie.Value)
			}
			if len(token) > maxCartTokenLength {
				token = ""
			}
			if token == "" {
				minted, err := NewCartToken()
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint cart session"))
					return
				}
				token = minted
			}

			http.SetCookie(w, &http.Cookie{
				Name:     name,
				Value:    token,
				Path:     "/",
				MaxAge:   maxAge,
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})

			next.ServeHTTP(w, r.WithContext(WithCartSession(r.Context(), token)))
		})
	}
}

// NewCartToken returns a random base64url session token.
func NewCartToken() (string, error) {
	buf := make([]byte, cartTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating cart token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

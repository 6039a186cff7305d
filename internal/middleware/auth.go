package middleware

import (
	"context"
	"net/http"
	"strings"

	"lapizarra/backend/internal/httpjson"

	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog/hlog"
)

type ctxKey string

const authUserKey ctxKey = "authUser"

// TokenVerifier verifies Firebase ID tokens; *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type AuthUser struct {
	UID           string
	Email         string
	EmailVerified bool
	Claims        map[string]any
}

// Admin reports whether the token carries the admin custom claim.
func (u *AuthUser) Admin() bool {
	return u != nil && IsAdmin(u.Claims)
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > len("bearer ") && strings.EqualFold(h[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(h[len("bearer "):])
	}
	// Browsers cannot set headers on a websocket handshake.
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	return ""
}

func WithAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idToken := bearer(r)
			if idToken == "" {
				httpjson.Error(w, http.StatusUnauthorized, "missing Authorization: Bearer <token>")
				return
			}

			tok, err := verifier.VerifyIDToken(r.Context(), idToken)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("id token rejected")
				httpjson.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			au := &AuthUser{
				UID:    tok.UID,
				Claims: tok.Claims,
			}
			if v, ok := tok.Claims["email"].(string); ok {
				au.Email = strings.ToLower(strings.TrimSpace(v))
			}
			au.EmailVerified, _ = tok.Claims["email_verified"].(bool)

			ctx := context.WithValue(r.Context(), authUserKey, au)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after WithAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		au, ok := GetAuthUser(r.Context())
		if !ok || !au.Admin() {
			httpjson.Error(w, http.StatusForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetAuthUser(ctx context.Context) (*AuthUser, bool) {
	v := ctx.Value(authUserKey)
	if v == nil {
		return nil, false
	}
	au, ok := v.(*AuthUser)
	return au, ok
}

// ContextWithAuthUser is used by tests and internal callers that already
// hold a verified identity.
func ContextWithAuthUser(ctx context.Context, au *AuthUser) context.Context {
	return context.WithValue(ctx, authUserKey, au)
}

// IsAdmin checks if the user has admin role in their claims
func IsAdmin(claims map[string]any) bool {
	if claims == nil {
		return false
	}
	if admin, ok := claims["admin"].(bool); ok && admin {
		return true
	}
	if role, ok := claims["role"].(string); ok && role == "admin" {
		return true
	}
	return false
}

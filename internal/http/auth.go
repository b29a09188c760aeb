package httpapi

import (
	"context"
	"net/http"
	"strings"

	"fablab-backend-go/internal/models"
	"fablab-backend-go/internal/services"

	"github.com/jmoiron/sqlx"
)

type contextKey string

const ctxUser contextKey = "user"

const (
	msgAuthRequired = "Authentification requise"
	msgInvalidToken = "Token invalide ou expiré"
	msgForbidden    = "Accès refusé"
)

// Authenticate verifies the bearer token and loads the user. Deleted or
// deactivated accounts are rejected even with a valid token.
func Authenticate(db *sqlx.DB, tokens services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				WriteError(w, http.StatusUnauthorized, msgAuthRequired)
				return
			}
			claims, err := tokens.ParseToken(tokenStr)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, msgInvalidToken)
				return
			}
			user, err := services.GetUser(r.Context(), db, claims.UserID)
			if err != nil || !user.IsActive {
				WriteError(w, http.StatusUnauthorized, msgInvalidToken)
				return
			}
			ctx := context.WithValue(r.Context(), ctxUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

func CurrentUser(r *http.Request) (models.User, bool) {
	user, ok := r.Context().Value(ctxUser).(models.User)
	return user, ok
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := map[string]bool{}
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r)
			if !ok {
				WriteError(w, http.StatusUnauthorized, msgAuthRequired)
				return
			}
			if !allowed[user.Role] {
				WriteError(w, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var (
	RequireAdmin      = RequireRole(models.RoleAdmin, models.RoleSuperAdmin)
	RequireSuperAdmin = RequireRole(models.RoleSuperAdmin)
)

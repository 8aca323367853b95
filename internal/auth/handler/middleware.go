package handler

import (
	"net/http"
	"strings"

	"github.com/botiquin/botiquin-backend/internal/auth/jwt"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/httputil"
)

// Authenticator verifies the bearer token and populates the user
// context
func Authenticator(jwtManager *jwt.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				httputil.Error(w, errors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				httputil.Error(w, errors.Unauthorized("malformed authorization header"))
				return
			}

			claims, err := jwtManager.ValidateAccessToken(parts[1])
			if err != nil {
				httputil.Error(w, err)
				return
			}

			ctx := httputil.WithUserContext(r.Context(), claims.UserID, claims.Email, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles rejects requests whose authenticated role is not in the
// allowed set
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := httputil.GetUserRole(r.Context())
			if _, ok := allowed[role]; !ok {
				httputil.Error(w, errors.Forbidden("insufficient role"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

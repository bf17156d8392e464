package middleware

import (
	"net/http"

	"github.com/ordena-ai/ordena-backend/api/responses"
	pkgerrors "github.com/ordena-ai/ordena-backend/pkg/errors"
	"github.com/ordena-ai/ordena-backend/pkg/logger"
)

// RequireRole lets the request through only when the caller's member role is
// one of the listed roles.
func RequireRole(logg *logger.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current := RoleFromContext(r.Context())
			for _, role := range roles {
				if current == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
		})
	}
}

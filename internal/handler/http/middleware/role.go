package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cmlabs-hris/payroll-backend-go/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/jwt"
)

const (
	RoleOwner   = "owner"
	RoleManager = "manager"
)

// RequireRole allows the request when the token role is one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := jwt.ClaimsFromContext(r.Context())
			if err != nil {
				response.HandleError(w, err)
				return
			}

			if _, ok := allowed[claims.Role]; !ok {
				response.Forbidden(w, fmt.Sprintf("Insufficient permissions: requires one of [%s], but user role is '%s'",
					strings.Join(roles, ", "), claims.Role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/projectmaat/projectmaat/internal/rbac"
)

// Middleware validates the bearer token and attaches subject, role and the
// optional assessment scope to the request context. Auth failures carry the
// auth_error flag so clients can distinguish them from generic errors.
func Middleware(s *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "geen geldige sessie")
				return
			}
			claims, err := s.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "sessie verlopen of ongeldig")
				return
			}
			ctx := rbac.WithSubject(r.Context(), claims.Sub)
			ctx = rbac.WithRole(ctx, claims.Role)
			if claims.Name != "" {
				ctx = rbac.WithDisplayName(ctx, claims.Name)
			}
			if claims.AssessmentID != "" {
				ctx = rbac.WithAssessmentScope(ctx, claims.AssessmentID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"detail":     detail,
		"auth_error": true,
	})
}

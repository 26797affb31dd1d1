package http

import (
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/projectmaat/projectmaat/internal/rbac"
)

// requireAssessmentScope blocks reviewer sessions from touching any
// assessment other than the one their invite was issued for. Sessions
// without a scope (teachers, admins) pass through.
func requireAssessmentScope(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		scope := rbac.AssessmentScopeFromContext(r.Context())
		if scope != "" && scope != chi.URLParam(r, "assessmentID") {
			writeError(w, nethttp.StatusForbidden, "geen toegang tot deze beoordeling")
			return
		}
		next.ServeHTTP(w, r)
	})
}

package http

import (
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/projectmaat/projectmaat/internal/rbac"
	"github.com/projectmaat/projectmaat/internal/reflection"
)

// UpsertReflectionHandler lets the signed-in student write, or rewrite,
// their one reflection on an assessment.
func UpsertReflectionHandler(store reflection.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Body   string `json:"body" validate:"required"`
			Rating *int   `json:"rating"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}
		ref, err := store.UpsertReflection(r.Context(), reflection.Reflection{
			AssessmentID: chi.URLParam(r, "assessmentID"),
			StudentID:    rbac.SubjectFromContext(r.Context()),
			Body:         req.Body,
			Rating:       req.Rating,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, ref)
	}
}

func ListReflectionsHandler(store reflection.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		refs, err := store.ListReflections(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, refs)
	}
}

// GetReflectionHandler returns one student's reflection. Students only
// ever see their own; teachers see everyone's.
func GetReflectionHandler(store reflection.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		studentID := chi.URLParam(r, "studentID")
		ctx := r.Context()
		if !rbac.Allowed(rbac.RoleFromContext(ctx), "reflection:view-all") &&
			studentID != rbac.SubjectFromContext(ctx) {
			writeError(w, nethttp.StatusForbidden, "geen toegang tot deze reflectie")
			return
		}
		ref, err := store.GetReflection(ctx, chi.URLParam(r, "assessmentID"), studentID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, ref)
	}
}

func CreateCompetencyHandler(store reflection.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Name        string `json:"name" validate:"required"`
			Description string `json:"description"`
			Position    int    `json:"position"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}
		c, err := store.CreateCompetency(r.Context(), reflection.Competency{
			Name:        req.Name,
			Description: req.Description,
			Position:    req.Position,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, c)
	}
}

func ListCompetenciesHandler(store reflection.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		cs, err := store.ListCompetencies(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, cs)
	}
}

// UpsertScanScoresHandler records competency-scan ratings. A student
// fills in self scores for themself and peer scores for teammates;
// teachers may write either for anyone.
func UpsertScanScoresHandler(store reflection.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			StudentID string `json:"student_id"`
			Scores    []struct {
				CompetencyID string   `json:"competency_id" validate:"required"`
				SelfScore    *float64 `json:"self_score"`
				PeerScore    *float64 `json:"peer_score"`
			} `json:"scores" validate:"required,min=1,dive"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}

		ctx := r.Context()
		subject := rbac.SubjectFromContext(ctx)
		if req.StudentID == "" {
			req.StudentID = subject
		}
		if !rbac.Allowed(rbac.RoleFromContext(ctx), "reflection:view-all") && req.StudentID != subject {
			// rating a teammate: only the peer column is theirs to fill
			for _, sc := range req.Scores {
				if sc.SelfScore != nil {
					writeError(w, nethttp.StatusForbidden, "zelfscores kun je alleen voor jezelf invullen")
					return
				}
			}
		}

		assessmentID := chi.URLParam(r, "assessmentID")
		out := make([]reflection.CompetencyScore, 0, len(req.Scores))
		for _, sc := range req.Scores {
			saved, err := store.UpsertCompetencyScore(ctx, reflection.CompetencyScore{
				AssessmentID: assessmentID,
				StudentID:    req.StudentID,
				CompetencyID: sc.CompetencyID,
				SelfScore:    sc.SelfScore,
				PeerScore:    sc.PeerScore,
			})
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
			out = append(out, saved)
		}
		writeJSON(w, nethttp.StatusOK, out)
	}
}

// ScanResultsHandler returns the competency scan for an assessment:
// raw rows for one student when ?student_id= is given, otherwise the
// per-competency averages teachers open the conversation with.
func ScanResultsHandler(store reflection.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assessmentID := chi.URLParam(r, "assessmentID")
		studentID := r.URL.Query().Get("student_id")

		ctx := r.Context()
		if !rbac.Allowed(rbac.RoleFromContext(ctx), "reflection:view-all") {
			studentID = rbac.SubjectFromContext(ctx)
		}

		scores, err := store.ListCompetencyScores(ctx, assessmentID, studentID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if studentID != "" {
			writeJSON(w, nethttp.StatusOK, scores)
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"assessment_id": assessmentID,
			"competencies":  reflection.Summarize(scores),
		})
	}
}

package http

import (
	nethttp "net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/projectmaat/projectmaat/internal/assessment"
	"github.com/projectmaat/projectmaat/internal/audit"
	"github.com/projectmaat/projectmaat/internal/rbac"
)

func CreateRubricHandler(store assessment.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req assessment.Rubric
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if req.Name == "" {
			writeError(w, nethttp.StatusBadRequest, "name is verplicht")
			return
		}
		rub, err := store.CreateRubric(r.Context(), req)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, rub)
	}
}

func ListRubricsHandler(store assessment.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		rs, err := store.ListRubrics(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, rs)
	}
}

func GetRubricHandler(store assessment.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		rub, err := store.GetRubric(r.Context(), chi.URLParam(r, "rubricID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, rub)
	}
}

type assessmentReq struct {
	Title       string `json:"title" validate:"required"`
	RubricID    string `json:"rubric_id" validate:"required"`
	GradingMode string `json:"grading_mode" validate:"omitempty,oneof=team individual"`
}

func CreateAssessmentHandler(store assessment.Store, events *audit.EventRepo) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req assessmentReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}
		actor := rbac.SubjectFromContext(r.Context())
		a, err := store.Create(r.Context(), assessment.Assessment{
			CourseID:    chi.URLParam(r, "courseID"),
			Title:       req.Title,
			RubricID:    req.RubricID,
			GradingMode: req.GradingMode,
			CreatedBy:   actor,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		_ = events.Append(r.Context(), audit.EventAssessmentCreated, a.ID, actor,
			map[string]string{"title": a.Title, "course_id": a.CourseID})
		writeJSON(w, nethttp.StatusCreated, a)
	}
}

// ListAssessmentsHandler backs the project list page: q matches the
// title, status narrows to draft/published, sort takes title or one of
// the timestamps with order=desc flipping it.
func ListAssessmentsHandler(store assessment.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		q := r.URL.Query()
		opts := assessment.ListOpts{
			CourseID: chi.URLParam(r, "courseID"),
			Status:   q.Get("status"),
			Q:        q.Get("q"),
			Sort:     q.Get("sort"),
			Order:    q.Get("order"),
		}
		if q.Get("desc") == "true" {
			opts.Order = "desc"
		}
		if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
			opts.Limit = v
		}
		if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
			opts.Offset = v
		}
		as, err := store.List(r.Context(), opts)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, as)
	}
}

func GetAssessmentHandler(store assessment.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		a, err := store.Get(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, a)
	}
}

func UpdateAssessmentHandler(store assessment.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Title       string `json:"title"`
			GradingMode string `json:"grading_mode" validate:"omitempty,oneof=team individual"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}
		a, err := store.Update(r.Context(), assessment.Assessment{
			ID:          chi.URLParam(r, "assessmentID"),
			Title:       req.Title,
			GradingMode: req.GradingMode,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, a)
	}
}

func PublishAssessmentHandler(store assessment.Store, events *audit.EventRepo) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := chi.URLParam(r, "assessmentID")
		a, err := store.Publish(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		_ = events.Append(r.Context(), audit.EventAssessmentPublished, id,
			rbac.SubjectFromContext(r.Context()), map[string]int{"version": a.Version})
		writeJSON(w, nethttp.StatusOK, a)
	}
}

func DeleteAssessmentHandler(store assessment.Store, events *audit.EventRepo) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := chi.URLParam(r, "assessmentID")
		if err := store.Delete(r.Context(), id); err != nil {
			writeDomainError(w, r, err)
			return
		}
		_ = events.Append(r.Context(), audit.EventAssessmentDeleted, id,
			rbac.SubjectFromContext(r.Context()), nil)
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// ListEventsHandler exposes the audit trail for one assessment.
func ListEventsHandler(events *audit.EventRepo) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		es, err := events.List(r.Context(), chi.URLParam(r, "assessmentID"), limit)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, es)
	}
}

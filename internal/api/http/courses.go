package http

import (
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/projectmaat/projectmaat/internal/rbac"
	"github.com/projectmaat/projectmaat/internal/roster"
)

type courseReq struct {
	Name   string `json:"name" validate:"required"`
	Period string `json:"period"`
}

func CreateCourseHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req courseReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}
		c, err := store.CreateCourse(r.Context(), roster.Course{
			Name:      req.Name,
			Period:    req.Period,
			CreatedBy: rbac.SubjectFromContext(r.Context()),
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, c)
	}
}

// ListCoursesHandler shows a teacher their own courses and an admin all
// of them.
func ListCoursesHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		teacherID := rbac.SubjectFromContext(r.Context())
		if rbac.RoleFromContext(r.Context()) == "admin" {
			teacherID = ""
		}
		cs, err := store.ListCourses(r.Context(), teacherID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, cs)
	}
}

func GetCourseHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		c, err := store.GetCourse(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, c)
	}
}

func UpdateCourseHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if !ownsCourse(r, store) {
			writeError(w, nethttp.StatusForbidden, "geen toegang tot deze klas")
			return
		}
		var req courseReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}
		c, err := store.UpdateCourse(r.Context(), roster.Course{
			ID:     chi.URLParam(r, "courseID"),
			Name:   req.Name,
			Period: req.Period,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, c)
	}
}

func DeleteCourseHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if !ownsCourse(r, store) {
			writeError(w, nethttp.StatusForbidden, "geen toegang tot deze klas")
			return
		}
		if err := store.DeleteCourse(r.Context(), chi.URLParam(r, "courseID")); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// AddCourseTeachersHandler grants co-teachers access to a course.
func AddCourseTeachersHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if !ownsCourse(r, store) {
			writeError(w, nethttp.StatusForbidden, "geen toegang tot deze klas")
			return
		}
		var req struct {
			TeacherIDs []string `json:"teacher_ids" validate:"required,min=1"`
			Role       string   `json:"role"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}
		role := "co"
		if req.Role == "owner" {
			role = "owner"
		}
		courseID := chi.URLParam(r, "courseID")
		for _, id := range req.TeacherIDs {
			if id == "" {
				continue
			}
			if err := store.AddCourseTeacher(r.Context(), courseID, id, role); err != nil {
				writeDomainError(w, r, err)
				return
			}
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

func CourseAnalyticsHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		a, err := store.Analytics(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, a)
	}
}

// ownsCourse is the write guard: admins always pass, teachers only on
// courses they are attached to.
func ownsCourse(r *nethttp.Request, store roster.Store) bool {
	if rbac.RoleFromContext(r.Context()) == "admin" {
		return true
	}
	ok, err := store.IsCourseTeacher(r.Context(),
		chi.URLParam(r, "courseID"), rbac.SubjectFromContext(r.Context()))
	return err == nil && ok
}

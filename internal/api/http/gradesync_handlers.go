package http

import (
	"math"
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/projectmaat/projectmaat/internal/assessment"
	"github.com/projectmaat/projectmaat/internal/audit"
	"github.com/projectmaat/projectmaat/internal/gradesync"
	"github.com/projectmaat/projectmaat/internal/overview"
	"github.com/projectmaat/projectmaat/internal/rbac"
	"github.com/projectmaat/projectmaat/internal/roster"
)

// SyncGradesHandler pushes the assessment's final grades to the school
// system. Only published assessments with at least one scored row may
// sync; in team mode every member inherits the team's grade.
func SyncGradesHandler(ov *overview.Service, assessments assessment.Store, rosterStore roster.Store,
	syncer *gradesync.Syncer, events *audit.EventRepo) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if syncer == nil {
			writeError(w, nethttp.StatusServiceUnavailable, "koppeling met het schoolsysteem is niet geconfigureerd")
			return
		}
		a, err := assessments.Get(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if a.Status != assessment.StatusPublished {
			writeError(w, nethttp.StatusConflict, "alleen gepubliceerde beoordelingen kunnen worden doorgestuurd")
			return
		}

		m, err := ov.Build(r.Context(), a.ID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		grades, err := gradesFromMatrix(r, m, a.CourseID, rosterStore)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if len(grades) == 0 {
			writeError(w, nethttp.StatusUnprocessableEntity, "nog geen scores om door te sturen")
			return
		}

		rep, err := syncer.SyncGrades(r.Context(), gradesync.SyncRequest{
			AssessmentID: a.ID,
			CourseRef:    a.CourseID,
			Title:        a.Title,
			ScaleMax:     float64(m.ScaleMax),
			Grades:       grades,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		_ = events.Append(r.Context(), audit.EventGradesSynced, a.ID,
			rbac.SubjectFromContext(r.Context()),
			map[string]int{"synced": rep.Synced, "failed": rep.Failed})
		writeJSON(w, nethttp.StatusOK, rep)
	}
}

// gradesFromMatrix flattens the grid to one grade per student. Rows
// without any score are skipped rather than pushed as zeros.
func gradesFromMatrix(r *nethttp.Request, m overview.Matrix, courseID string, rosterStore roster.Store) ([]gradesync.StudentGrade, error) {
	if m.GradingMode == assessment.GradingModeIndividual {
		students, err := rosterStore.ListStudents(r.Context(), courseID)
		if err != nil {
			return nil, err
		}
		numbers := make(map[string]string, len(students))
		for _, st := range students {
			numbers[st.ID] = st.Number
		}
		var out []gradesync.StudentGrade
		for _, row := range m.Rows {
			if row.Average == nil || row.StudentID == "" {
				continue
			}
			out = append(out, gradesync.StudentGrade{
				StudentID:     row.StudentID,
				StudentNumber: numbers[row.StudentID],
				Grade:         round1(*row.Average),
			})
		}
		return out, nil
	}

	teams, err := rosterStore.ListTeams(r.Context(), courseID)
	if err != nil {
		return nil, err
	}
	members := make(map[int][]roster.Student, len(teams))
	for _, t := range teams {
		members[t.TeamNumber] = t.Members
	}
	var out []gradesync.StudentGrade
	for _, row := range m.Rows {
		if row.Average == nil {
			continue
		}
		grade := round1(*row.Average)
		for _, st := range members[row.TeamNumber] {
			out = append(out, gradesync.StudentGrade{
				StudentID:     st.ID,
				StudentNumber: st.Number,
				Grade:         grade,
			})
		}
	}
	return out, nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// GradeSyncStatusHandler reports per-student delivery status, so a
// teacher can see who still needs a retry.
func GradeSyncStatusHandler(store gradesync.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if store == nil {
			writeError(w, nethttp.StatusServiceUnavailable, "koppeling met het schoolsysteem is niet geconfigureerd")
			return
		}
		sts, err := store.Statuses(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, sts)
	}
}

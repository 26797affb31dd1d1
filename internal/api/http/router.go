package http

import (
	"database/sql"
	"log/slog"
	nethttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/projectmaat/projectmaat/internal/assessment"
	"github.com/projectmaat/projectmaat/internal/audit"
	"github.com/projectmaat/projectmaat/internal/auth"
	"github.com/projectmaat/projectmaat/internal/gradesync"
	"github.com/projectmaat/projectmaat/internal/invite"
	"github.com/projectmaat/projectmaat/internal/notes"
	"github.com/projectmaat/projectmaat/internal/overview"
	"github.com/projectmaat/projectmaat/internal/rbac"
	"github.com/projectmaat/projectmaat/internal/reflection"
	"github.com/projectmaat/projectmaat/internal/roster"
	"github.com/projectmaat/projectmaat/internal/storage"
)

// Deps bundles everything the router mounts. Grades and GradeStatus
// stay nil when no SIS is configured; the sync endpoints then answer
// 503 instead of disappearing.
type Deps struct {
	DB          *sql.DB
	Auth        *auth.Service
	Roster      roster.Store
	Assessments assessment.Store
	Notes       notes.Store
	Reflections reflection.Store
	Invites     *invite.Service
	Overview    *overview.Service
	Blobs       storage.BlobStore
	Events      *audit.EventRepo
	Grades      *gradesync.Syncer
	GradeStatus gradesync.Store
	Log         *slog.Logger
	CORSOrigins []string
}

// NewRouter assembles the full API. Route permissions follow the rbac
// policy; reviewer sessions are additionally pinned to one assessment
// by requireAssessmentScope.
func NewRouter(d Deps) chi.Router {
	if d.Log == nil {
		d.Log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(d.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) { w.WriteHeader(nethttp.StatusOK) })
	r.Get("/readyz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := d.DB.PingContext(r.Context()); err != nil {
			w.WriteHeader(nethttp.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(nethttp.StatusOK)
	})

	r.Route("/api", func(api chi.Router) {
		// public: login and invite acceptance happen without a session
		api.Post("/login", LoginHandler(d.Auth, d.DB))
		api.Post("/invites/accept", AcceptInviteHandler(d.Auth, d.Invites))

		api.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(d.Auth))

			pr.With(rbac.Require("user:change_password")).
				Post("/users/change-password", ChangePasswordHandler(d.DB))

			// courses and everything enrolled in them
			pr.With(rbac.Require("course:create")).Post("/courses", CreateCourseHandler(d.Roster))
			pr.With(rbac.Require("course:view")).Get("/courses", ListCoursesHandler(d.Roster))
			pr.Route("/courses/{courseID}", func(cr chi.Router) {
				cr.With(rbac.Require("course:view")).Get("/", GetCourseHandler(d.Roster))
				cr.With(rbac.Require("course:edit")).Put("/", UpdateCourseHandler(d.Roster))
				cr.With(rbac.Require("course:delete")).Delete("/", DeleteCourseHandler(d.Roster))
				cr.With(rbac.Require("course:edit")).Post("/teachers", AddCourseTeachersHandler(d.Roster))
				cr.With(rbac.Require("course:view")).Get("/analytics", CourseAnalyticsHandler(d.Roster))

				cr.With(rbac.Require("student:create")).Post("/students", CreateStudentHandler(d.Roster))
				cr.With(rbac.Require("student:view")).Get("/students", ListStudentsHandler(d.Roster))
				cr.With(rbac.Require("student:import")).Post("/students/import", ImportStudentsHandler(d.Roster))

				cr.With(rbac.Require("team:create")).Post("/teams", CreateTeamHandler(d.Roster))
				cr.With(rbac.Require("team:view")).Get("/teams", ListTeamsHandler(d.Roster))

				cr.With(rbac.Require("assessment:create")).Post("/assessments", CreateAssessmentHandler(d.Assessments, d.Events))
				cr.With(rbac.Require("assessment:view")).Get("/assessments", ListAssessmentsHandler(d.Assessments))
			})

			pr.With(rbac.Require("student:delete")).Delete("/students/{studentID}", DeleteStudentHandler(d.Roster))

			pr.Route("/teams/{teamID}", func(tr chi.Router) {
				tr.With(rbac.Require("team:view")).Get("/", GetTeamHandler(d.Roster))
				tr.With(rbac.Require("team:edit")).Put("/", RenameTeamHandler(d.Roster))
				tr.With(rbac.Require("team:delete")).Delete("/", DeleteTeamHandler(d.Roster))
				tr.With(rbac.Require("team:edit")).Put("/members", SetTeamMembersHandler(d.Roster))
			})

			pr.With(rbac.Require("assessment:create")).Post("/rubrics", CreateRubricHandler(d.Assessments))
			pr.With(rbac.Require("assessment:view")).Get("/rubrics", ListRubricsHandler(d.Assessments))
			pr.With(rbac.Require("assessment:view")).Get("/rubrics/{rubricID}", GetRubricHandler(d.Assessments))

			pr.Route("/assessments/{assessmentID}", func(ar chi.Router) {
				ar.Use(requireAssessmentScope)

				ar.With(rbac.Require("assessment:view")).Get("/", GetAssessmentHandler(d.Assessments))
				ar.With(rbac.Require("assessment:edit")).Put("/", UpdateAssessmentHandler(d.Assessments))
				ar.With(rbac.Require("assessment:publish")).Post("/publish", PublishAssessmentHandler(d.Assessments, d.Events))
				ar.With(rbac.Require("assessment:delete")).Delete("/", DeleteAssessmentHandler(d.Assessments, d.Events))
				ar.With(rbac.Require("audit:view")).Get("/events", ListEventsHandler(d.Events))

				ar.With(rbac.Require("overview:view")).Get("/scores", ListScoresHandler(d.Assessments))
				ar.With(rbac.Require("scores:edit")).Put("/scores", UpdateScoreHandler(d.Assessments, d.Events))
				ar.With(rbac.Require("scores:edit")).Post("/scores/batch", BatchUpdateScoresHandler(d.Assessments, d.Events))

				ar.With(rbac.Require("overview:view")).Get("/overview", OverviewHandler(d.Overview))
				ar.With(rbac.Require("export:run")).Get("/export", ExportHandler(d.Overview))

				ar.With(rbac.Require("submission:create")).Post("/submissions", UploadSubmissionHandler(d.Assessments, d.Blobs))
				ar.With(rbac.Require("submission:view")).Get("/submissions", ListSubmissionsHandler(d.Assessments))

				ar.With(rbac.Require("reflection:create")).Put("/reflection", UpsertReflectionHandler(d.Reflections))
				ar.With(rbac.Require("reflection:view-all")).Get("/reflections", ListReflectionsHandler(d.Reflections))
				ar.With(rbac.RequireAny("reflection:view-all", "reflection:view-own")).
					Get("/reflections/{studentID}", GetReflectionHandler(d.Reflections))

				ar.With(rbac.Require("competency:score")).Put("/scan", UpsertScanScoresHandler(d.Reflections))
				ar.With(rbac.Require("competency:score")).Get("/scan", ScanResultsHandler(d.Reflections))

				ar.With(rbac.Require("invite:create")).Post("/invites", CreateInviteHandler(d.Invites, d.Assessments))
				ar.With(rbac.Require("invite:view")).Get("/invites", ListInvitesHandler(d.Invites))

				ar.With(rbac.Require("gradesync:run")).Post("/sync-grades",
					SyncGradesHandler(d.Overview, d.Assessments, d.Roster, d.Grades, d.Events))
				ar.With(rbac.Require("gradesync:run")).Get("/sync-grades", GradeSyncStatusHandler(d.GradeStatus))
			})

			pr.With(rbac.Require("submission:view")).
				Get("/submissions/{submissionID}/file", DownloadSubmissionHandler(d.Assessments, d.Blobs))

			pr.With(rbac.Require("invite:revoke")).Post("/invites/{inviteID}/revoke", RevokeInviteHandler(d.Invites))

			pr.With(rbac.Require("note:create")).Post("/notes", CreateNoteHandler(d.Notes))
			pr.With(rbac.Require("note:view")).Get("/notes", ListNotesHandler(d.Notes))
			pr.With(rbac.Require("note:view")).Get("/notes/export", ExportNotesHandler(d.Notes))
			pr.With(rbac.Require("note:view")).Get("/notes/{noteID}", GetNoteHandler(d.Notes))
			pr.With(rbac.Require("note:edit")).Put("/notes/{noteID}", UpdateNoteHandler(d.Notes))
			pr.With(rbac.Require("note:delete")).Delete("/notes/{noteID}", DeleteNoteHandler(d.Notes))

			pr.With(rbac.Require("competency:manage")).Post("/competencies", CreateCompetencyHandler(d.Reflections))
			pr.With(rbac.RequireAny("competency:manage", "competency:score")).
				Get("/competencies", ListCompetenciesHandler(d.Reflections))
		})
	})

	return r
}

// requestLogger logs one line per request through slog, replacing chi's
// stdlib logger so request logs share the handler everything else uses.
func requestLogger(log *slog.Logger) func(nethttp.Handler) nethttp.Handler {
	return func(next nethttp.Handler) nethttp.Handler {
		return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

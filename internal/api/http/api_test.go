package http_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	api "github.com/projectmaat/projectmaat/internal/api/http"
	"github.com/projectmaat/projectmaat/internal/assessment"
	"github.com/projectmaat/projectmaat/internal/audit"
	"github.com/projectmaat/projectmaat/internal/auth"
	"github.com/projectmaat/projectmaat/internal/db"
	"github.com/projectmaat/projectmaat/internal/email"
	"github.com/projectmaat/projectmaat/internal/gradesync"
	"github.com/projectmaat/projectmaat/internal/invite"
	"github.com/projectmaat/projectmaat/internal/notes"
	"github.com/projectmaat/projectmaat/internal/overview"
	"github.com/projectmaat/projectmaat/internal/reflection"
	"github.com/projectmaat/projectmaat/internal/roster"
	"github.com/projectmaat/projectmaat/internal/storage"
)

// env wires the full API against an in-memory sqlite DB, a console
// mailer and a fake SIS, the way cmd/api does against real ones.
type env struct {
	t      *testing.T
	srv    *httptest.Server
	dbh    *sql.DB
	mailer *email.ConsoleMailer
	sis    *fakeSIS
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(strings.ToLower(t.Name()), "/", "_"))
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })

	seedUser(t, dbh, "u-docent", "docent", "wachtwoord123", "teacher", "M. Jansen")
	seedUser(t, dbh, "u-leerling", "leerling", "wachtwoord123", "student", "Sam de Vries")

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	mailer := email.NewConsoleMailer(quiet, mail.Address{Name: "ProjectMaat", Address: "noreply@projectmaat.example"})

	fs := &fakeSIS{}
	sisSrv := httptest.NewServer(fs.handler())
	t.Cleanup(sisSrv.Close)
	sisClient := gradesync.NewClient(gradesync.ClientConfig{
		BaseURL:     sisSrv.URL,
		StaticToken: "sis-token",
		Timeout:     5 * time.Second,
	})

	blobs, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}

	assessStore := assessment.NewSQLStore(dbh)
	rosterStore := roster.NewSQLStore(dbh)
	gsStore := gradesync.NewSQLStore(dbh)

	r := api.NewRouter(api.Deps{
		DB:          dbh,
		Auth:        auth.NewService("test-secret", time.Hour),
		Roster:      rosterStore,
		Assessments: assessStore,
		Notes:       notes.NewSQLStore(dbh),
		Reflections: reflection.NewSQLStore(dbh),
		Invites:     invite.NewService(invite.NewSQLStore(dbh), mailer, "http://localhost:3000", 7*24*time.Hour),
		Overview:    overview.NewService(assessStore, rosterStore),
		Blobs:       blobs,
		Events:      audit.NewEventRepo(dbh),
		Grades:      gradesync.New(gsStore, sisClient, nil),
		GradeStatus: gsStore,
		Log:         quiet,
		CORSOrigins: []string{"http://localhost:3000"},
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &env{t: t, srv: srv, dbh: dbh, mailer: mailer, sis: fs}
}

func seedUser(t *testing.T, dbh *sql.DB, id, username, password, role, name string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if _, err := dbh.Exec(
		`INSERT INTO users (id,username,password_hash,role,display_name,created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		id, username, string(hash), role, name, time.Now().Unix()); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
}

// fakeSIS plays the school system: an empty column list, column
// creation, and a grade endpoint that records every post.
type fakeSIS struct {
	mu     sync.Mutex
	grades []gradePost
}

type gradePost struct {
	StudentNumber string  `json:"studentNumber"`
	Grade         float64 `json:"grade"`
	ScaleMax      float64 `json:"scaleMax"`
}

func (f *fakeSIS) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /courses/{ref}/columns", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("POST /courses/{ref}/columns", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Label      string  `json:"label"`
			ScaleMax   float64 `json:"scaleMax"`
			ResourceID string  `json:"resourceId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "col-1", "label": req.Label, "resourceId": req.ResourceID, "scaleMax": req.ScaleMax,
		})
	})
	mux.HandleFunc("POST /columns/col-1/grades", func(w http.ResponseWriter, r *http.Request) {
		var g gradePost
		_ = json.NewDecoder(r.Body).Decode(&g)
		f.mu.Lock()
		f.grades = append(f.grades, g)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (f *fakeSIS) posted() []gradePost {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]gradePost, len(f.grades))
	copy(out, f.grades)
	return out
}

// apiClient is a thin JSON client for one session.
type apiClient struct {
	t     *testing.T
	base  string
	token string
}

func (e *env) login(username, password string) *apiClient {
	e.t.Helper()
	c := &apiClient{t: e.t, base: e.srv.URL}
	var out struct {
		Token string `json:"token"`
	}
	c.doJSON(http.MethodPost, "/api/login", map[string]string{
		"username": username, "password": password,
	}, http.StatusOK, &out)
	c.token = out.Token
	return c
}

func (e *env) reviewer(token string) *apiClient {
	return &apiClient{t: e.t, base: e.srv.URL, token: token}
}

// doJSON sends body (if any) as JSON, requires the wanted status and
// decodes the response into out (if any). It returns the raw body for
// error-envelope assertions.
func (c *apiClient) doJSON(method, path string, body any, want int, out any) []byte {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal request: %v", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	if res.StatusCode != want {
		c.t.Fatalf("%s %s: status %d, want %d (body: %s)", method, path, res.StatusCode, want, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			c.t.Fatalf("%s %s: decode response: %v (body: %s)", method, path, err, data)
		}
	}
	return data
}

// raw sends a request with an arbitrary body and returns the response.
func (c *apiClient) raw(method, path, contentType string, body io.Reader) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return res
}

type idResp struct {
	ID string `json:"id"`
}

// buildCourse creates a course with four students in two teams and
// returns the ids the flow tests need.
func buildCourse(tc *apiClient) (courseID string, teamIDs []string, studentIDs map[string]string) {
	tc.t.Helper()

	var course idResp
	tc.doJSON(http.MethodPost, "/api/courses",
		map[string]string{"name": "3HV2", "period": "Periode 2"}, http.StatusCreated, &course)

	var imported map[string]int
	tc.doJSON(http.MethodPost, "/api/courses/"+course.ID+"/students/import", []map[string]string{
		{"number": "1001", "full_name": "Anna Berg"},
		{"number": "1002", "full_name": "Bas Dekker"},
		{"number": "1003", "full_name": "Carla Smit"},
		{"number": "1004", "full_name": "Daan de Wit"},
	}, http.StatusOK, &imported)
	if imported["imported"] != 4 {
		tc.t.Fatalf("imported = %d, want 4", imported["imported"])
	}

	var students []struct {
		ID     string `json:"id"`
		Number string `json:"number"`
	}
	tc.doJSON(http.MethodGet, "/api/courses/"+course.ID+"/students", nil, http.StatusOK, &students)
	studentIDs = map[string]string{}
	for _, st := range students {
		studentIDs[st.Number] = st.ID
	}

	var team1, team2 idResp
	tc.doJSON(http.MethodPost, "/api/courses/"+course.ID+"/teams",
		map[string]any{"name": "De Uitvinders", "team_number": 1}, http.StatusCreated, &team1)
	tc.doJSON(http.MethodPost, "/api/courses/"+course.ID+"/teams",
		map[string]any{"name": "Moonshot", "team_number": 2}, http.StatusCreated, &team2)
	tc.doJSON(http.MethodPut, "/api/teams/"+team1.ID+"/members",
		map[string]any{"student_ids": []string{studentIDs["1001"], studentIDs["1002"]}}, http.StatusOK, nil)
	tc.doJSON(http.MethodPut, "/api/teams/"+team2.ID+"/members",
		map[string]any{"student_ids": []string{studentIDs["1003"], studentIDs["1004"]}}, http.StatusOK, nil)

	return course.ID, []string{team1.ID, team2.ID}, studentIDs
}

type rubricResp struct {
	ID       string `json:"id"`
	Criteria []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"criteria"`
}

func buildAssessment(tc *apiClient, courseID, mode string) (assessmentID string, rubric rubricResp) {
	tc.t.Helper()
	tc.doJSON(http.MethodPost, "/api/rubrics", map[string]any{
		"name": "Eindproject", "scale_min": 1, "scale_max": 10,
		"criteria": []map[string]any{{"name": "Onderzoek"}, {"name": "Presentatie"}},
	}, http.StatusCreated, &rubric)

	var a idResp
	tc.doJSON(http.MethodPost, "/api/courses/"+courseID+"/assessments", map[string]string{
		"title": "Eindproject Periode 2", "rubric_id": rubric.ID, "grading_mode": mode,
	}, http.StatusCreated, &a)
	return a.ID, rubric
}

func TestTeacherScoringFlow(t *testing.T) {
	e := newEnv(t)
	tc := e.login("docent", "wachtwoord123")

	courseID, _, _ := buildCourse(tc)
	aid, rubric := buildAssessment(tc, courseID, "team")
	c1, c2 := rubric.Criteria[0].ID, rubric.Criteria[1].ID

	// one cell
	tc.doJSON(http.MethodPut, "/api/assessments/"+aid+"/scores",
		map[string]any{"criterion_id": c1, "team_number": 1, "value": 8.0}, http.StatusOK, nil)

	// out of range writes nothing and names the scale
	body := tc.doJSON(http.MethodPut, "/api/assessments/"+aid+"/scores",
		map[string]any{"criterion_id": c2, "team_number": 1, "value": 12.0},
		http.StatusUnprocessableEntity, nil)
	if !strings.Contains(string(body), "buiten de schaal 1-10") {
		t.Fatalf("422 detail should name the scale, got %s", body)
	}

	// autosave batch
	tc.doJSON(http.MethodPost, "/api/assessments/"+aid+"/scores/batch", map[string]any{
		"updates": []map[string]any{
			{"criterion_id": c2, "team_number": 1, "value": 7.0},
			{"criterion_id": c1, "team_number": 2, "value": 6.0},
		},
	}, http.StatusOK, nil)

	// a single bad value rejects the whole batch
	tc.doJSON(http.MethodPost, "/api/assessments/"+aid+"/scores/batch", map[string]any{
		"updates": []map[string]any{
			{"criterion_id": c2, "team_number": 2, "value": 5.0},
			{"criterion_id": c1, "team_number": 1, "value": 11.0},
		},
	}, http.StatusUnprocessableEntity, nil)

	var scores []struct {
		Value float64 `json:"value"`
	}
	tc.doJSON(http.MethodGet, "/api/assessments/"+aid+"/scores", nil, http.StatusOK, &scores)
	if len(scores) != 3 {
		t.Fatalf("got %d scores, want 3 (rejected batch must not write partially)", len(scores))
	}

	// overview aggregates describe exactly the scored cells
	var ov struct {
		Columns []struct {
			Average *float64 `json:"average"`
			Min     *float64 `json:"min"`
			Max     *float64 `json:"max"`
		} `json:"columns"`
		Rows []struct {
			TeamName string   `json:"team_name"`
			Average  *float64 `json:"average"`
			Missing  int      `json:"missing"`
		} `json:"rows"`
		Overall *float64 `json:"overall"`
	}
	tc.doJSON(http.MethodGet, "/api/assessments/"+aid+"/overview", nil, http.StatusOK, &ov)
	if len(ov.Rows) != 2 || len(ov.Columns) != 2 {
		t.Fatalf("overview %dx%d, want 2x2", len(ov.Rows), len(ov.Columns))
	}
	if ov.Rows[0].TeamName != "De Uitvinders" || *ov.Rows[0].Average != 7.5 {
		t.Fatalf("row 1 = %s avg %v, want De Uitvinders 7.5", ov.Rows[0].TeamName, ov.Rows[0].Average)
	}
	if ov.Rows[1].Missing != 1 {
		t.Fatalf("row 2 missing = %d, want 1", ov.Rows[1].Missing)
	}
	if *ov.Columns[0].Average != 7.0 || *ov.Columns[0].Min != 6.0 || *ov.Columns[0].Max != 8.0 {
		t.Fatalf("column 1 aggregates avg=%v min=%v max=%v", ov.Columns[0].Average, ov.Columns[0].Min, ov.Columns[0].Max)
	}
	if *ov.Overall != 7.0 {
		t.Fatalf("overall = %v, want 7.0", *ov.Overall)
	}

	// the incomplete filter recomputes the footer over visible rows
	tc.doJSON(http.MethodGet, "/api/assessments/"+aid+"/overview?incomplete=true", nil, http.StatusOK, &ov)
	if len(ov.Rows) != 1 || ov.Rows[0].TeamName != "Moonshot" {
		t.Fatalf("incomplete filter kept %d rows", len(ov.Rows))
	}
	if *ov.Overall != 6.0 {
		t.Fatalf("filtered overall = %v, want 6.0", *ov.Overall)
	}

	// CSV export
	res := tc.raw(http.MethodGet, "/api/assessments/"+aid+"/export", "", nil)
	defer res.Body.Close()
	csvBody, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("export: status %d", res.StatusCode)
	}
	if cd := res.Header.Get("Content-Disposition"); !strings.Contains(cd, "eindproject-periode-2.csv") {
		t.Fatalf("export filename: %s", cd)
	}
	if !strings.Contains(string(csvBody), "Team,Onderzoek,Presentatie,Gemiddelde") ||
		!strings.Contains(string(csvBody), "De Uitvinders,8.0,7.0,7.5") {
		t.Fatalf("unexpected CSV:\n%s", csvBody)
	}

	// audit trail recorded the mutations
	var events []struct {
		Type string `json:"type"`
	}
	tc.doJSON(http.MethodGet, "/api/assessments/"+aid+"/events", nil, http.StatusOK, &events)
	if len(events) < 3 {
		t.Fatalf("got %d events, want at least create + score + batch", len(events))
	}

	// sync refuses drafts
	tc.doJSON(http.MethodPost, "/api/assessments/"+aid+"/sync-grades", nil, http.StatusConflict, nil)

	// publish is one-way and freezes the grading mode
	var published struct {
		Status string `json:"status"`
	}
	tc.doJSON(http.MethodPost, "/api/assessments/"+aid+"/publish", nil, http.StatusOK, &published)
	if published.Status != "published" {
		t.Fatalf("status = %s after publish", published.Status)
	}
	tc.doJSON(http.MethodPost, "/api/assessments/"+aid+"/publish", nil, http.StatusConflict, nil)
	tc.doJSON(http.MethodPut, "/api/assessments/"+aid,
		map[string]string{"grading_mode": "individual"}, http.StatusBadRequest, nil)

	// grade sync: team averages fan out to members
	var rep struct {
		Synced int `json:"synced"`
		Failed int `json:"failed"`
	}
	tc.doJSON(http.MethodPost, "/api/assessments/"+aid+"/sync-grades", nil, http.StatusOK, &rep)
	if rep.Synced != 4 || rep.Failed != 0 {
		t.Fatalf("sync report %+v, want 4 synced", rep)
	}
	posts := e.sis.posted()
	if len(posts) != 4 {
		t.Fatalf("SIS received %d grades, want 4", len(posts))
	}
	byNumber := map[string]float64{}
	for _, p := range posts {
		byNumber[p.StudentNumber] = p.Grade
	}
	if byNumber["1001"] != 7.5 || byNumber["1002"] != 7.5 {
		t.Fatalf("team 1 members got %v/%v, want 7.5", byNumber["1001"], byNumber["1002"])
	}
	if byNumber["1003"] != 6.0 || byNumber["1004"] != 6.0 {
		t.Fatalf("team 2 members got %v/%v, want 6.0", byNumber["1003"], byNumber["1004"])
	}

	var statuses []struct {
		Status string `json:"status"`
	}
	tc.doJSON(http.MethodGet, "/api/assessments/"+aid+"/sync-grades", nil, http.StatusOK, &statuses)
	if len(statuses) != 4 {
		t.Fatalf("got %d sync statuses, want 4", len(statuses))
	}
	for _, st := range statuses {
		if st.Status != "ok" {
			t.Fatalf("sync status = %s, want ok", st.Status)
		}
	}
}

func TestSubmissionUploadAndDownload(t *testing.T) {
	e := newEnv(t)
	tc := e.login("docent", "wachtwoord123")

	courseID, teamIDs, _ := buildCourse(tc)
	aid, _ := buildAssessment(tc, courseID, "team")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "verslag.pdf")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write([]byte("%PDF-1.7 eindverslag")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.WriteField("team_id", teamIDs[0]); err != nil {
		t.Fatalf("write field: %v", err)
	}
	mw.Close()

	res := tc.raw(http.MethodPost, "/api/assessments/"+aid+"/submissions", mw.FormDataContentType(), &buf)
	data, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("upload: status %d (body %s)", res.StatusCode, data)
	}
	var sub struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
	}
	if err := json.Unmarshal(data, &sub); err != nil {
		t.Fatalf("decode submission: %v", err)
	}
	if sub.Filename != "verslag.pdf" || sub.Size == 0 {
		t.Fatalf("submission meta %+v", sub)
	}

	var listed []idResp
	tc.doJSON(http.MethodGet, "/api/assessments/"+aid+"/submissions", nil, http.StatusOK, &listed)
	if len(listed) != 1 {
		t.Fatalf("listed %d submissions, want 1", len(listed))
	}

	dl := tc.raw(http.MethodGet, "/api/submissions/"+sub.ID+"/file", "", nil)
	defer dl.Body.Close()
	content, _ := io.ReadAll(dl.Body)
	if dl.StatusCode != http.StatusOK {
		t.Fatalf("download: status %d", dl.StatusCode)
	}
	if string(content) != "%PDF-1.7 eindverslag" {
		t.Fatalf("download content %q", content)
	}
	if cd := dl.Header.Get("Content-Disposition"); !strings.Contains(cd, "verslag.pdf") {
		t.Fatalf("download disposition %q", cd)
	}

	// missing upload → multipart without file part
	var buf2 bytes.Buffer
	mw2 := multipart.NewWriter(&buf2)
	_ = mw2.WriteField("team_id", teamIDs[0])
	mw2.Close()
	res2 := tc.raw(http.MethodPost, "/api/assessments/"+aid+"/submissions", mw2.FormDataContentType(), &buf2)
	res2.Body.Close()
	if res2.StatusCode != http.StatusBadRequest {
		t.Fatalf("upload without file: status %d, want 400", res2.StatusCode)
	}
}

// Package dashboard is the Go client for the Projectmaat platform API:
// course lists, scoring overviews, debounced score autosave, OMZA
// notes, exports and reviewer invitations.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

type scaleRange struct{ min, max int }

type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger

	mu      sync.Mutex
	session *Session
	gen     map[string]uint64     // per-assessment refresh generation
	scales  map[string]scaleRange // rubric scale per assessment, learned from Overview
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithSession resumes a previously obtained session (e.g. from a saved
// token) without calling Login again.
func WithSession(s Session) Option {
	return func(c *Client) { c.session = &s }
}

// WithLogger sets the logger used for non-critical failures that
// degrade instead of erroring (see SubjectNotes).
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     slog.Default(),
		gen:     map[string]uint64{},
		scales:  map[string]scaleRange{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the active session, or nil when not logged in.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.Token
}

// Login authenticates with username and password and keeps the session
// for subsequent calls.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/api/login", false,
		map[string]string{"username": username, "password": password}, &s)
	if err != nil {
		return Session{}, err
	}
	c.mu.Lock()
	c.session = &s
	c.mu.Unlock()
	return s, nil
}

// AcceptInvite exchanges a reviewer invite token for a session scoped
// to a single assessment.
func (c *Client) AcceptInvite(ctx context.Context, token string) (Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/api/invites/accept", false,
		map[string]string{"token": token}, &s)
	if err != nil {
		return Session{}, err
	}
	c.mu.Lock()
	c.session = &s
	c.mu.Unlock()
	return s, nil
}

func (c *Client) Courses(ctx context.Context) ([]Course, error) {
	var out []Course
	err := c.do(ctx, http.MethodGet, "/api/courses", true, nil, &out)
	return out, err
}

func (c *Client) CourseAnalytics(ctx context.Context, courseID string) (Analytics, error) {
	var out Analytics
	err := c.do(ctx, http.MethodGet, "/api/courses/"+url.PathEscape(courseID)+"/analytics", true, nil, &out)
	return out, err
}

func (c *Client) Assessments(ctx context.Context, courseID string) ([]Assessment, error) {
	var out []Assessment
	err := c.do(ctx, http.MethodGet, "/api/courses/"+url.PathEscape(courseID)+"/assessments", true, nil, &out)
	return out, err
}

// Overview fetches the scoring grid, optionally filtered and sorted.
func (c *Client) Overview(ctx context.Context, assessmentID string, f OverviewFilter) (Overview, error) {
	q := url.Values{}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.IncompleteOnly {
		q.Set("incomplete", "true")
	}
	if f.SortBy != "" {
		q.Set("sort", f.SortBy)
	}
	if f.Desc {
		q.Set("desc", "true")
	}
	path := "/api/assessments/" + url.PathEscape(assessmentID) + "/overview"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out Overview
	err := c.do(ctx, http.MethodGet, path, true, nil, &out)
	if err == nil {
		c.mu.Lock()
		c.scales[assessmentID] = scaleRange{min: out.ScaleMin, max: out.ScaleMax}
		c.mu.Unlock()
	}
	return out, err
}

// RefreshOverview fetches the grid while dropping stale responses:
// when a newer refresh for the same assessment started after this one,
// the result arrives with ok=false and must not be rendered.
func (c *Client) RefreshOverview(ctx context.Context, assessmentID string, f OverviewFilter) (Overview, bool, error) {
	c.mu.Lock()
	c.gen[assessmentID]++
	mine := c.gen[assessmentID]
	c.mu.Unlock()

	ov, err := c.Overview(ctx, assessmentID, f)

	c.mu.Lock()
	stale := c.gen[assessmentID] != mine
	c.mu.Unlock()

	if err != nil {
		return Overview{}, false, err
	}
	if stale {
		return Overview{}, false, nil
	}
	return ov, true, nil
}

// UpdateScore writes one cell. The value is rounded to the nearest
// whole score first, the way the cell editor submits on blur/Enter.
// When the rubric scale is known from an earlier Overview fetch, an
// out-of-range value returns a *RangeError without any HTTP call.
func (c *Client) UpdateScore(ctx context.Context, assessmentID string, u ScoreUpdate) (Score, error) {
	u = roundUpdate(u)
	if err := c.checkScale(assessmentID, u); err != nil {
		return Score{}, err
	}
	var out Score
	err := c.do(ctx, http.MethodPut, "/api/assessments/"+url.PathEscape(assessmentID)+"/scores", true, u, &out)
	return out, err
}

// BatchUpdateScores writes several cells atomically: one bad value
// rejects the whole batch.
func (c *Client) BatchUpdateScores(ctx context.Context, assessmentID string, updates []ScoreUpdate) ([]Score, error) {
	rounded := make([]ScoreUpdate, len(updates))
	for i, u := range updates {
		rounded[i] = roundUpdate(u)
		if err := c.checkScale(assessmentID, rounded[i]); err != nil {
			return nil, err
		}
	}
	var out []Score
	err := c.do(ctx, http.MethodPost, "/api/assessments/"+url.PathEscape(assessmentID)+"/scores/batch", true,
		map[string]any{"updates": rounded}, &out)
	return out, err
}

func roundUpdate(u ScoreUpdate) ScoreUpdate {
	if u.Value != nil {
		v := math.Round(*u.Value)
		u.Value = &v
	}
	return u
}

// checkScale validates a rounded update against the cached rubric
// scale. Unknown assessments pass; the server still validates.
func (c *Client) checkScale(assessmentID string, u ScoreUpdate) error {
	if u.Value == nil {
		return nil
	}
	c.mu.Lock()
	sc, ok := c.scales[assessmentID]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if *u.Value < float64(sc.min) || *u.Value > float64(sc.max) {
		return &RangeError{Value: *u.Value, Min: sc.min, Max: sc.max}
	}
	return nil
}

func (c *Client) Notes(ctx context.Context, f NoteFilter) ([]Note, error) {
	q := url.Values{}
	if f.NoteType != "" {
		q.Set("type", f.NoteType)
	}
	if f.SubjectID != "" {
		q.Set("subject_id", f.SubjectID)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Tag != "" {
		q.Set("tag", f.Tag)
	}
	if f.EvidenceOnly {
		q.Set("evidence", "true")
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	path := "/api/notes"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []Note
	err := c.do(ctx, http.MethodGet, path, true, nil, &out)
	return out, err
}

// SubjectNotes is the non-critical variant of Notes used to enrich
// overview rows. It degrades to an empty list on any failure, logging
// a warning, so a broken enrichment never takes down the page.
func (c *Client) SubjectNotes(ctx context.Context, noteType, subjectID string) []Note {
	ns, err := c.Notes(ctx, NoteFilter{NoteType: noteType, SubjectID: subjectID})
	if err != nil {
		c.log.WarnContext(ctx, "notes enrichment failed", "note_type", noteType, "subject_id", subjectID, "err", err)
		return []Note{}
	}
	return ns
}

func (c *Client) CreateNote(ctx context.Context, n Note) (Note, error) {
	var out Note
	err := c.do(ctx, http.MethodPost, "/api/notes", true, n, &out)
	return out, err
}

func (c *Client) UpdateNote(ctx context.Context, n Note) (Note, error) {
	var out Note
	err := c.do(ctx, http.MethodPut, "/api/notes/"+url.PathEscape(n.ID), true, n, &out)
	return out, err
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notes/"+url.PathEscape(id), true, nil, nil)
}

// ExportCSV streams the overview as CSV into w.
func (c *Client) ExportCSV(ctx context.Context, assessmentID string, w io.Writer) error {
	return c.download(ctx, assessmentID, "csv", w)
}

// ExportXLSX streams the overview as a spreadsheet into w.
func (c *Client) ExportXLSX(ctx context.Context, assessmentID string, w io.Writer) error {
	return c.download(ctx, assessmentID, "xlsx", w)
}

func (c *Client) download(ctx context.Context, assessmentID, format string, w io.Writer) error {
	if c.token() == "" {
		return ErrNoSession
	}
	path := fmt.Sprintf("%s/api/assessments/%s/export?format=%s", c.baseURL, url.PathEscape(assessmentID), format)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token())
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return parseError(res)
	}
	_, err = io.Copy(w, res.Body)
	return err
}

func (c *Client) InviteReviewer(ctx context.Context, assessmentID, email string) (Invite, error) {
	var out Invite
	err := c.do(ctx, http.MethodPost, "/api/assessments/"+url.PathEscape(assessmentID)+"/invites", true,
		map[string]string{"email": email}, &out)
	return out, err
}

func (c *Client) Invites(ctx context.Context, assessmentID string) ([]Invite, error) {
	var out []Invite
	err := c.do(ctx, http.MethodGet, "/api/assessments/"+url.PathEscape(assessmentID)+"/invites", true, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, authed bool, in, out any) error {
	if authed && c.token() == "" {
		return ErrNoSession
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.token())
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return parseError(res)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &APIError{StatusCode: res.StatusCode, Detail: fallbackDetail}
	}
	return nil
}

// FormatScore renders a score the way the dashboard does: one decimal,
// empty string for missing.
func FormatScore(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(math.Round(*v*10)/10, 'f', 1, 64)
}

package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginStoresSessionAndSendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "jansen", body["username"])
			_ = json.NewEncoder(w).Encode(Session{Token: "tok-1", Role: "teacher", Name: "M. Jansen"})
		case "/api/courses":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode([]Course{{ID: "crs1", Name: "2TL-b", Period: "Periode 1"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	s, err := c.Login(context.Background(), "jansen", "geheim")
	require.NoError(t, err)
	assert.Equal(t, "teacher", s.Role)

	courses, err := c.Courses(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "2TL-b", courses[0].Name)
}

func TestCallsWithoutSessionFailFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request should reach the server, got %s", r.URL.Path)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Courses(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)

	var buf bytes.Buffer
	assert.ErrorIs(t, c.ExportCSV(context.Background(), "a1", &buf), ErrNoSession)
}

func TestErrorEnvelopeIsParsed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"score 12.0 buiten schaal 1-10","auth_error":false}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithSession(Session{Token: "tok"}))
	v := 12.0
	_, err := c.UpdateScore(context.Background(), "a1", ScoreUpdate{CriterionID: "c1", TeamNumber: 1, Value: &v})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "score 12.0 buiten schaal 1-10", apiErr.Detail)
	assert.False(t, apiErr.AuthError)
}

func TestMalformedErrorBodyFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>Internal Server Error</html>"))
	}))
	defer srv.Close()

	c := New(srv.URL, WithSession(Session{Token: "tok"}))
	_, err := c.Courses(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, fallbackDetail, apiErr.Detail)
}

func TestUnauthorizedAlwaysFlagsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, WithSession(Session{Token: "expired"}))
	_, err := c.Courses(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.AuthError)
	assert.Equal(t, fallbackDetail, apiErr.Detail)
}

func TestUpdateScoreRoundsToWholeBeforeSending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var u ScoreUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&u))
		require.NotNil(t, u.Value)
		assert.Equal(t, 7.0, *u.Value)
		_ = json.NewEncoder(w).Encode(Score{ID: "sc1", CriterionID: u.CriterionID, Value: *u.Value})
	}))
	defer srv.Close()

	c := New(srv.URL, WithSession(Session{Token: "tok"}))
	v := 7.45
	sc, err := c.UpdateScore(context.Background(), "a1", ScoreUpdate{CriterionID: "c1", TeamNumber: 1, Value: &v})
	require.NoError(t, err)
	assert.Equal(t, 7.0, sc.Value)
}

func TestUpdateScoreRejectsOutOfRangeWithoutCalling(t *testing.T) {
	var scoreCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/scores") {
			scoreCalls++
			w.WriteHeader(http.StatusTeapot)
			return
		}
		// overview teaches the client the rubric scale
		_ = json.NewEncoder(w).Encode(Overview{AssessmentID: "a1", ScaleMin: 1, ScaleMax: 10})
	}))
	defer srv.Close()

	c := New(srv.URL, WithSession(Session{Token: "tok"}))
	_, err := c.Overview(context.Background(), "a1", OverviewFilter{})
	require.NoError(t, err)

	v := 11.6
	_, err = c.UpdateScore(context.Background(), "a1", ScoreUpdate{CriterionID: "c1", TeamNumber: 1, Value: &v})
	var rng *RangeError
	require.ErrorAs(t, err, &rng)
	assert.Equal(t, 12.0, rng.Value) // the rounded value is what gets judged
	assert.Equal(t, 10, rng.Max)
	assert.Equal(t, 0, scoreCalls, "invalid edits must not reach the server")

	_, err = c.BatchUpdateScores(context.Background(), "a1", []ScoreUpdate{
		{CriterionID: "c1", TeamNumber: 1, Value: &v},
	})
	require.ErrorAs(t, err, &rng)
	assert.Equal(t, 0, scoreCalls)
}

func TestSubjectNotesDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, WithSession(Session{Token: "tok"}))
	ns := c.SubjectNotes(context.Background(), "team", "t1")
	require.NotNil(t, ns)
	assert.Empty(t, ns)
}

func TestRefreshOverviewDropsStaleResponse(t *testing.T) {
	var (
		mu      sync.Mutex
		reqNum  int
		block   = make(chan struct{})
		arrived = make(chan struct{})
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqNum++
		me := reqNum
		mu.Unlock()
		if me == 1 {
			close(arrived)
			<-block // first fetch hangs until the second one is done
		}
		_ = json.NewEncoder(w).Encode(Overview{AssessmentID: "a1", Title: fmt.Sprintf("antwoord %d", me)})
	}))
	defer srv.Close()

	c := New(srv.URL, WithSession(Session{Token: "tok"}))

	type result struct {
		ov  Overview
		ok  bool
		err error
	}
	first := make(chan result, 1)
	go func() {
		ov, ok, err := c.RefreshOverview(context.Background(), "a1", OverviewFilter{})
		first <- result{ov, ok, err}
	}()

	<-arrived
	ov2, ok2, err2 := c.RefreshOverview(context.Background(), "a1", OverviewFilter{})
	require.NoError(t, err2)
	assert.True(t, ok2)
	assert.Equal(t, "antwoord 2", ov2.Title)

	close(block)
	r1 := <-first
	require.NoError(t, r1.err)
	assert.False(t, r1.ok, "the older fetch must be discarded")
}

func TestExportCSVStreamsBody(t *testing.T) {
	payload := "Team,Onderzoek,Gemiddelde\r\nMoonshot,7.0,7.0\r\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/assessments/a1/export", r.URL.Path)
		assert.Equal(t, "csv", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	c := New(srv.URL, WithSession(Session{Token: "tok"}))
	var buf bytes.Buffer
	require.NoError(t, c.ExportCSV(context.Background(), "a1", &buf))
	assert.Equal(t, payload, buf.String())
}

func TestOverviewFilterBecomesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "moon", q.Get("q"))
		assert.Equal(t, "true", q.Get("incomplete"))
		assert.Equal(t, "average", q.Get("sort"))
		assert.Equal(t, "true", q.Get("desc"))
		_ = json.NewEncoder(w).Encode(Overview{AssessmentID: "a1"})
	}))
	defer srv.Close()

	c := New(srv.URL, WithSession(Session{Token: "tok"}))
	_, err := c.Overview(context.Background(), "a1", OverviewFilter{
		Query: "moon", IncompleteOnly: true, SortBy: "average", Desc: true,
	})
	require.NoError(t, err)
}

func TestAcceptInviteYieldsScopedSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/invites/accept", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tok-abc", body["token"])
		_ = json.NewEncoder(w).Encode(Session{Token: "rev-1", Role: "reviewer"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	s, err := c.AcceptInvite(context.Background(), "tok-abc")
	require.NoError(t, err)
	assert.Equal(t, "reviewer", s.Role)
	require.NotNil(t, c.Session())
	assert.Equal(t, "rev-1", c.Session().Token)
}

func TestAPIErrorString(t *testing.T) {
	err := &APIError{StatusCode: 404, Detail: "beoordeling niet gevonden"}
	assert.True(t, errors.As(error(err), new(*APIError)))
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "beoordeling niet gevonden")
}

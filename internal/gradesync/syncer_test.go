package gradesync_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/projectmaat/projectmaat/internal/gradesync"
)

type syncState struct {
	status, lastErr string
}

type fakeStore struct {
	columns map[string]gradesync.Column
	state   map[string]syncState // key: assessment|student
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		columns: map[string]gradesync.Column{},
		state:   map[string]syncState{},
	}
}

func skey(assessmentID, studentID string) string {
	return fmt.Sprintf("%s|%s", assessmentID, studentID)
}

func (s *fakeStore) FindColumn(_ context.Context, assessmentID string) (gradesync.Column, error) {
	c, ok := s.columns[assessmentID]
	if !ok {
		return gradesync.Column{}, gradesync.ErrColumnNotFound
	}
	return c, nil
}

func (s *fakeStore) SaveColumn(_ context.Context, c gradesync.Column) (gradesync.Column, error) {
	s.columns[c.AssessmentID] = c
	return c, nil
}

func (s *fakeStore) MarkPending(_ context.Context, aID, sID string) error {
	s.state[skey(aID, sID)] = syncState{status: gradesync.StatusPending}
	return nil
}

func (s *fakeStore) MarkOK(_ context.Context, aID, sID string) error {
	s.state[skey(aID, sID)] = syncState{status: gradesync.StatusOK}
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, aID, sID, lastErr string) error {
	s.state[skey(aID, sID)] = syncState{status: gradesync.StatusFailed, lastErr: lastErr}
	return nil
}

func (s *fakeStore) Statuses(_ context.Context, _ string) ([]gradesync.Status, error) {
	return nil, nil
}

type fakeSIS struct {
	listed     []gradesync.RemoteColumn
	listCalls  int
	createdReq *gradesync.CreateColumnReq
	postCalls  int
	posted     []gradesync.GradePost
	postErr    error
}

func (f *fakeSIS) ListColumns(_ context.Context, _ string) ([]gradesync.RemoteColumn, error) {
	f.listCalls++
	return f.listed, nil
}

func (f *fakeSIS) CreateColumn(_ context.Context, _ string, req gradesync.CreateColumnReq) (gradesync.RemoteColumn, error) {
	f.createdReq = &req
	return gradesync.RemoteColumn{
		ID:         "col-123",
		Label:      req.Label,
		ResourceID: req.ResourceID,
		ScaleMax:   req.ScaleMax,
	}, nil
}

func (f *fakeSIS) PostGrade(_ context.Context, _ string, g gradesync.GradePost) error {
	f.postCalls++
	f.posted = append(f.posted, g)
	return f.postErr
}

func basicRequest() gradesync.SyncRequest {
	return gradesync.SyncRequest{
		AssessmentID: "a1",
		CourseRef:    "2TL-b",
		Title:        "Eindproject Periode 1",
		ScaleMax:     10,
		Grades: []gradesync.StudentGrade{
			{StudentID: "s1", StudentNumber: "100234", Grade: 7.5},
			{StudentID: "s2", StudentNumber: "100235", Grade: 6},
		},
	}
}

func TestSyncerCreatesColumnAndPosts(t *testing.T) {
	st := newFakeStore()
	sis := &fakeSIS{}
	syncer := gradesync.New(st, sis, time.Now)

	rep, err := syncer.SyncGrades(context.Background(), basicRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sis.createdReq == nil {
		t.Fatalf("expected CreateColumn to be called")
	}
	if sis.createdReq.Label != "Eindproject Periode 1" {
		t.Fatalf("column label = %q", sis.createdReq.Label)
	}
	if sis.postCalls != 2 {
		t.Fatalf("expected 2 PostGrade calls, got %d", sis.postCalls)
	}
	if rep.Synced != 2 || rep.Failed != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.ColumnID != "col-123" {
		t.Fatalf("column id = %q", rep.ColumnID)
	}

	// mapping cached for the next push
	if _, ok := st.columns["a1"]; !ok {
		t.Fatalf("expected column persisted in store")
	}
	if st.state[skey("a1", "s1")].status != gradesync.StatusOK {
		t.Fatalf("expected sync status ok; got %q", st.state[skey("a1", "s1")].status)
	}
}

func TestSyncerAdoptsExistingRemoteColumn(t *testing.T) {
	st := newFakeStore()
	sis := &fakeSIS{listed: []gradesync.RemoteColumn{{
		ID: "col-exist", Label: "Eindproject Periode 1", ResourceID: "a1", ScaleMax: 10,
	}}}
	syncer := gradesync.New(st, sis, time.Now)

	rep, err := syncer.SyncGrades(context.Background(), basicRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sis.createdReq != nil {
		t.Fatalf("did not expect CreateColumn to be called")
	}
	if rep.ColumnID != "col-exist" {
		t.Fatalf("column id = %q", rep.ColumnID)
	}
}

func TestSyncerUsesCachedColumn(t *testing.T) {
	st := newFakeStore()
	st.columns["a1"] = gradesync.Column{AssessmentID: "a1", ColumnID: "col-cached", ScaleMax: 10}
	sis := &fakeSIS{}
	syncer := gradesync.New(st, sis, time.Now)

	rep, err := syncer.SyncGrades(context.Background(), basicRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sis.listCalls != 0 {
		t.Fatalf("expected no SIS column lookup, got %d", sis.listCalls)
	}
	if rep.ColumnID != "col-cached" {
		t.Fatalf("column id = %q", rep.ColumnID)
	}
}

func TestSyncerSkipsStudentWithoutNumber(t *testing.T) {
	st := newFakeStore()
	sis := &fakeSIS{}
	syncer := gradesync.New(st, sis, time.Now)

	req := basicRequest()
	req.Grades[1].StudentNumber = ""

	rep, err := syncer.SyncGrades(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Synced != 1 || rep.Failed != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if sis.postCalls != 1 {
		t.Fatalf("expected 1 PostGrade call, got %d", sis.postCalls)
	}
	if st.state[skey("a1", "s2")].status != gradesync.StatusFailed {
		t.Fatalf("expected failed status for s2")
	}
}

func TestSyncerPostFailureContinues(t *testing.T) {
	st := newFakeStore()
	sis := &fakeSIS{postErr: errors.New("503 Service Unavailable")}
	syncer := gradesync.New(st, sis, time.Now)

	rep, err := syncer.SyncGrades(context.Background(), basicRequest())
	if err != nil {
		t.Fatalf("push failures must not abort the run: %v", err)
	}
	if rep.Synced != 0 || rep.Failed != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if len(rep.Errors) != 2 {
		t.Fatalf("expected 2 error entries, got %d", len(rep.Errors))
	}
	if st.state[skey("a1", "s1")].status != gradesync.StatusFailed {
		t.Fatalf("expected failed status for s1")
	}
	if st.state[skey("a1", "s1")].lastErr == "" {
		t.Fatalf("expected last error recorded")
	}
}

func TestSyncerPostsWithClock(t *testing.T) {
	st := newFakeStore()
	sis := &fakeSIS{}
	fixed := time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC)
	syncer := gradesync.New(st, sis, func() time.Time { return fixed })

	if _, err := syncer.SyncGrades(context.Background(), basicRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sis.posted) == 0 || !sis.posted[0].Timestamp.Equal(fixed) {
		t.Fatalf("expected posts stamped with the injected clock")
	}
}

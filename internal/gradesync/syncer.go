package gradesync

import (
	"context"
	"fmt"
	"time"
)

type Clock func() time.Time

type Syncer struct {
	Store Store
	SIS   SISClient
	Now   Clock
}

func New(store Store, sis SISClient, now Clock) *Syncer {
	if now == nil {
		now = time.Now
	}
	return &Syncer{Store: store, SIS: sis, Now: now}
}

// SyncRequest carries everything a push needs, so the syncer itself
// stays ignorant of assessments and rosters.
type SyncRequest struct {
	AssessmentID string
	CourseRef    string // how the SIS knows this course
	Title        string
	ScaleMax     float64
	Grades       []StudentGrade
}

type Report struct {
	ColumnID string   `json:"column_id"`
	Synced   int      `json:"synced"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// EnsureColumn resolves the SIS column for an assessment: the cached
// mapping wins, then a matching remote column, then a fresh one.
func (s *Syncer) EnsureColumn(ctx context.Context, req SyncRequest) (Column, error) {
	if col, err := s.Store.FindColumn(ctx, req.AssessmentID); err == nil && col.ColumnID != "" {
		return col, nil
	}

	remote, err := s.SIS.ListColumns(ctx, req.CourseRef)
	if err == nil {
		for _, rc := range remote {
			if rc.ResourceID == req.AssessmentID {
				return s.Store.SaveColumn(ctx, Column{
					AssessmentID: req.AssessmentID,
					ColumnID:     rc.ID,
					Label:        rc.Label,
					ScaleMax:     rc.ScaleMax,
				})
			}
		}
	}

	created, err := s.SIS.CreateColumn(ctx, req.CourseRef, CreateColumnReq{
		Label:      req.Title,
		ScaleMax:   req.ScaleMax,
		ResourceID: req.AssessmentID,
	})
	if err != nil {
		return Column{}, fmt.Errorf("create grade column: %w", err)
	}
	return s.Store.SaveColumn(ctx, Column{
		AssessmentID: req.AssessmentID,
		ColumnID:     created.ID,
		Label:        created.Label,
		ScaleMax:     created.ScaleMax,
	})
}

// SyncGrades pushes every grade in the request. A student that fails
// does not stop the rest; the report says who landed and who did not.
func (s *Syncer) SyncGrades(ctx context.Context, req SyncRequest) (Report, error) {
	col, err := s.EnsureColumn(ctx, req)
	if err != nil {
		for _, g := range req.Grades {
			_ = s.Store.MarkFailed(ctx, req.AssessmentID, g.StudentID, err.Error())
		}
		return Report{}, err
	}

	rep := Report{ColumnID: col.ColumnID}
	for _, g := range req.Grades {
		_ = s.Store.MarkPending(ctx, req.AssessmentID, g.StudentID)

		if g.StudentNumber == "" {
			_ = s.Store.MarkFailed(ctx, req.AssessmentID, g.StudentID, "no student number")
			rep.Failed++
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: no student number", g.StudentID))
			continue
		}
		err := s.SIS.PostGrade(ctx, col.ColumnID, GradePost{
			StudentNumber: g.StudentNumber,
			Grade:         g.Grade,
			ScaleMax:      req.ScaleMax,
			Timestamp:     s.Now(),
		})
		if err != nil {
			_ = s.Store.MarkFailed(ctx, req.AssessmentID, g.StudentID, err.Error())
			rep.Failed++
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", g.StudentID, err))
			continue
		}
		_ = s.Store.MarkOK(ctx, req.AssessmentID, g.StudentID)
		rep.Synced++
	}
	return rep, nil
}

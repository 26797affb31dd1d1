// Package gradesync pushes final grades from a published assessment to
// the school information system (SIS). The SIS side is a grade column
// per assessment; the column is found or created once, then a grade is
// posted per student. Per-student delivery status is tracked so a
// failed push can be retried without re-sending what already landed.
package gradesync

import (
	"context"
	"errors"
	"time"
)

const (
	StatusPending = "pending"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

var ErrColumnNotFound = errors.New("grade column not found")

// Column is the locally cached mapping of an assessment to its SIS
// grade column.
type Column struct {
	AssessmentID string  `json:"assessment_id"`
	ColumnID     string  `json:"column_id"`
	Label        string  `json:"label"`
	ScaleMax     float64 `json:"scale_max"`
}

type StudentGrade struct {
	StudentID     string  `json:"student_id"`
	StudentNumber string  `json:"student_number"` // SIS-side key
	Grade         float64 `json:"grade"`
}

type Status struct {
	AssessmentID string `json:"assessment_id"`
	StudentID    string `json:"student_id"`
	Status       string `json:"status"`
	LastError    string `json:"last_error,omitempty"`
	SyncedAt     *int64 `json:"synced_at,omitempty"`
}

type Store interface {
	FindColumn(ctx context.Context, assessmentID string) (Column, error)
	SaveColumn(ctx context.Context, c Column) (Column, error)

	MarkPending(ctx context.Context, assessmentID, studentID string) error
	MarkOK(ctx context.Context, assessmentID, studentID string) error
	MarkFailed(ctx context.Context, assessmentID, studentID, lastErr string) error
	Statuses(ctx context.Context, assessmentID string) ([]Status, error)
}

type RemoteColumn struct {
	ID         string
	Label      string
	ResourceID string
	ScaleMax   float64
}

type CreateColumnReq struct {
	Label      string
	ScaleMax   float64
	ResourceID string
}

type GradePost struct {
	StudentNumber string
	Grade         float64
	ScaleMax      float64
	Timestamp     time.Time
}

type SISClient interface {
	ListColumns(ctx context.Context, courseRef string) ([]RemoteColumn, error)
	CreateColumn(ctx context.Context, courseRef string, req CreateColumnReq) (RemoteColumn, error)
	PostGrade(ctx context.Context, columnID string, g GradePost) error
}

// Package reflection stores what students write about their own work
// after an assessment, plus the competency scan (self and peer ratings)
// that feeds the reflection conversation.
package reflection

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("reflection not found")
	ErrInvalid  = errors.New("invalid value")

	// ratings and competency scores share the 1..5 conversation scale
	scaleMin = 1.0
	scaleMax = 5.0
)

type Reflection struct {
	ID           string `json:"id"`
	AssessmentID string `json:"assessment_id"`
	StudentID    string `json:"student_id"`
	Body         string `json:"body"`
	Rating       *int   `json:"rating,omitempty"` // optional self-rating 1..5
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

type Competency struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position"`
}

type CompetencyScore struct {
	ID           string   `json:"id"`
	AssessmentID string   `json:"assessment_id"`
	StudentID    string   `json:"student_id"`
	CompetencyID string   `json:"competency_id"`
	SelfScore    *float64 `json:"self_score,omitempty"`
	PeerScore    *float64 `json:"peer_score,omitempty"`
	CreatedAt    int64    `json:"created_at"`
}

func validateRating(r *int) error {
	if r == nil {
		return nil
	}
	if float64(*r) < scaleMin || float64(*r) > scaleMax {
		return fmt.Errorf("%w: rating %d outside scale %.0f-%.0f", ErrInvalid, *r, scaleMin, scaleMax)
	}
	return nil
}

func validateScanScore(v *float64) error {
	if v == nil {
		return nil
	}
	if *v < scaleMin || *v > scaleMax {
		return fmt.Errorf("%w: score %.1f outside scale %.0f-%.0f", ErrInvalid, *v, scaleMin, scaleMax)
	}
	return nil
}

type Store interface {
	// UpsertReflection lets a student create or rewrite their single
	// reflection for an assessment.
	UpsertReflection(ctx context.Context, r Reflection) (Reflection, error)
	GetReflection(ctx context.Context, assessmentID, studentID string) (Reflection, error)
	ListReflections(ctx context.Context, assessmentID string) ([]Reflection, error)

	CreateCompetency(ctx context.Context, c Competency) (Competency, error)
	ListCompetencies(ctx context.Context) ([]Competency, error)

	UpsertCompetencyScore(ctx context.Context, cs CompetencyScore) (CompetencyScore, error)
	// ListCompetencyScores returns the scan for one assessment,
	// optionally narrowed to one student.
	ListCompetencyScores(ctx context.Context, assessmentID, studentID string) ([]CompetencyScore, error)
}

package assessment

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("assessment not found")
	ErrRubricNotFound     = errors.New("rubric not found")
	ErrCriterionNotFound  = errors.New("criterion not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAlreadyPublished   = errors.New("assessment already published")
	// ErrInvalid wraps rejected input (bad grading mode, wrong axis,
	// malformed rubric); callers map it to a 400.
	ErrInvalid = errors.New("invalid input")
)

// OutOfRangeError rejects a score that falls outside the rubric scale.
// Nothing is written when it occurs, including for the sibling updates
// in a batch.
type OutOfRangeError struct {
	CriterionID string
	Value       float64
	Min, Max    int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("score %.1f outside scale %d-%d for criterion %s", e.Value, e.Min, e.Max, e.CriterionID)
}

type Store interface {
	CreateRubric(ctx context.Context, r Rubric) (Rubric, error)
	GetRubric(ctx context.Context, id string) (Rubric, error)
	ListRubrics(ctx context.Context) ([]Rubric, error)

	Create(ctx context.Context, a Assessment) (Assessment, error)
	Get(ctx context.Context, id string) (Assessment, error)
	List(ctx context.Context, opts ListOpts) ([]Assessment, error)
	// Update changes title and grading mode and bumps the version.
	Update(ctx context.Context, a Assessment) (Assessment, error)
	// Publish is one-way: a published assessment never returns to draft.
	Publish(ctx context.Context, id string) (Assessment, error)
	Delete(ctx context.Context, id string) error

	// UpsertScore writes one grid cell after validating the value against
	// the rubric scale. A nil value in the update clears the cell.
	UpsertScore(ctx context.Context, assessmentID string, u ScoreUpdate, updatedBy string) (Score, error)
	// BatchUpsertScores applies every update in one transaction; a single
	// invalid value rejects the whole batch.
	BatchUpsertScores(ctx context.Context, assessmentID string, updates []ScoreUpdate, updatedBy string) ([]Score, error)
	ListScores(ctx context.Context, assessmentID string) ([]Score, error)

	CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
	GetSubmission(ctx context.Context, id string) (Submission, error)
	ListSubmissions(ctx context.Context, assessmentID string) ([]Submission, error)
}

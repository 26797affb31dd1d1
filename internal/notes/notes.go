// Package notes stores teacher observations. Notes attach to a project,
// a team or a single student, and can be labeled with one of the four
// OMZA categories used in the reflection conversations: organiseren,
// meedoen, zelfvertrouwen, autonomie.
package notes

import (
	"context"
	"errors"
	"fmt"
)

const (
	TypeProject = "project"
	TypeTeam    = "team"
	TypeStudent = "student"

	CategoryOrganiseren    = "organiseren"
	CategoryMeedoen        = "meedoen"
	CategoryZelfvertrouwen = "zelfvertrouwen"
	CategoryAutonomie      = "autonomie"
)

var (
	ErrNotFound = errors.New("note not found")
	ErrInvalid  = errors.New("invalid note")
)

type Note struct {
	ID        string   `json:"id"`
	NoteType  string   `json:"note_type"`
	SubjectID string   `json:"subject_id"` // assessment, team or student id
	Body      string   `json:"body"`
	Tags      []string `json:"tags,omitempty"`
	Category  string   `json:"category,omitempty"`
	Evidence  bool     `json:"evidence"` // marked as evidence for the report conversation
	Author    string   `json:"author,omitempty"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

func (n Note) validate() error {
	switch n.NoteType {
	case TypeProject, TypeTeam, TypeStudent:
	default:
		return fmt.Errorf("%w: unknown note type %q", ErrInvalid, n.NoteType)
	}
	switch n.Category {
	case "", CategoryOrganiseren, CategoryMeedoen, CategoryZelfvertrouwen, CategoryAutonomie:
	default:
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, n.Category)
	}
	if n.SubjectID == "" {
		return fmt.Errorf("%w: subject_id required", ErrInvalid)
	}
	if n.Body == "" {
		return fmt.Errorf("%w: body required", ErrInvalid)
	}
	return nil
}

type ListOpts struct {
	NoteType     string
	SubjectID    string
	Category     string
	Tag          string // exact tag match
	EvidenceOnly bool
	Q            string // case-insensitive match on body
	Limit        int
	Offset       int
}

type Store interface {
	Create(ctx context.Context, n Note) (Note, error)
	Get(ctx context.Context, id string) (Note, error)
	Update(ctx context.Context, n Note) (Note, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOpts) ([]Note, error)
}

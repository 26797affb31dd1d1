package overview

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/projectmaat/projectmaat/internal/assessment"
	"github.com/projectmaat/projectmaat/internal/roster"
)

// AssessmentSource is the slice of the assessment store the overview
// needs; RosterSource the slice of the roster store.
type AssessmentSource interface {
	Get(ctx context.Context, id string) (assessment.Assessment, error)
	GetRubric(ctx context.Context, id string) (assessment.Rubric, error)
	ListScores(ctx context.Context, assessmentID string) ([]assessment.Score, error)
}

type RosterSource interface {
	ListTeams(ctx context.Context, courseID string) ([]roster.Team, error)
	ListStudents(ctx context.Context, courseID string) ([]roster.Student, error)
}

type Service struct {
	assessments AssessmentSource
	roster      RosterSource
}

func NewService(a AssessmentSource, r RosterSource) *Service {
	return &Service{assessments: a, roster: r}
}

// Build assembles the full grid for one assessment. Every team (or
// student) in the course gets a row, scored or not; scores left behind
// by a deleted team still show up on a reconstructed row rather than
// disappearing.
func (s *Service) Build(ctx context.Context, assessmentID string) (Matrix, error) {
	a, err := s.assessments.Get(ctx, assessmentID)
	if err != nil {
		return Matrix{}, err
	}
	rubric, err := s.assessments.GetRubric(ctx, a.RubricID)
	if err != nil {
		return Matrix{}, err
	}
	scores, err := s.assessments.ListScores(ctx, assessmentID)
	if err != nil {
		return Matrix{}, err
	}

	m := Matrix{
		AssessmentID: a.ID,
		Title:        a.Title,
		GradingMode:  a.GradingMode,
		Status:       a.Status,
		Version:      a.Version,
		ScaleMin:     rubric.ScaleMin,
		ScaleMax:     rubric.ScaleMax,
	}
	colIdx := map[string]int{}
	for _, c := range rubric.Criteria {
		colIdx[c.ID] = len(m.Columns)
		m.Columns = append(m.Columns, Column{CriterionID: c.ID, Name: c.Name, Category: c.Category})
	}

	if a.GradingMode == assessment.GradingModeIndividual {
		if err := s.buildStudentRows(ctx, &m, a, scores, colIdx); err != nil {
			return Matrix{}, err
		}
	} else {
		if err := s.buildTeamRows(ctx, &m, a, scores, colIdx); err != nil {
			return Matrix{}, err
		}
	}

	m.recompute()
	return m, nil
}

func (s *Service) buildTeamRows(ctx context.Context, m *Matrix, a assessment.Assessment, scores []assessment.Score, colIdx map[string]int) error {
	teams, err := s.roster.ListTeams(ctx, a.CourseID)
	if err != nil {
		return err
	}
	rowIdx := map[int]int{}
	for _, t := range teams {
		rowIdx[t.TeamNumber] = len(m.Rows)
		m.Rows = append(m.Rows, Row{
			TeamNumber: t.TeamNumber,
			TeamName:   t.Name,
			Cells:      make([]Cell, len(m.Columns)),
		})
	}
	for _, sc := range scores {
		j, ok := colIdx[sc.CriterionID]
		if !ok {
			continue
		}
		i, ok := rowIdx[sc.TeamNumber]
		if !ok {
			// team was deleted after scoring; keep its scores visible
			i = len(m.Rows)
			rowIdx[sc.TeamNumber] = i
			m.Rows = append(m.Rows, Row{
				TeamNumber: sc.TeamNumber,
				TeamName:   fmt.Sprintf("Team %d", sc.TeamNumber),
				Cells:      make([]Cell, len(m.Columns)),
			})
		}
		v := sc.Value
		m.Rows[i].Cells[j] = Cell{Score: &v, Comment: sc.Comment}
	}
	sort.SliceStable(m.Rows, func(i, j int) bool {
		return m.Rows[i].TeamNumber < m.Rows[j].TeamNumber
	})
	return nil
}

func (s *Service) buildStudentRows(ctx context.Context, m *Matrix, a assessment.Assessment, scores []assessment.Score, colIdx map[string]int) error {
	students, err := s.roster.ListStudents(ctx, a.CourseID)
	if err != nil {
		return err
	}
	rowIdx := map[string]int{}
	for _, st := range students {
		rowIdx[st.ID] = len(m.Rows)
		m.Rows = append(m.Rows, Row{
			StudentID:   st.ID,
			StudentName: st.FullName,
			Cells:       make([]Cell, len(m.Columns)),
		})
	}
	for _, sc := range scores {
		j, ok := colIdx[sc.CriterionID]
		if !ok {
			continue
		}
		i, ok := rowIdx[sc.StudentID]
		if !ok {
			i = len(m.Rows)
			rowIdx[sc.StudentID] = i
			m.Rows = append(m.Rows, Row{
				StudentID:   sc.StudentID,
				StudentName: "(verwijderde leerling)",
				Cells:       make([]Cell, len(m.Columns)),
			})
		}
		v := sc.Value
		m.Rows[i].Cells[j] = Cell{Score: &v, Comment: sc.Comment}
	}
	sort.SliceStable(m.Rows, func(i, j int) bool {
		return strings.ToLower(m.Rows[i].StudentName) < strings.ToLower(m.Rows[j].StudentName)
	})
	return nil
}

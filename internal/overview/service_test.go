package overview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectmaat/projectmaat/internal/assessment"
	"github.com/projectmaat/projectmaat/internal/roster"
)

type fakeAssessments struct {
	a      assessment.Assessment
	rubric assessment.Rubric
	scores []assessment.Score
}

func (f *fakeAssessments) Get(_ context.Context, id string) (assessment.Assessment, error) {
	if id != f.a.ID {
		return assessment.Assessment{}, assessment.ErrNotFound
	}
	return f.a, nil
}

func (f *fakeAssessments) GetRubric(_ context.Context, id string) (assessment.Rubric, error) {
	if id != f.rubric.ID {
		return assessment.Rubric{}, assessment.ErrRubricNotFound
	}
	return f.rubric, nil
}

func (f *fakeAssessments) ListScores(_ context.Context, _ string) ([]assessment.Score, error) {
	return f.scores, nil
}

type fakeRoster struct {
	teams    []roster.Team
	students []roster.Student
}

func (f *fakeRoster) ListTeams(_ context.Context, _ string) ([]roster.Team, error) {
	return f.teams, nil
}

func (f *fakeRoster) ListStudents(_ context.Context, _ string) ([]roster.Student, error) {
	return f.students, nil
}

func periode1() *fakeAssessments {
	return &fakeAssessments{
		a: assessment.Assessment{
			ID: "a1", CourseID: "crs1", Title: "Eindproject Periode 1",
			Status: assessment.StatusPublished, Version: 3,
			RubricID: "r1", GradingMode: assessment.GradingModeTeam,
		},
		rubric: assessment.Rubric{
			ID: "r1", Name: "Projectrubric", ScaleMin: 1, ScaleMax: 10,
			Criteria: []assessment.Criterion{
				{ID: "c1", Name: "Onderzoek", Position: 1},
				{ID: "c2", Name: "Presentatie", Position: 2},
			},
		},
		scores: []assessment.Score{
			{CriterionID: "c1", TeamNumber: 1, Value: 7},
			{CriterionID: "c2", TeamNumber: 1, Value: 8},
			{CriterionID: "c1", TeamNumber: 2, Value: 5},
			{CriterionID: "c2", TeamNumber: 2, Value: 6},
		},
	}
}

func TestBuildTeamMatrix(t *testing.T) {
	fr := &fakeRoster{teams: []roster.Team{
		{ID: "t1", CourseID: "crs1", Name: "De Uitvinders", TeamNumber: 1},
		{ID: "t2", CourseID: "crs1", Name: "Moonshot", TeamNumber: 2},
	}}
	svc := NewService(periode1(), fr)

	m, err := svc.Build(context.Background(), "a1")
	require.NoError(t, err)

	assert.Equal(t, "Eindproject Periode 1", m.Title)
	assert.Equal(t, 1, m.ScaleMin)
	assert.Equal(t, 10, m.ScaleMax)
	require.Len(t, m.Columns, 2)
	require.Len(t, m.Rows, 2)

	// teams scored [7 8] and [5 6] average per criterion to 6 and 7
	require.NotNil(t, m.Columns[0].Average)
	assert.Equal(t, 6.0, *m.Columns[0].Average)
	require.NotNil(t, m.Columns[1].Average)
	assert.Equal(t, 7.0, *m.Columns[1].Average)

	require.NotNil(t, m.Rows[0].Average)
	assert.Equal(t, 7.5, *m.Rows[0].Average)
	require.NotNil(t, m.Overall)
	assert.Equal(t, 6.5, *m.Overall)
}

func TestBuildUnscoredTeamGetsEmptyRow(t *testing.T) {
	fa := periode1()
	fr := &fakeRoster{teams: []roster.Team{
		{ID: "t1", CourseID: "crs1", Name: "De Uitvinders", TeamNumber: 1},
		{ID: "t2", CourseID: "crs1", Name: "Moonshot", TeamNumber: 2},
		{ID: "t3", CourseID: "crs1", Name: "Team 3", TeamNumber: 3},
	}}
	svc := NewService(fa, fr)

	m, err := svc.Build(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, m.Rows, 3)

	empty := m.Rows[2]
	assert.Equal(t, 3, empty.TeamNumber)
	assert.Nil(t, empty.Average)
	assert.Equal(t, 2, empty.Missing)

	// the empty team must not drag the criterion averages down
	assert.Equal(t, 6.0, *m.Columns[0].Average)
	assert.Equal(t, 7.0, *m.Columns[1].Average)
}

func TestBuildKeepsScoresOfDeletedTeam(t *testing.T) {
	fa := periode1()
	fa.scores = append(fa.scores, assessment.Score{CriterionID: "c1", TeamNumber: 9, Value: 10})
	fr := &fakeRoster{teams: []roster.Team{
		{ID: "t1", CourseID: "crs1", Name: "De Uitvinders", TeamNumber: 1},
	}}
	svc := NewService(fa, fr)

	m, err := svc.Build(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, m.Rows, 3) // roster team 1, orphaned teams 2 and 9

	last := m.Rows[2]
	assert.Equal(t, 9, last.TeamNumber)
	assert.Equal(t, "Team 9", last.TeamName)
	require.NotNil(t, last.Cells[0].Score)
	assert.Equal(t, 10.0, *last.Cells[0].Score)
}

func TestBuildIndividualMatrix(t *testing.T) {
	fa := periode1()
	fa.a.GradingMode = assessment.GradingModeIndividual
	fa.scores = []assessment.Score{
		{CriterionID: "c1", StudentID: "s2", Value: 8},
		{CriterionID: "c2", StudentID: "s1", Value: 6},
	}
	fr := &fakeRoster{students: []roster.Student{
		{ID: "s1", CourseID: "crs1", FullName: "Noor Bakker"},
		{ID: "s2", CourseID: "crs1", FullName: "Amir el Idrissi"},
	}}
	svc := NewService(fa, fr)

	m, err := svc.Build(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, m.Rows, 2)

	// rows sort by student name
	assert.Equal(t, "Amir el Idrissi", m.Rows[0].StudentName)
	assert.Equal(t, "Noor Bakker", m.Rows[1].StudentName)

	require.NotNil(t, m.Rows[0].Cells[0].Score)
	assert.Equal(t, 8.0, *m.Rows[0].Cells[0].Score)
	assert.Nil(t, m.Rows[0].Cells[1].Score)
}

func TestBuildUnknownAssessment(t *testing.T) {
	svc := NewService(periode1(), &fakeRoster{})

	_, err := svc.Build(context.Background(), "nope")
	assert.ErrorIs(t, err, assessment.ErrNotFound)
}

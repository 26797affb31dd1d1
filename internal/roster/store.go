package roster

import (
	"context"
	"errors"
)

var (
	ErrCourseNotFound  = errors.New("course not found")
	ErrStudentNotFound = errors.New("student not found")
	ErrTeamNotFound    = errors.New("team not found")
)

type Store interface {
	CreateCourse(ctx context.Context, c Course) (Course, error)
	GetCourse(ctx context.Context, id string) (Course, error)
	// ListCourses returns the courses taught by teacherID, or every
	// course when teacherID is empty (admin view).
	ListCourses(ctx context.Context, teacherID string) ([]Course, error)
	UpdateCourse(ctx context.Context, c Course) (Course, error)
	DeleteCourse(ctx context.Context, id string) error
	AddCourseTeacher(ctx context.Context, courseID, teacherID, role string) error
	IsCourseTeacher(ctx context.Context, courseID, teacherID string) (bool, error)

	CreateStudent(ctx context.Context, st Student) (Student, error)
	// ImportStudents inserts a batch in one transaction and reports how
	// many rows were written. Existing student numbers are updated in
	// place rather than duplicated.
	ImportStudents(ctx context.Context, courseID string, sts []Student) (int, error)
	ListStudents(ctx context.Context, courseID string) ([]Student, error)
	DeleteStudent(ctx context.Context, id string) error

	// CreateTeam assigns the next free team number within the course
	// when t.TeamNumber is zero.
	CreateTeam(ctx context.Context, t Team) (Team, error)
	GetTeam(ctx context.Context, id string) (Team, error)
	ListTeams(ctx context.Context, courseID string) ([]Team, error)
	RenameTeam(ctx context.Context, id, name string) (Team, error)
	DeleteTeam(ctx context.Context, id string) error
	SetTeamMembers(ctx context.Context, teamID string, studentIDs []string) error

	Analytics(ctx context.Context, courseID string) (Analytics, error)
}

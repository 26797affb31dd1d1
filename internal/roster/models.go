// Package roster manages courses, the students enrolled in them and the
// project teams they are grouped into.
package roster

import "fmt"

func defaultTeamName(n int) string { return fmt.Sprintf("Team %d", n) }

type Course struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Period    string `json:"period,omitempty"` // e.g. "Periode 1"
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
}

type Student struct {
	ID        string `json:"id"`
	CourseID  string `json:"course_id"`
	Number    string `json:"number,omitempty"` // school-assigned student number
	FullName  string `json:"full_name"`
	CreatedAt int64  `json:"created_at"`
}

type Team struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"course_id"`
	Name       string    `json:"name"`
	TeamNumber int       `json:"team_number"`
	Members    []Student `json:"members,omitempty"`
	CreatedAt  int64     `json:"created_at"`
}

// Analytics summarizes one course for the dashboard landing page.
type Analytics struct {
	CourseID        string         `json:"course_id"`
	StudentCount    int            `json:"student_count"`
	TeamCount       int            `json:"team_count"`
	AssessmentCount int            `json:"assessment_count"`
	PublishedCount  int            `json:"published_count"`
	AverageScore    *float64       `json:"average_score"` // nil until at least one score exists
	NoteCounts      map[string]int `json:"note_counts,omitempty"`
}

// Package assessment models project assessments: a rubric with scored
// criteria, applied to a course either per team or per student.
package assessment

const (
	StatusDraft     = "draft"
	StatusPublished = "published"

	GradingModeTeam       = "team"
	GradingModeIndividual = "individual"
)

type Rubric struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	ScaleMin  int         `json:"scale_min"`
	ScaleMax  int         `json:"scale_max"`
	Criteria  []Criterion `json:"criteria,omitempty"`
	CreatedAt int64       `json:"created_at"`
}

type Criterion struct {
	ID       string  `json:"id"`
	RubricID string  `json:"rubric_id"`
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	Position int     `json:"position"`
	Levels   []Level `json:"levels,omitempty"`
}

// Level describes what a given score means for a criterion, shown as a
// tooltip in the scoring grid.
type Level struct {
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

type Assessment struct {
	ID          string `json:"id"`
	CourseID    string `json:"course_id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Version     int    `json:"version"`
	RubricID    string `json:"rubric_id"`
	GradingMode string `json:"grading_mode"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
	PublishedAt *int64 `json:"published_at,omitempty"`
}

// Score is one cell in the scoring grid. Exactly one of TeamNumber and
// StudentID is meaningful, depending on the assessment's grading mode;
// the other stays at its zero value.
type Score struct {
	ID           string  `json:"id"`
	AssessmentID string  `json:"assessment_id"`
	CriterionID  string  `json:"criterion_id"`
	TeamNumber   int     `json:"team_number,omitempty"`
	StudentID    string  `json:"student_id,omitempty"`
	Value        float64 `json:"value"`
	Comment      string  `json:"comment,omitempty"`
	UpdatedBy    string  `json:"updated_by,omitempty"`
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`
}

// ScoreUpdate is a single requested cell change. A nil Value clears the
// cell, returning it to "not yet scored".
type ScoreUpdate struct {
	CriterionID string   `json:"criterion_id"`
	TeamNumber  int      `json:"team_number,omitempty"`
	StudentID   string   `json:"student_id,omitempty"`
	Value       *float64 `json:"value"`
	Comment     string   `json:"comment,omitempty"`
}

type Submission struct {
	ID           string `json:"id"`
	AssessmentID string `json:"assessment_id"`
	TeamID       string `json:"team_id"`
	Filename     string `json:"filename"`
	BlobKey      string `json:"blob_key"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
	UploadedBy   string `json:"uploaded_by,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

type ListOpts struct {
	CourseID string
	Status   string // optional: draft|published
	Q        string // case-insensitive match on title
	Sort     string // created_at|updated_at|title (default: created_at)
	Order    string // asc|desc; empty uses the sort key's natural order
	Limit    int
	Offset   int
}

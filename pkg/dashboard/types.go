package dashboard

// Wire types mirror the platform's JSON. The SDK keeps its own copies
// so embedding applications never depend on server internals.

type Course struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Period    string `json:"period,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type Analytics struct {
	CourseID        string         `json:"course_id"`
	StudentCount    int            `json:"student_count"`
	TeamCount       int            `json:"team_count"`
	AssessmentCount int            `json:"assessment_count"`
	PublishedCount  int            `json:"published_count"`
	AverageScore    *float64       `json:"average_score"`
	NoteCounts      map[string]int `json:"note_counts,omitempty"`
}

type Assessment struct {
	ID          string `json:"id"`
	CourseID    string `json:"course_id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Version     int    `json:"version"`
	RubricID    string `json:"rubric_id"`
	GradingMode string `json:"grading_mode"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

type Cell struct {
	Score   *float64 `json:"score"`
	Comment string   `json:"comment,omitempty"`
}

type Row struct {
	TeamNumber  int      `json:"team_number,omitempty"`
	TeamName    string   `json:"team_name,omitempty"`
	StudentID   string   `json:"student_id,omitempty"`
	StudentName string   `json:"student_name,omitempty"`
	Cells       []Cell   `json:"cells"`
	Average     *float64 `json:"average"`
	Missing     int      `json:"missing"`
}

type Column struct {
	CriterionID string   `json:"criterion_id"`
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	Average     *float64 `json:"average"`
	Min         *float64 `json:"min"`
	Max         *float64 `json:"max"`
}

// Overview is the scoring grid for one assessment: teams or students as
// rows, criteria as columns, plus the averages the footer shows.
type Overview struct {
	AssessmentID string   `json:"assessment_id"`
	Title        string   `json:"title"`
	GradingMode  string   `json:"grading_mode"`
	Status       string   `json:"status"`
	Version      int      `json:"version"`
	ScaleMin     int      `json:"scale_min"`
	ScaleMax     int      `json:"scale_max"`
	Columns      []Column `json:"columns"`
	Rows         []Row    `json:"rows"`
	Overall      *float64 `json:"overall"`
}

// OverviewFilter narrows and orders the grid server-side.
type OverviewFilter struct {
	Query          string
	IncompleteOnly bool
	SortBy         string // "row", "average" or a criterion id
	Desc           bool
}

// ScoreUpdate changes one cell. Set Value to nil to clear the cell.
type ScoreUpdate struct {
	CriterionID string   `json:"criterion_id"`
	TeamNumber  int      `json:"team_number,omitempty"`
	StudentID   string   `json:"student_id,omitempty"`
	Value       *float64 `json:"value"`
	Comment     string   `json:"comment,omitempty"`
}

type Score struct {
	ID           string  `json:"id"`
	AssessmentID string  `json:"assessment_id"`
	CriterionID  string  `json:"criterion_id"`
	TeamNumber   int     `json:"team_number,omitempty"`
	StudentID    string  `json:"student_id,omitempty"`
	Value        float64 `json:"value"`
	Comment      string  `json:"comment,omitempty"`
	UpdatedAt    int64   `json:"updated_at"`
}

type Note struct {
	ID        string   `json:"id"`
	NoteType  string   `json:"note_type"`
	SubjectID string   `json:"subject_id"`
	Body      string   `json:"body"`
	Tags      []string `json:"tags,omitempty"`
	Category  string   `json:"category,omitempty"`
	Evidence  bool     `json:"evidence"`
	Author    string   `json:"author,omitempty"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

type NoteFilter struct {
	NoteType     string
	SubjectID    string
	Category     string
	Tag          string
	EvidenceOnly bool
	Query        string
}

type Invite struct {
	ID           string `json:"id"`
	AssessmentID string `json:"assessment_id"`
	Email        string `json:"email"`
	Token        string `json:"token,omitempty"` // only set on the create response
	Status       string `json:"status"`
	ExpiresAt    int64  `json:"expires_at"`
	CreatedAt    int64  `json:"created_at"`
	AcceptedAt   *int64 `json:"accepted_at,omitempty"`
}

type Session struct {
	Token string `json:"token"`
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
}

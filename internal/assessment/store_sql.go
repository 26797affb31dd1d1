package assessment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

var _ Store = (*SQLStore)(nil)

func (s *SQLStore) CreateRubric(ctx context.Context, r Rubric) (Rubric, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.ScaleMin == 0 && r.ScaleMax == 0 {
		r.ScaleMin, r.ScaleMax = 1, 10
	}
	if r.ScaleMax <= r.ScaleMin {
		return Rubric{}, fmt.Errorf("%w: rubric scale max must exceed min", ErrInvalid)
	}
	r.CreatedAt = time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Rubric{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rubrics (id,name,scale_min,scale_max,created_at) VALUES ($1,$2,$3,$4,$5)`,
		r.ID, r.Name, r.ScaleMin, r.ScaleMax, r.CreatedAt)
	if err != nil {
		return Rubric{}, err
	}
	for i := range r.Criteria {
		c := &r.Criteria[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.RubricID = r.ID
		if c.Position == 0 {
			c.Position = i + 1
		}
		lj, err := json.Marshal(c.Levels)
		if err != nil {
			return Rubric{}, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO criteria (id,rubric_id,name,category,position,levels_json) VALUES ($1,$2,$3,$4,$5,$6)`,
			c.ID, c.RubricID, c.Name, c.Category, c.Position, string(lj))
		if err != nil {
			return Rubric{}, err
		}
	}
	return r, tx.Commit()
}

func (s *SQLStore) GetRubric(ctx context.Context, id string) (Rubric, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,name,scale_min,scale_max,created_at FROM rubrics WHERE id=$1`, id)
	var r Rubric
	if err := row.Scan(&r.ID, &r.Name, &r.ScaleMin, &r.ScaleMax, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Rubric{}, ErrRubricNotFound
		}
		return Rubric{}, err
	}
	crit, err := s.criteriaFor(ctx, id)
	if err != nil {
		return Rubric{}, err
	}
	r.Criteria = crit
	return r, nil
}

func (s *SQLStore) criteriaFor(ctx context.Context, rubricID string) ([]Criterion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,rubric_id,name,category,position,levels_json FROM criteria
		 WHERE rubric_id=$1 ORDER BY position, name`, rubricID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Criterion{}
	for rows.Next() {
		var c Criterion
		var lj string
		if err := rows.Scan(&c.ID, &c.RubricID, &c.Name, &c.Category, &c.Position, &lj); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(lj), &c.Levels); err != nil {
			c.Levels = nil
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListRubrics(ctx context.Context) ([]Rubric, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,name,scale_min,scale_max,created_at FROM rubrics ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Rubric{}
	for rows.Next() {
		var r Rubric
		if err := rows.Scan(&r.ID, &r.Name, &r.ScaleMin, &r.ScaleMax, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) Create(ctx context.Context, a Assessment) (Assessment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.GradingMode == "" {
		a.GradingMode = GradingModeTeam
	}
	if a.GradingMode != GradingModeTeam && a.GradingMode != GradingModeIndividual {
		return Assessment{}, fmt.Errorf("%w: unknown grading mode %q", ErrInvalid, a.GradingMode)
	}
	if _, err := s.GetRubric(ctx, a.RubricID); err != nil {
		return Assessment{}, err
	}
	a.Status = StatusDraft
	a.Version = 1
	now := time.Now().Unix()
	a.CreatedAt, a.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assessments (id,course_id,title,status,version,rubric_id,grading_mode,created_by,created_at,updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.CourseID, a.Title, a.Status, a.Version, a.RubricID, a.GradingMode, a.CreatedBy, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return Assessment{}, err
	}
	return a, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Assessment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,course_id,title,status,version,rubric_id,grading_mode,created_by,created_at,updated_at,published_at
		 FROM assessments WHERE id=$1`, id)
	var a Assessment
	var pub sql.NullInt64
	if err := row.Scan(&a.ID, &a.CourseID, &a.Title, &a.Status, &a.Version, &a.RubricID,
		&a.GradingMode, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt, &pub); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Assessment{}, ErrNotFound
		}
		return Assessment{}, err
	}
	if pub.Valid {
		a.PublishedAt = &pub.Int64
	}
	return a, nil
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Assessment, error) {
	conds := []string{}
	args := []any{}
	n := 1
	if opts.CourseID != "" {
		conds = append(conds, fmt.Sprintf("course_id=$%d", n))
		args = append(args, opts.CourseID)
		n++
	}
	if opts.Status != "" {
		conds = append(conds, fmt.Sprintf("status=$%d", n))
		args = append(args, opts.Status)
		n++
	}
	if q := strings.TrimSpace(opts.Q); q != "" {
		conds = append(conds, fmt.Sprintf("LOWER(title) LIKE '%%' || LOWER($%d) || '%%'", n))
		args = append(args, q)
		n++
	}

	// names sort ascending by default, timestamps newest-first; an
	// explicit order flips either
	col, dir := "created_at", "DESC"
	switch opts.Sort {
	case "title":
		col, dir = "title", "ASC"
	case "updated_at":
		col = "updated_at"
	}
	switch opts.Order {
	case "asc":
		dir = "ASC"
	case "desc":
		dir = "DESC"
	}
	order := col + " " + dir
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT id,course_id,title,status,version,rubric_id,grading_mode,created_by,created_at,updated_at,published_at FROM assessments`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s LIMIT $%d OFFSET $%d", order, n, n+1)
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Assessment{}
	for rows.Next() {
		var a Assessment
		var pub sql.NullInt64
		if err := rows.Scan(&a.ID, &a.CourseID, &a.Title, &a.Status, &a.Version, &a.RubricID,
			&a.GradingMode, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt, &pub); err != nil {
			return nil, err
		}
		if pub.Valid {
			a.PublishedAt = &pub.Int64
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) Update(ctx context.Context, a Assessment) (Assessment, error) {
	cur, err := s.Get(ctx, a.ID)
	if err != nil {
		return Assessment{}, err
	}
	// grading mode is frozen once cells may exist
	if a.GradingMode != "" && a.GradingMode != cur.GradingMode && cur.Status != StatusDraft {
		return Assessment{}, fmt.Errorf("%w: grading mode can only change while draft", ErrInvalid)
	}
	title := cur.Title
	if a.Title != "" {
		title = a.Title
	}
	mode := cur.GradingMode
	if a.GradingMode != "" {
		mode = a.GradingMode
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE assessments SET title=$1, grading_mode=$2, version=version+1, updated_at=$3 WHERE id=$4`,
		title, mode, time.Now().Unix(), a.ID)
	if err != nil {
		return Assessment{}, err
	}
	return s.Get(ctx, a.ID)
}

func (s *SQLStore) Publish(ctx context.Context, id string) (Assessment, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return Assessment{}, err
	}
	if cur.Status == StatusPublished {
		return Assessment{}, ErrAlreadyPublished
	}
	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx,
		`UPDATE assessments SET status=$1, published_at=$2, version=version+1, updated_at=$2 WHERE id=$3`,
		StatusPublished, now, id)
	if err != nil {
		return Assessment{}, err
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assessments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// scaleInfo is what score validation needs: the rubric bounds plus the
// set of criteria that belong to it.
type scaleInfo struct {
	min, max int
	criteria map[string]bool
}

func (s *SQLStore) scaleFor(ctx context.Context, a Assessment) (scaleInfo, error) {
	info := scaleInfo{criteria: map[string]bool{}}
	err := s.db.QueryRowContext(ctx,
		`SELECT scale_min, scale_max FROM rubrics WHERE id=$1`, a.RubricID).Scan(&info.min, &info.max)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scaleInfo{}, ErrRubricNotFound
		}
		return scaleInfo{}, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM criteria WHERE rubric_id=$1`, a.RubricID)
	if err != nil {
		return scaleInfo{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return scaleInfo{}, err
		}
		info.criteria[id] = true
	}
	return info, rows.Err()
}

// normalize forces the update onto the assessment's grading axis and
// checks the value against the rubric scale.
func normalize(a Assessment, info scaleInfo, u ScoreUpdate) (ScoreUpdate, error) {
	if !info.criteria[u.CriterionID] {
		return ScoreUpdate{}, ErrCriterionNotFound
	}
	switch a.GradingMode {
	case GradingModeIndividual:
		if u.StudentID == "" {
			return ScoreUpdate{}, fmt.Errorf("%w: student_id required for individual grading", ErrInvalid)
		}
		u.TeamNumber = 0
	default: // team
		if u.TeamNumber <= 0 {
			return ScoreUpdate{}, fmt.Errorf("%w: team_number required for team grading", ErrInvalid)
		}
		u.StudentID = ""
	}
	if u.Value != nil {
		v := *u.Value
		if v < float64(info.min) || v > float64(info.max) {
			return ScoreUpdate{}, &OutOfRangeError{CriterionID: u.CriterionID, Value: v, Min: info.min, Max: info.max}
		}
	}
	return u, nil
}

func (s *SQLStore) UpsertScore(ctx context.Context, assessmentID string, u ScoreUpdate, updatedBy string) (Score, error) {
	scores, err := s.BatchUpsertScores(ctx, assessmentID, []ScoreUpdate{u}, updatedBy)
	if err != nil {
		return Score{}, err
	}
	return scores[0], nil
}

func (s *SQLStore) BatchUpsertScores(ctx context.Context, assessmentID string, updates []ScoreUpdate, updatedBy string) ([]Score, error) {
	a, err := s.Get(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	info, err := s.scaleFor(ctx, a)
	if err != nil {
		return nil, err
	}

	// validate everything before touching the database
	norm := make([]ScoreUpdate, 0, len(updates))
	for _, u := range updates {
		nu, err := normalize(a, info, u)
		if err != nil {
			return nil, err
		}
		norm = append(norm, nu)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	out := make([]Score, 0, len(norm))
	for _, u := range norm {
		if u.Value == nil {
			_, err := tx.ExecContext(ctx,
				`DELETE FROM scores WHERE assessment_id=$1 AND criterion_id=$2 AND team_number=$3 AND student_id=$4`,
				assessmentID, u.CriterionID, u.TeamNumber, u.StudentID)
			if err != nil {
				return nil, err
			}
			out = append(out, Score{
				AssessmentID: assessmentID, CriterionID: u.CriterionID,
				TeamNumber: u.TeamNumber, StudentID: u.StudentID,
				UpdatedBy: updatedBy, UpdatedAt: now,
			})
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO scores (id,assessment_id,criterion_id,team_number,student_id,value,comment,updated_by,created_at,updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			 ON CONFLICT (assessment_id,criterion_id,team_number,student_id)
			 DO UPDATE SET value=EXCLUDED.value, comment=EXCLUDED.comment, updated_by=EXCLUDED.updated_by, updated_at=EXCLUDED.updated_at`,
			uuid.NewString(), assessmentID, u.CriterionID, u.TeamNumber, u.StudentID,
			*u.Value, u.Comment, updatedBy, now, now)
		if err != nil {
			return nil, err
		}

		var sc Score
		err = tx.QueryRowContext(ctx,
			`SELECT id,assessment_id,criterion_id,team_number,student_id,value,comment,updated_by,created_at,updated_at
			 FROM scores WHERE assessment_id=$1 AND criterion_id=$2 AND team_number=$3 AND student_id=$4`,
			assessmentID, u.CriterionID, u.TeamNumber, u.StudentID).
			Scan(&sc.ID, &sc.AssessmentID, &sc.CriterionID, &sc.TeamNumber, &sc.StudentID,
				&sc.Value, &sc.Comment, &sc.UpdatedBy, &sc.CreatedAt, &sc.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE assessments SET updated_at=$1 WHERE id=$2`, now, assessmentID); err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func (s *SQLStore) ListScores(ctx context.Context, assessmentID string) ([]Score, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sc.id,sc.assessment_id,sc.criterion_id,sc.team_number,sc.student_id,sc.value,sc.comment,sc.updated_by,sc.created_at,sc.updated_at
		 FROM scores sc JOIN criteria cr ON cr.id=sc.criterion_id
		 WHERE sc.assessment_id=$1
		 ORDER BY cr.position, sc.team_number, sc.student_id`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Score{}
	for rows.Next() {
		var sc Score
		if err := rows.Scan(&sc.ID, &sc.AssessmentID, &sc.CriterionID, &sc.TeamNumber, &sc.StudentID,
			&sc.Value, &sc.Comment, &sc.UpdatedBy, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateSubmission(ctx context.Context, sub Submission) (Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.ContentType == "" {
		sub.ContentType = "application/octet-stream"
	}
	sub.CreatedAt = time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (id,assessment_id,team_id,filename,blob_key,content_type,size,uploaded_by,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sub.ID, sub.AssessmentID, sub.TeamID, sub.Filename, sub.BlobKey, sub.ContentType, sub.Size, sub.UploadedBy, sub.CreatedAt)
	if err != nil {
		return Submission{}, err
	}
	return sub, nil
}

func (s *SQLStore) GetSubmission(ctx context.Context, id string) (Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,assessment_id,team_id,filename,blob_key,content_type,size,uploaded_by,created_at
		 FROM submissions WHERE id=$1`, id)
	var sub Submission
	if err := row.Scan(&sub.ID, &sub.AssessmentID, &sub.TeamID, &sub.Filename, &sub.BlobKey,
		&sub.ContentType, &sub.Size, &sub.UploadedBy, &sub.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, ErrSubmissionNotFound
		}
		return Submission{}, err
	}
	return sub, nil
}

func (s *SQLStore) ListSubmissions(ctx context.Context, assessmentID string) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,assessment_id,team_id,filename,blob_key,content_type,size,uploaded_by,created_at
		 FROM submissions WHERE assessment_id=$1 ORDER BY created_at DESC`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Submission{}
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.ID, &sub.AssessmentID, &sub.TeamID, &sub.Filename, &sub.BlobKey,
			&sub.ContentType, &sub.Size, &sub.UploadedBy, &sub.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

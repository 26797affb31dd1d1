package roster

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

var _ Store = (*SQLStore)(nil)

func (s *SQLStore) CreateCourse(ctx context.Context, c Course) (Course, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().Unix()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Course{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO courses (id,name,period,created_by,created_at) VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.Name, c.Period, c.CreatedBy, c.CreatedAt)
	if err != nil {
		return Course{}, err
	}
	// creator becomes the owning teacher
	if c.CreatedBy != "" {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO course_teachers (course_id,teacher_id,role) VALUES ($1,$2,'owner')
			 ON CONFLICT (course_id,teacher_id) DO NOTHING`,
			c.ID, c.CreatedBy)
		if err != nil {
			return Course{}, err
		}
	}
	return c, tx.Commit()
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,name,period,created_by,created_at FROM courses WHERE id=$1`, id)
	var c Course
	if err := row.Scan(&c.ID, &c.Name, &c.Period, &c.CreatedBy, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, ErrCourseNotFound
		}
		return Course{}, err
	}
	return c, nil
}

func (s *SQLStore) ListCourses(ctx context.Context, teacherID string) ([]Course, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if teacherID == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id,name,period,created_by,created_at FROM courses ORDER BY created_at DESC`)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT c.id,c.name,c.period,c.created_by,c.created_at
			 FROM courses c JOIN course_teachers ct ON ct.course_id=c.id
			 WHERE ct.teacher_id=$1 ORDER BY c.created_at DESC`, teacherID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Course{}
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Period, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateCourse(ctx context.Context, c Course) (Course, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE courses SET name=$1, period=$2 WHERE id=$3`, c.Name, c.Period, c.ID)
	if err != nil {
		return Course{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Course{}, ErrCourseNotFound
	}
	return s.GetCourse(ctx, c.ID)
}

func (s *SQLStore) DeleteCourse(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM courses WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCourseNotFound
	}
	return nil
}

func (s *SQLStore) AddCourseTeacher(ctx context.Context, courseID, teacherID, role string) error {
	if role == "" {
		role = "teacher"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO course_teachers (course_id,teacher_id,role) VALUES ($1,$2,$3)
		 ON CONFLICT (course_id,teacher_id) DO UPDATE SET role=EXCLUDED.role`,
		courseID, teacherID, role)
	return err
}

func (s *SQLStore) IsCourseTeacher(ctx context.Context, courseID, teacherID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM course_teachers WHERE course_id=$1 AND teacher_id=$2`,
		courseID, teacherID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLStore) CreateStudent(ctx context.Context, st Student) (Student, error) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	st.CreatedAt = time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO students (id,course_id,number,full_name,created_at) VALUES ($1,$2,$3,$4,$5)`,
		st.ID, st.CourseID, st.Number, st.FullName, st.CreatedAt)
	if err != nil {
		return Student{}, err
	}
	return st, nil
}

func (s *SQLStore) ImportStudents(ctx context.Context, courseID string, sts []Student) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	n := 0
	for _, st := range sts {
		if st.FullName == "" {
			continue
		}
		// match on student number so re-importing a roster is idempotent
		if st.Number != "" {
			var existing string
			err := tx.QueryRowContext(ctx,
				`SELECT id FROM students WHERE course_id=$1 AND number=$2`,
				courseID, st.Number).Scan(&existing)
			switch {
			case err == nil:
				if _, err := tx.ExecContext(ctx,
					`UPDATE students SET full_name=$1 WHERE id=$2`, st.FullName, existing); err != nil {
					return 0, err
				}
				n++
				continue
			case !errors.Is(err, sql.ErrNoRows):
				return 0, err
			}
		}
		id := st.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO students (id,course_id,number,full_name,created_at) VALUES ($1,$2,$3,$4,$5)`,
			id, courseID, st.Number, st.FullName, now); err != nil {
			return 0, err
		}
		n++
	}
	return n, tx.Commit()
}

func (s *SQLStore) ListStudents(ctx context.Context, courseID string) ([]Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,course_id,number,full_name,created_at FROM students
		 WHERE course_id=$1 ORDER BY full_name`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Student{}
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.CourseID, &st.Number, &st.FullName, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteStudent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStudentNotFound
	}
	return nil
}

func (s *SQLStore) CreateTeam(ctx context.Context, t Team) (Team, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Team{}, err
	}
	defer tx.Rollback()

	if t.TeamNumber == 0 {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(team_number),0)+1 FROM teams WHERE course_id=$1`,
			t.CourseID).Scan(&t.TeamNumber); err != nil {
			return Team{}, err
		}
	}
	if t.Name == "" {
		t.Name = defaultTeamName(t.TeamNumber)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO teams (id,course_id,name,team_number,created_at) VALUES ($1,$2,$3,$4,$5)`,
		t.ID, t.CourseID, t.Name, t.TeamNumber, t.CreatedAt)
	if err != nil {
		return Team{}, err
	}
	return t, tx.Commit()
}

func (s *SQLStore) GetTeam(ctx context.Context, id string) (Team, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,course_id,name,team_number,created_at FROM teams WHERE id=$1`, id)
	var t Team
	if err := row.Scan(&t.ID, &t.CourseID, &t.Name, &t.TeamNumber, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Team{}, ErrTeamNotFound
		}
		return Team{}, err
	}
	members, err := s.teamMembers(ctx, t.ID)
	if err != nil {
		return Team{}, err
	}
	t.Members = members
	return t, nil
}

func (s *SQLStore) ListTeams(ctx context.Context, courseID string) ([]Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,course_id,name,team_number,created_at FROM teams
		 WHERE course_id=$1 ORDER BY team_number`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Team{}
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.CourseID, &t.Name, &t.TeamNumber, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		members, err := s.teamMembers(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Members = members
	}
	return out, nil
}

func (s *SQLStore) teamMembers(ctx context.Context, teamID string) ([]Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT st.id,st.course_id,st.number,st.full_name,st.created_at
		 FROM team_members tm JOIN students st ON st.id=tm.student_id
		 WHERE tm.team_id=$1 ORDER BY st.full_name`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Student{}
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.CourseID, &st.Number, &st.FullName, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLStore) RenameTeam(ctx context.Context, id, name string) (Team, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE teams SET name=$1 WHERE id=$2`, name, id)
	if err != nil {
		return Team{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Team{}, ErrTeamNotFound
	}
	return s.GetTeam(ctx, id)
}

func (s *SQLStore) DeleteTeam(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTeamNotFound
	}
	return nil
}

func (s *SQLStore) SetTeamMembers(ctx context.Context, teamID string, studentIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var one int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM teams WHERE id=$1`, teamID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTeamNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM team_members WHERE team_id=$1`, teamID); err != nil {
		return err
	}
	for _, sid := range studentIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO team_members (team_id,student_id) VALUES ($1,$2)
			 ON CONFLICT (team_id,student_id) DO NOTHING`, teamID, sid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Analytics(ctx context.Context, courseID string) (Analytics, error) {
	a := Analytics{CourseID: courseID}

	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return Analytics{}, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM students WHERE course_id=$1`, courseID).Scan(&a.StudentCount); err != nil {
		return Analytics{}, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM teams WHERE course_id=$1`, courseID).Scan(&a.TeamCount); err != nil {
		return Analytics{}, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN status='published' THEN 1 ELSE 0 END),0)
		 FROM assessments WHERE course_id=$1`, courseID).Scan(&a.AssessmentCount, &a.PublishedCount); err != nil {
		return Analytics{}, err
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		`SELECT AVG(sc.value) FROM scores sc
		 JOIN assessments ass ON ass.id=sc.assessment_id
		 WHERE ass.course_id=$1`, courseID).Scan(&avg); err != nil {
		return Analytics{}, err
	}
	if avg.Valid {
		a.AverageScore = &avg.Float64
	}

	// observation notes per OMZA category, across the course's projects,
	// teams and students
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(NULLIF(category,''),'overig'), COUNT(*) FROM notes
		 WHERE (note_type='project' AND subject_id IN (SELECT id FROM assessments WHERE course_id=$1))
		    OR (note_type='team' AND subject_id IN (SELECT id FROM teams WHERE course_id=$1))
		    OR (note_type='student' AND subject_id IN (SELECT id FROM students WHERE course_id=$1))
		 GROUP BY 1`, courseID)
	if err != nil {
		return Analytics{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return Analytics{}, err
		}
		if a.NoteCounts == nil {
			a.NoteCounts = map[string]int{}
		}
		a.NoteCounts[cat] = n
	}
	return a, rows.Err()
}

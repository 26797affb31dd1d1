package reflection

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

func (s *SQLStore) UpsertReflection(ctx context.Context, r Reflection) (Reflection, error) {
	if err := validateRating(r.Rating); err != nil {
		return Reflection{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().Unix()
	var rating sql.NullInt64
	if r.Rating != nil {
		rating = sql.NullInt64{Int64: int64(*r.Rating), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reflections (id,assessment_id,student_id,body,rating,created_at,updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$6)
		 ON CONFLICT (assessment_id,student_id)
		 DO UPDATE SET body=EXCLUDED.body, rating=EXCLUDED.rating, updated_at=EXCLUDED.updated_at`,
		r.ID, r.AssessmentID, r.StudentID, r.Body, rating, now)
	if err != nil {
		return Reflection{}, err
	}
	return s.GetReflection(ctx, r.AssessmentID, r.StudentID)
}

func (s *SQLStore) GetReflection(ctx context.Context, assessmentID, studentID string) (Reflection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,assessment_id,student_id,body,rating,created_at,updated_at
		 FROM reflections WHERE assessment_id=$1 AND student_id=$2`, assessmentID, studentID)
	return scanReflection(row)
}

func (s *SQLStore) ListReflections(ctx context.Context, assessmentID string) ([]Reflection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,assessment_id,student_id,body,rating,created_at,updated_at
		 FROM reflections WHERE assessment_id=$1 ORDER BY updated_at DESC`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Reflection{}
	for rows.Next() {
		r, err := scanReflection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReflection(row rowScanner) (Reflection, error) {
	var r Reflection
	var rating sql.NullInt64
	if err := row.Scan(&r.ID, &r.AssessmentID, &r.StudentID, &r.Body, &rating, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reflection{}, ErrNotFound
		}
		return Reflection{}, err
	}
	if rating.Valid {
		v := int(rating.Int64)
		r.Rating = &v
	}
	return r, nil
}

func (s *SQLStore) CreateCompetency(ctx context.Context, c Competency) (Competency, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO competencies (id,name,description,position) VALUES ($1,$2,$3,$4)`,
		c.ID, c.Name, c.Description, c.Position)
	if err != nil {
		return Competency{}, err
	}
	return c, nil
}

func (s *SQLStore) ListCompetencies(ctx context.Context) ([]Competency, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,name,description,position FROM competencies ORDER BY position, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Competency{}
	for rows.Next() {
		var c Competency
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Position); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpsertCompetencyScore(ctx context.Context, cs CompetencyScore) (CompetencyScore, error) {
	if err := validateScanScore(cs.SelfScore); err != nil {
		return CompetencyScore{}, err
	}
	if err := validateScanScore(cs.PeerScore); err != nil {
		return CompetencyScore{}, err
	}
	if cs.ID == "" {
		cs.ID = uuid.NewString()
	}
	cs.CreatedAt = time.Now().Unix()

	var self, peer sql.NullFloat64
	if cs.SelfScore != nil {
		self = sql.NullFloat64{Float64: *cs.SelfScore, Valid: true}
	}
	if cs.PeerScore != nil {
		peer = sql.NullFloat64{Float64: *cs.PeerScore, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO competency_scores (id,assessment_id,student_id,competency_id,self_score,peer_score,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (assessment_id,student_id,competency_id)
		 DO UPDATE SET self_score=COALESCE(EXCLUDED.self_score, competency_scores.self_score),
		               peer_score=COALESCE(EXCLUDED.peer_score, competency_scores.peer_score)`,
		cs.ID, cs.AssessmentID, cs.StudentID, cs.CompetencyID, self, peer, cs.CreatedAt)
	if err != nil {
		return CompetencyScore{}, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id,assessment_id,student_id,competency_id,self_score,peer_score,created_at
		 FROM competency_scores WHERE assessment_id=$1 AND student_id=$2 AND competency_id=$3`,
		cs.AssessmentID, cs.StudentID, cs.CompetencyID)
	return scanCompetencyScore(row)
}

func (s *SQLStore) ListCompetencyScores(ctx context.Context, assessmentID, studentID string) ([]CompetencyScore, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if studentID == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id,assessment_id,student_id,competency_id,self_score,peer_score,created_at
			 FROM competency_scores WHERE assessment_id=$1 ORDER BY student_id`, assessmentID)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id,assessment_id,student_id,competency_id,self_score,peer_score,created_at
			 FROM competency_scores WHERE assessment_id=$1 AND student_id=$2`, assessmentID, studentID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CompetencyScore{}
	for rows.Next() {
		cs, err := scanCompetencyScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func scanCompetencyScore(row rowScanner) (CompetencyScore, error) {
	var cs CompetencyScore
	var self, peer sql.NullFloat64
	if err := row.Scan(&cs.ID, &cs.AssessmentID, &cs.StudentID, &cs.CompetencyID, &self, &peer, &cs.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CompetencyScore{}, errors.New("competency score not found")
		}
		return CompetencyScore{}, err
	}
	if self.Valid {
		cs.SelfScore = &self.Float64
	}
	if peer.Valid {
		cs.PeerScore = &peer.Float64
	}
	return cs, nil
}

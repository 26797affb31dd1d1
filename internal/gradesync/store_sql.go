package gradesync

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

var _ Store = (*SQLStore)(nil)

func (s *SQLStore) FindColumn(ctx context.Context, assessmentID string) (Column, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT assessment_id,column_id,label,scale_max FROM sis_columns WHERE assessment_id=$1`, assessmentID)
	var c Column
	if err := row.Scan(&c.AssessmentID, &c.ColumnID, &c.Label, &c.ScaleMax); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Column{}, ErrColumnNotFound
		}
		return Column{}, err
	}
	return c, nil
}

func (s *SQLStore) SaveColumn(ctx context.Context, c Column) (Column, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sis_columns (assessment_id,column_id,label,scale_max) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (assessment_id) DO UPDATE SET column_id=EXCLUDED.column_id, label=EXCLUDED.label, scale_max=EXCLUDED.scale_max`,
		c.AssessmentID, c.ColumnID, c.Label, c.ScaleMax)
	if err != nil {
		return Column{}, err
	}
	return c, nil
}

func (s *SQLStore) mark(ctx context.Context, assessmentID, studentID, status, lastErr string, syncedAt *int64) error {
	var synced sql.NullInt64
	if syncedAt != nil {
		synced = sql.NullInt64{Int64: *syncedAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sis_sync_status (assessment_id,student_id,status,last_error,synced_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (assessment_id,student_id)
		 DO UPDATE SET status=EXCLUDED.status, last_error=EXCLUDED.last_error, synced_at=EXCLUDED.synced_at`,
		assessmentID, studentID, status, lastErr, synced)
	return err
}

func (s *SQLStore) MarkPending(ctx context.Context, assessmentID, studentID string) error {
	return s.mark(ctx, assessmentID, studentID, StatusPending, "", nil)
}

func (s *SQLStore) MarkOK(ctx context.Context, assessmentID, studentID string) error {
	now := time.Now().Unix()
	return s.mark(ctx, assessmentID, studentID, StatusOK, "", &now)
}

func (s *SQLStore) MarkFailed(ctx context.Context, assessmentID, studentID, lastErr string) error {
	return s.mark(ctx, assessmentID, studentID, StatusFailed, lastErr, nil)
}

func (s *SQLStore) Statuses(ctx context.Context, assessmentID string) ([]Status, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT assessment_id,student_id,status,last_error,synced_at FROM sis_sync_status
		 WHERE assessment_id=$1 ORDER BY student_id`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Status{}
	for rows.Next() {
		var st Status
		var synced sql.NullInt64
		if err := rows.Scan(&st.AssessmentID, &st.StudentID, &st.Status, &st.LastError, &synced); err != nil {
			return nil, err
		}
		if synced.Valid {
			st.SyncedAt = &synced.Int64
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

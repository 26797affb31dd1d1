package invite

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

func (s *SQLStore) Create(ctx context.Context, inv Invite) (Invite, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Token == "" {
		inv.Token = uuid.NewString()
	}
	inv.Status = StatusPending
	inv.CreatedAt = time.Now().Unix()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invites (id,assessment_id,email,token,status,expires_at,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		inv.ID, inv.AssessmentID, inv.Email, inv.Token, inv.Status, inv.ExpiresAt, inv.CreatedAt)
	if err != nil {
		return Invite{}, err
	}
	return inv, nil
}

func (s *SQLStore) GetByToken(ctx context.Context, token string) (Invite, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,assessment_id,email,token,status,expires_at,created_at,accepted_at
		 FROM invites WHERE token=$1`, token)
	var inv Invite
	var acc sql.NullInt64
	if err := row.Scan(&inv.ID, &inv.AssessmentID, &inv.Email, &inv.Token, &inv.Status,
		&inv.ExpiresAt, &inv.CreatedAt, &acc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Invite{}, ErrNotFound
		}
		return Invite{}, err
	}
	if acc.Valid {
		inv.AcceptedAt = &acc.Int64
	}
	return inv, nil
}

func (s *SQLStore) List(ctx context.Context, assessmentID string) ([]Invite, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,assessment_id,email,status,expires_at,created_at,accepted_at
		 FROM invites WHERE assessment_id=$1 ORDER BY created_at DESC`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// token deliberately not selected: listings must not leak it
	out := []Invite{}
	for rows.Next() {
		var inv Invite
		var acc sql.NullInt64
		if err := rows.Scan(&inv.ID, &inv.AssessmentID, &inv.Email, &inv.Status,
			&inv.ExpiresAt, &inv.CreatedAt, &acc); err != nil {
			return nil, err
		}
		if acc.Valid {
			inv.AcceptedAt = &acc.Int64
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *SQLStore) MarkAccepted(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invites SET status=$1, accepted_at=$2 WHERE id=$3 AND status=$4`,
		StatusAccepted, time.Now().Unix(), id, StatusPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUsed
	}
	return nil
}

func (s *SQLStore) Revoke(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invites SET status=$1 WHERE id=$2 AND status=$3`,
		StatusRevoked, id, StatusPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

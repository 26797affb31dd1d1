package notes

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

func (s *SQLStore) Create(ctx context.Context, n Note) (Note, error) {
	if err := n.validate(); err != nil {
		return Note{}, err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().Unix()
	n.CreatedAt, n.UpdatedAt = now, now

	tj, err := json.Marshal(n.Tags)
	if err != nil {
		return Note{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notes (id,note_type,subject_id,body,tags_json,category,evidence,author,created_at,updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		n.ID, n.NoteType, n.SubjectID, n.Body, string(tj), n.Category, boolInt(n.Evidence), n.Author, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return Note{}, err
	}
	return n, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,note_type,subject_id,body,tags_json,category,evidence,author,created_at,updated_at
		 FROM notes WHERE id=$1`, id)
	return scanNote(row)
}

func (s *SQLStore) Update(ctx context.Context, n Note) (Note, error) {
	cur, err := s.Get(ctx, n.ID)
	if err != nil {
		return Note{}, err
	}
	cur.Body = n.Body
	cur.Category = n.Category
	cur.Evidence = n.Evidence
	if n.Tags != nil {
		cur.Tags = n.Tags
	}
	if err := cur.validate(); err != nil {
		return Note{}, err
	}
	tj, err := json.Marshal(cur.Tags)
	if err != nil {
		return Note{}, err
	}
	cur.UpdatedAt = time.Now().Unix()
	_, err = s.db.ExecContext(ctx,
		`UPDATE notes SET body=$1, tags_json=$2, category=$3, evidence=$4, updated_at=$5 WHERE id=$6`,
		cur.Body, string(tj), cur.Category, boolInt(cur.Evidence), cur.UpdatedAt, cur.ID)
	if err != nil {
		return Note{}, err
	}
	return cur, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Note, error) {
	conds := []string{}
	args := []any{}
	n := 1
	add := func(cond string, arg any) {
		conds = append(conds, fmt.Sprintf(cond, n))
		args = append(args, arg)
		n++
	}
	if opts.NoteType != "" {
		add("note_type=$%d", opts.NoteType)
	}
	if opts.SubjectID != "" {
		add("subject_id=$%d", opts.SubjectID)
	}
	if opts.Category != "" {
		add("category=$%d", opts.Category)
	}
	if opts.Tag != "" {
		// tags live in a JSON array; match the quoted element
		add("tags_json LIKE '%%' || $%d || '%%'", fmt.Sprintf("%q", opts.Tag))
	}
	if opts.EvidenceOnly {
		conds = append(conds, "evidence=1")
	}
	if q := strings.TrimSpace(opts.Q); q != "" {
		add("LOWER(body) LIKE '%%' || LOWER($%d) || '%%'", q)
	}

	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id,note_type,subject_id,body,tags_json,category,evidence,author,created_at,updated_at FROM notes`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", n, n+1)
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, note)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (Note, error) {
	var n Note
	var tj string
	var ev int
	if err := row.Scan(&n.ID, &n.NoteType, &n.SubjectID, &n.Body, &tj, &n.Category, &ev,
		&n.Author, &n.CreatedAt, &n.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Note{}, ErrNotFound
		}
		return Note{}, err
	}
	if err := json.Unmarshal([]byte(tj), &n.Tags); err != nil {
		n.Tags = nil
	}
	n.Evidence = ev != 0
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

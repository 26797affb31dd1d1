package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	hmac []byte
	ttl  time.Duration
}

func NewService(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Service{hmac: []byte(secret), ttl: ttl}
}

type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"` // teacher|student|reviewer|admin
	Name string `json:"name,omitempty"`
	// Reviewers are scoped to a single assessment.
	AssessmentID string `json:"assessment_id,omitempty"`
	jwt.RegisteredClaims
}

func (s *Service) IssueToken(sub, role, name string) (string, error) {
	return s.issue(&Claims{Sub: sub, Role: role, Name: name}, s.ttl)
}

// IssueReviewerToken issues a short-lived token scoped to one assessment,
// used by external reviewers who accepted an invite.
func (s *Service) IssueReviewerToken(sub, assessmentID string, ttl time.Duration) (string, error) {
	return s.issue(&Claims{Sub: sub, Role: "reviewer", AssessmentID: assessmentID}, ttl)
}

func (s *Service) issue(claims *Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    "projectmaat",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.hmac)
}

func (s *Service) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.hmac, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	c, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	return c, nil
}

// Authenticate checks a username/password pair against the users table and
// returns the matching user's id, role and display name.
func (s *Service) Authenticate(ctx context.Context, dbh *sql.DB, username, password string) (id, role, name string, err error) {
	var hash string
	err = dbh.QueryRowContext(ctx,
		`SELECT id, password_hash, role, display_name FROM users WHERE username=$1`,
		username,
	).Scan(&id, &hash, &role, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", "", ErrInvalidCredentials
	}
	if err != nil {
		return "", "", "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", "", "", ErrInvalidCredentials
	}
	return id, role, name, nil
}

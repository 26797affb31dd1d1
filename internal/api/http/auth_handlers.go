package http

import (
	"database/sql"
	"errors"
	nethttp "net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/projectmaat/projectmaat/internal/auth"
	"github.com/projectmaat/projectmaat/internal/invite"
	"github.com/projectmaat/projectmaat/internal/rbac"
)

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResp struct {
	Token string `json:"token"`
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
}

func LoginHandler(authSvc *auth.Service, dbh *sql.DB) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req loginReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}
		id, role, name, err := authSvc.Authenticate(r.Context(), dbh, req.Username, req.Password)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		token, err := authSvc.IssueToken(id, role, name)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, sessionResp{Token: token, Role: role, Name: name})
	}
}

// AcceptInviteHandler exchanges a pending invite token for a reviewer
// session scoped to the invite's assessment. Public: the reviewer has
// no account.
func AcceptInviteHandler(authSvc *auth.Service, invites *invite.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Token string `json:"token" validate:"required"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}
		inv, err := invites.Accept(r.Context(), req.Token)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		token, err := authSvc.IssueReviewerToken(inv.Email, inv.AssessmentID, 24*time.Hour)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, sessionResp{Token: token, Role: "reviewer", Name: inv.Email})
	}
}

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func ChangePasswordHandler(dbh *sql.DB) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		userID := rbac.SubjectFromContext(r.Context())
		var req changePasswordReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}

		var storedHash string
		err := dbh.QueryRowContext(r.Context(),
			`SELECT password_hash FROM users WHERE id=$1`, userID).Scan(&storedHash)
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, nethttp.StatusNotFound, "gebruiker niet gevonden")
			return
		}
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(req.OldPassword)) != nil {
			writeError(w, nethttp.StatusForbidden, "huidig wachtwoord klopt niet")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), 12)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if _, err := dbh.ExecContext(r.Context(),
			`UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), userID); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

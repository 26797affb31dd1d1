package http

import (
	"log/slog"
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/projectmaat/projectmaat/internal/assessment"
	"github.com/projectmaat/projectmaat/internal/invite"
	"github.com/projectmaat/projectmaat/internal/rbac"
)

// CreateInviteHandler mails a single-use reviewer invite for an
// assessment. The response echoes the invite without its token; the
// token only travels by email.
func CreateInviteHandler(invites *invite.Service, store assessment.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Email string `json:"email" validate:"required,email"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}

		a, err := store.Get(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		inviter := rbac.DisplayNameFromContext(r.Context())
		inv, err := invites.Invite(r.Context(), a.ID, req.Email, a.Title, inviter)
		if err != nil {
			if inv.ID == "" {
				writeDomainError(w, r, err)
				return
			}
			// invite exists, only delivery failed; the teacher can re-send
			slog.WarnContext(r.Context(), "invite mail failed", "invite_id", inv.ID, "err", err)
		}
		inv.Token = ""
		writeJSON(w, nethttp.StatusCreated, inv)
	}
}

func ListInvitesHandler(invites *invite.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		list, err := invites.List(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		for i := range list {
			list[i].Token = ""
		}
		writeJSON(w, nethttp.StatusOK, list)
	}
}

// RevokeInviteHandler invalidates a pending invite; the emailed token
// stops working immediately.
func RevokeInviteHandler(invites *invite.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := invites.Revoke(r.Context(), chi.URLParam(r, "inviteID")); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

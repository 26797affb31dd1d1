package http

import (
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/projectmaat/projectmaat/internal/roster"
)

func CreateTeamHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Name       string `json:"name"`
			TeamNumber int    `json:"team_number"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		t, err := store.CreateTeam(r.Context(), roster.Team{
			CourseID:   chi.URLParam(r, "courseID"),
			Name:       req.Name,
			TeamNumber: req.TeamNumber,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, t)
	}
}

func ListTeamsHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ts, err := store.ListTeams(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, ts)
	}
}

func GetTeamHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		t, err := store.GetTeam(r.Context(), chi.URLParam(r, "teamID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, t)
	}
}

func RenameTeamHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Name string `json:"name" validate:"required"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}
		t, err := store.RenameTeam(r.Context(), chi.URLParam(r, "teamID"), req.Name)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, t)
	}
}

func DeleteTeamHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := store.DeleteTeam(r.Context(), chi.URLParam(r, "teamID")); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// SetTeamMembersHandler replaces a team's member list in one call, the
// way the team editor saves.
func SetTeamMembersHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			StudentIDs []string `json:"student_ids"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		teamID := chi.URLParam(r, "teamID")
		if err := store.SetTeamMembers(r.Context(), teamID, req.StudentIDs); err != nil {
			writeDomainError(w, r, err)
			return
		}
		t, err := store.GetTeam(r.Context(), teamID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, t)
	}
}

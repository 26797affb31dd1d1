package http

import (
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/projectmaat/projectmaat/internal/assessment"
	"github.com/projectmaat/projectmaat/internal/audit"
	"github.com/projectmaat/projectmaat/internal/rbac"
)

// UpdateScoreHandler writes one grid cell. Out-of-range values come
// back as 422 with nothing written.
func UpdateScoreHandler(store assessment.Store, events *audit.EventRepo) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var u assessment.ScoreUpdate
		if err := decodeJSON(r, &u); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if u.CriterionID == "" {
			writeError(w, nethttp.StatusBadRequest, "criterion_id is verplicht")
			return
		}
		assessmentID := chi.URLParam(r, "assessmentID")
		actor := rbac.SubjectFromContext(r.Context())
		sc, err := store.UpsertScore(r.Context(), assessmentID, u, actor)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		_ = events.Append(r.Context(), audit.EventScoreUpdated, assessmentID, actor, u)
		writeJSON(w, nethttp.StatusOK, sc)
	}
}

// BatchUpdateScoresHandler is the autosave commit point: every update
// validated first, then applied in one transaction, all or nothing.
func BatchUpdateScoresHandler(store assessment.Store, events *audit.EventRepo) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Updates []assessment.ScoreUpdate `json:"updates" validate:"required,min=1"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}
		assessmentID := chi.URLParam(r, "assessmentID")
		actor := rbac.SubjectFromContext(r.Context())
		scs, err := store.BatchUpsertScores(r.Context(), assessmentID, req.Updates, actor)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		_ = events.Append(r.Context(), audit.EventScoresBatchUpdated, assessmentID, actor,
			map[string]int{"cells": len(req.Updates)})
		writeJSON(w, nethttp.StatusOK, scs)
	}
}

func ListScoresHandler(store assessment.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		scs, err := store.ListScores(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, scs)
	}
}

// Package http carries the dashboard's JSON API. Handlers are closures
// over the stores they need; routes are assembled in router.go.
//
// Every error response uses the envelope {"detail": ..., "auth_error":
// ...} that the client SDK's error taxonomy is built on.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"

	"github.com/projectmaat/projectmaat/internal/assessment"
	"github.com/projectmaat/projectmaat/internal/auth"
	"github.com/projectmaat/projectmaat/internal/gradesync"
	"github.com/projectmaat/projectmaat/internal/invite"
	"github.com/projectmaat/projectmaat/internal/notes"
	"github.com/projectmaat/projectmaat/internal/reflection"
	"github.com/projectmaat/projectmaat/internal/roster"
)

func writeJSON(w nethttp.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w nethttp.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]any{
		"detail":     detail,
		"auth_error": code == nethttp.StatusUnauthorized || code == nethttp.StatusForbidden,
	})
}

// writeDomainError translates store errors into the status codes and
// Dutch details the dashboard shows.
func writeDomainError(w nethttp.ResponseWriter, r *nethttp.Request, err error) {
	var rng *assessment.OutOfRangeError
	switch {
	case errors.As(err, &rng):
		writeError(w, nethttp.StatusUnprocessableEntity,
			fmt.Sprintf("score %.0f valt buiten de schaal %d-%d", rng.Value, rng.Min, rng.Max))
	case errors.Is(err, assessment.ErrNotFound):
		writeError(w, nethttp.StatusNotFound, "beoordeling niet gevonden")
	case errors.Is(err, assessment.ErrRubricNotFound):
		writeError(w, nethttp.StatusNotFound, "rubric niet gevonden")
	case errors.Is(err, assessment.ErrCriterionNotFound):
		writeError(w, nethttp.StatusNotFound, "criterium niet gevonden")
	case errors.Is(err, assessment.ErrSubmissionNotFound):
		writeError(w, nethttp.StatusNotFound, "inlevering niet gevonden")
	case errors.Is(err, assessment.ErrAlreadyPublished):
		writeError(w, nethttp.StatusConflict, "beoordeling is al gepubliceerd")
	case errors.Is(err, roster.ErrCourseNotFound):
		writeError(w, nethttp.StatusNotFound, "klas niet gevonden")
	case errors.Is(err, roster.ErrStudentNotFound):
		writeError(w, nethttp.StatusNotFound, "leerling niet gevonden")
	case errors.Is(err, roster.ErrTeamNotFound):
		writeError(w, nethttp.StatusNotFound, "team niet gevonden")
	case errors.Is(err, notes.ErrNotFound):
		writeError(w, nethttp.StatusNotFound, "notitie niet gevonden")
	case errors.Is(err, reflection.ErrNotFound):
		writeError(w, nethttp.StatusNotFound, "reflectie niet gevonden")
	case errors.Is(err, invite.ErrNotFound):
		writeError(w, nethttp.StatusNotFound, "uitnodiging niet gevonden")
	case errors.Is(err, invite.ErrExpired):
		writeError(w, nethttp.StatusGone, "uitnodiging is verlopen")
	case errors.Is(err, invite.ErrUsed):
		writeError(w, nethttp.StatusConflict, "uitnodiging is al gebruikt of ingetrokken")
	case errors.Is(err, invite.ErrBadEmail):
		writeError(w, nethttp.StatusBadRequest, "ongeldig e-mailadres")
	case errors.Is(err, gradesync.ErrColumnNotFound):
		writeError(w, nethttp.StatusNotFound, "cijferkolom niet gevonden")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, nethttp.StatusUnauthorized, "onjuiste gebruikersnaam of wachtwoord")
	case errors.Is(err, assessment.ErrInvalid),
		errors.Is(err, notes.ErrInvalid),
		errors.Is(err, reflection.ErrInvalid):
		writeError(w, nethttp.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, nethttp.StatusInternalServerError, "Er is iets misgegaan. Probeer het opnieuw.")
	}
}

func decodeJSON(r *nethttp.Request, v any) error {
	dec := json.NewDecoder(nethttp.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

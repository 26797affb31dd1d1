package http

import (
	"log/slog"
	nethttp "net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/projectmaat/projectmaat/internal/export"
	"github.com/projectmaat/projectmaat/internal/notes"
	"github.com/projectmaat/projectmaat/internal/rbac"
)

type noteReq struct {
	NoteType  string   `json:"note_type" validate:"required,oneof=project team student"`
	SubjectID string   `json:"subject_id" validate:"required"`
	Body      string   `json:"body" validate:"required"`
	Tags      []string `json:"tags"`
	Category  string   `json:"category" validate:"omitempty,oneof=organiseren meedoen zelfvertrouwen autonomie"`
	Evidence  bool     `json:"evidence"`
}

func CreateNoteHandler(store notes.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req noteReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}
		n, err := store.Create(r.Context(), notes.Note{
			NoteType:  req.NoteType,
			SubjectID: req.SubjectID,
			Body:      req.Body,
			Tags:      req.Tags,
			Category:  req.Category,
			Evidence:  req.Evidence,
			Author:    rbac.SubjectFromContext(r.Context()),
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, n)
	}
}

func GetNoteHandler(store notes.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		n, err := store.Get(r.Context(), chi.URLParam(r, "noteID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, n)
	}
}

func UpdateNoteHandler(store notes.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		cur, err := store.Get(r.Context(), chi.URLParam(r, "noteID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		var req noteReq
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}
		cur.NoteType = req.NoteType
		cur.SubjectID = req.SubjectID
		cur.Body = req.Body
		cur.Tags = req.Tags
		cur.Category = req.Category
		cur.Evidence = req.Evidence
		n, err := store.Update(r.Context(), cur)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, n)
	}
}

func DeleteNoteHandler(store notes.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := store.Delete(r.Context(), chi.URLParam(r, "noteID")); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

func noteOptsFromQuery(r *nethttp.Request) notes.ListOpts {
	q := r.URL.Query()
	opts := notes.ListOpts{
		NoteType:     q.Get("type"),
		SubjectID:    q.Get("subject_id"),
		Category:     q.Get("category"),
		Tag:          q.Get("tag"),
		EvidenceOnly: q.Get("evidence") == "true",
		Q:            q.Get("q"),
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = n
	}
	return opts
}

func ListNotesHandler(store notes.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ns, err := store.List(r.Context(), noteOptsFromQuery(r))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, ns)
	}
}

// ExportNotesHandler downloads the current filter selection as CSV, so
// notes can go into a report conversation or the student's portfolio.
func ExportNotesHandler(store notes.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ns, err := store.List(r.Context(), noteOptsFromQuery(r))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename("notities", "csv")+`"`)
		if err := export.NotesCSV(w, ns); err != nil {
			slog.ErrorContext(r.Context(), "export stream failed", "kind", "notes", "err", err)
		}
	}
}

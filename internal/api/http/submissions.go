package http

import (
	"fmt"
	"io"
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/projectmaat/projectmaat/internal/assessment"
	"github.com/projectmaat/projectmaat/internal/rbac"
	"github.com/projectmaat/projectmaat/internal/storage"
)

const maxSubmissionBytes = 32 << 20

// UploadSubmissionHandler accepts a multipart deliverable for a team.
// The file lands in blob storage first; the metadata row only exists
// once the blob write succeeded.
func UploadSubmissionHandler(store assessment.Store, blobs storage.BlobStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assessmentID := chi.URLParam(r, "assessmentID")
		if _, err := store.Get(r.Context(), assessmentID); err != nil {
			writeDomainError(w, r, err)
			return
		}

		r.Body = nethttp.MaxBytesReader(w, r.Body, maxSubmissionBytes)
		if err := r.ParseMultipartForm(4 << 20); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige upload")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, nethttp.StatusBadRequest, "bestand ontbreekt")
			return
		}
		defer file.Close()

		teamID := r.FormValue("team_id")
		if teamID == "" {
			writeError(w, nethttp.StatusBadRequest, "team_id is verplicht")
			return
		}

		key, err := blobs.Put(storage.SubmissionKey(assessmentID, teamID, header.Filename), file)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		sub, err := store.CreateSubmission(r.Context(), assessment.Submission{
			AssessmentID: assessmentID,
			TeamID:       teamID,
			Filename:     header.Filename,
			BlobKey:      key,
			ContentType:  header.Header.Get("Content-Type"),
			Size:         header.Size,
			UploadedBy:   rbac.SubjectFromContext(r.Context()),
		})
		if err != nil {
			_ = blobs.Delete(key)
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, sub)
	}
}

func ListSubmissionsHandler(store assessment.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		subs, err := store.ListSubmissions(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, subs)
	}
}

// DownloadSubmissionHandler streams the stored blob back with the
// original filename.
func DownloadSubmissionHandler(store assessment.Store, blobs storage.BlobStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sub, err := store.GetSubmission(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		// this route has no {assessmentID}, so the reviewer scope is
		// checked against the stored record instead
		if scope := rbac.AssessmentScopeFromContext(r.Context()); scope != "" && scope != sub.AssessmentID {
			writeError(w, nethttp.StatusForbidden, "geen toegang tot deze beoordeling")
			return
		}
		rc, err := blobs.Get(sub.BlobKey)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", sub.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sub.Filename))
		if sub.Size > 0 {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", sub.Size))
		}
		_, _ = io.Copy(w, rc)
	}
}

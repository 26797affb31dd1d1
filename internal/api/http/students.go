package http

import (
	"encoding/csv"
	"io"
	"mime"
	nethttp "net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/projectmaat/projectmaat/internal/roster"
)

func CreateStudentHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Number   string `json:"number"`
			FullName string `json:"full_name" validate:"required"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
			return
		}
		if err := checkStruct(req); err != nil {
			writeError(w, nethttp.StatusBadRequest, err.Error())
			return
		}
		st, err := store.CreateStudent(r.Context(), roster.Student{
			CourseID: chi.URLParam(r, "courseID"),
			Number:   req.Number,
			FullName: req.FullName,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, st)
	}
}

func ListStudentsHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sts, err := store.ListStudents(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, sts)
	}
}

func DeleteStudentHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := store.DeleteStudent(r.Context(), chi.URLParam(r, "studentID")); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// ImportStudentsHandler takes a class list as CSV (raw body or
// multipart "file" field) or as a JSON array, and upserts it in one
// transaction. Rows match on student number.
func ImportStudentsHandler(store roster.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		courseID := chi.URLParam(r, "courseID")

		var (
			sts []roster.Student
			err error
		)
		ctype, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch {
		case ctype == "application/json":
			var rows []struct {
				Number   string `json:"number"`
				FullName string `json:"full_name"`
			}
			if err := decodeJSON(r, &rows); err != nil {
				writeError(w, nethttp.StatusBadRequest, "ongeldige aanvraag")
				return
			}
			for _, row := range rows {
				sts = append(sts, roster.Student{Number: row.Number, FullName: row.FullName})
			}
		case strings.HasPrefix(ctype, "multipart/"):
			if err := r.ParseMultipartForm(4 << 20); err != nil {
				writeError(w, nethttp.StatusBadRequest, "bestand kon niet worden gelezen")
				return
			}
			f, _, ferr := r.FormFile("file")
			if ferr != nil {
				writeError(w, nethttp.StatusBadRequest, "bestand ontbreekt")
				return
			}
			defer f.Close()
			sts, err = parseStudentCSV(f)
		default: // raw CSV body
			sts, err = parseStudentCSV(nethttp.MaxBytesReader(w, r.Body, 4<<20))
		}
		if err != nil {
			writeError(w, nethttp.StatusBadRequest, "CSV kon niet worden gelezen: "+err.Error())
			return
		}
		if len(sts) == 0 {
			writeError(w, nethttp.StatusBadRequest, "geen leerlingen in de aanvraag")
			return
		}

		n, err := store.ImportStudents(r.Context(), courseID, sts)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]int{"imported": n})
	}
}

// parseStudentCSV reads "number,full name" rows; a header row is
// skipped when the first field is not a digit.
func parseStudentCSV(r io.Reader) ([]roster.Student, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []roster.Student
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 {
			continue
		}
		if first {
			first = false
			if len(rec[0]) > 0 && (rec[0][0] < '0' || rec[0][0] > '9') {
				continue // header
			}
		}
		st := roster.Student{Number: strings.TrimSpace(rec[0])}
		if len(rec) > 1 {
			st.FullName = strings.TrimSpace(rec[1])
		}
		if st.Number == "" && st.FullName == "" {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

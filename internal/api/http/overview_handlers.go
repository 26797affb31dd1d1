package http

import (
	"log/slog"
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/projectmaat/projectmaat/internal/export"
	"github.com/projectmaat/projectmaat/internal/overview"
)

func filterFromQuery(r *nethttp.Request) overview.Filter {
	q := r.URL.Query()
	return overview.Filter{
		Query:          q.Get("q"),
		IncompleteOnly: q.Get("incomplete") == "true",
		SortBy:         q.Get("sort"),
		Desc:           q.Get("desc") == "true" || q.Get("order") == "desc",
	}
}

// OverviewHandler returns the scoring grid with filters and sorting
// applied server-side; the aggregates always describe the rows that
// are returned.
func OverviewHandler(svc *overview.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		m, err := svc.Build(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, m.Apply(filterFromQuery(r)))
	}
}

// ExportHandler streams the filtered grid as a download. format=csv
// (default) or xlsx.
func ExportHandler(svc *overview.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		m, err := svc.Build(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		m = m.Apply(filterFromQuery(r))

		// from here on the body is a stream; failures can only be logged
		switch r.URL.Query().Get("format") {
		case "xlsx":
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(m.Title, "xlsx")+`"`)
			err = export.XLSX(w, m)
		default:
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(m.Title, "csv")+`"`)
			err = export.CSV(w, m)
		}
		if err != nil {
			slog.ErrorContext(r.Context(), "export stream failed", "assessment_id", m.AssessmentID, "err", err)
		}
	}
}

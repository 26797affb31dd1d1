package export

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/projectmaat/projectmaat/internal/notes"
	"github.com/projectmaat/projectmaat/internal/overview"
)

// CSV writes the overview grid. encoding/csv handles the quoting, so
// team names containing commas or quotes survive a round trip.
func CSV(w io.Writer, m overview.Matrix) error {
	cw := csv.NewWriter(w)

	label := "Team"
	if m.GradingMode == "individual" {
		label = "Leerling"
	}
	header := []string{label}
	for _, c := range m.Columns {
		header = append(header, c.Name)
	}
	header = append(header, AverageRowLabel)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range m.Rows {
		rec := []string{r.Label()}
		for _, c := range r.Cells {
			rec = append(rec, formatCell(c.Score))
		}
		rec = append(rec, formatCell(r.Average))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	// footer only when there is at least one row to average
	if len(m.Rows) > 0 {
		rec := []string{AverageRowLabel}
		for _, c := range m.Columns {
			rec = append(rec, formatCell(c.Average))
		}
		rec = append(rec, formatCell(m.Overall))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// NotesCSV writes observation notes as a flat list.
func NotesCSV(w io.Writer, ns []notes.Note) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Datum", "Type", "Onderwerp", "Categorie", "Tags", "Bewijs", "Notitie"}); err != nil {
		return err
	}
	for _, n := range ns {
		ev := "nee"
		if n.Evidence {
			ev = "ja"
		}
		rec := []string{
			time.Unix(n.CreatedAt, 0).UTC().Format("2006-01-02"),
			n.NoteType,
			n.SubjectID,
			n.Category,
			joinTags(n.Tags),
			ev,
			n.Body,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += ", "
		}
		out += t
	}
	return out
}

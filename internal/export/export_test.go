package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/projectmaat/projectmaat/internal/notes"
	"github.com/projectmaat/projectmaat/internal/overview"
)

func fp(v float64) *float64 { return &v }

func sample() overview.Matrix {
	m := overview.Matrix{
		Title:       "Eindproject Periode 1",
		GradingMode: "team",
		Columns: []overview.Column{
			{CriterionID: "c1", Name: "Onderzoek"},
			{CriterionID: "c2", Name: "Presentatie, en meer"},
		},
		Rows: []overview.Row{
			{TeamNumber: 1, TeamName: `Team "De, Uitvinders"`, Cells: []overview.Cell{{Score: fp(7)}, {Score: fp(8)}}},
			{TeamNumber: 2, TeamName: "Moonshot", Cells: []overview.Cell{{}, {Score: fp(6)}}},
		},
	}
	// Apply with an empty filter computes the aggregates
	return m.Apply(overview.Filter{})
}

func TestCSVRoundTripsAwkwardNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, sample()))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 4) // header, 2 teams, footer

	assert.Equal(t, []string{"Team", "Onderzoek", "Presentatie, en meer", "Gemiddelde"}, recs[0])
	// commas and quotes in the name survive parsing unchanged
	assert.Equal(t, `Team "De, Uitvinders"`, recs[1][0])
	assert.Equal(t, []string{"7.0", "8.0", "7.5"}, recs[1][1:])
}

func TestCSVLeavesMissingCellsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, sample()))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	moonshot := recs[2]
	assert.Equal(t, "Moonshot", moonshot[0])
	assert.Equal(t, "", moonshot[1]) // unscored, not "0.0"
	assert.Equal(t, "6.0", moonshot[2])
}

func TestCSVFooterAverages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, sample()))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	footer := recs[len(recs)-1]
	assert.Equal(t, AverageRowLabel, footer[0])
	assert.Equal(t, "7.0", footer[1]) // only team 1 scored Onderzoek
	assert.Equal(t, "7.0", footer[2])
	assert.Equal(t, "7.0", footer[3])
}

func TestCSVWithoutRowsHasNoFooter(t *testing.T) {
	m := sample()
	m = m.Apply(overview.Filter{Query: "bestaat niet"})

	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, m))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 1) // header only
}

func TestCSVRoundsToOneDecimal(t *testing.T) {
	m := overview.Matrix{
		Columns: []overview.Column{{CriterionID: "c1", Name: "Onderzoek"}},
		Rows: []overview.Row{
			{TeamNumber: 1, TeamName: "A", Cells: []overview.Cell{{Score: fp(7)}}},
			{TeamNumber: 2, TeamName: "B", Cells: []overview.Cell{{Score: fp(8)}}},
			{TeamNumber: 3, TeamName: "C", Cells: []overview.Cell{{Score: fp(8)}}},
		},
	}
	m = m.Apply(overview.Filter{})

	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, m))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	footer := recs[len(recs)-1]
	assert.Equal(t, "7.7", footer[1]) // 23/3 displayed with one decimal
}

func TestXLSXWritesGrid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XLSX(&buf, sample()))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	sheet := "Eindproject Periode 1"
	assert.Equal(t, []string{sheet}, f.GetSheetList())

	got := func(cell string) string {
		v, err := f.GetCellValue(sheet, cell)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Team", got("A1"))
	assert.Equal(t, "Onderzoek", got("B1"))
	assert.Equal(t, `Team "De, Uitvinders"`, got("A2"))
	assert.Equal(t, "7", got("B2"))
	assert.Equal(t, "7.5", got("D2"))
	assert.Equal(t, "", got("B3")) // Moonshot never scored Onderzoek

	assert.Equal(t, AverageRowLabel, got("A4"))
	assert.Equal(t, "7", got("B4"))
}

func TestXLSXSheetNameConstraints(t *testing.T) {
	assert.Equal(t, "Overzicht", sheetName(""))
	assert.Equal(t, "a  b", sheetName("a[]b"))

	long := sheetName("Een hele lange projecttitel die niet in een tabblad past")
	assert.LessOrEqual(t, len([]rune(long)), 31)
}

func TestNotesCSV(t *testing.T) {
	ns := []notes.Note{
		{NoteType: notes.TypeStudent, SubjectID: "s1", Body: "Neemt de leiding, maar luistert ook",
			Category: notes.CategoryMeedoen, Tags: []string{"samenwerken", "leiderschap"}, Evidence: true, CreatedAt: 1735689600},
	}

	var buf bytes.Buffer
	require.NoError(t, NotesCSV(&buf, ns))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "2025-01-01", recs[1][0])
	assert.Equal(t, "meedoen", recs[1][3])
	assert.Equal(t, "samenwerken, leiderschap", recs[1][4])
	assert.Equal(t, "ja", recs[1][5])
	assert.Equal(t, "Neemt de leiding, maar luistert ook", recs[1][6])
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "eindproject-periode-1.csv", Filename("Eindproject Periode 1!", "csv"))
	assert.Equal(t, "overzicht.xlsx", Filename("???", "xlsx"))
}

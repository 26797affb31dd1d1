// Package overview shapes scores into the grid the scoring screen and
// the exports are built from: one row per team (or student), one column
// per criterion, with row and overall averages and per-column average,
// min and max.
//
// Averages only ever include cells that were actually scored. A missing
// cell is missing, not zero; a row or column with no scores has no
// average at all.
package overview

import (
	"sort"
	"strings"
)

type Cell struct {
	Score   *float64 `json:"score"` // nil = not yet scored
	Comment string   `json:"comment,omitempty"`
}

type Row struct {
	TeamNumber  int      `json:"team_number,omitempty"`
	TeamName    string   `json:"team_name,omitempty"`
	StudentID   string   `json:"student_id,omitempty"`
	StudentName string   `json:"student_name,omitempty"`
	Cells       []Cell   `json:"cells"`
	Average     *float64 `json:"average"`
	Missing     int      `json:"missing"` // unscored cells in this row
}

// Label is what the row is called in the grid and in exports.
func (r Row) Label() string {
	if r.StudentName != "" {
		return r.StudentName
	}
	return r.TeamName
}

type Column struct {
	CriterionID string   `json:"criterion_id"`
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	Average     *float64 `json:"average"`
	Min         *float64 `json:"min"`
	Max         *float64 `json:"max"`
}

type Matrix struct {
	AssessmentID string   `json:"assessment_id"`
	Title        string   `json:"title"`
	GradingMode  string   `json:"grading_mode"`
	Status       string   `json:"status"`
	Version      int      `json:"version"`
	ScaleMin     int      `json:"scale_min"`
	ScaleMax     int      `json:"scale_max"`
	Columns      []Column `json:"columns"`
	Rows         []Row    `json:"rows"`
	Overall      *float64 `json:"overall"` // average over every scored cell
}

// mean returns nil for an empty slice, never 0.
func mean(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	m := sum / float64(len(vals))
	return &m
}

// recompute refreshes every aggregate from the current rows. Called
// after building and again after filtering, so the footer always
// describes the rows that are actually visible.
func (m *Matrix) recompute() {
	all := []float64{}
	colVals := make([][]float64, len(m.Columns))

	for i := range m.Rows {
		row := &m.Rows[i]
		rowVals := []float64{}
		row.Missing = 0
		for j, c := range row.Cells {
			if c.Score == nil {
				row.Missing++
				continue
			}
			rowVals = append(rowVals, *c.Score)
			if j < len(colVals) {
				colVals[j] = append(colVals[j], *c.Score)
			}
			all = append(all, *c.Score)
		}
		row.Average = mean(rowVals)
	}
	for j := range m.Columns {
		m.Columns[j].Average = mean(colVals[j])
		m.Columns[j].Min, m.Columns[j].Max = minMax(colVals[j])
	}
	m.Overall = mean(all)
}

func minMax(vals []float64) (lo, hi *float64) {
	if len(vals) == 0 {
		return nil, nil
	}
	l, h := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < l {
			l = v
		}
		if v > h {
			h = v
		}
	}
	return &l, &h
}

// Filter narrows and orders the rows of a matrix. SortBy is "row"
// (default order), "average", or a criterion id; for comparison only,
// rows missing that value rank as 0.
type Filter struct {
	Query          string
	IncompleteOnly bool
	SortBy         string
	Desc           bool
}

func (m Matrix) Apply(f Filter) Matrix {
	out := m
	out.Rows = make([]Row, 0, len(m.Rows))

	q := strings.ToLower(strings.TrimSpace(f.Query))
	for _, r := range m.Rows {
		if q != "" && !strings.Contains(strings.ToLower(r.Label()), q) {
			continue
		}
		if f.IncompleteOnly && r.Missing == 0 {
			continue
		}
		row := r
		row.Cells = append([]Cell(nil), r.Cells...)
		out.Rows = append(out.Rows, row)
	}

	out.Columns = append([]Column(nil), m.Columns...)
	out.sortRows(f)
	out.recompute()
	return out
}

func (m *Matrix) sortRows(f Filter) {
	key := func(r Row) float64 {
		switch f.SortBy {
		case "", "row":
			return 0 // handled below
		case "average":
			if r.Average == nil {
				return 0
			}
			return *r.Average
		default:
			for j, c := range m.Columns {
				if c.CriterionID == f.SortBy {
					if j < len(r.Cells) && r.Cells[j].Score != nil {
						return *r.Cells[j].Score
					}
					return 0
				}
			}
			return 0
		}
	}

	switch f.SortBy {
	case "", "row":
		sort.SliceStable(m.Rows, func(i, j int) bool {
			a, b := m.Rows[i], m.Rows[j]
			if a.TeamNumber != b.TeamNumber {
				if f.Desc {
					return a.TeamNumber > b.TeamNumber
				}
				return a.TeamNumber < b.TeamNumber
			}
			if f.Desc {
				return strings.ToLower(a.Label()) > strings.ToLower(b.Label())
			}
			return strings.ToLower(a.Label()) < strings.ToLower(b.Label())
		})
	default:
		sort.SliceStable(m.Rows, func(i, j int) bool {
			if f.Desc {
				return key(m.Rows[i]) > key(m.Rows[j])
			}
			return key(m.Rows[i]) < key(m.Rows[j])
		})
	}
}

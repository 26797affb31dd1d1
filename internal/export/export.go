// Package export renders a scoring overview as a CSV or XLSX download.
// Cell values are rounded to one decimal for display; cells that were
// never scored stay empty instead of becoming zeros.
package export

import (
	"math"
	"strconv"
	"strings"
)

// AverageRowLabel is the label of the footer row carrying the
// per-criterion averages.
const AverageRowLabel = "Gemiddelde"

func formatScore(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', 1, 64)
}

func formatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return formatScore(*v)
}

// Filename builds a safe download name like "eindproject-periode-1.csv".
func Filename(title, ext string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, title)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "overzicht"
	}
	return slug + "." + ext
}

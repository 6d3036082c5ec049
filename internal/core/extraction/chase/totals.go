package chase

import (
	"regexp"
	"strings"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/core/extraction"
)

var (
	totalsLine        = regexp.MustCompile(`(?i)TOTALS?[*:\s]+(\d[\d,]*)[*\s]+(\(?-?\$?\s?[\d,]+\.\d{2}\)?)`)
	totalChargedLine  = regexp.MustCompile(`(?i)TOTAL\s+AMOUNT\s+CHARGED`)
	totalChargedLabel = "TOTAL AMOUNT CHARGED"
)

// Totals reads "<label> Totals <count> <amount>" and "Total Amount Charged" lines.
// Summary rows come last on Chase statements, so a later match replaces an earlier one.
func (fields) Totals(s *extraction.Session) domain.Totals {
	var totals domain.Totals
	feesFound := false

	for _, line := range s.Lines {
		if m := totalsLine.FindStringSubmatch(line); m != nil {
			totals.TransactionCount = extraction.ParseCount(m[1])
			totals.TotalVolume = extraction.SafeAmount(m[2])
		}
		if loc := totalChargedLine.FindStringIndex(line); loc != nil {
			if amount, ok := extraction.AmountAfter(line, loc[1]); ok && !amount.IsZero() {
				totals.TotalFees = amount
				feesFound = true
			}
		}
	}

	if totals.TotalVolume.IsZero() || !feesFound {
		s.Note(domain.DiagnosticFallback, "totals", "totals incomplete in text lines, reading tables")
		tableTotals(s.Doc.Tables(), &totals, totals.TotalVolume.IsZero(), !feesFound)
	}

	if totals.TotalVolume.IsZero() {
		s.Miss("total_volume", "totals line not found")
	}
	if totals.TotalFees.IsZero() {
		s.Miss("total_fees", "total amount charged not found")
	}
	return totals
}

func tableTotals(tables []domain.Table, totals *domain.Totals, wantVolume, wantFees bool) {
	for _, table := range tables {
		cols := defaultCardColumns
		for _, row := range table {
			if len(row) == 0 {
				continue
			}
			if header, ok := resolveCardColumns(row); ok {
				cols = header
				continue
			}
			first := strings.ToUpper(extraction.Cell(row, 0))
			switch {
			case wantVolume && (first == "TOTALS" || first == "TOTAL"):
				if cell := extraction.Cell(row, cols.net); cell != "" {
					totals.TotalVolume = extraction.SafeAmount(cell)
				}
				if cell := extraction.Cell(row, cols.items); cell != "" {
					totals.TransactionCount = extraction.ParseCount(cell)
				}
			case wantFees && strings.Contains(first, totalChargedLabel):
				if amount, ok := extraction.LastPositiveAmount(row[1:]); ok {
					totals.TotalFees = amount
				}
			}
		}
	}
}

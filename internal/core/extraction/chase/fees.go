package chase

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/core/extraction"
)

// feeCombined is the "Fees And Assessments Total" line, split between
// assessment and processing after scanning.
const feeCombined domain.FeeCategory = "fees_and_assessments"

var feeRules = []extraction.Rule[domain.FeeCategory]{
	{
		Key:     domain.FeeInterchange,
		Name:    "interchange fees total",
		Pattern: regexp.MustCompile(`(?i)INTERCHANGE\s+FEES\s+TOTAL`),
	},
	{
		Key:     domain.FeeAssessment,
		Name:    "assessment fees",
		Pattern: regexp.MustCompile(`(?i)ASSESSMENT\s+FEES`),
		Exclude: regexp.MustCompile(`(?i)TOTAL`),
	},
	{
		Key:     feeCombined,
		Name:    "fees and assessments total",
		Pattern: regexp.MustCompile(`(?i)FEES\s+AND\s+ASSESSMENTS\s+TOTAL`),
	},
	{
		Key:     domain.FeeMonthly,
		Name:    "monthly fee",
		Pattern: regexp.MustCompile(`(?i)MONTHLY\s+(?:ADMIN\s+)?FEE`),
	},
	{
		Key:     domain.FeeOther,
		Name:    "other charges",
		Pattern: regexp.MustCompile(`(?i)(?:TOTAL\s+)?OTHER\s+CHARGES`),
	},
}

var feeBuckets = append(slices.Clone(domain.FeeCategories), feeCombined)

type feeTally map[domain.FeeCategory]decimal.Decimal

func (fields) Fees(s *extraction.Session) map[domain.FeeCategory]decimal.Decimal {
	lineFees := feeTally{}
	for _, line := range s.Lines {
		rule, loc, ok := extraction.FirstRule(feeRules, line)
		if !ok {
			continue
		}
		if amount, found := extraction.AmountAfter(line, loc[1]); found {
			lineFees[rule.Key] = lineFees[rule.Key].Add(amount)
		}
	}

	tableFees := feeTally{}
	for _, table := range s.Doc.Tables() {
		for _, row := range table {
			if len(row) < 2 {
				continue
			}
			rule, _, ok := extraction.FirstRule(feeRules, strings.ToUpper(extraction.RowText(row)))
			if !ok {
				continue
			}
			if amount, found := extraction.LastPositiveAmount(row); found {
				tableFees[rule.Key] = tableFees[rule.Key].Add(amount)
			}
		}
	}

	merged := feeTally{}
	for _, category := range feeBuckets {
		line, table := lineFees[category], tableFees[category]
		switch {
		case line.IsZero():
			merged[category] = table
		case table.GreaterThan(line):
			s.Note(domain.DiagnosticFallback, string(category), fmt.Sprintf("%s fees taken from table (%s over %s)", category, table.StringFixed(2), line.StringFixed(2)))
			merged[category] = table
		default:
			merged[category] = line
		}
	}

	fees := splitCombined(merged, s)
	if !anyFee(fees) {
		s.Miss("fees", "no fee lines found")
	}
	return fees
}

// splitCombined folds the combined fees-and-assessments figure into the
// assessment and processing buckets: evenly when no assessment line was read,
// otherwise the remainder goes to processing.
func splitCombined(merged feeTally, s *extraction.Session) map[domain.FeeCategory]decimal.Decimal {
	fees := make(map[domain.FeeCategory]decimal.Decimal, len(domain.FeeCategories))
	for _, category := range domain.FeeCategories {
		fees[category] = merged[category]
	}

	combined := merged[feeCombined]
	if !combined.IsPositive() {
		return fees
	}
	assessment := fees[domain.FeeAssessment]
	if assessment.IsZero() {
		half := combined.Div(decimal.NewFromInt(2)).Round(2)
		fees[domain.FeeAssessment] = half
		fees[domain.FeeProcessing] = fees[domain.FeeProcessing].Add(combined.Sub(half))
		s.Note(domain.DiagnosticWarning, "fees", "fees and assessments total split evenly between assessment and processing")
		return fees
	}
	remainder, _ := extraction.NonNegative(combined.Sub(assessment))
	fees[domain.FeeProcessing] = fees[domain.FeeProcessing].Add(remainder)
	return fees
}

func anyFee(fees map[domain.FeeCategory]decimal.Decimal) bool {
	for _, v := range fees {
		if !v.IsZero() {
			return true
		}
	}
	return false
}

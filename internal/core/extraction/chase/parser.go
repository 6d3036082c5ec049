// Package chase extracts Chase Paymentech merchant statements.
package chase

import (
	"regexp"
	"strings"
	"time"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/core/extraction"
)

// Name is the processor name Chase results carry and the registry hint it answers to.
const Name = "Chase Paymentech"

const merchantScanLines = 15

var (
	legalSuffix   = regexp.MustCompile(`\b(?:INC|LLC|LTD|CORP|CO)\b`)
	periodPattern = regexp.MustCompile(`(?i)Statement\s+Period\s+(\d{1,2}-[A-Za-z]{3,9}-\d{4})(?:\s*-\s*(\d{1,2}-[A-Za-z]{3,9}-\d{4}))?`)
	dateLayouts   = []string{"2-Jan-2006", "2-January-2006"}
)

// New returns the Chase parser running on the shared extraction lifecycle.
func New(acquirer *extraction.Acquirer, preferFallback bool) *extraction.Pipeline {
	return extraction.NewPipeline(Name, fields{}, acquirer, preferFallback)
}

type fields struct{}

func (fields) MerchantName(s *extraction.Session) string {
	lines := s.Lines
	limit := min(merchantScanLines, len(lines))
	for i := 0; i < limit; i++ {
		line := lines[i]
		if isHeaderLine(line) {
			continue
		}
		if strings.Contains(line, "ATTN:") && i > 0 {
			if prev := strings.TrimSpace(lines[i-1]); len(prev) > 3 {
				return prev
			}
		}
		if isCompanyLine(line) {
			return line
		}
	}

	for i, line := range lines {
		if !strings.Contains(line, "Company Number") {
			continue
		}
		for j := i - 1; j >= 0 && j >= i-4; j-- {
			candidate := strings.TrimSpace(lines[j])
			if len(candidate) > 3 && !strings.Contains(candidate, "Statement Period") {
				return candidate
			}
		}
	}

	s.Miss("merchant_name", "merchant name not found")
	return ""
}

func isHeaderLine(line string) bool {
	return strings.Contains(line, "Merchant Services") ||
		strings.Contains(line, "PO Box") ||
		strings.Contains(line, "CHASE")
}

func isCompanyLine(line string) bool {
	if len(line) <= 5 || len(line) >= 100 || strings.Contains(line, "NOTICE") {
		return false
	}
	if strings.ToUpper(line) != line || strings.ToLower(line) == line {
		return false
	}
	return legalSuffix.MatchString(line)
}

func (fields) StatementPeriod(s *extraction.Session) domain.StatementPeriod {
	m := periodPattern.FindStringSubmatch(s.Text)
	if m == nil {
		s.Miss("statement_period", "statement period not found")
		return domain.StatementPeriod{}
	}

	period := domain.StatementPeriod{
		Start: parseDate(m[1]),
		End:   parseDate(m[2]),
	}
	switch {
	case period.Bounds() == 0:
		s.Miss("statement_period", "statement period dates unparseable: "+strings.TrimSpace(m[0]))
	case period.Start == nil:
		s.Miss("statement_period", "statement period start unparseable")
	case period.End == nil:
		s.Miss("statement_period", "statement period end not found")
	}
	return period
}

func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

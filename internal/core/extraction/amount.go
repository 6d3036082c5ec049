package extraction

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var errEmptyAmount = errors.New("empty amount")

// amountToken matches money-shaped tokens: "$1,234.56", "1234.56", "(1,234.56)", "-12.00".
var amountToken = regexp.MustCompile(`\(?-?\$?\s?\d[\d,]*\.\d{2}\)?`)

var amountReplacer = strings.NewReplacer(
	"$", "",
	"£", "",
	"€", "",
	",", "",
	" ", "",
	" ", "",
	"*", "",
)

// ParseAmount converts a statement amount into a decimal. Parenthesized and
// trailing-minus values come back negative; callers net them before storage.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}
	s = amountReplacer.Replace(s)
	if s == "" || s == "-" {
		return decimal.Zero, errEmptyAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// SafeAmount is ParseAmount with unparseable input defaulting to zero.
func SafeAmount(raw string) decimal.Decimal {
	d, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseCount strips thousands separators and parses an integer count. Unparseable
// or negative values are zero.
func ParseCount(raw string) int {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.Trim(s, "*")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// AmountAfter reads the first amount that follows offset in line, falling back to
// the first amount anywhere on the line.
func AmountAfter(line string, offset int) (decimal.Decimal, bool) {
	if offset >= 0 && offset <= len(line) {
		if tok := amountToken.FindString(line[offset:]); tok != "" {
			if d, err := ParseAmount(tok); err == nil {
				return d, true
			}
		}
	}
	if tok := amountToken.FindString(line); tok != "" {
		if d, err := ParseAmount(tok); err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}

// LastPositiveAmount scans cells right to left and returns the first positive amount.
func LastPositiveAmount(cells []string) (decimal.Decimal, bool) {
	for i := len(cells) - 1; i >= 0; i-- {
		if strings.TrimSpace(cells[i]) == "" {
			continue
		}
		d, err := ParseAmount(cells[i])
		if err == nil && d.IsPositive() {
			return d, true
		}
	}
	return decimal.Zero, false
}

// NonNegative nets a negative intermediate value to zero and reports whether it did.
func NonNegative(d decimal.Decimal) (decimal.Decimal, bool) {
	if d.IsNegative() {
		return decimal.Zero, true
	}
	return d, false
}

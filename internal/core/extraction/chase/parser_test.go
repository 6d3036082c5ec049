package chase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/core/extraction"
)

const completeStatement = `Chase Paymentech
Merchant Services
PO Box 1234
ACME COFFEE LLC
123 Main St
Statement Period 01-Jun-2024 - 30-Jun-2024
Company Number 12345
VISA 500 $25,000.00
MASTERCARD 300 $15,000.00
AMERICAN EXPRESS 100 $8,000.00
DISCOVER 50 $2,000.00
TOTALS 950 $50,000.00
Interchange Fees Total $1,234.56
Assessment Fees $100.00
Fees And Assessments Total $300.00
Monthly Fee $10.00
Total Other Charges $5.00
Total Amount Charged $1,549.56`

func textDoc(text string, tables ...domain.Table) *domain.Document {
	return &domain.Document{
		Filename: "statement.pdf",
		MimeType: "application/pdf",
		Pages:    []domain.Page{{Number: 1, Text: text, Tables: tables}},
	}
}

func extract(t *testing.T, doc *domain.Document) domain.ExtractionResult {
	t.Helper()
	res := New(extraction.NewAcquirer(nil, extraction.AcquirerOptions{}), false).Extract(context.Background(), doc)
	require.False(t, res.Failed(), "unexpected fatal error: %s", res.FatalError)
	return res
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompleteStatementFromTextLines(t *testing.T) {
	res := extract(t, textDoc(completeStatement))

	assert.Equal(t, Name, res.ProcessorName)
	assert.Equal(t, "ACME COFFEE LLC", res.MerchantName)
	require.NotNil(t, res.StatementPeriod.Start)
	require.NotNil(t, res.StatementPeriod.End)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *res.StatementPeriod.Start)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), *res.StatementPeriod.End)

	assert.True(t, res.CardNetworkVolumes[domain.NetworkVisa].Volume.Equal(dec("25000")))
	assert.Equal(t, 500, res.CardNetworkVolumes[domain.NetworkVisa].Count)
	assert.True(t, res.CardNetworkVolumes[domain.NetworkMastercard].Volume.Equal(dec("15000")))
	assert.True(t, res.CardNetworkVolumes[domain.NetworkAmex].Volume.Equal(dec("8000")))
	assert.True(t, res.CardNetworkVolumes[domain.NetworkDiscover].Volume.Equal(dec("2000")))
	assert.True(t, res.CardNetworkVolumes[domain.NetworkInterac].Volume.IsZero())

	assert.True(t, res.Fees[domain.FeeInterchange].Equal(dec("1234.56")))
	assert.True(t, res.Fees[domain.FeeAssessment].Equal(dec("100")))
	assert.True(t, res.Fees[domain.FeeProcessing].Equal(dec("200")), "combined total minus assessment")
	assert.True(t, res.Fees[domain.FeeMonthly].Equal(dec("10")))
	assert.True(t, res.Fees[domain.FeeOther].Equal(dec("5")))

	assert.True(t, res.Totals.TotalVolume.Equal(dec("50000")))
	assert.Equal(t, 950, res.Totals.TransactionCount)
	assert.True(t, res.Totals.TotalFees.Equal(dec("1549.56")))

	assert.True(t, res.Confidence.GreaterThanOrEqual(decimal.NewFromInt(90)), "confidence %s", res.Confidence)
	assert.Equal(t, 1, res.PageCount)
	assert.False(t, res.Diagnostics.Has(domain.DiagnosticFieldMiss), "diagnostics: %s", res.Diagnostics)
}

func TestMinimalStatementScoresWithoutFees(t *testing.T) {
	text := `Chase Paymentech
ACME COFFEE LLC
Statement Period 1-Jun-2024 - 30-Jun-2024
VISA 98 $73,239.99
Totals 165 $146,718.43`
	res := extract(t, textDoc(text))

	assert.Equal(t, "2024-06-01", res.StatementPeriod.Start.Format(domain.DateLayout))
	assert.Equal(t, "2024-06-30", res.StatementPeriod.End.Format(domain.DateLayout))
	assert.True(t, res.CardNetworkVolumes[domain.NetworkVisa].Volume.Equal(dec("73239.99")))
	assert.Equal(t, 98, res.CardNetworkVolumes[domain.NetworkVisa].Count)
	assert.True(t, res.Totals.TotalVolume.Equal(dec("146718.43")))
	assert.Equal(t, 165, res.Totals.TransactionCount)
	assert.Equal(t, "80", res.Confidence.String(), "no fee lines leaves the fee weight unearned")
}

func TestLaterTotalsLineWins(t *testing.T) {
	text := `Chase Paymentech
Card Totals 165 $146,718.43
Total 3 $12.00
Totals 165 $146,718.43
Total Amount Charged $10.00
Total Amount Charged $1,549.56`
	res := extract(t, textDoc(text))

	assert.True(t, res.Totals.TotalVolume.Equal(dec("146718.43")))
	assert.Equal(t, 165, res.Totals.TransactionCount)
	assert.True(t, res.Totals.TotalFees.Equal(dec("1549.56")))
}

func TestLabelledTotalsLine(t *testing.T) {
	res := extract(t, textDoc("Chase Paymentech
Card Totals 165 $146,718.43"))

	assert.True(t, res.Totals.TotalVolume.Equal(dec("146718.43")))
	assert.Equal(t, 165, res.Totals.TransactionCount)
}

var cardSummaryTable = domain.Table{
	{"Card Type", "Number of Sales", "Sales", "Number of Credits", "Credits", "Total Number of Items", "Net Sales", "Average Ticket"},
	{"VISA", "500", "40,000.00", "5", "(500.00)", "505", "39,500.00", "80.00"},
	{"MASTERCARD", "300", "30,000.00", "0", "0.00", "300", "30,000.00", "100.00"},
	{"AMERICAN EXPRESS", "40", "3,600.00", "0", "0.00", "40", "3,600.00", "90.00"},
	{"Totals", "840", "73,600.00", "5", "(500.00)", "845", "73,100.00", "87.00"},
}

var feeTable = domain.Table{
	{"Interchange Fees Total", "", "1,234.56"},
	{"Total Amount Charged", "", "1,334.56"},
}

func TestTableOnlyStatement(t *testing.T) {
	res := extract(t, textDoc("Chase Paymentech\nACME COFFEE LLC", cardSummaryTable, feeTable))

	assert.Equal(t, "ACME COFFEE LLC", res.MerchantName)
	assert.True(t, res.CardNetworkVolumes[domain.NetworkVisa].Volume.Equal(dec("39500")), "net sales replace gross sales")
	assert.Equal(t, 500, res.CardNetworkVolumes[domain.NetworkVisa].Count)
	assert.True(t, res.CardNetworkVolumes[domain.NetworkMastercard].Volume.Equal(dec("30000")))
	assert.True(t, res.CardNetworkVolumes[domain.NetworkAmex].Volume.Equal(dec("3600")))

	assert.Equal(t, "73100.00", res.Totals.TotalVolume.StringFixed(2))
	assert.Equal(t, 845, res.Totals.TransactionCount)
	assert.True(t, res.Totals.TotalFees.Equal(dec("1334.56")))
	assert.True(t, res.Fees[domain.FeeInterchange].Equal(dec("1234.56")))

	assert.True(t, res.Diagnostics.Has(domain.DiagnosticFallback))
	assert.Contains(t, res.Diagnostics.String(), "statement period not found")
	assert.Equal(t, "80", res.Confidence.String())
}

func TestHeaderlessTableUsesFixedOffsets(t *testing.T) {
	table := domain.Table{
		{"VISA", "10", "1,000.00", "0", "0.00", "10", "", "100.00"},
		{"DISCOVER", "2", "200.00", "1", "(50.00)", "3", "150.00", "75.00"},
	}
	res := extract(t, textDoc("Chase Paymentech", table))

	assert.True(t, res.CardNetworkVolumes[domain.NetworkVisa].Volume.Equal(dec("1000")), "blank net keeps gross")
	assert.True(t, res.CardNetworkVolumes[domain.NetworkDiscover].Volume.Equal(dec("150")))
	assert.Equal(t, 2, res.CardNetworkVolumes[domain.NetworkDiscover].Count)
}

func TestUnrecognisedStatementDefaultsToZero(t *testing.T) {
	res := extract(t, textDoc("Chase Paymentech statement with nothing we can read"))

	assert.Empty(t, res.MerchantName)
	assert.Nil(t, res.StatementPeriod.Start)
	assert.Nil(t, res.StatementPeriod.End)
	assert.Len(t, res.CardNetworkVolumes, len(domain.CardNetworks))
	assert.Len(t, res.Fees, len(domain.FeeCategories))
	for network, v := range res.CardNetworkVolumes {
		assert.True(t, v.Volume.IsZero(), "network %s", network)
	}
	for category, v := range res.Fees {
		assert.True(t, v.IsZero(), "fee %s", category)
	}
	assert.True(t, res.Totals.TotalVolume.IsZero())
	assert.True(t, res.Confidence.IsZero())

	misses := 0
	for _, d := range res.Diagnostics {
		if d.Kind == domain.DiagnosticFieldMiss {
			misses++
		}
	}
	assert.GreaterOrEqual(t, misses, 5)
}

func TestExtractIsDeterministic(t *testing.T) {
	doc := textDoc(completeStatement, cardSummaryTable, feeTable)
	first, err := json.Marshal(extract(t, doc))
	require.NoError(t, err)
	second, err := json.Marshal(extract(t, doc))
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}

func TestCombinedFeesSplitEvenlyWithoutAssessment(t *testing.T) {
	res := extract(t, textDoc("Chase Paymentech\nFees And Assessments Total $300.00"))

	assert.True(t, res.Fees[domain.FeeAssessment].Equal(dec("150")))
	assert.True(t, res.Fees[domain.FeeProcessing].Equal(dec("150")))
	assert.True(t, res.Diagnostics.Has(domain.DiagnosticWarning))
}

func TestLineAndTableFeesKeepLarger(t *testing.T) {
	text := "Chase Paymentech\nMonthly Fee $10.00\nInterchange Fees Total $900.00"
	table := domain.Table{
		{"Monthly Fee", "25.00"},
		{"Interchange Fees Total", "800.00"},
	}
	res := extract(t, textDoc(text, table))

	assert.True(t, res.Fees[domain.FeeMonthly].Equal(dec("25")))
	assert.True(t, res.Fees[domain.FeeInterchange].Equal(dec("900")))
}

func TestLaterVolumeLineWins(t *testing.T) {
	res := extract(t, textDoc("Chase Paymentech\nVISA 1 $10.00\nVISA 20 $2,000.00"))

	assert.True(t, res.CardNetworkVolumes[domain.NetworkVisa].Volume.Equal(dec("2000")))
	assert.Equal(t, 20, res.CardNetworkVolumes[domain.NetworkVisa].Count)
}

func TestNegativeVolumeIsNetted(t *testing.T) {
	res := extract(t, textDoc("Chase Paymentech\nAMEX 3 ($120.00)"))

	assert.True(t, res.CardNetworkVolumes[domain.NetworkAmex].Volume.IsZero())
	assert.True(t, res.Diagnostics.Has(domain.DiagnosticNetted))
}

func TestMerchantFromAttentionLine(t *testing.T) {
	res := extract(t, textDoc("Chase Paymentech\nBlue Door Bakery\nATTN: Owner\n"))
	assert.Equal(t, "Blue Door Bakery", res.MerchantName)
}

func TestMerchantBeforeCompanyNumber(t *testing.T) {
	text := "Chase Paymentech\nSome intro text\nCorner Shop\nCompany Number 998877"
	res := extract(t, textDoc(text))
	assert.Equal(t, "Corner Shop", res.MerchantName)
}

func TestPartialPeriod(t *testing.T) {
	res := extract(t, textDoc("Chase Paymentech\nStatement Period 01-Jun-2024"))

	require.NotNil(t, res.StatementPeriod.Start)
	assert.Nil(t, res.StatementPeriod.End)
	assert.Contains(t, res.Diagnostics.String(), "statement period end not found")
	assert.Equal(t, "10", res.Confidence.String())
}

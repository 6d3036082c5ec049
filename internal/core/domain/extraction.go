package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const UnknownProcessor = "Unknown"

type CardNetwork string

const (
	NetworkVisa       CardNetwork = "visa"
	NetworkMastercard CardNetwork = "mastercard"
	NetworkAmex       CardNetwork = "amex"
	NetworkDiscover   CardNetwork = "discover"
	NetworkInterac    CardNetwork = "interac"
)

// CardNetworks lists every network an ExtractionResult always carries.
var CardNetworks = []CardNetwork{NetworkVisa, NetworkMastercard, NetworkAmex, NetworkDiscover, NetworkInterac}

type FeeCategory string

const (
	FeeInterchange FeeCategory = "interchange"
	FeeAssessment  FeeCategory = "assessment"
	FeeProcessing  FeeCategory = "processing"
	FeeMonthly     FeeCategory = "monthly"
	FeeOther       FeeCategory = "other"
)

// FeeCategories lists every fee bucket an ExtractionResult always carries.
var FeeCategories = []FeeCategory{FeeInterchange, FeeAssessment, FeeProcessing, FeeMonthly, FeeOther}

type NetworkVolume struct {
	Volume decimal.Decimal `json:"volume"`
	Count  int             `json:"count"`
}

type StatementPeriod struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// DateLayout is the ISO calendar date used for statement period bounds.
const DateLayout = "2006-01-02"

type periodJSON struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

func (p StatementPeriod) MarshalJSON() ([]byte, error) {
	return json.Marshal(periodJSON{Start: formatDate(p.Start), End: formatDate(p.End)})
}

func (p *StatementPeriod) UnmarshalJSON(data []byte) error {
	var raw periodJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := parseDate(raw.Start)
	if err != nil {
		return fmt.Errorf("statement period start: %w", err)
	}
	end, err := parseDate(raw.End)
	if err != nil {
		return fmt.Errorf("statement period end: %w", err)
	}
	p.Start, p.End = start, end
	return nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (p StatementPeriod) Bounds() int {
	n := 0
	if p.Start != nil {
		n++
	}
	if p.End != nil {
		n++
	}
	return n
}

type Totals struct {
	TotalVolume      decimal.Decimal `json:"total_volume"`
	TransactionCount int             `json:"transaction_count"`
	TotalFees        decimal.Decimal `json:"total_fees"`
}

// ExtractionResult is the boundary contract handed to persistence and downstream consumers.
type ExtractionResult struct {
	ProcessorName      string                          `json:"processor_name"`
	MerchantName       string                          `json:"merchant_name"`
	StatementPeriod    StatementPeriod                 `json:"statement_period"`
	CardNetworkVolumes map[CardNetwork]NetworkVolume   `json:"card_network_volumes"`
	Fees               map[FeeCategory]decimal.Decimal `json:"fees"`
	Totals             Totals                          `json:"totals"`
	Confidence         decimal.Decimal                 `json:"confidence"`
	PageCount          int                             `json:"page_count"`
	Diagnostics        Diagnostics                     `json:"diagnostics"`
	FatalError         string                          `json:"fatal_error,omitempty"`
}

// NewExtractionResult returns a result with every network and fee key zero-filled.
func NewExtractionResult(processor string) ExtractionResult {
	if processor == "" {
		processor = UnknownProcessor
	}
	res := ExtractionResult{
		ProcessorName:      processor,
		CardNetworkVolumes: make(map[CardNetwork]NetworkVolume, len(CardNetworks)),
		Fees:               make(map[FeeCategory]decimal.Decimal, len(FeeCategories)),
		Confidence:         decimal.Zero,
		Diagnostics:        Diagnostics{},
	}
	for _, network := range CardNetworks {
		res.CardNetworkVolumes[network] = NetworkVolume{Volume: decimal.Zero}
	}
	for _, category := range FeeCategories {
		res.Fees[category] = decimal.Zero
	}
	res.Totals = Totals{TotalVolume: decimal.Zero, TotalFees: decimal.Zero}
	return res
}

// FailedExtraction builds the zeroed result of an extraction that could not proceed.
func FailedExtraction(processor, fatal string, diags Diagnostics) ExtractionResult {
	res := NewExtractionResult(processor)
	res.FatalError = fatal
	res.Diagnostics = append(res.Diagnostics, diags...)
	res.Diagnostics.Add(DiagnosticFatal, "", fatal)
	return res
}

func (r ExtractionResult) Failed() bool {
	return r.FatalError != ""
}

func (r ExtractionResult) HasVolume() bool {
	for _, v := range r.CardNetworkVolumes {
		if v.Volume.IsPositive() {
			return true
		}
	}
	return false
}

func (r ExtractionResult) HasFees() bool {
	for _, v := range r.Fees {
		if v.IsPositive() {
			return true
		}
	}
	return false
}

// EffectiveRate is total fees as a percentage of total volume.
func (r ExtractionResult) EffectiveRate() (decimal.Decimal, bool) {
	if !r.Totals.TotalVolume.IsPositive() || !r.Totals.TotalFees.IsPositive() {
		return decimal.Zero, false
	}
	return r.Totals.TotalFees.Div(r.Totals.TotalVolume).Mul(decimal.NewFromInt(100)).Round(4), true
}

package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

// Session is the state one parser run shares across its field steps.
type Session struct {
	Doc         *domain.Document
	Text        string
	Lines       []string
	Diagnostics domain.Diagnostics
}

func (s *Session) Miss(field, message string) {
	s.Diagnostics.Add(domain.DiagnosticFieldMiss, field, message)
}

func (s *Session) Note(kind domain.DiagnosticKind, field, message string) {
	s.Diagnostics.Add(kind, field, message)
}

// Fields is the processor-specific half of a parser. Each step returns its zero
// value and records a miss instead of failing.
type Fields interface {
	MerchantName(s *Session) string
	StatementPeriod(s *Session) domain.StatementPeriod
	CardVolumes(s *Session) map[domain.CardNetwork]domain.NetworkVolume
	Fees(s *Session) map[domain.FeeCategory]decimal.Decimal
	Totals(s *Session) domain.Totals
}

// Pipeline is the lifecycle every parser shares: acquire, extract fields, net, score.
type Pipeline struct {
	name           string
	fields         Fields
	acquirer       *Acquirer
	preferFallback bool
}

func NewPipeline(name string, fields Fields, acquirer *Acquirer, preferFallback bool) *Pipeline {
	if acquirer == nil {
		acquirer = NewAcquirer(nil, AcquirerOptions{})
	}
	return &Pipeline{
		name:           name,
		fields:         fields,
		acquirer:       acquirer,
		preferFallback: preferFallback,
	}
}

func (p *Pipeline) Name() string {
	return p.name
}

func (p *Pipeline) Extract(ctx context.Context, doc *domain.Document) domain.ExtractionResult {
	if doc.PageCount() == 0 {
		return domain.FailedExtraction(p.name, "document has no pages", nil)
	}

	text, acquired := p.acquirer.Acquire(ctx, doc, p.preferFallback)
	if strings.TrimSpace(text) == "" && len(doc.Tables()) == 0 {
		res := domain.FailedExtraction(p.name, "document has no readable text or tables", acquired)
		res.PageCount = doc.PageCount()
		return res
	}

	s := &Session{
		Doc:         doc,
		Text:        text,
		Lines:       Lines(text),
		Diagnostics: acquired,
	}
	res := domain.NewExtractionResult(p.name)
	res.PageCount = doc.PageCount()

	p.step(s, "merchant_name", func() { res.MerchantName = strings.TrimSpace(p.fields.MerchantName(s)) })
	p.step(s, "statement_period", func() { res.StatementPeriod = p.fields.StatementPeriod(s) })
	p.step(s, "card_network_volumes", func() { mergeVolumes(res.CardNetworkVolumes, p.fields.CardVolumes(s)) })
	p.step(s, "fees", func() { mergeFees(res.Fees, p.fields.Fees(s)) })
	p.step(s, "totals", func() { res.Totals = p.fields.Totals(s) })

	net(&res, s)
	res.Diagnostics = s.Diagnostics
	res.Confidence = Score(res)
	return res
}

func (p *Pipeline) step(s *Session, field string, run func()) {
	defer func() {
		if r := recover(); r != nil {
			s.Note(domain.DiagnosticWarning, field, fmt.Sprintf("%s extraction failed: %v", field, r))
		}
	}()
	run()
}

func mergeVolumes(dst, src map[domain.CardNetwork]domain.NetworkVolume) {
	for _, network := range domain.CardNetworks {
		if v, ok := src[network]; ok {
			dst[network] = v
		}
	}
}

func mergeFees(dst, src map[domain.FeeCategory]decimal.Decimal) {
	for _, category := range domain.FeeCategories {
		if v, ok := src[category]; ok {
			dst[category] = v
		}
	}
}

// net clamps every public number at zero, recording each adjustment.
func net(res *domain.ExtractionResult, s *Session) {
	for _, network := range domain.CardNetworks {
		v := res.CardNetworkVolumes[network]
		if clamped, netted := NonNegative(v.Volume); netted {
			s.Note(domain.DiagnosticNetted, string(network), fmt.Sprintf("%s volume %s netted to 0", network, v.Volume.StringFixed(2)))
			v.Volume = clamped
		}
		if v.Count < 0 {
			v.Count = 0
		}
		res.CardNetworkVolumes[network] = v
	}
	for _, category := range domain.FeeCategories {
		if clamped, netted := NonNegative(res.Fees[category]); netted {
			s.Note(domain.DiagnosticNetted, string(category), fmt.Sprintf("%s fees %s netted to 0", category, res.Fees[category].StringFixed(2)))
			res.Fees[category] = clamped
		}
	}
	if clamped, netted := NonNegative(res.Totals.TotalVolume); netted {
		s.Note(domain.DiagnosticNetted, "total_volume", "negative total volume netted to 0")
		res.Totals.TotalVolume = clamped
	}
	if clamped, netted := NonNegative(res.Totals.TotalFees); netted {
		s.Note(domain.DiagnosticNetted, "total_fees", "negative total fees netted to 0")
		res.Totals.TotalFees = clamped
	}
	if res.Totals.TransactionCount < 0 {
		res.Totals.TransactionCount = 0
	}
}

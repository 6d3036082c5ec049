package chase

import (
	"regexp"
	"strings"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/core/extraction"
)

const volumeTail = `[*\s]+(\d[\d,]*)[*\s]+(\(?-?\$?\s?[\d,]+\.\d{2}\)?)`

// networkRules claim a line for at most one network; a MASTERCARD line is never VISA.
var networkRules = []extraction.Rule[domain.CardNetwork]{
	{
		Key:     domain.NetworkVisa,
		Name:    "visa",
		Pattern: regexp.MustCompile(`(?i)\bVISA` + volumeTail),
		Exclude: regexp.MustCompile(`(?i)MASTER\s?CARD`),
	},
	{
		Key:     domain.NetworkMastercard,
		Name:    "mastercard",
		Pattern: regexp.MustCompile(`(?i)\bMASTER\s?CARD` + volumeTail),
	},
	{
		Key:     domain.NetworkAmex,
		Name:    "amex",
		Pattern: regexp.MustCompile(`(?i)\b(?:AMERICAN\s+EXPRESS|AMEX)` + volumeTail),
	},
	{
		Key:     domain.NetworkDiscover,
		Name:    "discover",
		Pattern: regexp.MustCompile(`(?i)\bDISCOVER` + volumeTail),
	},
	{
		Key:     domain.NetworkInterac,
		Name:    "interac",
		Pattern: regexp.MustCompile(`(?i)\bINTERAC` + volumeTail),
	},
}

var networkNames = []struct {
	network domain.CardNetwork
	match   func(upper string) bool
}{
	{domain.NetworkVisa, func(u string) bool { return strings.Contains(u, "VISA") && !strings.Contains(u, "MASTERCARD") }},
	{domain.NetworkMastercard, func(u string) bool { return strings.Contains(u, "MASTERCARD") || strings.Contains(u, "MASTER CARD") }},
	{domain.NetworkAmex, func(u string) bool { return strings.Contains(u, "AMERICAN EXPRESS") || strings.Contains(u, "AMEX") }},
	{domain.NetworkDiscover, func(u string) bool { return strings.Contains(u, "DISCOVER") }},
	{domain.NetworkInterac, func(u string) bool { return strings.Contains(u, "INTERAC") }},
}

// networkOf maps the first cell of a table row to the network it names.
func networkOf(cell string) (domain.CardNetwork, bool) {
	upper := strings.ToUpper(strings.TrimSpace(cell))
	if upper == "" {
		return "", false
	}
	for _, n := range networkNames {
		if n.match(upper) {
			return n.network, true
		}
	}
	return "", false
}

func (fields) CardVolumes(s *extraction.Session) map[domain.CardNetwork]domain.NetworkVolume {
	volumes := zeroVolumes()

	for _, line := range s.Lines {
		rule, loc, ok := extraction.FirstRule(networkRules, line)
		if !ok {
			continue
		}
		// Later lines overwrite earlier ones for the same network.
		volumes[rule.Key] = domain.NetworkVolume{
			Count:  extraction.ParseCount(extraction.Group(line, loc, 1)),
			Volume: extraction.SafeAmount(extraction.Group(line, loc, 2)),
		}
	}
	if anyVolume(volumes) {
		return volumes
	}

	s.Note(domain.DiagnosticFallback, "card_network_volumes", "no card volumes in text lines, reading tables")
	volumes = tableVolumes(s.Doc.Tables())
	if !anyVolume(volumes) {
		s.Miss("card_network_volumes", "card network volumes not found")
	}
	return volumes
}

func tableVolumes(tables []domain.Table) map[domain.CardNetwork]domain.NetworkVolume {
	volumes := zeroVolumes()
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
			network, ok := networkOf(row[0])
			if !ok {
				continue
			}
			volumes[network] = addCardRow(volumes[network], row, cols)
		}
	}
	return volumes
}

// addCardRow accumulates gross sales and counts; a non-zero net sales figure
// replaces the volume so returns and credits are absorbed.
func addCardRow(v domain.NetworkVolume, row []string, cols cardColumns) domain.NetworkVolume {
	if cell := extraction.Cell(row, cols.sales); cell != "" {
		v.Volume = v.Volume.Add(extraction.SafeAmount(cell))
	}
	if cell := extraction.Cell(row, cols.count); cell != "" {
		v.Count += extraction.ParseCount(cell)
	}
	if cell := extraction.Cell(row, cols.net); cell != "" {
		if netSales := extraction.SafeAmount(cell); !netSales.IsZero() {
			v.Volume = netSales
		}
	}
	return v
}

func zeroVolumes() map[domain.CardNetwork]domain.NetworkVolume {
	out := make(map[domain.CardNetwork]domain.NetworkVolume, len(domain.CardNetworks))
	for _, network := range domain.CardNetworks {
		out[network] = domain.NetworkVolume{}
	}
	return out
}

func anyVolume(volumes map[domain.CardNetwork]domain.NetworkVolume) bool {
	for _, v := range volumes {
		if !v.Volume.IsZero() {
			return true
		}
	}
	return false
}

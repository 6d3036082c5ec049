package domain

import "strings"

type DiagnosticKind string

const (
	DiagnosticFallback  DiagnosticKind = "fallback"
	DiagnosticFieldMiss DiagnosticKind = "field_miss"
	DiagnosticNetted    DiagnosticKind = "netted"
	DiagnosticWarning   DiagnosticKind = "warning"
	DiagnosticFatal     DiagnosticKind = "fatal"
)

type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Field   string         `json:"field,omitempty"`
	Message string         `json:"message"`
}

// Diagnostics is an append-only trail; entries keep insertion order and are never removed.
type Diagnostics []Diagnostic

func (d *Diagnostics) Add(kind DiagnosticKind, field, message string) {
	*d = append(*d, Diagnostic{Kind: kind, Field: field, Message: message})
}

func (d *Diagnostics) Extend(other Diagnostics) {
	*d = append(*d, other...)
}

func (d Diagnostics) Messages() []string {
	out := make([]string, 0, len(d))
	for _, entry := range d {
		out = append(out, entry.Message)
	}
	return out
}

func (d Diagnostics) Has(kind DiagnosticKind) bool {
	for _, entry := range d {
		if entry.Kind == kind {
			return true
		}
	}
	return false
}

func (d Diagnostics) String() string {
	return strings.Join(d.Messages(), "; ")
}

// Package detector picks the parser for a statement from its first page.
package detector

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/core/ports"
)

const reasonPrefixChars = 200

// UnsupportedError reports that no registered parser can handle a document.
type UnsupportedError struct {
	Processor string
	Reason    string
}

func (e *UnsupportedError) Error() string {
	return "unsupported document: " + e.Reason
}

func (e *UnsupportedError) Is(target error) bool {
	return target == domain.ErrUnsupportedDocument
}

// AsUnsupported unwraps an UnsupportedError from err.
func AsUnsupported(err error) (*UnsupportedError, bool) {
	var unsupported *UnsupportedError
	if errors.As(err, &unsupported) {
		return unsupported, true
	}
	return nil, false
}

// Registry holds the ordered signature table and the parsers that implement it.
type Registry struct {
	signatures []Signature
	owners     []int
	matcher    *ahocorasick.Matcher
	parsers    map[string]ports.StatementParser
}

func NewRegistry(signatures []Signature, parsers ...ports.StatementParser) (*Registry, error) {
	if len(signatures) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new registry", errors.New("no signatures"))
	}

	var keywords []string
	var owners []int
	for i, sig := range signatures {
		for _, kw := range sig.Keywords {
			keywords = append(keywords, strings.ToLower(kw))
			owners = append(owners, i)
		}
	}

	byName := make(map[string]ports.StatementParser, len(parsers))
	for _, parser := range parsers {
		key := normalizeName(parser.Name())
		if _, dup := byName[key]; dup {
			return nil, domain.WrapError(domain.ErrInvalidInput, "new registry", fmt.Errorf("duplicate parser %q", parser.Name()))
		}
		byName[key] = parser
	}

	return &Registry{
		signatures: signatures,
		owners:     owners,
		matcher:    ahocorasick.NewStringMatcher(keywords),
		parsers:    byName,
	}, nil
}

// Detect scans the lower-cased first page once and returns the parser of the
// earliest signature that matched.
func (r *Registry) Detect(doc *domain.Document) (ports.StatementParser, error) {
	sample := doc.FirstPageText()
	lowered := strings.ToLower(sample)

	best := -1
	for _, hit := range r.matcher.MatchThreadSafe([]byte(lowered)) {
		if owner := r.owners[hit]; best < 0 || owner < best {
			best = owner
		}
	}
	if best < 0 {
		return nil, &UnsupportedError{
			Processor: domain.UnknownProcessor,
			Reason:    fmt.Sprintf("no processor signature matched first page: %q", prefix(sample, reasonPrefixChars)),
		}
	}

	sig := r.signatures[best]
	parser, ok := r.parsers[normalizeName(sig.Processor)]
	if !ok {
		return nil, &UnsupportedError{
			Processor: sig.Processor,
			Reason:    sig.Processor + " statements are not supported yet",
		}
	}
	return parser, nil
}

// Select returns the parser registered under hint, skipping detection.
func (r *Registry) Select(hint string) (ports.StatementParser, error) {
	if parser, ok := r.parsers[normalizeName(hint)]; ok {
		return parser, nil
	}
	return nil, &UnsupportedError{
		Processor: hint,
		Reason:    fmt.Sprintf("processor %q is not supported", hint),
	}
}

// Resolve honours a non-empty hint and falls back to detection otherwise.
func (r *Registry) Resolve(doc *domain.Document, hint string) (ports.StatementParser, error) {
	if strings.TrimSpace(hint) != "" {
		return r.Select(hint)
	}
	return r.Detect(doc)
}

// Processors lists the names of registered parsers in signature order.
func (r *Registry) Processors() []string {
	out := make([]string, 0, len(r.parsers))
	for _, sig := range r.signatures {
		if parser, ok := r.parsers[normalizeName(sig.Processor)]; ok {
			out = append(out, parser.Name())
		}
	}
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func prefix(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

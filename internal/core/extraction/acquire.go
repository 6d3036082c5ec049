package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/core/ports"
)

const (
	DefaultMinTextChars     = 100
	DefaultFallbackTimeout  = 60 * time.Second
	defaultAvailableTimeout = 5 * time.Second
)

// Acquisition diagnostics, recorded verbatim in the result trail.
const (
	NoteFallbackPreferred    = "used fallback acquisition by preference"
	NoteFallbackInsufficient = "fallback used due to insufficient primary text"
	NoteFallbackUnavailable  = "fallback acquisition unavailable"
)

type AcquirerOptions struct {
	MinTextChars    int
	FallbackTimeout time.Duration
	Logger          *slog.Logger
}

// Acquirer produces the best-effort transcript of a document. It never fails:
// recognizer errors, timeouts and panics degrade to the primary text layer.
type Acquirer struct {
	recognizer ports.TextRecognizer
	minChars   int
	timeout    time.Duration
	logger     *slog.Logger
}

func NewAcquirer(recognizer ports.TextRecognizer, opts AcquirerOptions) *Acquirer {
	if opts.MinTextChars <= 0 {
		opts.MinTextChars = DefaultMinTextChars
	}
	if opts.FallbackTimeout <= 0 {
		opts.FallbackTimeout = DefaultFallbackTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Acquirer{
		recognizer: recognizer,
		minChars:   opts.MinTextChars,
		timeout:    opts.FallbackTimeout,
		logger:     opts.Logger,
	}
}

func (a *Acquirer) Acquire(ctx context.Context, doc *domain.Document, preferFallback bool) (string, domain.Diagnostics) {
	diags := domain.Diagnostics{}

	if preferFallback && a.available(ctx, &diags) {
		text := a.render(ctx, doc, &diags)
		if textLen(text) > a.minChars {
			diags.Add(domain.DiagnosticFallback, "", NoteFallbackPreferred)
			return text, diags
		}
		diags.Add(domain.DiagnosticFallback, "", fmt.Sprintf("preferred fallback acquisition returned only %d characters", textLen(text)))
	}

	primary := doc.PrimaryText()
	if textLen(primary) >= a.minChars || preferFallback {
		return primary, diags
	}

	if !a.available(ctx, &diags) {
		return primary, diags
	}
	text := a.render(ctx, doc, &diags)
	if textLen(text) > textLen(primary) {
		diags.Add(domain.DiagnosticFallback, "", NoteFallbackInsufficient)
		return text, diags
	}
	diags.Add(domain.DiagnosticFallback, "", "fallback acquisition did not improve on primary text")
	return primary, diags
}

func (a *Acquirer) available(ctx context.Context, diags *domain.Diagnostics) (ok bool) {
	if a.recognizer == nil {
		diags.Add(domain.DiagnosticFallback, "", NoteFallbackUnavailable)
		return false
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultAvailableTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("fallback availability check panicked", "operation", "acquire_text", "panic", fmt.Sprint(r))
			ok = false
		}
		if !ok {
			diags.Add(domain.DiagnosticFallback, "", NoteFallbackUnavailable)
		}
	}()
	return a.recognizer.Available(checkCtx)
}

func (a *Acquirer) render(ctx context.Context, doc *domain.Document, diags *domain.Diagnostics) (text string) {
	renderCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("fallback acquisition panicked", "operation", "acquire_text", "panic", fmt.Sprint(r))
			diags.Add(domain.DiagnosticFallback, "", fmt.Sprintf("fallback acquisition failed: %v", r))
			text = ""
		}
	}()

	out, err := a.recognizer.RenderText(renderCtx, doc)
	if err != nil {
		a.logger.Warn("fallback acquisition failed", "operation", "acquire_text", "error", err)
		diags.Add(domain.DiagnosticFallback, "", fmt.Sprintf("fallback acquisition failed: %v", err))
		return ""
	}
	return out
}

func textLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

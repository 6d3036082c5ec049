// Package ocr is the HTTP client of the text-recognition fallback service.
package ocr

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/infrastructure/resilience"
)

const (
	operationRender = "ocr_render"
	healthTimeout   = 3 * time.Second
)

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	Resilience    resilience.Config
}

// Client renders documents through the OCR service. An empty BaseURL yields a
// client that always reports itself unavailable.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
	logger     *slog.Logger
}

func New(cfg Config, executor *resilience.Executor, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if executor == nil {
		executor = resilience.NewExecutor(cfg.Resilience, resilience.WithLogger(logger))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		executor:   executor,
		logger:     logger,
	}
}

// Available is false when unconfigured, while the render breaker is open, or
// when the health endpoint does not answer 2xx.
func (c *Client) Available(ctx context.Context) bool {
	if c.baseURL == "" {
		return false
	}
	if !c.executor.Allow(operationRender) {
		return false
	}

	healthCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := c.health(healthCtx); err != nil {
		c.logger.Warn("ocr service unavailable", "operation", "ocr_health", "error", err)
		return false
	}
	return true
}

func (c *Client) RenderText(ctx context.Context, doc *domain.Document) (string, error) {
	if c.baseURL == "" {
		return "", domain.WrapError(domain.ErrTemporary, operationRender, errNotConfigured)
	}
	if doc == nil || len(doc.Raw) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, operationRender, errNoRawBytes)
	}

	pages, err := resilience.Do(ctx, c.executor, operationRender, func(callCtx context.Context) ([]renderedPage, error) {
		if err := c.limiter.Wait(callCtx); err != nil {
			return nil, err
		}
		return c.render(callCtx, doc)
	}, classifyOCRError)
	if err != nil {
		return "", wrapTemporaryIfNeeded(operationRender, err)
	}

	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		if text := strings.TrimSpace(page.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

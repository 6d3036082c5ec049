package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

var (
	errNotConfigured = errors.New("ocr service url is not configured")
	errNoRawBytes    = errors.New("document has no raw bytes to render")
)

type renderedPage struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type renderResponse struct {
	Pages []renderedPage `json:"pages"`
	Text  string         `json:"text"`
}

func (c *Client) health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ocr health request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 300 {
		return formatOCRHTTPError("health", resp)
	}
	return nil
}

// render posts the raw document and returns its pages in page order.
func (c *Client) render(ctx context.Context, doc *domain.Document) ([]renderedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/render", bytes.NewReader(doc.Raw))
	if err != nil {
		return nil, fmt.Errorf("create render request: %w", err)
	}
	req.Header.Set("Content-Type", doc.MimeType)
	req.Header.Set("Accept", "application/json")
	if doc.Filename != "" {
		req.Header.Set("X-Filename", doc.Filename)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr render request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, formatOCRHTTPError("render", resp)
	}

	var out renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode render response: %w", err)
	}
	if len(out.Pages) == 0 && out.Text != "" {
		return []renderedPage{{Number: 1, Text: out.Text}}, nil
	}
	sort.SliceStable(out.Pages, func(i, j int) bool {
		return out.Pages[i].Number < out.Pages[j].Number
	})
	return out.Pages, nil
}

func formatOCRHTTPError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

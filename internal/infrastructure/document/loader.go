// Package document turns stored statement files into per-page text and cell grids.
package document

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

const (
	MimePDF  = "application/pdf"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Loader dispatches on MIME type, then extension.
type Loader struct {
	pdf  *PDFLoader
	xlsx *XLSXLoader
}

func NewLoader() *Loader {
	return &Loader{
		pdf:  NewPDFLoader(),
		xlsx: NewXLSXLoader(),
	}
}

func (l *Loader) Load(ctx context.Context, filename, mimeType string, data []byte) (*domain.Document, error) {
	switch kindOf(filename, mimeType) {
	case MimePDF:
		return l.pdf.Load(ctx, filename, data)
	case MimeXLSX:
		return l.xlsx.Load(ctx, filename, data)
	default:
		return nil, domain.WrapError(
			domain.ErrUnsupportedDocument,
			"load document",
			fmt.Errorf("%s: unsupported file type %q", filename, mimeType),
		)
	}
}

func kindOf(filename, mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch mimeType {
	case MimePDF, MimeXLSX:
		return mimeType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return MimePDF
	case ".xlsx":
		return MimeXLSX
	}
	return ""
}

// unreadable wraps loader failures so the pipeline reports them as fatal.
func unreadable(filename string, err error) error {
	return domain.WrapError(domain.ErrUnreadableDocument, "load document", fmt.Errorf("%s: %w", filename, err))
}

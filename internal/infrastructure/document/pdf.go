package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

const (
	// Gaps in points between text runs on one row.
	wordGap   = 1.5
	columnGap = 12.0
)

// PDFLoader reads the embedded text layer row by row. Rows that split into
// several columns also form the page's tables.
type PDFLoader struct{}

func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

func (l *PDFLoader) Load(ctx context.Context, filename string, data []byte) (doc *domain.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, unreadable(filename, fmt.Errorf("pdf reader crashed: %v", r))
		}
	}()

	if len(data) == 0 {
		return nil, unreadable(filename, errors.New("empty file"))
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, unreadable(filename, err)
	}
	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, unreadable(filename, errors.New("pdf has no pages"))
	}

	doc = &domain.Document{
		Filename: filename,
		MimeType: MimePDF,
		Raw:      data,
		Pages:    make([]domain.Page, 0, numPages),
	}
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc.Pages = append(doc.Pages, readPage(reader.Page(i), i))
	}
	return doc, nil
}

func readPage(page pdf.Page, number int) domain.Page {
	out := domain.Page{Number: number}
	if page.V.IsNull() {
		return out
	}
	rows, err := page.GetTextByRow()
	if err != nil {
		return out
	}

	var lines []string
	var table domain.Table
	flush := func() {
		if len(table) > 0 {
			out.Tables = append(out.Tables, table)
			table = nil
		}
	}
	for _, row := range rows {
		cells := splitCells(row.Content)
		if len(cells) == 0 {
			continue
		}
		lines = append(lines, strings.Join(cells, " "))
		if len(cells) < 2 {
			flush()
			continue
		}
		table = append(table, cells)
	}
	flush()
	out.Text = strings.Join(lines, "\n")
	return out
}

// splitCells merges the text runs of one row into words and words into cells
// using the horizontal gap between runs.
func splitCells(runs pdf.TextHorizontal) []string {
	var cells []string
	var cell strings.Builder
	var prevEnd float64
	for i, run := range runs {
		s := run.S
		if strings.TrimSpace(s) == "" {
			continue
		}
		gap := run.X - prevEnd
		switch {
		case i == 0 || cell.Len() == 0:
		case gap > columnGap:
			cells = appendCell(cells, cell.String())
			cell.Reset()
		case gap > wordGap:
			cell.WriteByte(' ')
		}
		cell.WriteString(s)
		prevEnd = runEnd(run)
	}
	return appendCell(cells, cell.String())
}

func runEnd(run pdf.Text) float64 {
	if run.W > 0 {
		return run.X + run.W
	}
	return run.X + run.FontSize*0.5*float64(utf8.RuneCountInString(run.S))
}

func appendCell(cells []string, cell string) []string {
	cell = strings.Join(strings.Fields(cell), " ")
	if cell == "" {
		return cells
	}
	return append(cells, cell)
}

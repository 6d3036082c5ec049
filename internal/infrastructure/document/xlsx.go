package document

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

// XLSXLoader maps each worksheet to a page: rows become the page's single
// table and their joined cells its text.
type XLSXLoader struct{}

func NewXLSXLoader() *XLSXLoader {
	return &XLSXLoader{}
}

func (l *XLSXLoader) Load(ctx context.Context, filename string, data []byte) (*domain.Document, error) {
	if len(data) == 0 {
		return nil, unreadable(filename, errors.New("empty file"))
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, unreadable(filename, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, unreadable(filename, errors.New("workbook has no sheets"))
	}

	doc := &domain.Document{
		Filename: filename,
		MimeType: MimeXLSX,
		Raw:      data,
		Pages:    make([]domain.Page, 0, len(sheets)),
	}
	for i, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, unreadable(filename, err)
		}
		doc.Pages = append(doc.Pages, sheetPage(i+1, rows))
	}
	return doc, nil
}

func sheetPage(number int, rows [][]string) domain.Page {
	page := domain.Page{Number: number}
	var lines []string
	var table domain.Table
	for _, row := range rows {
		cells := make([]string, len(row))
		blank := true
		for i, cell := range row {
			cells[i] = strings.TrimSpace(cell)
			if cells[i] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		table = append(table, cells)
		lines = append(lines, joinCells(cells))
	}
	if len(table) > 0 {
		page.Tables = []domain.Table{table}
	}
	page.Text = strings.Join(lines, "\n")
	return page
}

func joinCells(cells []string) string {
	parts := make([]string, 0, len(cells))
	for _, cell := range cells {
		if cell != "" {
			parts = append(parts, cell)
		}
	}
	return strings.Join(parts, " ")
}

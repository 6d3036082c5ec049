package domain

import "strings"

// Table is a 2-D grid of text cells read from one tabular region of a page.
type Table [][]string

// Page is one page of a loaded document. Text may be empty for scanned pages.
type Page struct {
	Number int     `json:"number"`
	Text   string  `json:"text"`
	Tables []Table `json:"tables,omitempty"`
}

// Document is the immutable input of one extraction run.
type Document struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Raw      []byte `json:"-"`
	Pages    []Page `json:"pages"`
}

func (d *Document) PageCount() int {
	if d == nil {
		return 0
	}
	return len(d.Pages)
}

// FirstPageText returns the primary text of page one, or "" for an empty document.
func (d *Document) FirstPageText() string {
	if d == nil || len(d.Pages) == 0 {
		return ""
	}
	return d.Pages[0].Text
}

// PrimaryText joins the non-empty per-page text in page order.
func (d *Document) PrimaryText() string {
	if d == nil {
		return ""
	}
	parts := make([]string, 0, len(d.Pages))
	for _, page := range d.Pages {
		if page.Text == "" {
			continue
		}
		parts = append(parts, page.Text)
	}
	return strings.Join(parts, "\n")
}

// Tables returns every tabular region of the document in page order.
func (d *Document) Tables() []Table {
	if d == nil {
		return nil
	}
	var out []Table
	for _, page := range d.Pages {
		out = append(out, page.Tables...)
	}
	return out
}

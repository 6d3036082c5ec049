package chase

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/kirillkom/merchant-statements/internal/core/extraction"
)

// cardColumns locates the fields of a card-type summary row:
// [Card Type, Number of Sales, Sales, Number of Credits, Credits, Total Number of Items, Net Sales, Average Ticket].
type cardColumns struct {
	count int
	sales int
	items int
	net   int
}

var defaultCardColumns = cardColumns{count: 1, sales: 2, items: 5, net: 6}

// maxHeaderDistance bounds how far a header cell may stray from a vocabulary term.
const maxHeaderDistance = 6

type headerConcept struct {
	name  string
	terms []string
	set   func(*cardColumns, int)
}

// Resolved in order; "sales" goes last so the more specific headers claim their cells first.
var headerConcepts = []headerConcept{
	{name: "net", terms: []string{"net sales", "net amount"}, set: func(c *cardColumns, i int) { c.net = i }},
	{name: "items", terms: []string{"total number of items", "total items"}, set: func(c *cardColumns, i int) { c.items = i }},
	{name: "count", terms: []string{"number of sales", "no. of sales", "# sales", "sales count"}, set: func(c *cardColumns, i int) { c.count = i }},
	{name: "sales", terms: []string{"sales", "gross sales", "sales amount"}, set: func(c *cardColumns, i int) { c.sales = i }},
}

// resolveCardColumns reads a header row. It reports false unless at least two
// concepts resolve, so data rows never reset the layout.
func resolveCardColumns(row []string) (cardColumns, bool) {
	if _, ok := networkOf(extraction.Cell(row, 0)); ok {
		return cardColumns{}, false
	}

	cols := defaultCardColumns
	claimed := make(map[int]bool, len(row))
	resolved := 0
	for _, concept := range headerConcepts {
		best, bestRank := -1, maxHeaderDistance+1
		for i, cell := range row {
			cell = strings.ToLower(strings.TrimSpace(cell))
			if cell == "" || claimed[i] {
				continue
			}
			for _, term := range concept.terms {
				rank := fuzzy.RankMatchFold(term, cell)
				if rank >= 0 && rank < bestRank {
					best, bestRank = i, rank
				}
			}
		}
		if best < 0 {
			continue
		}
		claimed[best] = true
		concept.set(&cols, best)
		resolved++
	}
	if resolved < 2 {
		return cardColumns{}, false
	}
	return cols, true
}

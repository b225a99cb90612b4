package search

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shelfarr/booksearch/internal/openlibrary"
)

// RowsPerPage is fixed; the pagination control offers no other size.
const RowsPerPage = openlibrary.PageSize

// Columns are the table headers, in display order
var Columns = []string{
	"Book title",
	"Author(s) name",
	"Your book was first published",
	"ISBN number",
	"Number of pages",
}

// Query is the user's current input
type Query struct {
	Keyword string `json:"keyword"`
	Page    int    `json:"page"`
}

// View is everything needed to draw the search screen
type View struct {
	Query
	Loading    bool       `json:"loading"`
	Pending    bool       `json:"pending"` // an edit is waiting out the debounce window
	Error      string     `json:"error,omitempty"`
	Pagination Pagination `json:"pagination"`
	Columns    []string   `json:"columns"`
	Rows       []Row      `json:"rows"`

	Response *openlibrary.SearchResponse `json:"-"`
}

// Pagination mirrors a table pagination control with a fixed page size
type Pagination struct {
	Count              int    `json:"count"`
	Page               int    `json:"page"`
	RowsPerPage        int    `json:"rowsPerPage"`
	RowsPerPageOptions []int  `json:"rowsPerPageOptions"`
	PageCount          int    `json:"pageCount"`
	From               int    `json:"from"`
	To                 int    `json:"to"`
	Label              string `json:"label"`
	HasPrev            bool   `json:"hasPrev"`
	HasNext            bool   `json:"hasNext"`
}

// Row is one rendered document. Missing fields are empty strings.
type Row struct {
	Key              string `json:"key"`
	Title            string `json:"title"`
	Authors          string `json:"authors"`
	FirstPublishYear string `json:"firstPublishYear"`
	ISBN             string `json:"isbn"`
	Pages            string `json:"pages"`
	CoverURL         string `json:"coverUrl,omitempty"`
}

// Cells returns the row's values in Columns order
func (r Row) Cells() []string {
	return []string{r.Title, r.Authors, r.FirstPublishYear, r.ISBN, r.Pages}
}

// NewView renders a response for a query. A nil response renders as the
// empty envelope.
func NewView(q Query, resp *openlibrary.SearchResponse) View {
	if resp == nil {
		resp = openlibrary.EmptyResponse()
	}

	rows := make([]Row, 0, len(resp.Docs))
	for i, doc := range resp.Docs {
		rows = append(rows, NewRow(i, doc))
	}

	return View{
		Query:      q,
		Pagination: NewPagination(resp.NumFound, q.Page),
		Columns:    Columns,
		Rows:       rows,
		Response:   resp,
	}
}

// NewRow renders one document. Rows are keyed by the work key; position is
// only used when the index omits it.
func NewRow(index int, doc openlibrary.Document) Row {
	key := doc.Key
	if key == "" {
		key = "#" + strconv.Itoa(index)
	}

	return Row{
		Key:              key,
		Title:            doc.Title,
		Authors:          strings.Join(doc.AuthorName, ", "),
		FirstPublishYear: optionalInt(doc.FirstPublishYear),
		ISBN:             strings.Join(doc.ISBN, ", "),
		Pages:            optionalInt(doc.NumberOfPagesMedian),
		CoverURL:         doc.CoverURL("S"),
	}
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// NewPagination computes the pagination control for count matches
func NewPagination(count, page int) Pagination {
	p := Pagination{
		Count:              count,
		Page:               page,
		RowsPerPage:        RowsPerPage,
		RowsPerPageOptions: []int{RowsPerPage},
		PageCount:          (count + RowsPerPage - 1) / RowsPerPage,
		HasPrev:            page > 0,
	}
	if count > 0 {
		p.From = page*RowsPerPage + 1
		p.To = min(count, (page+1)*RowsPerPage)
	}
	p.HasNext = page < p.PageCount-1
	p.Label = fmt.Sprintf("%d–%d of %d", p.From, p.To, count)
	return p
}

// ErrorMessage turns a search failure into the inline text shown above the table
func ErrorMessage(err error) string {
	var statusErr *openlibrary.StatusError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &statusErr):
		return fmt.Sprintf("Search failed: Open Library returned status %d", statusErr.StatusCode)
	case errors.Is(err, openlibrary.ErrResponseFormat):
		return "Search failed: Open Library sent a response that could not be read"
	case errors.Is(err, openlibrary.ErrNetwork):
		return "Search failed: could not reach Open Library"
	default:
		return "Search failed: " + err.Error()
	}
}

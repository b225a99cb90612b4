package openlibrary

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
)

// PageSize is the number of documents Open Library returns per search page
// when no explicit limit is sent.
const PageSize = 100

// MaxPage is the largest page index whose offset fits in an int
const MaxPage = math.MaxInt / PageSize

// Type is the document type tag reported by the search index
type Type string

const (
	TypeWork Type = "work"
)

// EbookAccess describes whether an ebook exists for a work and how it can be read
type EbookAccess string

const (
	EbookAccessBorrowable    EbookAccess = "borrowable"
	EbookAccessNoEbook       EbookAccess = "no_ebook"
	EbookAccessPublic        EbookAccess = "public"
	EbookAccessPrintDisabled EbookAccess = "printdisabled"
)

// SearchResponse represents the response from Open Library's search API
type SearchResponse struct {
	NumFound      int        `json:"numFound"`
	Start         int        `json:"start"`
	NumFoundExact bool       `json:"numFoundExact"`
	Docs          []Document `json:"docs"`

	// Echoed fields, largely redundant with the ones above
	NumFoundAlt int    `json:"num_found"`
	Q           string `json:"q"`
	Offset      *int   `json:"offset"`
}

// EmptyResponse returns the envelope displayed when there is no keyword
func EmptyResponse() *SearchResponse {
	return &SearchResponse{Docs: []Document{}}
}

// Document represents a single work in search results.
//
// Only the fields below are typed. Everything else the index returns
// (catalog identifiers, facets, reading log counters, ...) is kept verbatim
// in Extra and written back out by MarshalJSON. Typed fields the index sent
// with an empty value are written back as received.
type Document struct {
	Key                 string      `json:"key"` // Work key like "/works/OL45804W"
	Type                Type        `json:"type,omitempty"`
	Title               string      `json:"title"`
	Subtitle            string      `json:"subtitle,omitempty"`
	AuthorName          []string    `json:"author_name,omitempty"`
	AuthorKey           []string    `json:"author_key,omitempty"`
	FirstPublishYear    *int        `json:"first_publish_year,omitempty"`
	ISBN                []string    `json:"isbn,omitempty"`
	NumberOfPagesMedian *int        `json:"number_of_pages_median,omitempty"`
	EditionCount        *int        `json:"edition_count,omitempty"`
	CoverI              *int        `json:"cover_i,omitempty"` // Cover ID for covers API
	Publisher           []string    `json:"publisher,omitempty"`
	Language            []string    `json:"language,omitempty"`
	Subject             []string    `json:"subject,omitempty"`
	EbookAccess         EbookAccess `json:"ebook_access,omitempty"`
	HasFulltext         *bool       `json:"has_fulltext,omitempty"`
	RatingsAverage      *float64    `json:"ratings_average,omitempty"`
	RatingsCount        *int        `json:"ratings_count,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`

	sent map[string]json.RawMessage // typed fields as received
}

// documentFields has Document's layout without its JSON methods
type documentFields Document

var typedFields = jsonFieldNames(reflect.TypeOf(documentFields{}))

func jsonFieldNames(t reflect.Type) map[string]struct{} {
	names := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		names[name] = struct{}{}
	}
	return names
}

// UnmarshalJSON decodes the typed fields and stashes the rest in Extra
func (d *Document) UnmarshalJSON(data []byte) error {
	var fields documentFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields.Extra = nil
	fields.sent = nil
	for name, value := range raw {
		if _, ok := typedFields[name]; !ok {
			continue
		}
		if fields.sent == nil {
			fields.sent = make(map[string]json.RawMessage)
		}
		fields.sent[name] = value
		delete(raw, name)
	}
	if len(raw) > 0 {
		fields.Extra = raw
	}
	*d = Document(fields)
	return nil
}

// MarshalJSON writes the typed fields merged with Extra. Typed fields win
// when both carry the same name; a typed field omitted as empty falls back to
// the value it was decoded from.
func (d Document) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(documentFields(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 && len(d.sent) == 0 {
		return base, nil
	}

	merged := make(map[string]json.RawMessage, len(d.Extra)+len(typedFields))
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for _, fields := range []map[string]json.RawMessage{d.Extra, d.sent} {
		for name, value := range fields {
			if _, ok := merged[name]; !ok {
				merged[name] = value
			}
		}
	}
	return json.Marshal(merged)
}

// Field returns a pass-through field by its upstream name
func (d Document) Field(name string) (json.RawMessage, bool) {
	v, ok := d.Extra[name]
	return v, ok
}

// CoverURL returns the cover thumbnail for the document, or "" when it has none
func (d Document) CoverURL(size string) string {
	if d.CoverI == nil || *d.CoverI <= 0 {
		return ""
	}
	return GetCoverURL(*d.CoverI, size)
}

package repl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/peterh/liner"

	"github.com/shelfarr/booksearch/internal/openlibrary"
	"github.com/shelfarr/booksearch/internal/search"
)

type fakeSearcher struct {
	mu       sync.Mutex
	calls    []search.Query
	numFound int
	err      error
}

func (f *fakeSearcher) SearchBooks(ctx context.Context, keyword string, page int) (*openlibrary.SearchResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, search.Query{Keyword: keyword, Page: page})
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return &openlibrary.SearchResponse{
		NumFound: f.numFound,
		Docs: []openlibrary.Document{
			{Key: fmt.Sprintf("/works/%d", page), Title: fmt.Sprintf("%s page %d", keyword, page)},
		},
	}, nil
}

func (f *fakeSearcher) Calls() []search.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]search.Query(nil), f.calls...)
}

type scriptedReader struct {
	lines   []string
	end     error
	history []string
}

func (s *scriptedReader) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", s.end
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedReader) AppendHistory(item string) {
	s.history = append(s.history, item)
}

func newTestREPL(t *testing.T, searcher search.Searcher) (*REPL, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	r := New(context.Background(), searcher, search.Options{Debounce: 10 * time.Millisecond}, &out)
	r.Timeout = 2 * time.Second
	t.Cleanup(r.Close)
	return r, &out
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    command
		wantErr bool
	}{
		{line: "dune", want: command{action: actionSearch, keyword: "dune"}},
		{line: "  lord of the rings ", want: command{action: actionSearch, keyword: "lord of the rings"}},
		{line: "", want: command{action: actionSearch}},
		{line: ":next", want: command{action: actionNext}},
		{line: ":p", want: command{action: actionPrev}},
		{line: ":page 3", want: command{action: actionPage, page: 2}},
		{line: ":quit", want: command{action: actionQuit}},
		{line: ":page", wantErr: true},
		{line: ":page 0", wantErr: true},
		{line: ":page x", wantErr: true},
		{line: ":page 9223372036854775807", wantErr: true},
		{line: ":sort title", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.line)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}

	if _, err := parseCommand(":sort"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
}

func TestRunSearchAndPaginate(t *testing.T) {
	searcher := &fakeSearcher{numFound: 250}
	r, out := newTestREPL(t, searcher)

	reader := &scriptedReader{lines: []string{"dune", ":next", ":page 3", ":prev", ":quit"}, end: io.EOF}
	if err := r.Run(context.Background(), reader); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	want := []search.Query{
		{Keyword: "dune", Page: 0},
		{Keyword: "dune", Page: 1},
		{Keyword: "dune", Page: 2},
		{Keyword: "dune", Page: 1},
	}
	calls := searcher.Calls()
	if len(calls) != len(want) {
		t.Fatalf("Expected %d searches, got %v", len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("Search %d: expected %+v, got %+v", i, want[i], calls[i])
		}
	}

	text := out.String()
	for _, s := range []string{"dune page 0", "dune page 2", "201–250 of 250", "(page 3/3)"} {
		if !strings.Contains(text, s) {
			t.Errorf("Expected output to contain %q, got:\n%s", s, text)
		}
	}
	if len(reader.history) != 5 {
		t.Errorf("Expected 5 history entries, got %v", reader.history)
	}
}

func TestRunPageBounds(t *testing.T) {
	searcher := &fakeSearcher{numFound: 10}
	r, out := newTestREPL(t, searcher)

	reader := &scriptedReader{lines: []string{":prev", "dune", ":next"}, end: liner.ErrPromptAborted}
	if err := r.Run(context.Background(), reader); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "already on the first page") || !strings.Contains(text, "already on the last page") {
		t.Errorf("Expected page bound messages, got:\n%s", text)
	}
	if calls := searcher.Calls(); len(calls) != 1 {
		t.Errorf("Expected one search, got %v", calls)
	}
}

func TestExecuteClearAndRepeat(t *testing.T) {
	searcher := &fakeSearcher{numFound: 1}
	r, out := newTestREPL(t, searcher)
	ctx := context.Background()

	for _, line := range []string{"dune", "dune", ""} {
		if _, err := r.Execute(ctx, line); err != nil {
			t.Fatalf("Execute(%q) returned error: %v", line, err)
		}
	}

	if calls := searcher.Calls(); len(calls) != 1 {
		t.Errorf("Expected repeated keyword not to search again, got %v", calls)
	}
	text := out.String()
	if strings.Count(text, `Keyword: "dune"`) != 2 {
		t.Errorf("Expected the dune view printed twice, got:\n%s", text)
	}
	if strings.LastIndex(text, `Keyword: ""`) < strings.LastIndex(text, `Keyword: "dune"`) {
		t.Errorf("Expected cleared view at the end, got:\n%s", text)
	}
}

func TestExecuteShowsSearchError(t *testing.T) {
	searcher := &fakeSearcher{err: fmt.Errorf("%w: dial tcp", openlibrary.ErrNetwork)}
	r, out := newTestREPL(t, searcher)

	if _, err := r.Execute(context.Background(), "dune"); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !strings.Contains(out.String(), "! Search failed: could not reach Open Library") {
		t.Errorf("Expected inline error, got:\n%s", out.String())
	}
}

func TestRunPropagatesReaderError(t *testing.T) {
	r, _ := newTestREPL(t, &fakeSearcher{})
	boom := errors.New("terminal gone")

	if err := r.Run(context.Background(), &scriptedReader{end: boom}); !errors.Is(err, boom) {
		t.Errorf("Expected reader error, got %v", err)
	}
}

package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shelfarr/booksearch/internal/logging"
	"github.com/shelfarr/booksearch/internal/metrics"
	"github.com/shelfarr/booksearch/internal/openlibrary"
)

// DefaultDebounce is how long input has to stay unchanged before a search is issued
const DefaultDebounce = 200 * time.Millisecond

// Searcher runs one search request
type Searcher interface {
	SearchBooks(ctx context.Context, keyword string, page int) (*openlibrary.SearchResponse, error)
}

// Options configures a Session
type Options struct {
	// Debounce window; zero means DefaultDebounce
	Debounce time.Duration

	// AllowStale keeps last-write-wins for overlapping requests: in-flight
	// searches are not canceled and whichever answer arrives last is shown.
	AllowStale bool

	// OnRender is called from the session loop after every state change
	OnRender func(View)
}

type inputKind int

const (
	inputKeyword inputKind = iota
	inputPage
	inputRowsPerPage
)

type input struct {
	kind    inputKind
	keyword string
	page    int
}

type fetchResult struct {
	generation uint64
	query      Query
	response   *openlibrary.SearchResponse
	err        error
}

// Session owns the state of one search screen: the query, the last
// response and any inline error. All state changes happen on a single
// goroutine; the exported methods only post inputs to it.
type Session struct {
	id       string
	searcher Searcher
	opts     Options
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	inputs  chan input
	results chan fetchResult
	done    chan struct{}

	view      atomic.Pointer[View]
	closeOnce sync.Once
}

// NewSession starts a session. It renders the empty view once right away and
// runs until Close is called or ctx is canceled.
func NewSession(ctx context.Context, searcher Searcher, opts Options) *Session {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	id := uuid.New().String()
	logger := logging.Ctx(ctx).With().Str(logging.FieldSessionID, id).Logger()
	ctx, cancel := context.WithCancel(logging.WithLogger(ctx, logger))

	s := &Session{
		id:       id,
		searcher: searcher,
		opts:     opts,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		inputs:   make(chan input),
		results:  make(chan fetchResult),
		done:     make(chan struct{}),
	}

	initial := NewView(Query{}, nil)
	s.view.Store(&initial)

	go s.run()
	return s
}

// ID identifies the session in logs
func (s *Session) ID() string {
	return s.id
}

// SetKeyword replaces the keyword. An empty keyword clears the results immediately.
func (s *Session) SetKeyword(keyword string) {
	s.post(input{kind: inputKeyword, keyword: keyword})
}

// SetPage moves to a zero-based page. Negative pages are treated as 0.
func (s *Session) SetPage(page int) {
	if page < 0 {
		page = 0
	}
	s.post(input{kind: inputPage, page: page})
}

// ChangeRowsPerPage handles the page size control. The size itself is fixed,
// so this only sends the user back to the first page.
func (s *Session) ChangeRowsPerPage(int) {
	s.post(input{kind: inputRowsPerPage})
}

// View returns the most recently rendered view
func (s *Session) View() View {
	return *s.view.Load()
}

// Done is closed once the session loop has exited
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close stops any pending timer, cancels in-flight searches and waits for
// the loop to exit. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(s.cancel)
	<-s.done
}

func (s *Session) post(in input) {
	select {
	case s.inputs <- in:
	case <-s.done:
	}
}

// loopState is only touched by run
type loopState struct {
	query      Query
	response   *openlibrary.SearchResponse
	err        string
	loading    bool
	generation uint64

	timer       *time.Timer
	fetchCancel context.CancelFunc
}

func (s *Session) run() {
	defer close(s.done)

	st := &loopState{response: openlibrary.EmptyResponse()}
	var timerC <-chan time.Time

	defer func() {
		if st.timer != nil {
			st.timer.Stop()
		}
		if st.fetchCancel != nil {
			st.fetchCancel()
		}
	}()

	s.publish(st)

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug().Msg("search session closed")
			return

		case in := <-s.inputs:
			next := apply(st.query, in)
			if next == st.query {
				continue
			}
			st.query = next
			st.generation++

			if st.timer != nil && st.timer.Stop() {
				metrics.DebouncedEdits.Inc()
			}
			st.timer, timerC = nil, nil
			st.loading = false
			if !s.opts.AllowStale && st.fetchCancel != nil {
				st.fetchCancel()
				st.fetchCancel = nil
			}

			if next.Keyword == "" {
				st.response = openlibrary.EmptyResponse()
				st.err = ""
			} else {
				st.timer = time.NewTimer(s.opts.Debounce)
				timerC = st.timer.C
			}
			s.publish(st)

		case <-timerC:
			st.timer, timerC = nil, nil
			s.dispatch(st)
			s.publish(st)

		case res := <-s.results:
			if res.generation != st.generation && !s.opts.AllowStale {
				if !errors.Is(res.err, context.Canceled) {
					metrics.StaleResponsesDiscarded.Inc()
					s.logger.Debug().
						Uint64(logging.FieldGeneration, res.generation).
						Uint64("current_generation", st.generation).
						Msg("discarding stale search response")
				}
				continue
			}
			if res.generation == st.generation {
				st.loading = false
				st.fetchCancel = nil
			}

			if res.err != nil {
				if errors.Is(res.err, context.Canceled) {
					continue
				}
				s.logger.Warn().Err(res.err).
					Str(logging.FieldKeyword, res.query.Keyword).
					Int(logging.FieldPage, res.query.Page).
					Msg("search failed, keeping previous results")
				st.err = ErrorMessage(res.err)
			} else {
				st.response = res.response
				st.err = ""
			}
			s.publish(st)
		}
	}
}

// dispatch starts a search for the current query on its own goroutine and
// posts the outcome back to the loop.
func (s *Session) dispatch(st *loopState) {
	ctx, cancel := context.WithCancel(s.ctx)
	st.fetchCancel = cancel
	st.loading = true

	gen, q := st.generation, st.query
	s.logger.Debug().
		Str(logging.FieldKeyword, q.Keyword).
		Int(logging.FieldPage, q.Page).
		Uint64(logging.FieldGeneration, gen).
		Msg("dispatching search")

	go func() {
		defer cancel()
		resp, err := s.searcher.SearchBooks(ctx, q.Keyword, q.Page)
		select {
		case s.results <- fetchResult{generation: gen, query: q, response: resp, err: err}:
		case <-s.ctx.Done():
		}
	}()
}

func (s *Session) publish(st *loopState) {
	v := NewView(st.query, st.response)
	v.Loading = st.loading
	v.Pending = st.timer != nil
	v.Error = st.err
	s.view.Store(&v)

	if s.opts.OnRender != nil {
		s.opts.OnRender(v)
	}
}

func apply(q Query, in input) Query {
	switch in.kind {
	case inputKeyword:
		q.Keyword = in.keyword
	case inputPage:
		q.Page = in.page
	case inputRowsPerPage:
		q.Page = 0
	}
	return q
}

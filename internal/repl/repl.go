// Package repl drives a search session from an interactive terminal.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"

	"github.com/shelfarr/booksearch/internal/openlibrary"
	"github.com/shelfarr/booksearch/internal/search"
)

const (
	// Prompt is shown before every line
	Prompt = "search> "

	// DefaultTimeout bounds how long a command waits for its results
	DefaultTimeout = 35 * time.Second
)

const helpText = `Type a keyword to search Open Library. Commands:
  :next      next page
  :prev      previous page
  :page N    jump to page N
  :help      show this help
  :quit      exit`

// ErrUnknownCommand is returned for a ':' line that is not a command
var ErrUnknownCommand = errors.New("unknown command")

// LineReader reads one line of input. *liner.State satisfies it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

type action int

const (
	actionSearch action = iota
	actionNext
	actionPrev
	actionPage
	actionHelp
	actionQuit
)

type command struct {
	action  action
	keyword string
	page    int
}

// parseCommand reads one input line. Anything not starting with ':' is a keyword.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ":") {
		return command{action: actionSearch, keyword: line}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case ":next", ":n":
		return command{action: actionNext}, nil
	case ":prev", ":p":
		return command{action: actionPrev}, nil
	case ":help", ":h", ":?":
		return command{action: actionHelp}, nil
	case ":quit", ":q", ":exit":
		return command{action: actionQuit}, nil
	case ":page":
		if len(fields) != 2 {
			return command{}, errors.New("usage: :page N")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n-1 > openlibrary.MaxPage {
			return command{}, fmt.Errorf("page must be a positive number, got %q", fields[1])
		}
		return command{action: actionPage, page: n - 1}, nil
	}
	return command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
}

// REPL owns one search session and prints its settled views
type REPL struct {
	session *search.Session
	views   chan search.View
	closed  chan struct{}
	once    sync.Once
	out     io.Writer

	// Timeout bounds how long a command waits for its results
	Timeout time.Duration
}

// New starts a session searching through searcher. Views are written to out.
func New(ctx context.Context, searcher search.Searcher, opts search.Options, out io.Writer) *REPL {
	r := &REPL{
		views:   make(chan search.View, 64),
		closed:  make(chan struct{}),
		out:     out,
		Timeout: DefaultTimeout,
	}
	opts.OnRender = func(v search.View) {
		select {
		case r.views <- v:
		case <-r.closed:
		case <-ctx.Done():
		}
	}
	r.session = search.NewSession(ctx, searcher, opts)
	return r
}

// Close ends the session
func (r *REPL) Close() {
	r.once.Do(func() { close(r.closed) })
	r.session.Close()
}

// Run reads lines until :quit, end of input or an aborted prompt
func (r *REPL) Run(ctx context.Context, in LineReader) error {
	fmt.Fprintln(r.out, helpText)

	for {
		line, err := in.Prompt(Prompt)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return err
		}
		if strings.TrimSpace(line) != "" {
			in.AppendHistory(line)
		}

		quit, err := r.Execute(ctx, line)
		if err != nil {
			fmt.Fprintf(r.out, "! %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// Execute applies one input line and prints the resulting view once it settles
func (r *REPL) Execute(ctx context.Context, line string) (bool, error) {
	cmd, err := parseCommand(line)
	if err != nil {
		return false, err
	}

	current := r.session.View()
	target := current.Query

	switch cmd.action {
	case actionQuit:
		return true, nil
	case actionHelp:
		fmt.Fprintln(r.out, helpText)
		return false, nil
	case actionSearch:
		target.Keyword = cmd.keyword
	case actionNext:
		if !current.Pagination.HasNext {
			return false, errors.New("already on the last page")
		}
		target.Page++
	case actionPrev:
		if !current.Pagination.HasPrev {
			return false, errors.New("already on the first page")
		}
		target.Page--
	case actionPage:
		target.Page = cmd.page
	}

	if target == current.Query {
		return false, search.WriteText(r.out, current)
	}

	if target.Keyword != current.Keyword {
		r.session.SetKeyword(target.Keyword)
	} else {
		r.session.SetPage(target.Page)
	}

	v, err := r.await(ctx, target)
	if err != nil {
		return false, err
	}
	return false, search.WriteText(r.out, v)
}

// await waits for the first view of q that is neither debouncing nor loading
func (r *REPL) await(ctx context.Context, q search.Query) (search.View, error) {
	timer := time.NewTimer(r.Timeout)
	defer timer.Stop()

	for {
		select {
		case v := <-r.views:
			if v.Query == q && !v.Pending && !v.Loading {
				return v, nil
			}
		case <-timer.C:
			return search.View{}, fmt.Errorf("no results after %s", r.Timeout)
		case <-ctx.Done():
			return search.View{}, ctx.Err()
		}
	}
}

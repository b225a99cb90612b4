package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/shelfarr/booksearch/internal/logging"
	"github.com/shelfarr/booksearch/internal/metrics"
)

const (
	BaseURL        = "https://openlibrary.org"
	CoversBaseURL  = "https://covers.openlibrary.org"
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 512
)

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// RequestsPerSecond throttles outgoing calls; 0 means unlimited
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client is an Open Library search API client
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

// NewClient creates a new Open Library client against the public API
func NewClient() *Client {
	return NewClientWithOptions(Options{})
}

// NewClientWithOptions creates a new Open Library client
func NewClientWithOptions(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = BaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  opts.UserAgent,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest waits for the rate limiter and performs an HTTP request
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

// SearchURL builds the search.json URL for a keyword and zero-based page index.
// page must be within [0, MaxPage].
func (c *Client) SearchURL(keyword string, page int) string {
	return fmt.Sprintf("%s/search.json?q=%s&offset=%d", c.baseURL, url.QueryEscape(keyword), page*PageSize)
}

// SearchBooks fetches one page of search results for keyword.
//
// The body is decoded as-is; nothing in the envelope is validated or
// normalized. Every call issues exactly one request.
func (c *Client) SearchBooks(ctx context.Context, keyword string, page int) (*SearchResponse, error) {
	if keyword == "" {
		return nil, ErrEmptyKeyword
	}
	if page < 0 || page > MaxPage {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}

	start := time.Now()
	result, err := c.searchBooks(ctx, keyword, page)
	took := time.Since(start)
	metrics.ObserveUpstream(outcome(err), took)

	l := logging.Ctx(ctx)
	evt := l.Debug().
		Str(logging.FieldKeyword, keyword).
		Int(logging.FieldOffset, page*PageSize).
		Dur("took", took)
	if err != nil {
		evt.Err(err).Msg("open library search failed")
		return nil, err
	}
	evt.Int(logging.FieldNumFound, result.NumFound).Msg("open library search")

	return result, nil
}

func (c *Client) searchBooks(ctx context.Context, keyword string, page int) (*SearchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.SearchURL(keyword, page), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var result SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrResponseFormat, err)
	}

	return &result, nil
}

// Ping tests the connection to Open Library
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?q=test&limit=1", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}

	return nil
}

// GetCoverURL returns the URL for a cover image
func GetCoverURL(coverID int, size string) string {
	// size can be "S", "M", or "L"
	if size == "" {
		size = "M"
	}
	return fmt.Sprintf("%s/b/id/%d-%s.jpg", CoversBaseURL, coverID, size)
}

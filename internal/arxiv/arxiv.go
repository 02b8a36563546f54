// ABOUTME: Client for the arXiv Atom query API used by the search_arxiv tool
// ABOUTME: Returns the first matching paper's title, URL and authors

package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoResults is returned when the query matches no papers.
var ErrNoResults = errors.New("no results found")

// DefaultBaseURL is the public arXiv export endpoint.
const DefaultBaseURL = "http://export.arxiv.org/api/query"

// Result is the first paper matched by a search.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Authors string `json:"authors"`
}

// Client queries the arXiv Atom API. Results are cached briefly since the
// assistant tends to search and then immediately re-search while chaining
// tool calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *resultCache
	logger     *slog.Logger
}

// New creates a client. An empty baseURL selects the public endpoint.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      newResultCache(5*time.Minute, 128),
		logger:     slog.Default().With("component", "arxiv"),
	}
}

// Close releases the cache's background goroutine.
func (c *Client) Close() {
	c.cache.Close()
}

// Atom feed wire types. arXiv serves standard Atom; encoding/xml matches
// on local element names.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string       `xml:"title"`
	Links   []atomLink   `xml:"link"`
	Authors []atomAuthor `xml:"author"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

// Search returns the best match for the query, or ErrNoResults.
func (c *Client) Search(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}

	if cached, ok := c.cache.get(query); ok {
		return cached, nil
	}

	searchURL := fmt.Sprintf("%s?search_query=all:%s&max_results=1", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying arxiv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	result, err := parseFeed(body)
	if err != nil {
		return nil, err
	}

	c.cache.put(query, result)
	c.logger.Debug("arxiv search", "query", query, "title", result.Title)
	return result, nil
}

// parseFeed extracts the first entry from an Atom feed.
func parseFeed(data []byte) (*Result, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("parsing atom feed: %w", err)
	}
	if len(feed.Entries) == 0 {
		return nil, ErrNoResults
	}

	entry := feed.Entries[0]

	title := strings.TrimSpace(entry.Title)
	title = strings.ReplaceAll(title, "\n", " ")
	if title == "" {
		title = "Unknown"
	}

	// Prefer the text/html link (the abstract page); fall back to the
	// alternate link.
	var pageURL string
	for _, link := range entry.Links {
		if link.Type == "text/html" {
			pageURL = link.Href
			break
		}
		if link.Rel == "alternate" {
			pageURL = link.Href
		}
	}

	var authors []string
	for _, a := range entry.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}
	authorList := strings.Join(first(authors, 3), ", ")
	if len(authors) > 3 {
		authorList += "..."
	}

	return &Result{Title: title, URL: pageURL, Authors: authorList}, nil
}

func first(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

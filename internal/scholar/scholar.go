// Package scholar searches the OpenAlex catalogue for papers to add to the
// library.
package scholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/researchjournal/rj/internal/schema"
)

// DefaultBaseURL is the public OpenAlex API.
const DefaultBaseURL = "https://api.openalex.org"

// DefaultLimit is the page size used when Options.Limit is zero.
const DefaultLimit = 10

const fields = "id,title,authorships,publication_year,primary_location,doi,cited_by_count,abstract_inverted_index,open_access"

const doiPrefix = "https://doi.org/"

// ErrEmptyQuery is returned by Search for a blank query.
var ErrEmptyQuery = errors.New("search query must not be empty")

// Config configures a Client.
type Config struct {
	// BaseURL overrides DefaultBaseURL.
	BaseURL string

	// Mailto is sent with every request to join the OpenAlex polite pool.
	Mailto string

	// Timeout bounds each request (default: 15s).
	Timeout time.Duration

	HTTPClient *http.Client

	// Logger receives request failures. Nil logs to stderr.
	Logger *log.Logger
}

// Client queries OpenAlex.
type Client struct {
	base   string
	mailto string
	http   *http.Client
	logger *log.Logger
}

// New creates a client.
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[scholar] ", log.LstdFlags)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{base: base, mailto: cfg.Mailto, http: hc, logger: cfg.Logger}
}

// Options narrows a search.
type Options struct {
	Limit          int
	OpenAccessOnly bool
}

// Paper is one search hit.
type Paper struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Year          *int     `json:"year"`
	Journal       string   `json:"journal,omitempty"`
	Abstract      string   `json:"abstract,omitempty"`
	DOI           string   `json:"doi,omitempty"`
	URL           string   `json:"url,omitempty"`
	CitationCount int      `json:"citationCount"`
	IsOpenAccess  bool     `json:"isOpenAccess"`
	OAURL         string   `json:"oaUrl,omitempty"`
}

// Results is a page of hits and the catalogue-wide match count.
type Results struct {
	Papers []Paper `json:"papers"`
	Total  int     `json:"total"`
}

// ArticleInput converts p to the fields used to save it in the library.
func (p Paper) ArticleInput() schema.ArticleInput {
	return schema.ArticleInput{
		Title:        p.Title,
		Authors:      p.Authors,
		Year:         p.Year,
		Journal:      p.Journal,
		DOI:          p.DOI,
		URL:          p.URL,
		Abstract:     p.Abstract,
		IsOpenAccess: p.IsOpenAccess,
	}
}

type work struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Authorships []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	PublicationYear *int `json:"publication_year"`
	PrimaryLocation *struct {
		Source *struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
		LandingPageURL string `json:"landing_page_url"`
	} `json:"primary_location"`
	DOI                   string           `json:"doi"`
	CitedByCount          int              `json:"cited_by_count"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
	OpenAccess            *struct {
		IsOA  bool   `json:"is_oa"`
		OAURL string `json:"oa_url"`
	} `json:"open_access"`
}

type response struct {
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
	Results []work `json:"results"`
}

// Search runs a full-text query against /works.
func (c *Client) Search(ctx context.Context, query string, opts Options) (*Results, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	params := url.Values{}
	params.Set("search", query)
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("select", fields)
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}
	if opts.OpenAccessOnly {
		params.Set("filter", "open_access.is_oa:true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/works?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("search %q failed: %v", query, err)
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("search failed (%d)", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	out := &Results{Papers: make([]Paper, 0, len(body.Results)), Total: body.Meta.Count}
	for _, w := range body.Results {
		out.Papers = append(out.Papers, toPaper(w))
	}
	return out, nil
}

func toPaper(w work) Paper {
	p := Paper{
		ID:            w.ID,
		Title:         w.Title,
		Authors:       make([]string, 0, len(w.Authorships)),
		Year:          w.PublicationYear,
		Abstract:      ReconstructAbstract(w.AbstractInvertedIndex),
		DOI:           ExtractDOI(w.DOI),
		CitationCount: w.CitedByCount,
	}
	if p.Title == "" {
		p.Title = "Untitled"
	}
	for _, a := range w.Authorships {
		p.Authors = append(p.Authors, a.Author.DisplayName)
	}
	if loc := w.PrimaryLocation; loc != nil {
		if loc.Source != nil {
			p.Journal = loc.Source.DisplayName
		}
		p.URL = loc.LandingPageURL
	}
	if p.URL == "" && p.DOI != "" {
		p.URL = doiPrefix + p.DOI
	}
	if oa := w.OpenAccess; oa != nil {
		p.IsOpenAccess = oa.IsOA
		p.OAURL = oa.OAURL
	}
	return p
}

// ReconstructAbstract rebuilds text from an inverted index of word to
// positions.
func ReconstructAbstract(inverted map[string][]int) string {
	if len(inverted) == 0 {
		return ""
	}
	type placed struct {
		word string
		pos  int
	}
	var words []placed
	for w, positions := range inverted {
		for _, pos := range positions {
			words = append(words, placed{w, pos})
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.word
	}
	return strings.Join(parts, " ")
}

// ExtractDOI strips the resolver prefix OpenAlex puts on DOIs.
func ExtractDOI(doi string) string {
	return strings.TrimPrefix(doi, doiPrefix)
}

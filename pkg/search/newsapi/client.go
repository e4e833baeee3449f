// Package newsapi implements search.Provider and search.SourceLister against
// the NewsAPI v2 HTTP API.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/txn2/live-search/pkg/search"
)

const (
	// DefaultBaseURL is the public NewsAPI endpoint.
	DefaultBaseURL = "https://newsapi.org"

	defaultTimeout  = 10 * time.Second
	defaultRate     = 2.0
	defaultBurst    = 4
	maxBodyBytes    = 4 << 20
	apiKeyHeader    = "X-Api-Key"
	statusError     = "error"
	codeRateLimited = "rateLimited"
	userAgent       = "live-search/1.0"
)

// Config configures the client.
type Config struct {
	BaseURL  string
	APIKey   string
	Language string
	Timeout  time.Duration

	// RequestsPerSecond and Burst throttle outgoing requests. Zero values
	// select the defaults.
	RequestsPerSecond float64
	Burst             int
}

// Client talks to NewsAPI.
type Client struct {
	baseURL  string
	apiKey   string
	language string
	client   *http.Client
	limiter  *rate.Limiter
}

// New creates a client. An empty BaseURL selects DefaultBaseURL.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

type apiArticle struct {
	Source struct {
		ID   *string `json:"id"`
		Name string  `json:"name"`
	} `json:"source"`
	Author      *string `json:"author"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	URL         string  `json:"url"`
	URLToImage  *string `json:"urlToImage"`
	PublishedAt string  `json:"publishedAt"`
	Content     *string `json:"content"`
}

type everythingResponse struct {
	Status       string       `json:"status"`
	Code         string       `json:"code"`
	Message      string       `json:"message"`
	TotalResults int          `json:"totalResults"`
	Articles     []apiArticle `json:"articles"`
}

type sourcesResponse struct {
	Status  string              `json:"status"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Sources []search.SourceInfo `json:"sources"`
}

// Search queries /v2/everything.
func (c *Client) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	sortBy := req.SortBy
	if !sortBy.Valid() {
		sortBy = search.SortPublishedAt
	}
	params.Set("sortBy", string(sortBy))
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = search.DefaultPageSize
	}
	params.Set("pageSize", strconv.Itoa(pageSize))
	if req.Page > 1 {
		params.Set("page", strconv.Itoa(req.Page))
	}
	if c.language != "" {
		params.Set("language", c.language)
	}

	var body everythingResponse
	if err := c.get(ctx, "/v2/everything", params, &body); err != nil {
		return nil, err
	}
	if body.Status == statusError {
		return nil, apiError(http.StatusOK, body.Code, body.Message)
	}

	resp := &search.Response{
		TotalResults: body.TotalResults,
		Articles:     make([]search.Article, 0, len(body.Articles)),
	}
	for i := range body.Articles {
		resp.Articles = append(resp.Articles, convertArticle(&body.Articles[i]))
	}
	return resp, nil
}

// Sources queries /v2/top-headlines/sources.
func (c *Client) Sources(ctx context.Context) ([]search.SourceInfo, error) {
	params := url.Values{}
	if c.language != "" {
		params.Set("language", c.language)
	}
	var body sourcesResponse
	if err := c.get(ctx, "/v2/top-headlines/sources", params, &body); err != nil {
		return nil, err
	}
	if body.Status == statusError {
		return nil, apiError(http.StatusOK, body.Code, body.Message)
	}
	if body.Sources == nil {
		body.Sources = []search.SourceInfo{}
	}
	return body.Sources, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", classifyTransport(ctx, err))
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, classifyTransport(ctx, err))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", classifyTransport(ctx, err))
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &e)
		if e.Message == "" {
			e.Message = resp.Status
		}
		return apiError(resp.StatusCode, e.Code, e.Message)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// apiError maps an HTTP status and NewsAPI error code to a ProviderError
// wrapping the matching failure class.
func apiError(status int, code, message string) error {
	pe := &search.ProviderError{Status: status, Code: code, Message: message}
	switch {
	case status == http.StatusTooManyRequests || code == codeRateLimited:
		pe.Err = search.ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusBadRequest ||
		strings.HasPrefix(code, "apiKey") || strings.HasPrefix(code, "parameter"):
		pe.Err = search.ErrRejected
	case status == http.StatusGatewayTimeout:
		pe.Err = search.ErrTimeout
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		pe.Err = search.ErrConnection
	}
	return pe
}

// classifyTransport wraps a transport-level failure in its failure class.
func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", search.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", search.ErrConnection, err)
}

func convertArticle(a *apiArticle) search.Article {
	out := search.Article{
		Source: search.Source{
			ID:   deref(a.Source.ID),
			Name: a.Source.Name,
		},
		Author:      deref(a.Author),
		Title:       a.Title,
		Description: deref(a.Description),
		URL:         a.URL,
		URLToImage:  deref(a.URLToImage),
		Content:     deref(a.Content),
	}
	if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
		out.PublishedAt = t.UTC()
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Verify interface compliance.
var (
	_ search.Provider     = (*Client)(nil)
	_ search.SourceLister = (*Client)(nil)
)

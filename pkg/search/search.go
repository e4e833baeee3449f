// Package search defines the article model, the provider contract consumed by
// live-search sessions, and the provider error taxonomy.
package search

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// SortBy is the ordering requested from the provider.
type SortBy string

const (
	// SortPublishedAt orders newest first. It is the default.
	SortPublishedAt SortBy = "publishedAt"

	// SortRelevancy orders by closeness to the query.
	SortRelevancy SortBy = "relevancy"

	// SortPopularity orders by source popularity.
	SortPopularity SortBy = "popularity"
)

// DefaultPageSize is the number of articles requested per page.
const DefaultPageSize = 10

// Valid reports whether s is one of the supported orderings.
func (s SortBy) Valid() bool {
	switch s {
	case SortPublishedAt, SortRelevancy, SortPopularity:
		return true
	default:
		return false
	}
}

// ParseSortBy returns the ordering named by raw, or SortPublishedAt when raw
// is empty or unknown.
func ParseSortBy(raw string) SortBy {
	s := SortBy(strings.TrimSpace(raw))
	if s.Valid() {
		return s
	}
	return SortPublishedAt
}

// Source identifies the publisher of an article.
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Article is a single search result. Articles are immutable once returned by
// a provider.
type Article struct {
	Source      Source    `json:"source"`
	Author      string    `json:"author,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	URLToImage  string    `json:"urlToImage,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	Content     string    `json:"content,omitempty"`
}

// Key returns the identity key used to decide whether an article has already
// been delivered: the canonical URL, or title and source when the URL is absent.
func (a Article) Key() string {
	if u := CanonicalURL(a.URL); u != "" {
		return u
	}
	src := a.Source.ID
	if src == "" {
		src = a.Source.Name
	}
	return strings.ToLower(strings.TrimSpace(a.Title)) + "|" + strings.ToLower(src)
}

// CanonicalURL normalizes raw so that trivially different links to the same
// article compare equal. It returns "" for an empty or unparseable URL.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	for k := range q {
		if strings.HasPrefix(strings.ToLower(k), "utm_") {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// Request is a single provider query.
type Request struct {
	Query    string
	SortBy   SortBy
	PageSize int
	Page     int
}

// Response is a page of provider results.
type Response struct {
	Articles     []Article `json:"articles"`
	TotalResults int       `json:"totalResults"`
}

// Empty reports whether the response carries no articles.
func (r *Response) Empty() bool {
	return r == nil || len(r.Articles) == 0
}

// SourceInfo describes a publisher in the provider's source directory.
type SourceInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Category    string `json:"category"`
	Language    string `json:"language"`
	Country     string `json:"country"`
}

// Provider issues one query against the external search service.
type Provider interface {
	Search(ctx context.Context, req Request) (*Response, error)
}

// SourceLister lists the provider's source directory.
type SourceLister interface {
	Sources(ctx context.Context) ([]SourceInfo, error)
}

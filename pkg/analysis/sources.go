package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/txn2/live-search/pkg/cache"
	"github.com/txn2/live-search/pkg/search"
)

// DefaultCatalogTTL is how long the source directory is cached.
const DefaultCatalogTTL = time.Hour

const catalogKey = "sources"

// ErrNoSources is returned when a batch has no source to profile.
var ErrNoSources = errors.New("no sources in batch")

// Catalog caches the provider's source directory.
type Catalog struct {
	lister  search.SourceLister
	entries *cache.Map[string, []search.SourceInfo]
}

// NewCatalog creates a Catalog over lister. A ttl of zero selects
// DefaultCatalogTTL.
func NewCatalog(lister search.SourceLister, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &Catalog{
		lister:  lister,
		entries: cache.New[string, []search.SourceInfo](cache.Config{TTL: ttl, MaxEntries: 1}),
	}
}

// List returns the source directory, fetching it when the cached copy is
// missing or stale. Concurrent misses may each fetch; the last write wins.
func (c *Catalog) List(ctx context.Context) ([]search.SourceInfo, error) {
	if sources, ok := c.entries.Get(catalogKey); ok {
		return sources, nil
	}
	sources, err := c.lister.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	if len(sources) == 0 {
		return []search.SourceInfo{}, nil
	}
	c.entries.Set(catalogKey, sources)
	return sources, nil
}

// Lookup returns the directory entry whose id or name matches src.
func (c *Catalog) Lookup(ctx context.Context, src search.Source) (search.SourceInfo, bool, error) {
	sources, err := c.List(ctx)
	if err != nil {
		return search.SourceInfo{}, false, err
	}
	for _, s := range sources {
		if (src.ID != "" && s.ID == src.ID) || (src.Name != "" && strings.EqualFold(s.Name, src.Name)) {
			return s, true, nil
		}
	}
	return search.SourceInfo{}, false, nil
}

// Sources is the source directory payload.
type Sources struct {
	Count   int                 `json:"count"`
	Sources []search.SourceInfo `json:"sources"`
	Error   string              `json:"error,omitempty"`
}

// SourcesAnalyzer reports the source directory.
type SourcesAnalyzer struct {
	Catalog *Catalog
}

// Kind implements Analyzer.
func (SourcesAnalyzer) Kind() Kind { return KindSources }

// Analyze implements Analyzer.
func (a SourcesAnalyzer) Analyze(ctx context.Context, _ Input) (any, error) {
	sources, err := a.Catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	return Sources{Count: len(sources), Sources: sources}, nil
}

// Degraded implements Analyzer.
func (SourcesAnalyzer) Degraded(_ Input, err error) any {
	return Sources{Sources: []search.SourceInfo{}, Error: errString(err)}
}

// SourceProfile describes the most frequent source in a batch.
type SourceProfile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ArticleCount int    `json:"articleCount"`
	Description  string `json:"description,omitempty"`
	URL          string `json:"url,omitempty"`
	Category     string `json:"category,omitempty"`
	Language     string `json:"language,omitempty"`
	Country      string `json:"country,omitempty"`
	Found        bool   `json:"found"`
	Error        string `json:"error,omitempty"`
}

// SourceProfileAnalyzer profiles the batch's dominant source against the
// source directory.
type SourceProfileAnalyzer struct {
	Catalog *Catalog
}

// Kind implements Analyzer.
func (SourceProfileAnalyzer) Kind() Kind { return KindSourceProfile }

// Analyze implements Analyzer.
func (a SourceProfileAnalyzer) Analyze(ctx context.Context, in Input) (any, error) {
	src, count, ok := dominantSource(in.Articles)
	if !ok {
		return nil, ErrNoSources
	}
	profile := SourceProfile{ID: src.ID, Name: src.Name, ArticleCount: count}

	info, found, err := a.Catalog.Lookup(ctx, src)
	if err != nil {
		return nil, err
	}
	if found {
		profile.Found = true
		profile.ID = info.ID
		profile.Name = info.Name
		profile.Description = info.Description
		profile.URL = info.URL
		profile.Category = info.Category
		profile.Language = info.Language
		profile.Country = info.Country
	}
	return profile, nil
}

// Degraded implements Analyzer.
func (SourceProfileAnalyzer) Degraded(in Input, err error) any {
	src, count, _ := dominantSource(in.Articles)
	return SourceProfile{ID: src.ID, Name: src.Name, ArticleCount: count, Error: errString(err)}
}

// dominantSource returns the source with the most articles. Ties go to the
// lexically smallest key.
func dominantSource(articles []search.Article) (search.Source, int, bool) {
	type tally struct {
		src   search.Source
		count int
	}
	byKey := make(map[string]*tally)
	for i := range articles {
		s := articles[i].Source
		key := s.ID
		if key == "" {
			key = strings.ToLower(s.Name)
		}
		if key == "" {
			continue
		}
		if t, ok := byKey[key]; ok {
			t.count++
		} else {
			byKey[key] = &tally{src: s, count: 1}
		}
	}
	if len(byKey) == 0 {
		return search.Source{}, 0, false
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := byKey[keys[0]]
	for _, k := range keys[1:] {
		if byKey[k].count > best.count {
			best = byKey[k]
		}
	}
	return best.src, best.count, true
}

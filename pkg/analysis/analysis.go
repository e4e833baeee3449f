// Package analysis computes article-set analyses and fans them out to
// concurrent workers.
//
// Each analysis is an Analyzer. A Dispatcher runs a set of analyzers over one
// article batch and delivers every result as soon as it is ready. A failing
// analyzer never fails the batch: its result carries a degraded payload with
// the error message set.
package analysis

import (
	"context"

	"github.com/txn2/live-search/pkg/search"
)

// Kind names an analysis. The value doubles as the outbound message type.
type Kind string

// Analysis kinds.
const (
	KindReadability   Kind = "readability"
	KindSentiment     Kind = "sentiment"
	KindWordStats     Kind = "wordStats"
	KindSourceProfile Kind = "sourceProfile"
	KindSources       Kind = "sources"
)

// Input is the batch an analyzer runs over.
type Input struct {
	Query    string
	Articles []search.Article
}

// Analyzer computes one kind of analysis.
type Analyzer interface {
	// Kind returns the analysis kind.
	Kind() Kind

	// Analyze returns the payload for in.
	Analyze(ctx context.Context, in Input) (any, error)

	// Degraded returns the payload reported when Analyze fails. It must be a
	// valid payload of the same type with its error field set.
	Degraded(in Input, err error) any
}

// Result is one completed analysis.
type Result struct {
	Kind    Kind
	Payload any

	// Err is set when Payload is degraded.
	Err error
}

// articleText is the text analyzed for an article: its description, or the
// title when the description is empty.
func articleText(a *search.Article) string {
	if a.Description != "" {
		return a.Description
	}
	return a.Title
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Standard returns the readability, sentiment and word statistics analyzers,
// plus the source profile and source directory analyzers when catalog is set.
func Standard(catalog *Catalog, topWords int) []Analyzer {
	analyzers := []Analyzer{
		ReadabilityAnalyzer{},
		SentimentAnalyzer{},
		WordStatsAnalyzer{Top: topWords},
	}
	if catalog != nil {
		analyzers = append(analyzers,
			SourceProfileAnalyzer{Catalog: catalog},
			SourcesAnalyzer{Catalog: catalog},
		)
	}
	return analyzers
}

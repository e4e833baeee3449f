package analysis

import (
	"context"
	"sort"
)

// DefaultTopWords is the number of word frequencies reported.
const DefaultTopWords = 50

// WordFrequency is one word and its count.
type WordFrequency struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// WordStats is the word statistics payload.
type WordStats struct {
	Query           string          `json:"query"`
	TotalArticles   int             `json:"totalArticles"`
	TotalWords      int             `json:"totalWords"`
	UniqueWords     int             `json:"uniqueWords"`
	WordFrequencies []WordFrequency `json:"wordFrequencies"`
	Error           string          `json:"error,omitempty"`
}

// WordStatsAnalyzer counts word frequencies across article texts.
type WordStatsAnalyzer struct {
	// Top caps the reported frequencies. Zero selects DefaultTopWords.
	Top int
}

// Kind implements Analyzer.
func (WordStatsAnalyzer) Kind() Kind { return KindWordStats }

// Analyze implements Analyzer.
func (a WordStatsAnalyzer) Analyze(_ context.Context, in Input) (any, error) {
	top := a.Top
	if top <= 0 {
		top = DefaultTopWords
	}

	counts := make(map[string]int)
	total := 0
	for i := range in.Articles {
		for _, w := range words(articleText(&in.Articles[i])) {
			counts[w]++
			total++
		}
	}

	freqs := make([]WordFrequency, 0, len(counts))
	for w, c := range counts {
		freqs = append(freqs, WordFrequency{Word: w, Count: c})
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].Count != freqs[j].Count {
			return freqs[i].Count > freqs[j].Count
		}
		return freqs[i].Word < freqs[j].Word
	})
	if len(freqs) > top {
		freqs = freqs[:top]
	}

	return WordStats{
		Query:           in.Query,
		TotalArticles:   len(in.Articles),
		TotalWords:      total,
		UniqueWords:     len(counts),
		WordFrequencies: freqs,
	}, nil
}

// Degraded implements Analyzer.
func (WordStatsAnalyzer) Degraded(in Input, err error) any {
	return WordStats{
		Query:           in.Query,
		TotalArticles:   len(in.Articles),
		WordFrequencies: []WordFrequency{},
		Error:           errString(err),
	}
}

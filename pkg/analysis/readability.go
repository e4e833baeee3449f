package analysis

import (
	"context"

	"github.com/txn2/live-search/pkg/search"
)

// ArticleScore is the readability of one article.
type ArticleScore struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	GradeLevel  float64 `json:"gradeLevel"`
	ReadingEase float64 `json:"readingEase"`
}

// Readability is the readability payload.
type Readability struct {
	GradeLevel    float64        `json:"gradeLevel"`
	ReadingEase   float64        `json:"readingEase"`
	ArticleScores []ArticleScore `json:"articleScores"`
	Error         string         `json:"error,omitempty"`
}

// ReadabilityAnalyzer scores text with the Flesch reading-ease and
// Flesch-Kincaid grade-level formulas.
type ReadabilityAnalyzer struct{}

// Kind implements Analyzer.
func (ReadabilityAnalyzer) Kind() Kind { return KindReadability }

// Analyze implements Analyzer.
func (ReadabilityAnalyzer) Analyze(_ context.Context, in Input) (any, error) {
	return ScoreReadability(in.Articles), nil
}

// Degraded implements Analyzer.
func (ReadabilityAnalyzer) Degraded(_ Input, err error) any {
	return Readability{ArticleScores: []ArticleScore{}, Error: errString(err)}
}

// ScoreReadability returns the aggregate score over all article texts
// together with per-article scores. Counts are summed per text, so a
// description without terminal punctuation still ends a sentence.
func ScoreReadability(articles []search.Article) Readability {
	var total textCounts
	for i := range articles {
		total = total.add(countText(articleText(&articles[i])))
	}
	grade, ease := total.flesch()
	return Readability{
		GradeLevel:    grade,
		ReadingEase:   ease,
		ArticleScores: ScoreArticles(articles),
	}
}

// ScoreArticles returns one score per article, in order.
func ScoreArticles(articles []search.Article) []ArticleScore {
	scores := make([]ArticleScore, 0, len(articles))
	for i := range articles {
		grade, ease := fleschScores(articleText(&articles[i]))
		scores = append(scores, ArticleScore{
			Title:       articles[i].Title,
			URL:         articles[i].URL,
			GradeLevel:  grade,
			ReadingEase: ease,
		})
	}
	return scores
}

// fleschScores returns the Flesch-Kincaid grade level and Flesch reading
// ease of text, rounded to two decimals. Empty text scores zero.
func fleschScores(text string) (grade, ease float64) {
	return countText(text).flesch()
}

type textCounts struct {
	words     int
	sentences int
	syllables int
}

func countText(text string) textCounts {
	ws := words(text)
	if len(ws) == 0 {
		return textCounts{}
	}
	c := textCounts{words: len(ws), sentences: sentences(text)}
	if c.sentences == 0 {
		c.sentences = 1
	}
	for _, w := range ws {
		c.syllables += syllables(w)
	}
	return c
}

func (c textCounts) add(o textCounts) textCounts {
	return textCounts{
		words:     c.words + o.words,
		sentences: c.sentences + o.sentences,
		syllables: c.syllables + o.syllables,
	}
}

func (c textCounts) flesch() (grade, ease float64) {
	if c.words == 0 {
		return 0, 0
	}
	wordsPerSentence := float64(c.words) / float64(c.sentences)
	syllablesPerWord := float64(c.syllables) / float64(c.words)

	ease = 206.835 - 1.015*wordsPerSentence - 84.6*syllablesPerWord
	grade = 0.39*wordsPerSentence + 11.8*syllablesPerWord - 15.59
	return round2(grade), round2(ease)
}

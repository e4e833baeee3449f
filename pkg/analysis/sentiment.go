package analysis

import (
	"context"
	"strings"

	"github.com/txn2/live-search/pkg/search"
)

// Sentiment labels.
const (
	SentimentHappy   = ":-)"
	SentimentSad     = ":-("
	SentimentNeutral = ":-|"
)

// sentimentThreshold is the share of emotional tokens one side needs to win.
const sentimentThreshold = 0.7

// Sentiment is the sentiment payload.
type Sentiment struct {
	Sentiment   string `json:"sentiment"`
	Description string `json:"description"`
	Error       string `json:"error,omitempty"`
}

var happyWords = toSet(
	"happy", "glad", "joy", "joyful", "love", "loved", "lovely", "great",
	"good", "excellent", "amazing", "awesome", "wonderful", "fantastic",
	"success", "successful", "win", "wins", "won", "winning", "best",
	"positive", "celebrate", "celebrates", "celebration", "breakthrough",
	"improve", "improved", "improves", "growth", "gain", "gains", "hope",
	"hopeful", "exciting", "excited", "delight", "delighted", "brilliant",
	"beautiful", "strong", "record", "boost", "thrive", "thriving",
)

var sadWords = toSet(
	"sad", "unhappy", "angry", "hate", "hated", "bad", "terrible", "awful",
	"horrible", "worst", "fail", "fails", "failed", "failure", "loss",
	"losses", "lose", "lost", "crash", "crisis", "death", "dead", "die",
	"dies", "died", "kill", "killed", "war", "attack", "fear", "fears",
	"decline", "declines", "drop", "drops", "fall", "falls", "weak",
	"negative", "problem", "problems", "threat", "warning", "danger",
	"disaster", "tragedy", "scandal", "fraud", "layoffs",
)

var (
	happyEmoticons = []string{":)", ":-)", ":D", ":-D", "(:"}
	sadEmoticons   = []string{":(", ":-(", ":'(", "):"}
)

// SentimentAnalyzer classifies article descriptions as happy, sad or neutral.
type SentimentAnalyzer struct{}

// Kind implements Analyzer.
func (SentimentAnalyzer) Kind() Kind { return KindSentiment }

// Analyze implements Analyzer.
func (SentimentAnalyzer) Analyze(_ context.Context, in Input) (any, error) {
	return ScoreSentiment(in.Articles), nil
}

// Degraded implements Analyzer.
func (SentimentAnalyzer) Degraded(_ Input, err error) any {
	return Sentiment{Sentiment: SentimentNeutral, Description: "unavailable", Error: errString(err)}
}

// ScoreSentiment classifies the combined article texts. A side wins when it
// holds more than 70% of the emotional tokens.
func ScoreSentiment(articles []search.Article) Sentiment {
	happy, sad := 0, 0
	for i := range articles {
		text := articleText(&articles[i])
		for _, e := range happyEmoticons {
			happy += strings.Count(text, e)
		}
		for _, e := range sadEmoticons {
			sad += strings.Count(text, e)
		}
		for _, w := range words(text) {
			if _, ok := happyWords[w]; ok {
				happy++
			} else if _, ok := sadWords[w]; ok {
				sad++
			}
		}
	}

	total := happy + sad
	switch {
	case total > 0 && float64(happy)/float64(total) > sentimentThreshold:
		return Sentiment{Sentiment: SentimentHappy, Description: "positive"}
	case total > 0 && float64(sad)/float64(total) > sentimentThreshold:
		return Sentiment{Sentiment: SentimentSad, Description: "negative"}
	default:
		return Sentiment{Sentiment: SentimentNeutral, Description: "neutral"}
	}
}

func toSet(ws ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(ws))
	for _, w := range ws {
		m[w] = struct{}{}
	}
	return m
}

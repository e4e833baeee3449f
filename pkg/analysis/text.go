package analysis

import (
	"math"
	"strings"
	"unicode"
)

// words splits text into lower-cased words. Apostrophes inside a word are
// kept ("don't"), surrounding punctuation is dropped.
func words(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f == "" {
			continue
		}
		out = append(out, strings.ToLower(f))
	}
	return out
}

// sentences counts runs of terminal punctuation. Text with words but no
// terminator counts as one sentence.
func sentences(text string) int {
	n := 0
	inRun := false
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if !inRun {
				n++
			}
			inRun = true
		default:
			if !unicode.IsSpace(r) {
				inRun = false
			}
		}
	}
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if trimmed != "" && !strings.ContainsRune(".!?", rune(trimmed[len(trimmed)-1])) {
		n++
	}
	return n
}

// syllables estimates the syllable count of a lower-cased word by counting
// vowel groups, discounting a silent trailing "e".
func syllables(word string) int {
	if word == "" {
		return 0
	}
	count := 0
	prevVowel := false
	for _, r := range word {
		v := isVowel(r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

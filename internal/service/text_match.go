package service

import (
	"strings"
	"unicode/utf8"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
)

// compareText returns the word and character error rates of candidate
// against reference. Comparison is case-insensitive and whitespace runs
// count as a single separator.
func compareText(reference, candidate string) (float64, float64) {
	ref := normalizeText(reference)
	cand := normalizeText(candidate)

	refWords := strings.Fields(ref)
	if len(refWords) == 0 {
		if len(strings.Fields(cand)) == 0 {
			return 0, 0
		}
		return 1, 1
	}

	wordRate, _ := wer.WER(refWords, strings.Fields(cand))

	refChars := strings.Join(refWords, " ")
	candChars := strings.Join(strings.Fields(cand), " ")
	charRate := float64(levenshtein.Distance(refChars, candChars)) / float64(utf8.RuneCountInString(refChars))

	return wordRate, charRate
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// matchScore maps a character error rate onto [0, 1]
func matchScore(cer float64) float64 {
	score := 1 - cer
	if score < 0 {
		return 0
	}
	return score
}

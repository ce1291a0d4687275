// Package metrics computes OCR accuracy metrics: character- and word-level
// Levenshtein edit distances, CER/WER, and multi-engine rankings against a
// ground-truth text. All functions are pure and safe for concurrent use.
package metrics

// editDistance returns the Levenshtein distance between two sequences of
// comparable units: the minimum number of single-unit insertions, deletions,
// and substitutions to transform a into b. The same routine serves both
// character-level (runes) and word-level (tokens) distances.
//
// Two-row DP keeps working memory at O(min(len(a), len(b))).
func editDistance[T comparable](a, b []T) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// Levenshtein returns the character-level edit distance between two strings,
// compared case-sensitively code point by code point.
func Levenshtein(a, b string) int {
	return editDistance([]rune(a), []rune(b))
}

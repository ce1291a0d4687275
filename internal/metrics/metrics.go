package metrics

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Result holds the full set of accuracy metrics for one ground-truth /
// predicted text pair. Percentages are rounded to two decimal places; the
// JSON field names are the wire contract for API consumers.
type Result struct {
	CharacterAccuracy    float64 `json:"character_accuracy"`
	WordAccuracy         float64 `json:"word_accuracy"`
	CharacterErrorRate   float64 `json:"character_error_rate"`
	WordErrorRate        float64 `json:"word_error_rate"`
	LevenshteinDistance  int     `json:"levenshtein_distance"`
	GroundTruthLength    int     `json:"ground_truth_length"`
	PredictedLength      int     `json:"predicted_length"`
	GroundTruthWordCount int     `json:"ground_truth_word_count"`
	PredictedWordCount   int     `json:"predicted_word_count"`
}

// CharacterMetrics computes the character-level edit distance between the raw
// strings (case-sensitive) and the derived accuracy and error-rate
// percentages. The error rate normalizes by ground-truth length, so it can
// exceed 100 when the prediction is much longer than the ground truth;
// accuracy is clamped at 0 in that case. Empty ground truth is a defined
// edge case: error rate 0 if the prediction is also empty, else 100.
func CharacterMetrics(groundTruth, predicted string) (distance int, accuracy, errorRate float64) {
	gt := []rune(groundTruth)
	pred := []rune(predicted)

	distance = editDistance(gt, pred)

	if len(gt) == 0 {
		if len(pred) == 0 {
			return 0, 100, 0
		}
		return distance, 0, 100
	}

	errorRate = 100 * float64(distance) / float64(len(gt))
	accuracy = math.Max(0, 100-errorRate)
	return distance, accuracy, errorRate
}

// WordMetrics computes the word-level accuracy and error-rate percentages.
// Both texts are split on runs of whitespace and tokens are lowercased before
// comparison, so word matching is case-insensitive while a single wrong
// character still fails the whole word. Empty ground truth follows the same
// edge-case rules as CharacterMetrics.
func WordMetrics(groundTruth, predicted string) (accuracy, errorRate float64) {
	gt := tokenize(groundTruth)
	pred := tokenize(predicted)

	if len(gt) == 0 {
		if len(pred) == 0 {
			return 100, 0
		}
		return 0, 100
	}

	distance := editDistance(gt, pred)
	errorRate = 100 * float64(distance) / float64(len(gt))
	accuracy = math.Max(0, 100-errorRate)
	return accuracy, errorRate
}

// Detailed computes the full metrics record for a text pair. Rounding to two
// decimals happens only here, at the reporting boundary; the underlying
// computations always use the unrounded values.
func Detailed(groundTruth, predicted string) Result {
	distance, charAcc, cer := CharacterMetrics(groundTruth, predicted)
	wordAcc, wer := WordMetrics(groundTruth, predicted)

	return Result{
		CharacterAccuracy:    round2(charAcc),
		WordAccuracy:         round2(wordAcc),
		CharacterErrorRate:   round2(cer),
		WordErrorRate:        round2(wer),
		LevenshteinDistance:  distance,
		GroundTruthLength:    utf8.RuneCountInString(groundTruth),
		PredictedLength:      utf8.RuneCountInString(predicted),
		GroundTruthWordCount: len(strings.Fields(groundTruth)),
		PredictedWordCount:   len(strings.Fields(predicted)),
	}
}

// tokenize splits text on runs of whitespace and lowercases each token.
// Original casing only matters for character-level metrics and reported
// lengths, never for word equality.
func tokenize(text string) []string {
	fields := strings.Fields(text)
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{"both empty", "", "", 0},
		{"empty a", "", "abc", 3},
		{"empty b", "abc", "", 3},
		{"identical", "kitten", "kitten", 0},
		{"classic kitten sitting", "kitten", "sitting", 3},
		{"single deletion", "Hello World", "Helo World", 1},
		{"single substitution", "cat", "bat", 1},
		{"case sensitive", "Cat", "cat", 1},
		{"unicode code points", "héllo", "hello", 1},
		{"multibyte", "日本語", "日本", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Levenshtein(tt.a, tt.b))
		})
	}
}

func TestLevenshtein_Symmetry(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"abc", "abcd"},
		{"Hello World", "Helo World"},
		{"", "xyz"},
		{"short", "a much longer string entirely"},
	}
	for _, p := range pairs {
		assert.Equal(t, Levenshtein(p[0], p[1]), Levenshtein(p[1], p[0]), "distance must be symmetric for %q / %q", p[0], p[1])
	}
}

func TestLevenshtein_UpperBound(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"abcdef", "xyz"},
		{"", "hello"},
		{"same", "same"},
		{"ab", "ba"},
	}
	for _, p := range pairs {
		d := Levenshtein(p[0], p[1])
		maxLen := max(len([]rune(p[0])), len([]rune(p[1])))
		assert.LessOrEqual(t, d, maxLen)
		assert.GreaterOrEqual(t, d, 0)
	}
}

func TestCharacterMetrics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		groundTruth   string
		predicted     string
		wantDistance  int
		wantAccuracy  float64
		wantErrorRate float64
	}{
		{"both empty", "", "", 0, 100, 0},
		{"empty ground truth", "", "abc", 3, 0, 100},
		{"empty predicted", "abc", "", 3, 0, 100},
		{"identical", "same text", "same text", 0, 100, 0},
		{"one char dropped", "Hello World", "Helo World", 1, 100 - 100.0/11, 100.0 / 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			distance, accuracy, errorRate := CharacterMetrics(tt.groundTruth, tt.predicted)
			assert.Equal(t, tt.wantDistance, distance)
			assert.InDelta(t, tt.wantAccuracy, accuracy, 1e-9)
			assert.InDelta(t, tt.wantErrorRate, errorRate, 1e-9)
		})
	}
}

func TestCharacterMetrics_ErrorRateCanExceed100(t *testing.T) {
	t.Parallel()

	// Prediction far longer than ground truth: the error rate normalizes by
	// ground-truth length only, so it exceeds 100 while accuracy clamps at 0.
	_, accuracy, errorRate := CharacterMetrics("ab", "zzzzzzzzzz")
	assert.Greater(t, errorRate, 100.0)
	assert.Equal(t, 0.0, accuracy)
}

func TestCharacterMetrics_RateAsymmetry(t *testing.T) {
	t.Parallel()

	_, _, rateAB := CharacterMetrics("abcdefghij", "abc")
	_, _, rateBA := CharacterMetrics("abc", "abcdefghij")
	assert.NotEqual(t, rateAB, rateBA)
}

func TestWordMetrics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		groundTruth   string
		predicted     string
		wantAccuracy  float64
		wantErrorRate float64
	}{
		{"both empty", "", "", 100, 0},
		{"empty ground truth", "", "some words", 0, 100},
		{"empty predicted", "two words", "", 0, 100},
		{"identical", "the quick brown fox", "the quick brown fox", 100, 0},
		{"case insensitive match", "Hello World", "hello world", 100, 0},
		{"one word wrong", "Hello World", "Helo World", 50, 50},
		{"extra whitespace ignored", "a  b\tc", "a b c", 100, 0},
		{"missing word", "one two three four", "one two three", 75, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			accuracy, errorRate := WordMetrics(tt.groundTruth, tt.predicted)
			assert.InDelta(t, tt.wantAccuracy, accuracy, 1e-9)
			assert.InDelta(t, tt.wantErrorRate, errorRate, 1e-9)
		})
	}
}

func TestDetailed_Identity(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "hello", "The quick brown fox", "日本語 テスト"} {
		r := Detailed(s, s)
		assert.Equal(t, 0, r.LevenshteinDistance)
		assert.Equal(t, 100.0, r.CharacterAccuracy)
		assert.Equal(t, 100.0, r.WordAccuracy)
		assert.Equal(t, 0.0, r.CharacterErrorRate)
		assert.Equal(t, 0.0, r.WordErrorRate)
	}
}

func TestDetailed_LiteralScenario(t *testing.T) {
	t.Parallel()

	r := Detailed("Hello World", "Helo World")

	assert.Equal(t, 1, r.LevenshteinDistance)
	assert.InDelta(t, 90.91, r.CharacterAccuracy, 0.001)
	assert.InDelta(t, 9.09, r.CharacterErrorRate, 0.001)
	assert.Equal(t, 11, r.GroundTruthLength)
	assert.Equal(t, 10, r.PredictedLength)
	assert.Equal(t, 50.0, r.WordAccuracy)
	assert.Equal(t, 50.0, r.WordErrorRate)
	assert.Equal(t, 2, r.GroundTruthWordCount)
	assert.Equal(t, 2, r.PredictedWordCount)
}

func TestDetailed_EmptyInputs(t *testing.T) {
	t.Parallel()

	r := Detailed("", "")
	assert.Equal(t, 0, r.LevenshteinDistance)
	assert.Equal(t, 100.0, r.CharacterAccuracy)
	assert.Equal(t, 0.0, r.CharacterErrorRate)

	r = Detailed("", "abc")
	assert.Equal(t, 3, r.LevenshteinDistance)
	assert.Equal(t, 0.0, r.CharacterAccuracy)
	assert.Equal(t, 100.0, r.CharacterErrorRate)
}

func TestDetailed_Bounds(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"ground truth here", "completely different words"},
		{"x", "a very long prediction that shares nothing"},
		{"some normal sentence", "some normal sentence"},
		{"", "anything"},
	}
	for _, p := range pairs {
		r := Detailed(p[0], p[1])
		assert.GreaterOrEqual(t, r.CharacterAccuracy, 0.0)
		assert.LessOrEqual(t, r.CharacterAccuracy, 100.0)
		assert.GreaterOrEqual(t, r.WordAccuracy, 0.0)
		assert.LessOrEqual(t, r.WordAccuracy, 100.0)
		assert.GreaterOrEqual(t, r.CharacterErrorRate, 0.0)
		assert.GreaterOrEqual(t, r.WordErrorRate, 0.0)
		assert.GreaterOrEqual(t, r.LevenshteinDistance, 0)
	}
}

func TestDetailed_Deterministic(t *testing.T) {
	t.Parallel()

	a := Detailed("The quick brown fox", "The quikc brown fxo")
	b := Detailed("The quick brown fox", "The quikc brown fxo")
	require.Equal(t, a, b)
}

func TestDetailed_UnicodeLengths(t *testing.T) {
	t.Parallel()

	// Lengths count code points, not bytes.
	r := Detailed("héllo", "héllo")
	assert.Equal(t, 5, r.GroundTruthLength)
	assert.Equal(t, 5, r.PredictedLength)
}

package metrics

import "sort"

// EngineResult is one OCR engine's raw output for an image: the text it
// produced and whether the attempt succeeded upstream.
type EngineResult struct {
	Engine  string `json:"engine"`
	Text    string `json:"text"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Comparison pairs an engine name with its metrics against the ground truth.
// OK is false when the engine's OCR attempt failed; such entries carry no
// metrics and always rank after every successful entry.
type Comparison struct {
	Engine  string  `json:"engine"`
	OK      bool    `json:"ok"`
	Metrics *Result `json:"metrics,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// CompareEngines evaluates each successful engine result against the ground
// truth and ranks the entries: successes first, descending by character
// accuracy, ties broken by descending word accuracy and then original input
// order. Failed entries keep their relative order at the end. The sort is
// stable, so identical inputs always produce identical output order.
func CompareEngines(groundTruth string, results []EngineResult) []Comparison {
	entries := make([]Comparison, 0, len(results))
	for _, r := range results {
		if !r.Success {
			entries = append(entries, Comparison{Engine: r.Engine, Error: r.Error})
			continue
		}
		m := Detailed(groundTruth, r.Text)
		entries = append(entries, Comparison{Engine: r.Engine, OK: true, Metrics: &m})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.OK != b.OK {
			return a.OK
		}
		if !a.OK {
			return false
		}
		if a.Metrics.CharacterAccuracy != b.Metrics.CharacterAccuracy {
			return a.Metrics.CharacterAccuracy > b.Metrics.CharacterAccuracy
		}
		return a.Metrics.WordAccuracy > b.Metrics.WordAccuracy
	})

	return entries
}

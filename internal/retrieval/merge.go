package retrieval

import "sort"

// Merge combines primary (index) and fallback (web) results into at most max
// citations. Higher scores win; on a score tie a primary result always beats
// a fallback result, so fallback grounding never pre-empts equally relevant
// indexed knowledge.
func Merge(primary, fallback []Result, max int) []Result {
	if max <= 0 {
		return nil
	}

	type ranked struct {
		Result
		fromFallback bool
		pos          int
	}
	combined := make([]ranked, 0, len(primary)+len(fallback))
	for i, r := range primary {
		combined = append(combined, ranked{Result: r, fromFallback: false, pos: i})
	}
	for i, r := range fallback {
		combined = append(combined, ranked{Result: r, fromFallback: true, pos: i})
	}

	sort.SliceStable(combined, func(i, j int) bool {
		if combined[i].Score != combined[j].Score {
			return combined[i].Score > combined[j].Score
		}
		if combined[i].fromFallback != combined[j].fromFallback {
			return !combined[i].fromFallback
		}
		return combined[i].pos < combined[j].pos
	})

	if len(combined) > max {
		combined = combined[:max]
	}
	out := make([]Result, 0, len(combined))
	for _, r := range combined {
		out = append(out, r.Result)
	}
	return out
}

// TopScore returns the highest relevance score, or 0 for no results.
func TopScore(results []Result) float64 {
	top := 0.0
	for _, r := range results {
		if r.Score > top {
			top = r.Score
		}
	}
	return top
}

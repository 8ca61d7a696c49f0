package retrieval

import "testing"

func TestMergePrefersHigherScoresAndPrimaryTies(t *testing.T) {
	primary := []Result{
		{SourceRef: "p1", SourceKind: KindIndex, Score: 0.9},
		{SourceRef: "p2", SourceKind: KindIndex, Score: 0.4},
	}
	fallback := []Result{
		{SourceRef: "f1", SourceKind: KindWeb, Score: 0.7},
		{SourceRef: "f2", SourceKind: KindWeb, Score: 0.3},
	}

	merged := Merge(primary, fallback, 3)
	if len(merged) != 3 {
		t.Fatalf("merged length = %d, want 3", len(merged))
	}
	wantRefs := []string{"p1", "f1", "p2"}
	wantScores := []float64{0.9, 0.7, 0.4}
	for i := range wantRefs {
		if merged[i].SourceRef != wantRefs[i] || merged[i].Score != wantScores[i] {
			t.Fatalf("merged[%d] = %s/%.1f, want %s/%.1f",
				i, merged[i].SourceRef, merged[i].Score, wantRefs[i], wantScores[i])
		}
	}
}

func TestMergeTieFavorsPrimary(t *testing.T) {
	primary := []Result{{SourceRef: "p", SourceKind: KindIndex, Score: 0.6}}
	fallback := []Result{{SourceRef: "f", SourceKind: KindWeb, Score: 0.6}}

	merged := Merge(fallback[:0], append([]Result{}, fallback...), 2)
	if merged[0].SourceRef != "f" {
		t.Fatalf("fallback-only merge lost fallback result")
	}

	merged = Merge(primary, fallback, 1)
	if len(merged) != 1 || merged[0].SourceRef != "p" {
		t.Fatalf("tie at 0.6 resolved to %v, want primary", merged)
	}
}

func TestMergeCapsCombinedCitations(t *testing.T) {
	primary := []Result{
		{SourceRef: "p1", Score: 0.9},
		{SourceRef: "p2", Score: 0.8},
		{SourceRef: "p3", Score: 0.7},
	}
	fallback := []Result{
		{SourceRef: "f1", Score: 0.85},
		{SourceRef: "f2", Score: 0.75},
	}
	merged := Merge(primary, fallback, 2)
	if len(merged) != 2 {
		t.Fatalf("merged length = %d, want 2", len(merged))
	}
	if merged[0].SourceRef != "p1" || merged[1].SourceRef != "f1" {
		t.Fatalf("merged = [%s %s], want [p1 f1]", merged[0].SourceRef, merged[1].SourceRef)
	}
}

func TestMergeEmptyInputs(t *testing.T) {
	if got := Merge(nil, nil, 3); len(got) != 0 {
		t.Fatalf("Merge(nil,nil) = %v, want empty", got)
	}
	if got := Merge(nil, []Result{{SourceRef: "f", Score: 0.2}}, 0); got != nil {
		t.Fatalf("Merge with max=0 = %v, want nil", got)
	}
}

func TestTopScore(t *testing.T) {
	if got := TopScore(nil); got != 0 {
		t.Fatalf("TopScore(nil) = %v, want 0", got)
	}
	results := []Result{{Score: 0.3}, {Score: 0.8}, {Score: 0.5}}
	if got := TopScore(results); got != 0.8 {
		t.Fatalf("TopScore = %v, want 0.8", got)
	}
}

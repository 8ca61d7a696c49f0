package observability

import "testing"

func TestTurnStageWindowSnapshot(t *testing.T) {
	w := NewTurnStageWindow(8)
	w.Observe(StageRetrieval, 500)
	w.Observe(StageRetrieval, 700)
	w.Observe(StageRetrieval, 900)
	w.ObserveIndicator("fallback_triggered")
	w.ObserveIndicator("fallback_triggered")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != StageRetrieval {
		t.Fatalf("Stage = %q, want %q", s.Stage, StageRetrieval)
	}
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", s.LastMS)
	}
	if s.P50MS != 700 {
		t.Fatalf("P50MS = %.2f, want 700", s.P50MS)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if s.TargetP95MS != 2200 {
		t.Fatalf("TargetP95MS = %.2f, want 2200", s.TargetP95MS)
	}
	if len(snap.Indicators) != 1 {
		t.Fatalf("len(Indicators) = %d, want 1", len(snap.Indicators))
	}
	if snap.Indicators[0].Name != "fallback_triggered" {
		t.Fatalf("Indicators[0].Name = %q, want %q", snap.Indicators[0].Name, "fallback_triggered")
	}
	if snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators[0].Count = %d, want %d", snap.Indicators[0].Count, 2)
	}

	w.Observe("", 10)
	w.Observe(StageCompose, -1)
	if got := len(w.Snapshot().Stages); got != 1 {
		t.Fatalf("invalid observations should be dropped, got %d stages", got)
	}
}

func TestTurnStageWindowReset(t *testing.T) {
	w := NewTurnStageWindow(4)
	w.Observe(StagePersist, 12)
	w.ObserveIndicator("retry")
	w.Reset()

	snap := w.Snapshot()
	if len(snap.Stages) != 0 || len(snap.Indicators) != 0 {
		t.Fatalf("Reset should clear the window, got %+v", snap)
	}
}

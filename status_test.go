package main

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestComputeRate(t *testing.T) {
	tests := []struct {
		catches, misses int
		want            float64
	}{
		{0, 0, 0},
		{1, 0, 100},
		{0, 4, 0},
		{3, 1, 75},
		{1, 1, 50},
	}
	for _, tt := range tests {
		if got := computeRate(tt.catches, tt.misses); got != tt.want {
			t.Errorf("computeRate(%d, %d) = %v, want %v", tt.catches, tt.misses, got, tt.want)
		}
	}
}

func TestSharedStatusInitialState(t *testing.T) {
	s := NewSharedStatus()
	if s.IsRunning() {
		t.Error("new status must not be running")
	}
	if s.Activity() != ActivityWaitingForStart {
		t.Errorf("expected WaitingForStart, got %s", s.Activity())
	}
	if s.Stats() != (Stats{}) {
		t.Errorf("expected zero stats, got %+v", s.Stats())
	}
}

func TestSharedStatusSetRunningMovesActivity(t *testing.T) {
	s := NewSharedStatus()

	s.SetRunning(true)
	if !s.IsRunning() || s.Activity() != ActivityWaitingForDefaultScreen {
		t.Errorf("after start: running=%v activity=%s", s.IsRunning(), s.Activity())
	}

	s.SetRunning(false)
	if s.IsRunning() || s.Activity() != ActivityStopped {
		t.Errorf("after stop: running=%v activity=%s", s.IsRunning(), s.Activity())
	}
}

func TestSharedStatusDetailFormatting(t *testing.T) {
	s := NewSharedStatus()

	s.SetDetail("100% literal")
	if s.Detail() != "100% literal" {
		t.Errorf("detail without args must not be formatted, got %q", s.Detail())
	}

	s.Report(ActivityMovingRight, "Arrow RIGHT detected, lane = %d", 1)
	if s.Activity() != ActivityMovingRight || s.Detail() != "Arrow RIGHT detected, lane = 1" {
		t.Errorf("unexpected report: %s %q", s.Activity(), s.Detail())
	}
}

func TestSharedStatusStatsCounters(t *testing.T) {
	s := NewSharedStatus()
	s.IncrementCatch(5)
	s.IncrementCatch(12)
	s.IncrementMiss()

	st := s.Stats()
	if st.Catches != 2 || st.Misses != 1 || st.XP != 17 {
		t.Errorf("unexpected stats %+v", st)
	}
	if st.Rate != computeRate(2, 1) {
		t.Errorf("rate not recomputed: %v", st.Rate)
	}

	s.ResetStats()
	if s.Stats() != (Stats{}) {
		t.Errorf("expected reset stats, got %+v", s.Stats())
	}
}

func TestSharedStatusSnapshotJSON(t *testing.T) {
	s := NewSharedStatus()
	s.SetRunning(true)
	s.UpdateStats(2, 1, 30)
	s.Report(ActivityCastingLine, "Casting fishing line...")

	data, err := s.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"running", "activity", "activity_tag", "detail", "stats"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("snapshot missing %q: %s", key, data)
		}
	}
	if raw["activity"] != ActivityCastingLine.Description() {
		t.Errorf("activity should carry the description, got %v", raw["activity"])
	}
	stats := raw["stats"].(map[string]interface{})
	if stats["rate"] != "66.67" {
		t.Errorf("expected rate 66.67, got %v", stats["rate"])
	}
}

func TestSharedStatusDetections(t *testing.T) {
	s := NewSharedStatus()
	w := Region{Left: 5, Top: 6, Width: 100, Height: 50}
	s.SetWindow(&w)
	w.Width = 1

	s.AddDetection(DetectionBox{Label: "a"})
	s.AddDetection(DetectionBox{Label: "b"})

	d := s.Detections()
	if len(d.Boxes) != 2 || d.Window == nil || d.Window.Width != 100 {
		t.Fatalf("unexpected detections %+v", d)
	}

	d.Boxes[0].Label = "changed"
	if s.Detections().Boxes[0].Label != "a" {
		t.Error("Detections must return a copy")
	}

	s.ClearDetections()
	s.SetWindow(nil)
	d = s.Detections()
	if len(d.Boxes) != 0 || d.Window != nil {
		t.Errorf("expected cleared detections, got %+v", d)
	}
}

func TestActivityTagsAreUnique(t *testing.T) {
	seen := make(map[string]Activity)
	for a := ActivityIdle; a <= ActivityStopped; a++ {
		tag := a.String()
		if tag == "unknown" || a.Description() == "Unknown" {
			t.Errorf("activity %d has no tag or description", a)
		}
		if prev, ok := seen[tag]; ok {
			t.Errorf("tag %q shared by %d and %d", tag, prev, a)
		}
		seen[tag] = a
	}
}

func TestSharedStatusConcurrentAccess(t *testing.T) {
	s := NewSharedStatus()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.IncrementCatch(1)
				s.SetDetail("tick %d", j)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	if st := s.Stats(); st.Catches != 800 || st.XP != 800 {
		t.Errorf("lost updates: %+v", st)
	}
}

package memory

import (
	"math"
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestHybridScorer_ThresholdGatePrecedesBoost(t *testing.T) {
	scorer := NewHybridScorer(ScoringConfig{
		RecencyWeight:   1,
		HalfLifeDays:    7,
		FrequencyWeight: 1,
		FrequencyCap:    1,
	})

	fresh := &Memory{ID: "m", CreatedAt: testNow, AccessedAt: testNow, AccessCount: 1000}
	got := scorer.Rank([]Candidate{{Memory: fresh, Similarity: 0.4}}, 0.5, testNow)
	if len(got) != 0 {
		t.Fatalf("a 0.4 candidate passed a 0.5 gate: %+v", got)
	}

	got = scorer.Rank([]Candidate{{Memory: fresh, Similarity: 0.5}}, 0.5, testNow)
	if len(got) != 1 {
		t.Fatalf("a candidate at the threshold must be admitted")
	}
	if got[0].Score != 1 {
		t.Errorf("score should clamp to 1, got %f", got[0].Score)
	}
}

func TestHybridScorer_RecencyMonotonic(t *testing.T) {
	scorer := NewHybridScorer(DefaultScoringConfig())

	prev := math.Inf(1)
	for _, days := range []int{0, 1, 7, 30, 365} {
		boost := scorer.RecencyBoost(testNow.AddDate(0, 0, -days), testNow)
		if boost > prev {
			t.Errorf("boost at %d days (%f) exceeds younger boost %f", days, boost, prev)
		}
		if boost < 0 {
			t.Errorf("negative boost at %d days", days)
		}
		prev = boost
	}

	if b := scorer.RecencyBoost(testNow.Add(time.Hour), testNow); b != DefaultScoringConfig().RecencyWeight {
		t.Errorf("future timestamps should get the full boost, got %f", b)
	}
}

func TestHybridScorer_FrequencyMonotonicAndCapped(t *testing.T) {
	cfg := DefaultScoringConfig()
	scorer := NewHybridScorer(cfg)

	prev := -1.0
	for _, n := range []int64{0, 1, 2, 5, 100, 100000} {
		m := &Memory{CreatedAt: testNow, AccessedAt: testNow, AccessCount: n}
		boost := scorer.FrequencyBoost(m)
		if boost < prev {
			t.Errorf("boost for %d accesses (%f) below boost for fewer (%f)", n, boost, prev)
		}
		if boost > cfg.FrequencyCap {
			t.Errorf("boost %f exceeds cap %f", boost, cfg.FrequencyCap)
		}
		prev = boost
	}
}

func TestHybridScorer_FrequencyFallsBackToAccessGap(t *testing.T) {
	scorer := NewHybridScorer(DefaultScoringConfig())

	untouched := &Memory{CreatedAt: testNow, AccessedAt: testNow}
	touched := &Memory{CreatedAt: testNow, AccessedAt: testNow.Add(time.Minute)}

	if scorer.FrequencyBoost(untouched) != 0 {
		t.Errorf("untouched record should have no frequency boost")
	}
	if scorer.FrequencyBoost(touched) <= 0 {
		t.Errorf("touched record should have a positive frequency boost")
	}
}

func TestHybridScorer_TieBreak(t *testing.T) {
	scorer := NewHybridScorer(ScoringConfig{})

	older := testNow.Add(-time.Hour)
	candidates := []Candidate{
		{Memory: &Memory{ID: "c", CreatedAt: older}, Similarity: 0.8},
		{Memory: &Memory{ID: "b", CreatedAt: testNow}, Similarity: 0.8},
		{Memory: &Memory{ID: "a", CreatedAt: older}, Similarity: 0.8},
		{Memory: &Memory{ID: "z", CreatedAt: older}, Similarity: 0.9},
	}

	want := []string{"z", "b", "a", "c"}
	for run := 0; run < 3; run++ {
		got := scorer.Rank(candidates, 0, testNow)
		for i, id := range want {
			if got[i].Memory.ID != id {
				t.Fatalf("run %d: position %d = %s, want %s", run, i, got[i].Memory.ID, id)
			}
		}
	}
}

func TestHybridScorer_NegativeSimilarity(t *testing.T) {
	scorer := NewHybridScorer(DefaultScoringConfig())

	m := &Memory{ID: "m", CreatedAt: testNow, AccessedAt: testNow}
	if got := scorer.Rank([]Candidate{{Memory: m, Similarity: -1}}, 0.01, testNow); len(got) != 0 {
		t.Errorf("anti-correlated candidate admitted")
	}

	scored := scorer.Score(Candidate{Memory: m, Similarity: -1}, testNow)
	if scored.Score < 0 || scored.Score > 1 {
		t.Errorf("score %f outside [0,1]", scored.Score)
	}
}

func TestHybridScorer_WithRecencyWeight(t *testing.T) {
	base := NewHybridScorer(DefaultScoringConfig())
	task := base.WithRecencyWeight(0.25)

	if task.Config().RecencyWeight != 0.25 {
		t.Errorf("recency weight = %f, want 0.25", task.Config().RecencyWeight)
	}
	if base.Config().RecencyWeight != DefaultScoringConfig().RecencyWeight {
		t.Errorf("WithRecencyWeight mutated the original scorer")
	}
	if task.RecencyBoost(testNow, testNow) <= base.RecencyBoost(testNow, testNow) {
		t.Errorf("higher recency weight should give a larger boost")
	}
}

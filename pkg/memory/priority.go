package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Metadata keys inspected by the priority analyzer.
const (
	MetaPriorities  = "priorities"
	MetaPriority    = "priority"
	MetaStressors   = "stressors"
	MetaPreferences = "preferences"
	MetaImportance  = "importance"
)

// DefaultPrioritySignals weights each metadata key that names priority labels.
// Stressors weigh most since they mark what currently demands attention.
var DefaultPrioritySignals = map[string]float64{
	MetaPriorities:  1.0,
	MetaPriority:    1.0,
	MetaStressors:   1.5,
	MetaPreferences: 0.5,
}

// PriorityAnalyzer aggregates priority labels from an owner's PERSONAL
// memories into normalized importance scores.
type PriorityAnalyzer struct {
	store   Store
	signals map[string]float64
	keys    []string
}

// NewPriorityAnalyzer creates an analyzer. Nil signals use DefaultPrioritySignals.
func NewPriorityAnalyzer(store Store, signals map[string]float64) *PriorityAnalyzer {
	if len(signals) == 0 {
		signals = DefaultPrioritySignals
	}
	keys := make([]string, 0, len(signals))
	for k := range signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &PriorityAnalyzer{store: store, signals: signals, keys: keys}
}

// Calculate returns label -> score in [0,1] for owner. The strongest label
// scores 1. An owner without signals gets an empty map.
func (a *PriorityAnalyzer) Calculate(ctx context.Context, owner string) (map[string]float64, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, ErrInvalidOwner
	}
	records, err := a.store.List(ctx, owner, TierPersonal)
	if err != nil {
		return nil, Unavailable("list", err)
	}
	return a.Aggregate(records), nil
}

// Aggregate scores a fixed record set. It has no side effects and returns
// the same map for the same records regardless of their order.
func (a *PriorityAnalyzer) Aggregate(records []*Memory) map[string]float64 {
	sorted := make([]*Memory, 0, len(records))
	for _, m := range records {
		if m != nil && m.Tier == TierPersonal {
			sorted = append(sorted, m)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	raw := make(map[string]float64)
	for _, m := range sorted {
		if len(m.Metadata) == 0 {
			continue
		}
		importance := importanceOf(m.Metadata)
		for _, key := range a.keys {
			v, ok := m.Metadata[key]
			if !ok {
				continue
			}
			weight := a.signals[key] * importance
			for label, w := range labelsOf(v) {
				raw[label] += weight * w
			}
		}
	}

	var peak float64
	for _, v := range raw {
		peak = math.Max(peak, v)
	}
	out := make(map[string]float64, len(raw))
	if peak <= 0 {
		return out
	}
	for label, v := range raw {
		if v <= 0 {
			continue
		}
		out[label] = clamp01(v / peak)
	}
	return out
}

// importanceOf reads the optional per-record importance multiplier.
func importanceOf(meta Metadata) float64 {
	v, ok := meta[MetaImportance]
	if !ok {
		return 1
	}
	f, ok := toFloat(v)
	if !ok || f <= 0 {
		return 1
	}
	return f
}

// labelsOf extracts label weights from a metadata value. Strings and string
// lists carry weight 1 per label; maps carry explicit numeric weights.
func labelsOf(v any) map[string]float64 {
	out := make(map[string]float64)
	add := func(label string, w float64) {
		label = normalizeLabel(label)
		if label == "" || w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return
		}
		out[label] += w
	}

	switch val := v.(type) {
	case string:
		for _, part := range strings.Split(val, ",") {
			add(part, 1)
		}
	case []string:
		for _, s := range val {
			add(s, 1)
		}
	case []any:
		for _, item := range val {
			switch it := item.(type) {
			case string:
				add(it, 1)
			case map[string]any:
				label, _ := it["label"].(string)
				w, ok := toFloat(it["weight"])
				if !ok {
					w = 1
				}
				add(label, w)
			}
		}
	case map[string]any:
		for label, raw := range val {
			if w, ok := toFloat(raw); ok {
				add(label, w)
			}
		}
	case map[string]float64:
		for label, w := range val {
			add(label, w)
		}
	}
	return out
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// toFloat reads a finite number. NaN and infinities are rejected so a single
// bad record cannot poison the aggregate.
func toFloat(v any) (float64, bool) {
	f, ok := parseNumber(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case fmt.Stringer:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	}
	return 0, false
}

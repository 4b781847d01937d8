package memory

import (
	"strings"
	"unicode"
)

// StrategicConfig tunes the three-bucket strategic context retrieval.
// The personal bucket has no threshold: identity and preference records are
// ranked but never filtered out by the query.
type StrategicConfig struct {
	PersonalLimit int
	ProjectLimit  int
	TaskLimit     int

	ProjectThreshold float64
	TaskThreshold    float64

	// TaskRecencyWeight replaces the scorer's recency weight for the task bucket.
	TaskRecencyWeight float64

	// GoalKeywords are the lexical cues that enable the project bucket.
	// Entries may be single words or short phrases.
	GoalKeywords []string
}

// DefaultGoalKeywords is the reference goal/plan cue list.
var DefaultGoalKeywords = []string{
	"goal", "goals", "plan", "plans", "planning", "planned",
	"project", "projects", "milestone", "milestones",
	"objective", "objectives", "roadmap", "deadline", "deadlines",
	"target", "targets", "aim", "aims", "strategy", "ambition",
	"achieve", "achieving", "progress", "intend", "intention",
	"working on", "next step", "next steps",
}

// DefaultStrategicConfig returns the reference bucket shape.
func DefaultStrategicConfig() StrategicConfig {
	return StrategicConfig{
		PersonalLimit:     5,
		ProjectLimit:      10,
		TaskLimit:         5,
		ProjectThreshold:  0.3,
		TaskThreshold:     0.45,
		TaskRecencyWeight: 0.25,
		GoalKeywords:      DefaultGoalKeywords,
	}
}

// cueMatcher detects goal/plan cues in free text.
type cueMatcher struct {
	phrases []string
}

func newCueMatcher(keywords []string) *cueMatcher {
	m := &cueMatcher{}
	seen := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		norm := normalizeWords(k)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		m.phrases = append(m.phrases, " "+norm+" ")
	}
	return m
}

// Match reports whether text contains any cue as whole words.
func (m *cueMatcher) Match(text string) bool {
	norm := " " + normalizeWords(text) + " "
	for _, p := range m.phrases {
		if strings.Contains(norm, p) {
			return true
		}
	}
	return false
}

// normalizeWords lowercases text and collapses every run of non-alphanumeric
// characters into a single space.
func normalizeWords(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

// Package classify implements the heuristic urgency scorer: a source base
// score plus weighted keyword matches plus a recency bonus, mapped to a
// severity level by fixed thresholds.
package classify

import (
	"strings"
	"time"

	"regiq/internal/model"
)

// Input carries the source metadata the scorer needs besides the text.
// Now is passed explicitly so scoring stays a pure function.
type Input struct {
	BaseScore int
	Published time.Time
	Now       time.Time
}

// Result is the numeric score and its mapped severity level.
type Result struct {
	Level model.Urgency
	Score int
}

type keywordRule struct {
	term   string
	weight int
}

// Scoring is additive only: more matched keywords can never lower a score.
var keywordRules = []keywordRule{
	{"death", 5},
	{"fatal", 5},
	{"class i", 5},
	{"do not eat", 5},
	{"do not consume", 5},
	{"contamination", 4},
	{"contaminated", 4},
	{"outbreak", 4},
	{"emergency", 4},
	{"listeria", 4},
	{"salmonella", 4},
	{"e. coli", 4},
	{"botulism", 4},
	{"recall", 3},
	{"hospitalization", 3},
	{"illness", 2},
	{"warning", 2},
	{"undeclared", 2},
	{"hazard", 2},
	{"alert", 1},
	{"advisory", 1},
}

// Level thresholds on the clamped score.
const (
	maxScore          = 20
	criticalThreshold = 12
	highThreshold     = 8
	mediumThreshold   = 4
)

// Score computes the urgency of an alert from its text and metadata. Each
// keyword contributes its weight once regardless of repetition.
func Score(text string, in Input) Result {
	lowered := strings.ToLower(text)

	score := in.BaseScore
	if score < 0 {
		score = 0
	}

	for _, rule := range keywordRules {
		if strings.Contains(lowered, rule.term) {
			score += rule.weight
		}
	}

	score += recencyBonus(in.Published, in.Now)

	if score > maxScore {
		score = maxScore
	}

	return Result{Level: levelFor(score), Score: score}
}

func recencyBonus(published, now time.Time) int {
	if published.IsZero() || published.After(now) {
		return 0
	}
	switch age := now.Sub(published); {
	case age < 6*time.Hour:
		return 3
	case age < 24*time.Hour:
		return 2
	case age < 72*time.Hour:
		return 1
	default:
		return 0
	}
}

func levelFor(score int) model.Urgency {
	switch {
	case score >= criticalThreshold:
		return model.UrgencyCritical
	case score >= highThreshold:
		return model.UrgencyHigh
	case score >= mediumThreshold:
		return model.UrgencyMedium
	default:
		return model.UrgencyLow
	}
}

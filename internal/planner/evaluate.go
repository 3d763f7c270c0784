package planner

import "github.com/p-n-ai/pai-planner/internal/curriculum"

// Follow-up thresholds. This table is a contract, not a tunable.
const (
	remediationBelow = 70
	extensionAbove   = 85
)

// Classify maps a score to its follow-up category:
// score < 70 remediation, 70..85 reinforcement, > 85 extension.
func Classify(score float64) FollowUp {
	switch {
	case score < remediationBelow:
		return FollowUpRemediation
	case score <= extensionAbove:
		return FollowUpReinforcement
	default:
		return FollowUpExtension
	}
}

// ClampScore bounds a score into [0,100].
func ClampScore(score float64) float64 {
	return clamp(score, 0, 100)
}

// LocalScore scores a payload from its correctness signals alone.
func LocalScore(p PerformancePayload) float64 {
	if p.Total <= 0 {
		return 0
	}
	return ClampScore(float64(p.Correct) / float64(p.Total) * 100)
}

// LocalEfficiency relates the score to the time actually spent against the
// planned minutes, in [0,1].
func LocalEfficiency(score float64, planned, spent int) float64 {
	e := ClampScore(score) / 100
	if spent > planned && spent > 0 && planned > 0 {
		e *= float64(planned) / float64(spent)
	}
	return clamp(e, 0, 1)
}

// ClampEfficiency bounds an efficiency into [0,1].
func ClampEfficiency(e float64) float64 {
	return clamp(e, 0, 1)
}

// RecommendDifficulty steps the current difficulty by follow-up category.
func RecommendDifficulty(current curriculum.Difficulty, f FollowUp) curriculum.Difficulty {
	switch f {
	case FollowUpRemediation:
		return current.Shift(-1)
	case FollowUpExtension:
		return current.Shift(1)
	default:
		return current
	}
}
